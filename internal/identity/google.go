package identity

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// ValidateFunc matches idtoken.Validate.
type ValidateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier turns a "Sign in with Google" ID token into an Identity.
type GoogleVerifier struct {
	clientID string
	validate ValidateFunc
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

// NewGoogleVerifierWith uses validate instead of Google's published keys.
func NewGoogleVerifierWith(clientID string, validate ValidateFunc) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: validate}
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	payload, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: while validating ID token: %v", ErrInvalidToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: ID token has no email", ErrInvalidToken)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email %s is not verified", ErrInvalidToken, email)
	}
	name, _ := payload.Claims["name"].(string)

	return &Identity{
		// Prefixed so federated ids can never collide with provider UUIDs.
		UID:         "google-" + payload.Subject,
		Email:       email,
		DisplayName: name,
	}, nil
}
