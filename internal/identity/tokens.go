package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	audience = "authenticated"
	issuer   = "design-portal"
)

// TokenIssuer signs and verifies HS256 access tokens with the same secret the
// hosted identity provider signs its own tokens with, so both verify alike.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type claims struct {
	Email        string         `json:"email,omitempty"`
	Name         string         `json:"name,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Issue mints a token for an identity verified by a federated provider.
func (t *TokenIssuer) Issue(id Identity) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: id.Email,
		Name:  id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the identity the token
// carries. The display name is read from either our own claim or the
// provider's user metadata.
func (t *TokenIssuer) Verify(raw string) (*Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	name := c.Name
	if name == "" {
		for _, key := range []string{"display_name", "full_name", "name"} {
			if v, ok := c.UserMetadata[key].(string); ok && v != "" {
				name = v
				break
			}
		}
	}
	return &Identity{UID: c.Subject, Email: c.Email, DisplayName: name}, nil
}
