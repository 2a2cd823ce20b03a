package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"design-portal-backend/internal/identity"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// AuthClient signs users in against Supabase Auth (GoTrue).
type AuthClient struct {
	auth gotrue.Client
}

func NewAuthClient(auth gotrue.Client) *AuthClient {
	return &AuthClient{auth: auth}
}

// SignInWithPassword never says whether the email or the password was wrong.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*identity.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := a.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		slog.InfoContext(ctx, "password sign-in rejected", slog.Any("err", err))
		return nil, identity.ErrInvalidCredentials
	}
	return &identity.Result{
		Identity:    userIdentity(resp.User),
		AccessToken: resp.AccessToken,
	}, nil
}

func (a *AuthClient) SignUp(ctx context.Context, email, password, displayName string) (*identity.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := types.SignupRequest{Email: email, Password: password}
	if displayName != "" {
		req.Data = map[string]interface{}{"display_name": displayName}
	}
	resp, err := a.auth.Signup(req)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	// With email confirmation enabled only the user comes back; with
	// autoconfirm the user sits inside the session.
	user := resp.User
	if user.ID == uuid.Nil {
		user = resp.Session.User
	}
	id := userIdentity(user)
	if id.DisplayName == "" {
		id.DisplayName = displayName
	}
	return &identity.Result{Identity: id, AccessToken: resp.Session.AccessToken}, nil
}

func (a *AuthClient) SendPasswordReset(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.auth.Recover(types.RecoverRequest{Email: email}); err != nil {
		return fmt.Errorf("failed to send password reset: %w", err)
	}
	return nil
}

func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.auth.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

func userIdentity(u types.User) identity.Identity {
	return identity.Identity{
		UID:         u.ID.String(),
		Email:       u.Email,
		DisplayName: metadataName(u.UserMetadata),
	}
}

func metadataName(meta map[string]interface{}) string {
	for _, key := range []string{"display_name", "full_name", "name"} {
		if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
