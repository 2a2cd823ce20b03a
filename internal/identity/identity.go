// Package identity describes who is calling: the identity a provider vouches
// for and the per-request session built from it.
package identity

import (
	"context"
	"errors"

	"design-portal-backend/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// Identity is what an identity provider asserts about a user.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// Result is the outcome of a successful sign-in or sign-up.
type Result struct {
	Identity
	AccessToken string
}

// Provider is a hosted identity service.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Result, error)
	SignUp(ctx context.Context, email, password, displayName string) (*Result, error)
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context, accessToken string) error
}

// Session is the authenticated caller of one request. It is built by the
// auth middleware once the token is verified and the role is resolved, and
// it is discarded with the request.
type Session struct {
	Identity
	Role  models.Role
	Token string
}

func (s *Session) IsDesigner() bool {
	return s.Role == models.RoleDesigner
}

// CanAccess reports whether the caller may address users/{userID}.
func (s *Session) CanAccess(userID string) bool {
	return s.UID == userID || s.IsDesigner()
}
