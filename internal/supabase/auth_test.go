package supabase_test

import (
	"context"
	"errors"
	"testing"

	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/supabase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

type fakeAuth struct {
	gotrue.Client

	users     map[string]types.User
	passwords map[string]string
	recovered []string
	token     string
	loggedOut []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]types.User{}, passwords: map[string]string{}}
}

func (f *fakeAuth) SignInWithEmailPassword(email, password string) (*types.TokenResponse, error) {
	u, ok := f.users[email]
	if !ok || f.passwords[email] != password {
		return nil, errors.New("response status code 400: invalid_grant")
	}
	resp := &types.TokenResponse{}
	resp.AccessToken = "access-" + email
	resp.User = u
	return resp, nil
}

func (f *fakeAuth) Signup(req types.SignupRequest) (*types.SignupResponse, error) {
	if _, exists := f.users[req.Email]; exists {
		return nil, errors.New("User already registered")
	}
	u := types.User{ID: uuid.New(), Email: req.Email, UserMetadata: req.Data}
	f.users[req.Email] = u
	f.passwords[req.Email] = req.Password

	resp := &types.SignupResponse{}
	resp.Session.User = u
	resp.Session.AccessToken = "access-" + req.Email
	return resp, nil
}

func (f *fakeAuth) Recover(req types.RecoverRequest) error {
	f.recovered = append(f.recovered, req.Email)
	return nil
}

func (f *fakeAuth) WithToken(token string) gotrue.Client {
	f.token = token
	return f
}

func (f *fakeAuth) Logout() error {
	f.loggedOut = append(f.loggedOut, f.token)
	return nil
}

func TestAuthClient_SignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAuth()
	auth := supabase.NewAuthClient(fake)

	created, err := auth.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)
	assert.Equal(t, "Ada", created.DisplayName)
	assert.Equal(t, "access-ada@example.com", created.AccessToken)

	res, err := auth.SignInWithPassword(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, res.UID)
	assert.Equal(t, "Ada", res.DisplayName)
}

func TestAuthClient_SignInIsVague(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAuth()
	auth := supabase.NewAuthClient(fake)
	_, err := auth.SignUp(ctx, "ada@example.com", "secret1", "")
	require.NoError(t, err)

	_, wrongPassword := auth.SignInWithPassword(ctx, "ada@example.com", "nope")
	_, unknownUser := auth.SignInWithPassword(ctx, "who@example.com", "secret1")
	assert.ErrorIs(t, wrongPassword, identity.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, identity.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestAuthClient_ResetAndSignOut(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAuth()
	auth := supabase.NewAuthClient(fake)

	require.NoError(t, auth.SendPasswordReset(ctx, "ada@example.com"))
	assert.Equal(t, []string{"ada@example.com"}, fake.recovered)

	require.NoError(t, auth.SignOut(ctx, "tok"))
	assert.Equal(t, []string{"tok"}, fake.loggedOut)
}
