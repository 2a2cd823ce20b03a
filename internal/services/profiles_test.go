package services_test

import (
	"context"
	"testing"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles_EnsureCreatesOnce(t *testing.T) {
	ctx := context.Background()
	profiles := services.NewProfileService(docstore.NewMemory())

	u, err := profiles.Ensure(ctx, identity.Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, models.RoleCustomer, u.Role)
	require.NotNil(t, u.DisplayName)
	assert.Equal(t, "Ada", *u.DisplayName)
	assert.False(t, u.CreatedAt.IsZero())

	again, err := profiles.Ensure(ctx, identity.Identity{UID: "u1", Email: "other@example.com", DisplayName: "Other"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", again.Email)
	assert.Equal(t, "Ada", *again.DisplayName)
	assert.Equal(t, u.CreatedAt, again.CreatedAt)
}

func TestProfiles_EnsureWithoutName(t *testing.T) {
	profiles := services.NewProfileService(docstore.NewMemory())
	u, err := profiles.Ensure(context.Background(), identity.Identity{UID: "google-123", Email: "g@example.com"})
	require.NoError(t, err)
	assert.Nil(t, u.DisplayName)

	_, err = profiles.Ensure(context.Background(), identity.Identity{})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestProfiles_EnsureKeepsProvisionedRole(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, docstore.UserPath("d1"), map[string]any{
		"email": "designer@example.com", "role": "designer", "createdAt": docstore.ServerTimestamp,
	}))
	profiles := services.NewProfileService(store)

	u, err := profiles.Ensure(ctx, identity.Identity{UID: "d1", Email: "designer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleDesigner, u.Role)
}

func TestProfiles_Role(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, docstore.UserPath("d1"), map[string]any{"role": "designer"}))
	require.NoError(t, store.Set(ctx, docstore.UserPath("odd"), map[string]any{"role": "admin"}))
	profiles := services.NewProfileService(store)

	role, err := profiles.Role(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDesigner, role)

	role, err = profiles.Role(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, role)

	role, err = profiles.Role(ctx, "odd")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, role)
}

func TestProfiles_ListCustomers(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	profiles := services.NewProfileService(store)
	projects := services.NewProjectService(store, nil, 500)

	_, err := profiles.Ensure(ctx, identity.Identity{UID: "c1", Email: "c1@example.com"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = profiles.Ensure(ctx, identity.Identity{UID: "c2", Email: "c2@example.com"})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, docstore.UserPath("d1"), map[string]any{
		"email": "designer@example.com", "role": "designer", "createdAt": docstore.ServerTimestamp,
	}))
	_, err = projects.Create(ctx, "c1", services.CreateProjectInput{Title: "Loft", Description: "Conversion"})
	require.NoError(t, err)

	customers, err := profiles.ListCustomers(ctx, projects)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "c2", customers[0].User.ID)
	assert.Empty(t, customers[0].Projects)
	assert.Equal(t, "c1", customers[1].User.ID)
	require.Len(t, customers[1].Projects, 1)
	assert.Equal(t, "Loft", customers[1].Projects[0].Title)
}
