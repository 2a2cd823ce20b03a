package services

import (
	"context"
	"errors"
	"fmt"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/models"
)

// ProfileService owns users/{uid}. Roles are never taken from request input;
// designer accounts are provisioned directly in the store.
type ProfileService struct {
	store docstore.Store
}

func NewProfileService(store docstore.Store) *ProfileService {
	return &ProfileService{store: store}
}

// Ensure creates the profile on first sign-in and leaves it alone afterwards.
func (s *ProfileService) Ensure(ctx context.Context, id identity.Identity) (*models.User, error) {
	if id.UID == "" {
		return nil, invalid("user id is required")
	}

	path := docstore.UserPath(id.UID)
	err := s.store.Mutate(ctx, path, func(current *docstore.Document) (map[string]any, error) {
		if current != nil {
			return nil, nil
		}
		var displayName any
		if id.DisplayName != "" {
			displayName = id.DisplayName
		}
		return map[string]any{
			"email":       id.Email,
			"displayName": displayName,
			"createdAt":   docstore.ServerTimestamp,
			"role":        string(models.RoleCustomer),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("while ensuring profile %s: %w", id.UID, err)
	}
	return s.Get(ctx, id.UID)
}

func (s *ProfileService) Get(ctx context.Context, uid string) (*models.User, error) {
	doc, err := s.store.Get(ctx, docstore.UserPath(uid))
	if err != nil {
		return nil, err
	}
	return decodeUser(*doc)
}

// Role resolves a user's role, treating unknown users as customers.
func (s *ProfileService) Role(ctx context.Context, uid string) (models.Role, error) {
	u, err := s.Get(ctx, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.RoleCustomer, nil
	}
	if err != nil {
		return "", err
	}
	if !u.Role.Valid() {
		return models.RoleCustomer, nil
	}
	return u.Role, nil
}

// ListCustomers returns every non-designer user with their projects, newest
// users first.
func (s *ProfileService) ListCustomers(ctx context.Context, projects *ProjectService) ([]models.CustomerSummary, error) {
	docs, err := s.store.List(ctx, docstore.Query{
		Collection: docstore.UsersCollection(),
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
	})
	if err != nil {
		return nil, err
	}

	customers := make([]models.CustomerSummary, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		if u.Role == models.RoleDesigner {
			continue
		}
		ps, err := projects.List(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("while listing projects of %s: %w", u.ID, err)
		}
		customers = append(customers, models.CustomerSummary{User: *u, Projects: ps})
	}
	return customers, nil
}

func decodeUser(doc docstore.Document) (*models.User, error) {
	var u models.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, err
	}
	u.ID = doc.ID
	return &u, nil
}
