package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/retry"
)

// maxBatchWrites stays under Firestore's per-transaction write limit.
const maxBatchWrites = 400

type CreateProjectInput struct {
	Title       string
	Description string
}

type ProjectService struct {
	store        docstore.Store
	objects      ObjectStore
	defaultPrice int64
	retry        retry.Policy
}

// NewProjectService creates projects priced at defaultPrice minor units.
// objects may be nil, in which case stored files are left alone on delete.
func NewProjectService(store docstore.Store, objects ObjectStore, defaultPrice int64) *ProjectService {
	return &ProjectService{store: store, objects: objects, defaultPrice: defaultPrice, retry: retry.Default}
}

func (s *ProjectService) Create(ctx context.Context, userID string, in CreateProjectInput) (*models.Project, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, invalid("Title and description are required")
	}

	id := docstore.NewID()
	err := s.retry.Do(ctx, func() error {
		return s.store.Set(ctx, docstore.ProjectPath(userID, id), map[string]any{
			"title":       title,
			"description": description,
			"createdAt":   docstore.ServerTimestamp,
			"paid":        false,
			"price":       s.defaultPrice,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	return &models.Project{
		ID:          id,
		OwnerID:     userID,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Price:       s.defaultPrice,
	}, nil
}

func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*models.Project, error) {
	doc, err := s.store.Get(ctx, docstore.ProjectPath(userID, projectID))
	if err != nil {
		return nil, err
	}
	return decodeProject(*doc, userID)
}

// List returns the user's projects, newest first.
func (s *ProjectService) List(ctx context.Context, userID string) ([]models.Project, error) {
	docs, err := s.store.List(ctx, projectsQuery(userID))
	if err != nil {
		return nil, err
	}
	return decodeProjects(docs, userID)
}

func (s *ProjectService) Subscribe(ctx context.Context, userID string, fn func([]models.Project)) (func(), error) {
	return s.store.Subscribe(ctx, projectsQuery(userID), func(docs []docstore.Document) {
		projects, err := decodeProjects(docs, userID)
		if err != nil {
			slog.WarnContext(ctx, "while decoding projects snapshot", slog.Any("err", err))
			return
		}
		fn(projects)
	})
}

// Delete removes the project's messages and dimensions, then the project
// itself, then its stored files. The store does not cascade on its own.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	var paths []string
	for _, collection := range []string{
		docstore.MessagesPath(userID, projectID),
		docstore.DimensionsPath(userID, projectID),
	} {
		docs, err := s.store.List(ctx, docstore.Query{Collection: collection, OrderBy: "createdAt"})
		if err != nil {
			return fmt.Errorf("while listing %s: %w", collection, err)
		}
		for _, d := range docs {
			paths = append(paths, d.Path)
		}
	}
	paths = append(paths, docstore.ProjectPath(userID, projectID))

	for start := 0; start < len(paths); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(paths))
		writes := make([]docstore.Write, 0, end-start)
		for _, p := range paths[start:end] {
			writes = append(writes, docstore.Write{Op: docstore.OpDelete, Path: p})
		}
		if err := s.retry.Do(ctx, func() error { return s.store.Batch(ctx, writes) }); err != nil {
			return fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
	}

	if s.objects != nil {
		prefix := docstore.ProjectPath(userID, projectID) + "/files/"
		if err := s.objects.DeletePrefix(ctx, prefix); err != nil {
			slog.WarnContext(ctx, "while deleting project files",
				slog.String("prefix", prefix), slog.Any("err", err))
		}
	}
	return nil
}

func projectsQuery(userID string) docstore.Query {
	return docstore.Query{
		Collection: docstore.ProjectsPath(userID),
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
	}
}

func decodeProject(doc docstore.Document, userID string) (*models.Project, error) {
	var p models.Project
	if err := docstore.Decode(doc, &p); err != nil {
		return nil, err
	}
	p.ID = doc.ID
	p.OwnerID = userID
	return &p, nil
}

func decodeProjects(docs []docstore.Document, userID string) ([]models.Project, error) {
	projects := make([]models.Project, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProject(doc, userID)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}
