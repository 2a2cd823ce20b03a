package services_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressLog struct {
	mu   sync.Mutex
	seen []int
}

func (p *progressLog) record(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, pct)
}

func (p *progressLog) values() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.seen...)
}

func newAttachments(t *testing.T) (*services.AttachmentService, *fakeObjects, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	objects := newFakeObjects()
	thread := services.NewThread(store, nil).WithRetryPolicy(fastRetry)
	projects := services.NewProjectService(store, objects, 500)
	return services.NewAttachmentService(objects, thread, projects), objects, store
}

func upload(body string) services.FileUpload {
	return services.FileUpload{
		Name:        "plan.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "users/u1/projects/p1/files/1700000000123-plan.pdf",
		services.ObjectKey(services.ProjectScope("u1", "p1"), "plan.pdf", at))
	assert.Equal(t, "users/u1/files/1700000000123-plan.pdf",
		services.ObjectKey(services.GeneralScope("u1"), "plan.pdf", at))
	assert.Equal(t, "users/u1/files/1700000000123-evil.pdf",
		services.ObjectKey(services.GeneralScope("u1"), "../../evil.pdf", at))
}

func TestAttach_ProgressIsMonotonic(t *testing.T) {
	svc, objects, _ := newAttachments(t)
	log := &progressLog{}

	ref, err := svc.Attach(context.Background(), services.GeneralScope("u1"), upload(strings.Repeat("x", 20)), log.record)
	require.NoError(t, err)

	seen := log.values()
	require.NotEmpty(t, seen)
	assert.Equal(t, 0, seen[0])
	assert.Equal(t, 100, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1], "progress went backwards: %v", seen)
	}
	assert.Equal(t, []int{0, 20, 40, 60, 80, 99, 100}, seen)

	assert.Equal(t, "application/pdf", ref.Type)
	assert.True(t, strings.HasPrefix(ref.Path, "users/u1/files/"))
	assert.Equal(t, "https://files.example.com/"+ref.Path, ref.URL)
	assert.Contains(t, objects.keys(), ref.Path)
}

func TestAttach_FailureResetsProgress(t *testing.T) {
	svc, objects, _ := newAttachments(t)
	objects.fail = true
	log := &progressLog{}

	_, err := svc.Attach(context.Background(), services.GeneralScope("u1"), upload(strings.Repeat("x", 20)), log.record)
	require.Error(t, err)

	seen := log.values()
	require.NotEmpty(t, seen)
	assert.Equal(t, 0, seen[len(seen)-1])
	assert.NotContains(t, seen, 100)
	assert.Empty(t, objects.keys())
}

func TestAttach_RequiresFile(t *testing.T) {
	svc, _, _ := newAttachments(t)
	_, err := svc.Attach(context.Background(), services.GeneralScope("u1"), services.FileUpload{Name: "a.txt"}, nil)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestUpload_PostsMessageWithAttachment(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newAttachments(t)
	seedProject(t, store, "u1", "p1", nil)
	scope := services.ProjectScope("u1", "p1")

	msg, err := svc.Upload(ctx, scope, upload("pdf-bytes"), "Here's the plan", models.RoleDesigner, nil)
	require.NoError(t, err)
	require.NotNil(t, msg.File)
	assert.Equal(t, "plan.pdf", msg.File.Name)
	assert.Equal(t, models.RoleDesigner, msg.Sender)

	stored, err := services.NewThread(store, nil).Get(ctx, scope, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.File)
	assert.Equal(t, msg.File.Path, stored.File.Path)
	assert.Equal(t, "Here's the plan", stored.Text)
}

func TestUpload_UnknownProject(t *testing.T) {
	svc, objects, _ := newAttachments(t)
	_, err := svc.Upload(context.Background(), services.ProjectScope("u1", "nope"), upload("x"), "", models.RoleCustomer, nil)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Empty(t, objects.keys())
}

func TestResolveVisibility(t *testing.T) {
	general := services.GeneralScope("u1")
	project := services.ProjectScope("u1", "p1")

	assert.False(t, services.ResolveVisibility(general, false).Locked)
	assert.False(t, services.ResolveVisibility(general, true).Locked)
	assert.True(t, services.ResolveVisibility(project, false).Locked)
	assert.False(t, services.ResolveVisibility(project, true).Locked)
}

func TestPresent_StripsLockedURLs(t *testing.T) {
	msg := models.Message{
		ID:     "m1",
		Sender: models.RoleDesigner,
		File:   &models.FileRef{URL: "https://x/plan.pdf", Name: "plan.pdf", Type: "application/pdf", Path: "k"},
	}
	project := services.ProjectScope("u1", "p1")

	locked := services.Present(project, msg, false)
	require.NotNil(t, locked.File)
	assert.True(t, locked.File.Locked)
	assert.Empty(t, locked.File.URL)
	assert.Equal(t, "plan.pdf", locked.File.Name)

	open := services.Present(project, msg, true)
	assert.False(t, open.File.Locked)
	assert.Equal(t, "https://x/plan.pdf", open.File.URL)

	general := services.Present(services.GeneralScope("u1"), msg, false)
	assert.Equal(t, "https://x/plan.pdf", general.File.URL)

	plain := services.Present(project, models.Message{ID: "m2", Text: "hi"}, false)
	assert.Nil(t, plain.File)
}

func TestOpenURL(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newAttachments(t)
	seedProject(t, store, "u1", "p1", nil)
	scope := services.ProjectScope("u1", "p1")

	msg, err := svc.Upload(ctx, scope, services.FileUpload{
		Name: "render.png", ContentType: "image/png", Size: 3, Body: bytes.NewReader([]byte{1, 2, 3}),
	}, "", models.RoleDesigner, nil)
	require.NoError(t, err)

	_, err = svc.OpenURL(ctx, scope, msg.ID)
	assert.ErrorIs(t, err, services.ErrLocked)

	require.NoError(t, store.Update(ctx, docstore.ProjectPath("u1", "p1"), map[string]any{"paid": true}))
	url, err := svc.OpenURL(ctx, scope, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.File.URL, url)

	text, err := services.NewThread(store, nil).Post(ctx, scope, services.PostInput{Text: "no file", Sender: models.RoleCustomer})
	require.NoError(t, err)
	_, err = svc.OpenURL(ctx, scope, text.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
