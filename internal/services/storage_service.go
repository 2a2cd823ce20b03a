package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"design-portal-backend/internal/metrics"
	"design-portal-backend/internal/models"
)

// ObjectStore is the bucket attachments are uploaded to.
type ObjectStore interface {
	// Put stores body under key and returns a URL the object can be fetched from.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProgressFunc receives upload progress as a percentage.
type ProgressFunc func(percent int)

type Visibility struct {
	Locked bool
}

// AttachmentService uploads files into a scope and decides who may fetch them.
type AttachmentService struct {
	objects  ObjectStore
	thread   *Thread
	projects *ProjectService
	now      func() time.Time
}

func NewAttachmentService(objects ObjectStore, thread *Thread, projects *ProjectService) *AttachmentService {
	return &AttachmentService{
		objects:  objects,
		thread:   thread,
		projects: projects,
		now:      time.Now,
	}
}

// ObjectKey namespaces an upload under its owner and, for project scopes,
// its project. The millisecond prefix keeps same-named files apart.
func ObjectKey(scope Scope, filename string, at time.Time) string {
	name := fmt.Sprintf("%d-%s", at.UnixMilli(), sanitizeFilename(filename))
	if scope.IsProject() {
		return path.Join("users", scope.UserID, "projects", scope.ProjectID, "files", name)
	}
	return path.Join("users", scope.UserID, "files", name)
}

// Attach uploads the file and returns its reference. Progress only ever
// increases while the upload runs, reaches 100 on success and drops back
// to 0 on failure.
func (s *AttachmentService) Attach(ctx context.Context, scope Scope, file FileUpload, onProgress ProgressFunc) (*models.FileRef, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(file.Name) == "" || file.Body == nil {
		return nil, invalid("A file is required")
	}
	if onProgress == nil {
		onProgress = func(int) {}
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := ObjectKey(scope, file.Name, s.now())

	progress := newProgressReader(file.Body, file.Size, onProgress)
	url, err := s.objects.Put(ctx, key, contentType, progress, file.Size)
	if err != nil {
		progress.reset()
		metrics.Uploads.WithLabelValues(metrics.OutcomeError).Inc()
		slog.ErrorContext(ctx, "upload failed", slog.String("key", key), slog.Any("err", err))
		return nil, fmt.Errorf("failed to upload %s: %w", file.Name, err)
	}
	progress.complete()
	metrics.Uploads.WithLabelValues(metrics.OutcomeOK).Inc()

	return &models.FileRef{URL: url, Name: file.Name, Type: contentType, Path: key}, nil
}

// Upload attaches a file and posts it as a message. If the message cannot be
// saved the object is removed again.
func (s *AttachmentService) Upload(ctx context.Context, scope Scope, file FileUpload, text string, sender models.Role, onProgress ProgressFunc) (*models.Message, error) {
	if scope.IsProject() {
		if _, err := s.projects.Get(ctx, scope.UserID, scope.ProjectID); err != nil {
			return nil, err
		}
	}

	ref, err := s.Attach(ctx, scope, file, onProgress)
	if err != nil {
		return nil, err
	}

	msg, err := s.thread.Post(ctx, scope, PostInput{Text: text, Sender: sender, Attachment: ref})
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), ref.Path); delErr != nil {
			slog.WarnContext(ctx, "while removing orphaned upload",
				slog.String("key", ref.Path), slog.Any("err", delErr))
		}
		return nil, err
	}
	return msg, nil
}

// ResolveVisibility never locks the general thread; project attachments stay
// locked until the project is paid.
func ResolveVisibility(scope Scope, projectPaid bool) Visibility {
	if !scope.IsProject() {
		return Visibility{Locked: false}
	}
	return Visibility{Locked: !projectPaid}
}

// Present converts a message for a viewer. Locked attachments keep their
// name and type but lose their URL.
func Present(scope Scope, msg models.Message, projectPaid bool) models.MessageView {
	view := models.MessageView{
		ID:        msg.ID,
		Text:      msg.Text,
		Sender:    msg.Sender,
		CreatedAt: msg.CreatedAt,
		Read:      msg.Read,
	}
	if msg.File != nil {
		locked := ResolveVisibility(scope, projectPaid).Locked
		view.File = &models.AttachmentView{Name: msg.File.Name, Type: msg.File.Type, Locked: locked}
		if !locked {
			view.File.URL = msg.File.URL
		}
	}
	return view
}

func PresentAll(scope Scope, msgs []models.Message, projectPaid bool) []models.MessageView {
	views := make([]models.MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = Present(scope, m, projectPaid)
	}
	return views
}

// Paid reports the project's paid flag; general scopes count as paid.
func (s *AttachmentService) Paid(ctx context.Context, scope Scope) (bool, error) {
	if !scope.IsProject() {
		return true, nil
	}
	p, err := s.projects.Get(ctx, scope.UserID, scope.ProjectID)
	if err != nil {
		return false, err
	}
	return p.Paid, nil
}

// OpenURL returns the object URL of a message's attachment, or ErrLocked
// while its project is unpaid.
func (s *AttachmentService) OpenURL(ctx context.Context, scope Scope, messageID string) (string, error) {
	msg, err := s.thread.Get(ctx, scope, messageID)
	if err != nil {
		return "", err
	}
	if msg.File == nil || msg.File.URL == "" {
		return "", fmt.Errorf("%w: message %s has no attachment", ErrNotFound, messageID)
	}

	paid, err := s.Paid(ctx, scope)
	if err != nil {
		return "", err
	}
	if ResolveVisibility(scope, paid).Locked {
		return "", ErrLocked
	}
	return msg.File.URL, nil
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// progressReader reports the share of size read so far.
type progressReader struct {
	r    io.Reader
	size int64
	fn   ProgressFunc

	mu   sync.Mutex
	read int64
	last int
}

func newProgressReader(r io.Reader, size int64, fn ProgressFunc) *progressReader {
	p := &progressReader{r: r, size: size, fn: fn, last: -1}
	p.report(0)
	return p
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.size > 0 {
		p.mu.Lock()
		p.read += int64(n)
		pct := int(p.read * 100 / p.size)
		p.mu.Unlock()
		// 100 is reserved for a confirmed upload.
		if pct > 99 {
			pct = 99
		}
		p.report(pct)
	}
	return n, err
}

func (p *progressReader) report(pct int) {
	p.mu.Lock()
	if pct <= p.last {
		p.mu.Unlock()
		return
	}
	p.last = pct
	p.mu.Unlock()
	p.fn(pct)
}

func (p *progressReader) complete() {
	p.report(100)
}

func (p *progressReader) reset() {
	p.mu.Lock()
	p.last = 0
	p.mu.Unlock()
	p.fn(0)
}
