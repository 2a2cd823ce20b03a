package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/forms"
	"design-portal-backend/internal/payments"
	"design-portal-backend/internal/retry"

	"github.com/stretchr/testify/require"
)

var fastRetry = retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

const webhookSecret = "whsec_test_secret"

type fakeGateway struct {
	mu     sync.Mutex
	params []payments.SessionParams
	err    error
}

func (g *fakeGateway) CreateSession(_ context.Context, p payments.SessionParams) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.params = append(g.params, p)
	return &payments.Session{ID: "cs_test_1", RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (g *fakeGateway) VerifyEvent(payload []byte, signature string) (*payments.Event, error) {
	return payments.VerifyStripeEvent(payload, signature, webhookSecret)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
	chunk   int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte), chunk: 4}
}

func (f *fakeObjects) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	var buf bytes.Buffer
	p := make([]byte, f.chunk)
	for {
		n, err := body.Read(p)
		buf.Write(p[:n])
		if f.fail && buf.Len() > 0 {
			return "", errors.New("connection reset")
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = buf.Bytes()
	return "https://files.example.com/" + key, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			delete(f.objects, k)
		}
	}
	return nil
}

func (f *fakeObjects) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

type fakeForms struct {
	got []forms.Submission
	err error
}

func (f *fakeForms) Submit(_ context.Context, s forms.Submission) error {
	f.got = append(f.got, s)
	return f.err
}

// failingStore fails every batch, to exercise the save-failed paths.
type failingStore struct {
	docstore.Store
	batches int
}

func (f *failingStore) Batch(context.Context, []docstore.Write) error {
	f.batches++
	return errors.New("deadline exceeded")
}

func seedProject(t *testing.T, store docstore.Store, userID, projectID string, fields map[string]any) {
	t.Helper()
	base := map[string]any{
		"title":       "Kitchen Redesign",
		"description": "New units",
		"createdAt":   docstore.ServerTimestamp,
		"paid":        false,
		"price":       500,
	}
	for k, v := range fields {
		base[k] = v
	}
	require.NoError(t, store.Set(context.Background(), docstore.ProjectPath(userID, projectID), base))
}
