package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/forms"
	"design-portal-backend/internal/handlers"
	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/middleware"
	"design-portal-backend/internal/payments"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

const (
	jwtSecret     = "test-secret-key-for-jwt-signing-must-be-long-enough"
	webhookSecret = "whsec_test_secret"
	siteURL       = "https://portal.example.com"
)

type harness struct {
	router   *gin.Engine
	store    *docstore.Memory
	issuer   *identity.TokenIssuer
	provider *fakeProvider
	gateway  *fakeGateway
	objects  *fakeObjects
	forms    *fakeForms
	events   *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, handlers.RegisterValidators())

	h := &harness{
		store:    docstore.NewMemory(),
		issuer:   identity.NewTokenIssuer(jwtSecret, time.Hour),
		provider: newFakeProvider(),
		gateway:  &fakeGateway{},
		objects:  newFakeObjects(),
		forms:    &fakeForms{},
		events:   &events.Recorder{},
	}
	t.Cleanup(func() { _ = h.store.Close() })

	profiles := services.NewProfileService(h.store)
	projects := services.NewProjectService(h.store, h.objects, 500)
	thread := services.NewThread(h.store, h.events)
	attachments := services.NewAttachmentService(h.objects, thread, projects)
	ledger := services.NewLedger(h.store, h.events)
	checkout := services.NewCheckoutService(h.store, h.gateway, h.events, "gbp", siteURL)
	google := identity.NewGoogleVerifierWith("client-id", fakeGoogleValidate)

	all := handlers.Handlers{
		Auth:       handlers.NewAuthHandler(h.provider, google, h.issuer, profiles),
		Contact:    handlers.NewContactHandler(services.NewContactService(h.forms)),
		Users:      handlers.NewUsersHandler(profiles, projects),
		Projects:   handlers.NewProjectsHandler(projects),
		Messages:   handlers.NewMessagesHandler(thread, attachments, projects),
		Dimensions: handlers.NewDimensionsHandler(ledger),
		Upload:     handlers.NewUploadHandler(attachments),
		Files:      handlers.NewFilesHandler(attachments),
		Status:     handlers.NewStatusHandler(projects),
		Checkout:   handlers.NewCheckoutHandler(checkout),
		Webhook:    handlers.NewWebhookHandler(checkout),
	}

	h.router = gin.New()
	h.router.GET("/health", handlers.HealthHandler("test"))
	all.Register(h.router.Group("/api/v1"), middleware.AuthMiddleware(h.issuer, profiles))
	return h
}

func (h *harness) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := h.issuer.Issue(identity.Identity{UID: uid, Email: uid + "@example.com"})
	require.NoError(t, err)
	return tok
}

func (h *harness) designer(t *testing.T, uid string) string {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), docstore.UserPath(uid), map[string]any{
		"email":     uid + "@example.com",
		"role":      "designer",
		"createdAt": docstore.ServerTimestamp,
	}))
	return h.token(t, uid)
}

func (h *harness) seedProject(t *testing.T, uid, pid string, fields map[string]any) {
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
	require.NoError(t, h.store.Set(context.Background(), docstore.ProjectPath(uid, pid), base))
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func fakeGoogleValidate(_ context.Context, token, audience string) (*idtoken.Payload, error) {
	if token != "good-google-token" || audience != "client-id" {
		return nil, errors.New("token rejected")
	}
	return &idtoken.Payload{
		Subject: "1234567890",
		Claims: map[string]any{
			"email":          "grace@example.com",
			"email_verified": true,
			"name":           "Grace",
		},
	}, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	users     map[string]identity.Result
	passwords map[string]string
	resets    []string
	signedOut []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{users: map[string]identity.Result{}, passwords: map[string]string{}}
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || f.passwords[email] != password {
		return nil, identity.ErrInvalidCredentials
	}
	return &u, nil
}

func (f *fakeProvider) SignUp(_ context.Context, email, password, displayName string) (*identity.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return nil, errors.New("User already registered")
	}
	uid := "uid-" + strings.Split(email, "@")[0]
	res := identity.Result{
		Identity:    identity.Identity{UID: uid, Email: email, DisplayName: displayName},
		AccessToken: "provider-token-" + uid,
	}
	f.users[email] = res
	f.passwords[email] = password
	return &res, nil
}

func (f *fakeProvider) SendPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	if _, ok := f.users[email]; !ok {
		return errors.New("user not found")
	}
	return nil
}

func (f *fakeProvider) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, token)
	return nil
}

type fakeGateway struct {
	mu     sync.Mutex
	params []payments.SessionParams
}

func (g *fakeGateway) CreateSession(_ context.Context, p payments.SessionParams) (*payments.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.params = append(g.params, p)
	return &payments.Session{ID: "cs_test_1", RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (g *fakeGateway) VerifyEvent(payload []byte, signature string) (*payments.Event, error) {
	return payments.VerifyStripeEvent(payload, signature, webhookSecret)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
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

type fakeForms struct {
	got []forms.Submission
	err error
}

func (f *fakeForms) Submit(_ context.Context, s forms.Submission) error {
	f.got = append(f.got, s)
	return f.err
}
