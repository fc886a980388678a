package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"legis/app/hook"
	"legis/app/middleware"
	"legis/provider"
	"legis/store"
	"legis/types"
)

var fixedTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu         sync.Mutex
	acts       map[int64]*types.Act
	categories []types.Category
	err        error
	updates    []map[string]any
}

func newFakeStore(acts ...types.Act) *fakeStore {
	s := &fakeStore{acts: make(map[int64]*types.Act)}
	for _, a := range acts {
		a := a
		s.acts[a.ID] = &a
	}
	return s
}

func (s *fakeStore) ListActs(context.Context) ([]types.Act, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]types.Act, 0, len(s.acts))
	for _, a := range s.acts {
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeStore) ListCategories(context.Context) ([]types.Category, error) {
	return s.categories, nil
}

func (s *fakeStore) GetActByID(_ context.Context, id int64) (*types.Act, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.acts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) UpdateAct(_ context.Context, id int64, fields map[string]any) (*types.Act, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.updates = append(s.updates, fields)
	a, ok := s.acts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "content":
			str := v.(string)
			a.Content = &str
		case "simple_title":
			str := v.(string)
			a.SimpleTitle = &str
		case "impact_section":
			str := v.(string)
			a.ImpactSection = &str
		case "confidence_score":
			f := v.(float64)
			a.ConfidenceScore = &f
		}
	}
	a.UpdatedAt = fixedTime
	cp := *a
	return &cp, nil
}

func (s *fakeStore) SaveAct(context.Context, string, types.Act) (int64, error) {
	return 0, nil
}

func (s *fakeStore) FindCategoryByKeywords(context.Context, []string) (string, error) {
	return "", nil
}

type fakeIdentity struct {
	mu       sync.Mutex
	sessions map[string]string
	users    map[string]types.User
	err      error
	public   map[string]map[string]any
	unsafe   map[string]map[string]any
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		sessions: map[string]string{
			"admin-token": "user_admin",
			"user-token":  "user_plain",
		},
		users: map[string]types.User{
			"user_admin": {ID: "user_admin", Role: types.RoleAdmin},
			"user_plain": {ID: "user_plain"},
		},
		public: make(map[string]map[string]any),
		unsafe: make(map[string]map[string]any),
	}
}

func (f *fakeIdentity) VerifySession(_ context.Context, token string) (string, error) {
	if id, ok := f.sessions[token]; ok {
		return id, nil
	}
	return "", provider.ErrUnauthenticated
}

func (f *fakeIdentity) GetUser(_ context.Context, userID string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, provider.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeIdentity) UpdatePublicMetadata(_ context.Context, userID string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.public[userID] = metadata
	return nil
}

func (f *fakeIdentity) UpdateUnsafeMetadata(_ context.Context, userID string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsafe[userID] = metadata
	return nil
}

type fakePayments struct {
	sessionID string
	err       error
	plans     []types.Plan
	event     *types.SubscriptionEvent
	lastReq   provider.CheckoutRequest
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, req provider.CheckoutRequest) (string, error) {
	f.lastReq = req
	return f.sessionID, f.err
}

func (f *fakePayments) ListPlans(context.Context) ([]types.Plan, error) {
	return f.plans, f.err
}

func (f *fakePayments) ParseWebhook(_ []byte, signature string) (*types.SubscriptionEvent, error) {
	if signature != "valid" {
		return nil, provider.ErrInvalidSignature
	}
	return f.event, nil
}

type testEnv struct {
	app       *fiber.App
	store     *fakeStore
	identity  *fakeIdentity
	payments  *fakePayments
	usage     *UsageHandler
	importDir string
}

func newTestEnv(t *testing.T, acts ...types.Act) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     newFakeStore(acts...),
		identity:  newFakeIdentity(),
		payments:  &fakePayments{sessionID: "cs_test_1"},
		importDir: t.TempDir(),
	}
	env.usage = NewUsageHandler(env.identity, 5, nil)
	env.usage.now = func() time.Time { return fixedTime }

	var (
		app            = fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
		actHandler     = NewActHandler(env.store, env.identity, 0.5)
		adminHandler   = NewAdminHandler(env.store, env.identity, hook.NewNotifier("", nil), 1.0)
		paymentHandler = NewPaymentHandler(env.payments, env.identity)
		configHandler  = NewConfigHandler(types.PublicConfig{ConfidenceThreshold: 0.5, ModalLimit: 5})
		fileHandler    = NewFileHandler(env.identity, env.importDir)
		apiv1          = app.Group("/api", middleware.Authenticate(env.identity))
	)
	apiv1.Get("/config", configHandler.HandleGetConfig)
	apiv1.Get("/acts", actHandler.HandleListActs)
	apiv1.Get("/acts/:id", actHandler.HandleGetAct)
	apiv1.Post("/admin/update-act", adminHandler.HandleUpdateAct)
	apiv1.Post("/admin/import", fileHandler.HandleImport)
	apiv1.Post("/create-checkout-session", paymentHandler.HandleCreateCheckoutSession)
	apiv1.Get("/subscription-plans", paymentHandler.HandleListPlans)
	apiv1.Post("/webhooks/stripe", paymentHandler.HandleWebhook)
	apiv1.Post("/update-modal-limit", env.usage.HandleUpdateModalLimit)

	env.app = app
	return env
}

func (env *testEnv) do(t *testing.T, method, target string, body any, token string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return env.send(t, req)
}

func (env *testEnv) send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func ptr[T any](v T) *T {
	return &v
}
