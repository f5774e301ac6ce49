package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/testdrive/internal/api/admin"
	"github.com/region23/testdrive/internal/config"
	"github.com/region23/testdrive/internal/storage/sqlite"
	"github.com/region23/testdrive/internal/testutil"
)

type recordingUpdates struct {
	mu      sync.Mutex
	updates []*tgmodels.Update
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, _ *tgbot.Bot, update *tgmodels.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *recordingUpdates) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recordingUpdates) first() *tgmodels.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[0]
}

// waitUpdates апдейты обрабатываются в фоне после ответа Telegram
func waitUpdates(t *testing.T, r *recordingUpdates, want int) {
	t.Helper()
	if want == 0 {
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 0, r.count())
		return
	}
	require.Eventually(t, func() bool { return r.count() == want }, time.Second, 5*time.Millisecond)
}

type blockingUpdates struct {
	release chan struct{}
	done    chan struct{}
	ctxErr  chan error
}

func newBlockingUpdates() *blockingUpdates {
	return &blockingUpdates{
		release: make(chan struct{}),
		done:    make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
}

func (b *blockingUpdates) HandleUpdate(ctx context.Context, _ *tgbot.Bot, _ *tgmodels.Update) {
	defer close(b.done)
	<-b.release
	b.ctxErr <- ctx.Err()
}

type brokenDB struct {
	*sqlite.SQLiteStorage
}

func (brokenDB) Ping(context.Context) error { return assert.AnError }

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Telegram.Token = "test"
	cfg.Telegram.WebhookURL = "https://example.com/webhook"
	cfg.Telegram.SecretToken = "hook-secret"
	cfg.Admin.Token = "admin-secret"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, store Store, updates UpdateHandler) http.Handler {
	t.Helper()
	s := New(cfg, testutil.SetupTestLogger(), store, updates, nil, "test")
	t.Cleanup(s.rateLimiter.Close)
	return s.Router()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	store := testutil.SetupTestDB(t)

	t.Run("healthy", func(t *testing.T) {
		h := newTestServer(t, testConfig(), store, nil)
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, statusHealthy, body.Checks["database"])
		assert.Equal(t, "test", body.Version)
		assert.NotEqual(t, statusUnhealthy, body.Status)
		assert.Positive(t, body.Runtime.Goroutines)
		assert.NotEmpty(t, body.Runtime.GoVersion)
	})

	t.Run("database down", func(t *testing.T) {
		h := newTestServer(t, testConfig(), brokenDB{store}, nil)
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, statusUnhealthy, body.Status)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, testConfig(), testutil.SetupTestDB(t), nil)

	serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "testdrive_bot_http_requests_total")
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, testConfig(), testutil.SetupTestDB(t), nil)

	t.Run("generated", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
		_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("propagated", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, id)

		rec := serve(h, req)
		assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
	})

	t.Run("garbage replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "<script>")

		rec := serve(h, req)
		assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
	})
}

func TestSecurityHeaders(t *testing.T) {
	h := newTestServer(t, testConfig(), testutil.SetupTestDB(t), nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestWebhook(t *testing.T) {
	const body = `{"update_id":7,"message":{"message_id":1,"date":0,"chat":{"id":500,"type":"private"},"text":"/start"}}`

	tests := []struct {
		name       string
		secret     string
		body       string
		wantStatus int
		wantCount  int
	}{
		{"valid", "hook-secret", body, http.StatusOK, 1},
		{"wrong secret", "nope", body, http.StatusUnauthorized, 0},
		{"missing secret", "", body, http.StatusUnauthorized, 0},
		{"malformed body", "hook-secret", `{"update_id":`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates := &recordingUpdates{}
			h := newTestServer(t, testConfig(), testutil.SetupTestDB(t), updates)

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			if tt.secret != "" {
				req.Header.Set(SecretTokenHeader, tt.secret)
			}
			rec := serve(h, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			waitUpdates(t, updates, tt.wantCount)
		})
	}
}

func TestWebhook_DecodesUpdate(t *testing.T) {
	updates := &recordingUpdates{}
	h := newTestServer(t, testConfig(), testutil.SetupTestDB(t), updates)

	body := `{"update_id":9,"callback_query":{"id":"cb","from":{"id":77,"is_bot":false,"first_name":"Anna"},"data":"CARS",` +
		`"message":{"message_id":33,"date":0,"chat":{"id":500,"type":"private"}}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(SecretTokenHeader, "hook-secret")

	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	waitUpdates(t, updates, 1)
	u := updates.first()
	assert.Equal(t, int64(9), u.ID)
	require.NotNil(t, u.CallbackQuery)
	assert.Equal(t, "CARS", u.CallbackQuery.Data)
	require.NotNil(t, u.CallbackQuery.Message.Message)
	assert.Equal(t, 33, u.CallbackQuery.Message.Message.ID)
}

func TestWebhook_NoSecretConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Telegram.SecretToken = ""
	updates := &recordingUpdates{}
	h := newTestServer(t, cfg, testutil.SetupTestDB(t), updates)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":1}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	waitUpdates(t, updates, 1)
}

func TestWebhook_AcknowledgesBeforeHandling(t *testing.T) {
	updates := newBlockingUpdates()
	s := New(testConfig(), testutil.SetupTestLogger(), testutil.SetupTestDB(t), updates, nil, "test")
	t.Cleanup(s.rateLimiter.Close)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":3}`))
	req.Header.Set(SecretTokenHeader, "hook-secret")

	reqCtx, cancelReq := context.WithCancel(req.Context())
	rec := serve(s.Router(), req.WithContext(reqCtx))

	// ответ получен, пока обработчик еще заблокирован
	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-updates.done:
		t.Fatal("update handled before the response was written")
	default:
	}

	// обрыв соединения Telegram не отменяет обработку
	cancelReq()
	close(updates.release)
	<-updates.done
	assert.NoError(t, <-updates.ctxErr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.drainUpdates(ctx))
}

func TestDrainUpdates_RespectsDeadline(t *testing.T) {
	updates := newBlockingUpdates()
	s := New(testConfig(), testutil.SetupTestLogger(), testutil.SetupTestDB(t), updates, nil, "test")
	t.Cleanup(s.rateLimiter.Close)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":4}`))
	req.Header.Set(SecretTokenHeader, "hook-secret")
	require.Equal(t, http.StatusOK, serve(s.Router(), req).Code)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.drainUpdates(ctx), context.DeadlineExceeded)

	close(updates.release)
	<-updates.done
}

func TestWebhook_NotRoutedInPollingMode(t *testing.T) {
	h := newTestServer(t, testConfig(), testutil.SetupTestDB(t), nil)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesMounted(t *testing.T) {
	h := newTestServer(t, testConfig(), testutil.SetupTestDB(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/cars", nil)
	rec := serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/cars", nil)
	req.Header.Set(admin.TokenHeader, "admin-secret")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.HTTPPerMinute = 2
	h := newTestServer(t, cfg, testutil.SetupTestDB(t), &recordingUpdates{})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// webhook идет мимо лимита по IP
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(SecretTokenHeader, "hook-secret")
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := New(testConfig(), testutil.SetupTestLogger(), testutil.SetupTestDB(t), nil, nil, "test")
	t.Cleanup(s.rateLimiter.Close)

	h := s.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
