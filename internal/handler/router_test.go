package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/inboxd/internal/middleware"
	"github.com/hitoshi/inboxd/internal/model"
	"golang.org/x/time/rate"
)

// --- モック ---

type mockHealthChecker struct {
	pingErr error
}

func (m *mockHealthChecker) Ping() error {
	return m.pingErr
}

type mockNonceConsumer struct{}

func (mockNonceConsumer) Consume(ctx context.Context, identity string, declared uint64) error {
	return nil
}

type mockStatusRecorder struct {
	statuses []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

// --- テスト ---

func newTestRouter(t *testing.T, health HealthChecker, recorder middleware.StatusRecorder) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		NonceConsumer:     mockNonceConsumer{},
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatusRecorder:    recorder,
		Dispatcher:        &mockDispatcher{},
		WebhookSecret:     testWebhookSecret,
		ItemLister: &mockItemLister{listFn: func(ctx context.Context, identity, eventType, chainID string) ([]model.InboxItem, error) {
			return nil, nil
		}},
		ItemDeleter:  &mockItemDeleter{},
		EmailService: &mockEmailService{},
		Gate:         &mockGate{},
		PushRegistry: &mockPushRegistry{},
		NonceSource: &mockNonceSource{expectedFn: func(ctx context.Context, identity string) (uint64, error) {
			return 0, nil
		}},
		HealthChecker: health,
	})
}

// TestRouter_Healthz はヘルスチェックルートを検証する。
func TestRouter_Healthz(t *testing.T) {
	cases := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"正常", nil, http.StatusOK, "ok"},
		{"DB障害", errors.New("connection refused"), http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, &mockHealthChecker{pingErr: tc.pingErr}, nil)

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var body healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tc.wantBody {
				t.Errorf("status field = %q, want %q", body.Status, tc.wantBody)
			}
		})
	}
}

// TestRouter_StatusRecorded は全ルートでHTTPステータスが計測されることを検証する。
func TestRouter_StatusRecorded(t *testing.T) {
	recorder := &mockStatusRecorder{}
	router := newTestRouter(t, &mockHealthChecker{}, recorder)

	req := httptest.NewRequest(http.MethodGet, "/load/"+testIdentifier, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusOK {
		t.Errorf("recorded statuses = %v, want [200]", recorder.statuses)
	}
}

// TestRouter_SignedRoutesRequireSignature は署名なしの/clearと/configが拒否されることを検証する。
func TestRouter_SignedRoutesRequireSignature(t *testing.T) {
	router := newTestRouter(t, &mockHealthChecker{}, nil)

	for _, path := range []string{"/clear", "/config"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", path, rec.Code)
		}
	}
}

// TestRouter_CORSApplied はCORSヘッダーが全ルートに付与されることを検証する。
func TestRouter_CORSApplied(t *testing.T) {
	router := newTestRouter(t, &mockHealthChecker{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Allow-Origin = %q, want *", origin)
	}
}
