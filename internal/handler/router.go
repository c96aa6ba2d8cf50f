package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/inboxd/internal/middleware"
)

// HealthChecker はヘルスチェック対象（DB接続）のインターフェース。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	NonceConsumer     middleware.NonceConsumer
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder

	// イベント受理
	Dispatcher    DispatcherInterface
	WebhookSecret string

	// インボックス読み出し・削除
	ItemLister  ItemListerInterface
	ItemDeleter ItemDeleterInterface

	// メール・通知設定
	EmailService EmailServiceInterface
	Gate         GateInterface
	PushRegistry PushRegistryInterface

	// ノンス参照
	NonceSource NonceSourceInterface

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeadersMiddleware → RecoveryMiddleware → LoggingMiddleware
//
// 公開GETルートにはレート制限を、/clearと/configには署名＋ノンス検証を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（エラーレスポンスを含む全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	addHandler := NewAddHandler(deps.Dispatcher, deps.WebhookSecret)
	loadHandler := NewLoadHandler(deps.ItemLister)
	nonceHandler := NewNonceHandler(deps.NonceSource)
	verifyHandler := NewVerifyHandler(deps.EmailService)
	clearHandler := NewClearHandler(deps.ItemDeleter)
	configHandler := NewConfigHandler(deps.EmailService, deps.Gate, deps.PushRegistry)

	// --- 運用ルート ---

	r.Get("/healthz", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 共有シークレット認証のWebhookルート ---

	// POST /add/{identifier} - インデクサーからのイベント受理
	r.Post("/add/{identifier}", addHandler.AddItem)

	// --- 公開GETルート（レート制限付き） ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Get("/load/{identifier}", loadHandler.Load)
		r.Get("/nonce/{publicKey}", nonceHandler.GetNonce)
		r.Get("/verify/{identifier}/{code}", verifyHandler.VerifyEmail)
	})

	// --- 署名＋ノンス検証が必要なルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSignedBodyMiddleware(deps.NonceConsumer))

		r.Post("/clear", clearHandler.Clear)
		r.Post("/config", configHandler.UpdateConfig)
	})

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// newHealthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(); err != nil {
				writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
