// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/inboxd/internal/channel"
	"github.com/hitoshi/inboxd/internal/config"
	"github.com/hitoshi/inboxd/internal/database"
	"github.com/hitoshi/inboxd/internal/dispatch"
	"github.com/hitoshi/inboxd/internal/email"
	"github.com/hitoshi/inboxd/internal/handler"
	"github.com/hitoshi/inboxd/internal/identity"
	"github.com/hitoshi/inboxd/internal/item"
	"github.com/hitoshi/inboxd/internal/logger"
	"github.com/hitoshi/inboxd/internal/mailer"
	"github.com/hitoshi/inboxd/internal/metrics"
	"github.com/hitoshi/inboxd/internal/middleware"
	"github.com/hitoshi/inboxd/internal/nonce"
	"github.com/hitoshi/inboxd/internal/push"
	"github.com/hitoshi/inboxd/internal/realtime"
	"github.com/hitoshi/inboxd/internal/repository"
	"golang.org/x/time/rate"
)

// directoryTimeout はプロファイルディレクトリ問い合わせのタイムアウト。
const directoryTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリと計測の初期化
	kvRepo := repository.NewPostgresKVRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	gate := channel.NewGate(kvRepo)
	itemService := item.NewService(kvRepo)
	nonceService := nonce.NewService(kvRepo)

	sesMailer, err := mailer.NewSESMailer(ctx, mailer.Config{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Source:          cfg.EmailSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	emailService := email.NewService(kvRepo, sesMailer, cfg.VerifyBaseURL, slog.Default())
	pushRegistry := push.NewRegistry(kvRepo, slog.Default())

	// VAPID鍵が未設定の場合、プッシュ送信は無効化される（購読の管理は可能）
	var pushSender dispatch.PushSender
	if cfg.WebPushEnabled() {
		pushSender = push.NewSender(cfg.SupportEmail, cfg.WebPushPublicKey, cfg.WebPushPrivateKey)
	} else {
		slog.Warn("web push sending is disabled (VAPID keys not configured)")
	}

	// Pusher互換APIが未設定の場合、リアルタイム通知は無効化される
	var emitter realtime.Emitter = realtime.NopEmitter{}
	if cfg.RealtimeEnabled() {
		emitter = realtime.NewPusherEmitter(realtime.Config{
			Host:   cfg.PusherHost,
			AppID:  cfg.PusherAppID,
			Key:    cfg.PusherKey,
			Secret: cfg.PusherSecret,
		})
	} else {
		slog.Warn("realtime notifications are disabled (Pusher not configured)")
	}

	directory := identity.NewDirectoryClient(cfg.DirectoryBaseURL, directoryTimeout, slog.Default())
	renderer := dispatch.NewRenderer(cfg.SiteBaseURL, cfg.IPFSGatewayBaseURL, cfg.DefaultImageURL)

	// 4. ディスパッチャーの構築
	dispatcher := dispatch.NewDispatcher(dispatch.Deps{
		Feed:          itemService,
		Gate:          gate,
		Emails:        emailService,
		Subscriptions: pushRegistry,
		EmailSender:   sesMailer,
		PushSender:    pushSender,
		Expander:      directory,
		Emitter:       emitter,
		Renderer:      renderer,
		Metrics:       collector,
		Logger:        slog.Default(),
		SendTimeout:   cfg.DispatchTimeout,
		MaxConcurrent: cfg.DispatchMaxConcurrent,
	})

	// 5. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		NonceConsumer:     nonceService,
		Logger:            slog.Default(),
		StatusRecorder:    collector,

		Dispatcher:    dispatcher,
		WebhookSecret: cfg.WebhookSecret,

		ItemLister:  itemService,
		ItemDeleter: itemService,

		EmailService: emailService,
		Gate:         gate,
		PushRegistry: pushRegistry,

		NonceSource: nonceService,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
