package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/likheet/folio/internal/config"
	"github.com/likheet/folio/internal/database"
	"github.com/likheet/folio/internal/handler"
	"github.com/likheet/folio/internal/logger"
	"github.com/likheet/folio/internal/metrics"
	"github.com/likheet/folio/internal/middleware"
	"github.com/likheet/folio/internal/notify"
	"github.com/likheet/folio/internal/subscriber"
)

// shutdownTimeout はHTTPサーバーのグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envは存在する場合のみ読み込む。既に設定済みの環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. LOG_LEVELに合わせてロガーを作り直す
	log = logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("mail_transport", cfg.MailTransport),
	)

	// SIGINTまたはSIGTERMでキャンセルされるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(ctx, cfg, log)
	}
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとHTTPサーバーを停止し、続いて通知キューを排出してから戻る。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	app, err := newAPIServer(ctx, cfg, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := serveUntilDone(ctx, server, log); err != nil {
		app.Close()
		return err
	}

	if err := app.Close(); err != nil {
		return fmt.Errorf("failed to release resources: %w", err)
	}
	log.Info("API server stopped gracefully")
	return nil
}

// serveUntilDone はHTTPサーバーを起動し、ctxのキャンセルでグレースフルシャットダウンする。
// 起動に失敗した場合はそのエラーを返す。
func serveUntilDone(ctx context.Context, server *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// runWorker はワーカーモードで起動する。
// Redisキューから通知ジョブを取り出して送信する。SERVER_PORTでは/healthと/metricsのみ公開する。
// ctxがキャンセルされると処理中のジョブを終えてから戻る。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if !cfg.UseRedisQueue() {
		return errors.New("worker requires REDIS_ADDRESS to consume notification jobs")
	}
	if cfg.StoreBackend == config.StoreBackendMemory {
		return errors.New("worker requires STORE_BACKEND=postgres to read subscribers")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	client, err := newRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	reg, collector := newMetrics()
	dispatcher, err := newDispatcher(cfg, subscriber.NewService(st.subscribers), collector, log)
	if err != nil {
		return err
	}
	queue := notify.NewRedisQueue(client, cfg.NotifyQueueKey, collector, log)

	mux := chi.NewRouter()
	mux.Use(middleware.NewRecoveryMiddleware(log, collector))
	mux.Get("/health", handler.NewHealthHandler(multiPinger{st.pinger, redisPinger{client: client}}))
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := serveUntilDone(ctx, server, log); err != nil {
			log.Error("worker HTTP server error", slog.String("error", err.Error()))
		}
	}()

	log.Info("worker starting",
		slog.String("queue_key", cfg.NotifyQueueKey),
		slog.Int("max_concurrent", cfg.NotifyMaxConcurrent),
	)

	// ジョブの取り出しをメインgoroutineで実行（ブロッキング）
	if err := queue.Consume(ctx, dispatcher); err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.StoreBackend == config.StoreBackendMemory {
		return errors.New("migrate requires STORE_BACKEND=postgres")
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
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
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User == nil {
		return u.String()
	}
	// url.Userは * をエスケープするため、認証情報を外してから伏せ字を差し込む
	u.User = nil
	return strings.Replace(u.String(), "://", "://***@", 1)
}
