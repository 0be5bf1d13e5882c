package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/likheet/folio/internal/config"
	"github.com/likheet/folio/internal/database"
	"github.com/likheet/folio/internal/handler"
	"github.com/likheet/folio/internal/mailer"
	"github.com/likheet/folio/internal/metrics"
	"github.com/likheet/folio/internal/middleware"
	"github.com/likheet/folio/internal/notify"
	"github.com/likheet/folio/internal/post"
	"github.com/likheet/folio/internal/repository"
	"github.com/likheet/folio/internal/security"
	"github.com/likheet/folio/internal/subscriber"
)

// dbConnectTimeout はDB疎通確認のタイムアウト。
const dbConnectTimeout = 10 * time.Second

// stores はストア実装と後始末をまとめる。
type stores struct {
	posts       repository.PostRepository
	subscribers repository.SubscriberRepository
	pinger      repository.Pinger
	close       func() error
}

// openStores はSTORE_BACKENDに応じてストアを開く。
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		posts := repository.NewMemoryPostRepo()
		return &stores{
			posts:       posts,
			subscribers: repository.NewMemorySubscriberRepo(),
			pinger:      posts,
			close:       func() error { return nil },
		}, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return &stores{
		posts:       repository.NewPostgresPostRepo(db),
		subscribers: repository.NewPostgresSubscriberRepo(db),
		pinger:      db,
		close:       db.Close,
	}, nil
}

// newMetrics はGo・プロセスの標準メトリクスを含むレジストリとコレクターを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newDispatcher はメール送信手段を構築し、通知ディスパッチャーを生成する。
func newDispatcher(cfg *config.Config, subscribers notify.SubscriberLister, collector metrics.MetricsCollector, logger *slog.Logger) (*notify.Dispatcher, error) {
	sender, err := mailer.New(mailer.Config{
		Transport:    cfg.MailTransport,
		From:         cfg.MailFrom,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
		RelayURL:     cfg.MailRelayURL,
		RelayToken:   cfg.MailRelayToken,
		SendTimeout:  cfg.MailSendTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up mail transport: %w", err)
	}

	return notify.NewDispatcher(subscribers, sender, collector, logger, notify.DispatcherConfig{
		BaseURL:       cfg.BaseURL,
		Author:        cfg.BlogAuthor,
		BlogTitle:     cfg.BlogTitle,
		MaxConcurrent: cfg.NotifyMaxConcurrent,
		SendTimeout:   cfg.MailSendTimeout,
	}), nil
}

// newRedisClient はREDIS_*の設定からRedisクライアントを生成する。
func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	return notify.NewRedisClient(ctx, notify.RedisConfig{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// apiServer はserveモードで必要な依存関係一式。
type apiServer struct {
	handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

// newAPIServer はストア・サービス・通知キュー・ルーターを組み立てる。
// REDIS_ADDRESSが設定されている場合はジョブをRedisに積み、送信はworkerに任せる。
// それ以外はプロセス内のLocalQueueで送信する。
func newAPIServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *apiServer, err error) {
	s := &apiServer{logger: logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, st.close)

	reg, collector := newMetrics()

	postService := post.NewService(st.posts, cfg.BlogAuthor)
	subService := subscriber.NewService(st.subscribers)

	var queue notify.Queue
	if cfg.UseRedisQueue() {
		client, err := newRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		queue = notify.NewRedisQueue(client, cfg.NotifyQueueKey, collector, logger)
		logger.Info("notification jobs are published to redis",
			slog.String("key", cfg.NotifyQueueKey),
		)
	} else {
		dispatcher, err := newDispatcher(cfg, subService, collector, logger)
		if err != nil {
			return nil, err
		}
		local := notify.NewLocalQueue(dispatcher, collector, logger, cfg.NotifyQueueSize, cfg.NotifyWorkers)
		local.Start(ctx)
		// LocalQueueはストアより先に停止して、積まれたジョブを送り切る
		s.closers = append([]func() error{func() error { local.Stop(); return nil }}, s.closers...)
		queue = local
	}

	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	s.closers = append(s.closers, func() error { rateLimiter.Stop(); return nil })

	s.handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              strings.HasPrefix(cfg.BaseURL, "https://"),
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     st.pinger,
		PostService:       postService,
		PostLister:        postService,
		SubscriberService: subService,
		Queue:             queue,
		Sanitizer:         security.NewContentSanitizer(),
		RSS: handler.RSSConfig{
			BaseURL:  cfg.BaseURL,
			Title:    cfg.BlogTitle,
			Author:   cfg.BlogAuthor,
			MaxItems: cfg.FeedMaxItems,
		},
		StaticDir: cfg.StaticDir,
	})

	return s, nil
}

// Close は登録順に後始末を行う。LocalQueueの排出が最初に行われる。
func (s *apiServer) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// multiPinger は複数の依存先の疎通をまとめて確認する。
type multiPinger []repository.Pinger

func (m multiPinger) PingContext(ctx context.Context) error {
	for _, p := range m {
		if err := p.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// redisPinger はRedisクライアントをrepository.Pingerに適合させる。
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// rateLimiterConfig は設定値からレート制限設定を作る。
// 0以下の値はバースト0で全リクエストを拒否してしまうため、デフォルト設定を使う。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitSubscribe <= 0 {
		return middleware.DefaultRateLimiterConfig()
	}
	return middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSubscribe)
}
