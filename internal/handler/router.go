package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/likheet/folio/internal/metrics"
	"github.com/likheet/folio/internal/middleware"
	"github.com/likheet/folio/internal/notify"
	"github.com/likheet/folio/internal/repository"
	"github.com/likheet/folio/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string // カンマ区切りで複数指定可
	HSTS              bool
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler

	// ストア・サービス
	HealthChecker     repository.Pinger
	PostService       PostServiceInterface
	PostLister        PostLister
	SubscriberService SubscriberServiceInterface

	// 通知ジョブの投入先
	Queue notify.Queue

	// RSS
	Sanitizer security.ContentSanitizerService
	RSS       RSSConfig

	// 静的ファイルのディレクトリ。空の場合は配信しない
	StaticDir string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// /api 配下にはさらに GeneralMiddleware、購読の登録・解除には SubscribeMiddleware を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	postHandler := NewPostHandler(deps.PostService, deps.Queue, deps.Metrics, deps.Logger)
	subHandler := NewSubscriberHandler(deps.SubscriberService, deps.Queue, deps.Metrics, deps.Logger)
	rssHandler := NewRSSHandler(deps.PostLister, deps.Sanitizer, deps.RSS)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/feed.xml", rssHandler.Feed)

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 記事管理
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)
			r.Post("/", postHandler.CreatePost)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.Delete("/", postHandler.DeletePost)
			})
		})

		// メール購読（登録専用レート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.SubscribeMiddleware())
			r.Post("/subscribe", subHandler.Subscribe)
			r.Post("/unsubscribe", subHandler.Unsubscribe)
		})
	})

	if deps.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
