package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/likheet/folio/internal/mailer"
	"github.com/likheet/folio/internal/metrics"
	"github.com/likheet/folio/internal/model"
)

// SubscriberLister は通知対象の購読者を取得するインターフェース。
type SubscriberLister interface {
	ListActive(ctx context.Context) ([]*model.Subscriber, error)
}

// DispatcherConfig はディスパッチャーの設定。
type DispatcherConfig struct {
	BaseURL       string        // メール内リンクの基点URL
	Author        string        // 署名・見出しに使う著者名
	BlogTitle     string        // 件名・本文に使うブログ名
	MaxConcurrent int           // 新着記事通知の同時送信数
	SendTimeout   time.Duration // 1通あたりの送信タイムアウト
}

// Report は1回の新着記事通知の配信結果。
type Report struct {
	Attempted int
	Failed    int
}

// Dispatcher は通知メールを組み立てて送信する。
type Dispatcher struct {
	subscribers SubscriberLister
	sender      mailer.Sender
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	cfg         DispatcherConfig
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// MaxConcurrentが0以下の場合は5、SendTimeoutが0以下の場合は15秒を使用する。
func NewDispatcher(
	subscribers SubscriberLister,
	sender mailer.Sender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Dispatcher{
		subscribers: subscribers,
		sender:      sender,
		metrics:     collector,
		logger:      logger,
		cfg:         cfg,
	}
}

// Handle はジョブの種類に応じて通知を送信する。
// 新着記事通知で一部の宛先への送信が失敗してもエラーにはしない。
func (d *Dispatcher) Handle(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	switch job.Kind {
	case KindNewPost:
		_, err := d.notifyNewPost(ctx, job.Post)
		return err
	case KindWelcome:
		return d.NotifyWelcome(ctx, job.Subscriber)
	}
	return nil
}

// NotifyNewPost は有効な全購読者に新着記事通知を送信する。
// 送信はsemaphoreパターンで同時数を制限しながら並行に行い、
// 1件の失敗（エラー・panic）が他の宛先への送信を妨げることはない。
func (d *Dispatcher) NotifyNewPost(ctx context.Context, post *model.Post) Report {
	report, err := d.notifyNewPost(ctx, post)
	if err != nil {
		d.logger.Error("新着記事通知の送信対象を取得できませんでした",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
	}
	return report
}

func (d *Dispatcher) notifyNewPost(ctx context.Context, post *model.Post) (Report, error) {
	start := time.Now()

	subs, err := d.subscribers.ListActive(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("購読者一覧の取得に失敗しました: %w", err)
	}
	if len(subs) == 0 {
		d.logger.Info("通知対象の購読者はいません", slog.String("post_id", post.ID))
		return Report{}, nil
	}

	var failed atomic.Int64
	sem := make(chan struct{}, d.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for _, sub := range subs {
		wg.Add(1)
		sem <- struct{}{}

		go func(s *model.Subscriber) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := d.deliver(ctx, KindNewPost, s.Email, func() (mailer.Message, error) {
				return d.newPostMessage(post, s)
			}); err != nil {
				failed.Add(1)
			}
		}(sub)
	}

	wg.Wait()

	report := Report{Attempted: len(subs), Failed: int(failed.Load())}
	d.logger.Info("新着記事通知を送信しました",
		slog.String("post_id", post.ID),
		slog.Int("attempted", report.Attempted),
		slog.Int("failed", report.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return report, nil
}

// NotifyWelcome は新規購読者にウェルカムメールを1通送信する。
func (d *Dispatcher) NotifyWelcome(ctx context.Context, sub *model.Subscriber) error {
	return d.deliver(ctx, KindWelcome, sub.Email, func() (mailer.Message, error) {
		return d.welcomeMessage(sub)
	})
}

// deliver はメッセージを組み立てて1通送信し、結果をログとメトリクスに記録する。
// 送信中のpanicは回復してエラーとして返す。
func (d *Dispatcher) deliver(ctx context.Context, kind Kind, recipient string, compose func() (mailer.Message, error)) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("送信中にpanicが発生しました: %v", r)
		}
		d.metrics.RecordSendLatency(time.Since(start))
		if err != nil {
			d.metrics.RecordNotificationFailed(string(kind))
			d.logger.Warn("通知メールの送信に失敗しました",
				slog.String("kind", string(kind)),
				slog.String("recipient", recipient),
				slog.String("error", err.Error()),
			)
			return
		}
		d.metrics.RecordNotificationSent(string(kind))
	}()

	msg, err := compose()
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	return d.sender.Send(sendCtx, msg)
}

func (d *Dispatcher) newPostMessage(post *model.Post, sub *model.Subscriber) (mailer.Message, error) {
	body, err := render(newPostTemplate, newPostData{
		Author:         d.cfg.Author,
		BlogTitle:      d.cfg.BlogTitle,
		Post:           postView{Title: post.Title, Excerpt: post.Excerpt},
		PostURL:        d.postURL(post.ID),
		UnsubscribeURL: d.unsubscribeURL(sub.Email),
	})
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:      sub.Email,
		Subject: "New Blog Post: " + post.Title,
		HTML:    body,
	}, nil
}

func (d *Dispatcher) welcomeMessage(sub *model.Subscriber) (mailer.Message, error) {
	body, err := render(welcomeTemplate, welcomeData{
		Author:    d.cfg.Author,
		BlogTitle: d.cfg.BlogTitle,
		Name:      sub.DisplayName(),
		SiteURL:   d.cfg.BaseURL + "/",
	})
	if err != nil {
		return mailer.Message{}, err
	}
	return mailer.Message{
		To:      sub.Email,
		Subject: "Welcome to " + d.cfg.BlogTitle + "!",
		HTML:    body,
	}, nil
}

// postURL は記事ページのURLを返す。記事はトップページでidクエリにより表示される。
func (d *Dispatcher) postURL(postID string) string {
	return d.cfg.BaseURL + "/?" + url.Values{"post": {postID}}.Encode()
}

// unsubscribeURL は購読解除ページのURLを返す。
func (d *Dispatcher) unsubscribeURL(email string) string {
	return d.cfg.BaseURL + "/?" + url.Values{"unsubscribe": {email}}.Encode()
}
