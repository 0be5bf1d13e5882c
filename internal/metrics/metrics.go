// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 通知ディスパッチャー、キュー、HTTPミドルウェア、ハンドラーから利用する。
type MetricsCollector interface {
	RecordNotificationSent(kind string)
	RecordNotificationFailed(kind string)
	RecordSendLatency(duration time.Duration)
	RecordJobDropped(kind string)
	RecordHTTPStatus(statusCode int)
	RecordPostCreated()
	RecordSubscriberCreated()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	sendLatency         prometheus.Histogram
	jobsDropped         *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
	postsCreated        prometheus.Counter
	subscribersCreated  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_notifications_sent_total",
			Help: "送信に成功した通知メールの合計数",
		}, []string{"kind"}),
		notificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_notifications_failed_total",
			Help: "送信に失敗した通知メールの合計数",
		}, []string{"kind"}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_mail_send_latency_seconds",
			Help:    "メール1通あたりの送信レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		jobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_notify_jobs_dropped_total",
			Help: "キューが満杯などの理由で破棄された通知ジョブの合計数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "folio_posts_created_total",
			Help: "作成された記事の合計数",
		}),
		subscribersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "folio_subscribers_created_total",
			Help: "登録された購読者の合計数",
		}),
	}

	reg.MustRegister(
		c.notificationsSent,
		c.notificationsFailed,
		c.sendLatency,
		c.jobsDropped,
		c.httpStatus,
		c.postsCreated,
		c.subscribersCreated,
	)

	return c
}

// RecordNotificationSent は通知メールの送信成功を記録する。
func (c *Collector) RecordNotificationSent(kind string) {
	c.notificationsSent.WithLabelValues(kind).Inc()
}

// RecordNotificationFailed は通知メールの送信失敗を記録する。
func (c *Collector) RecordNotificationFailed(kind string) {
	c.notificationsFailed.WithLabelValues(kind).Inc()
}

// RecordSendLatency はメール1通の送信レイテンシを記録する。
func (c *Collector) RecordSendLatency(duration time.Duration) {
	c.sendLatency.Observe(duration.Seconds())
}

// RecordJobDropped は破棄された通知ジョブを記録する。
func (c *Collector) RecordJobDropped(kind string) {
	c.jobsDropped.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPostCreated は記事の作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordSubscriberCreated は購読者の登録を記録する。
func (c *Collector) RecordSubscriberCreated() {
	c.subscribersCreated.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
