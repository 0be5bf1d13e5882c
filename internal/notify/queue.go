package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/likheet/folio/internal/metrics"
)

var (
	// ErrQueueFull はキューのバッファが満杯でジョブを受け付けられない場合に返される。
	ErrQueueFull = errors.New("notification queue is full")

	// ErrQueueClosed は停止済みのキューにジョブを積もうとした場合に返される。
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Queue は通知ジョブを受け付けるインターフェース。
// Enqueueはリクエスト処理をブロックしない。
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// JobHandler はキューから取り出したジョブを処理するインターフェース。
type JobHandler interface {
	Handle(ctx context.Context, job Job) error
}

// LocalQueue はプロセス内のバッファ付きチャネルとワーカーgoroutineによる通知キュー。
type LocalQueue struct {
	jobs    chan Job
	handler JobHandler
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocalQueue はLocalQueueの新しいインスタンスを生成する。
// sizeはバッファ長、workersは並行して処理するワーカー数（0以下の場合は1）。
func NewLocalQueue(handler JobHandler, collector metrics.MetricsCollector, logger *slog.Logger, size, workers int) *LocalQueue {
	if size < 0 {
		size = 0
	}
	if workers <= 0 {
		workers = 1
	}
	return &LocalQueue{
		jobs:    make(chan Job, size),
		handler: handler,
		metrics: collector,
		logger:  logger,
		workers: workers,
	}
}

// Enqueue はジョブをバッファに積む。満杯の場合は待たずにErrQueueFullを返す。
// 破棄はメトリクスにのみ記録し、ログは呼び出し元が対象IDと共に残す。
func (q *LocalQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		q.metrics.RecordJobDropped(string(job.Kind))
		return ErrQueueFull
	}
}

// Start はワーカーを起動する。
// ワーカーはStopでキューが閉じられ、残りのジョブを処理し終えるまで動き続ける。
// ctxのキャンセルは処理中の送信を中断しない（シャットダウン時にキューを排出するため）。
func (q *LocalQueue) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)

	q.logger.Info("通知ワーカーを開始しました",
		slog.Int("workers", q.workers),
		slog.Int("queue_size", cap(q.jobs)),
	)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				runJob(runCtx, q.handler, job, q.logger)
			}
		}()
	}
}

// Stop はキューを閉じ、積まれているジョブの処理完了を待つ。
// 2回目以降の呼び出しは何もしない。
func (q *LocalQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("通知ワーカーを停止しました")
}

// runJob はジョブを1件処理する。エラーとpanicはログに記録するのみ。
func runJob(ctx context.Context, handler JobHandler, job Job, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("通知ジョブの処理中にpanicが発生しました",
				slog.String("kind", string(job.Kind)),
				slog.Any("panic", r),
			)
		}
	}()

	if err := handler.Handle(ctx, job); err != nil {
		logger.Error("通知ジョブの処理に失敗しました",
			slog.String("kind", string(job.Kind)),
			slog.String("error", err.Error()),
		)
	}
}
