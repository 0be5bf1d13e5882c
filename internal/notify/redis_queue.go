package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/likheet/folio/internal/metrics"
)

const (
	// defaultPopTimeout はBRPOPの待ち時間。ctxのキャンセルはこの間隔で検知される。
	defaultPopTimeout = 5 * time.Second
	// connectionTimeout は起動時のRedis疎通確認のタイムアウト。
	connectionTimeout = 5 * time.Second
)

// RedisConfig はRedis接続の設定。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient はRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("REDIS_ADDRESSが設定されていません")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}
	return client, nil
}

// RedisQueue はRedisのリストを使った通知キュー。
// serveプロセスがLPUSHで積み、workerプロセスがBRPOPで取り出す。
type RedisQueue struct {
	client     *redis.Client
	key        string
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	popTimeout time.Duration
}

// NewRedisQueue はRedisQueueの新しいインスタンスを生成する。
func NewRedisQueue(client *redis.Client, key string, collector metrics.MetricsCollector, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		client:     client,
		key:        key,
		metrics:    collector,
		logger:     logger,
		popTimeout: defaultPopTimeout,
	}
}

// Enqueue はジョブをJSONにしてリストの先頭に積む。
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		q.metrics.RecordJobDropped(string(job.Kind))
		return fmt.Errorf("通知ジョブのRedisへの登録に失敗しました: %w", err)
	}
	return nil
}

// Consume はctxがキャンセルされるまでリストの末尾からジョブを取り出して処理する。
// 解釈できないペイロードはログに記録して読み飛ばす。
// キャンセル時に処理中のジョブは最後まで実行される。
func (q *RedisQueue) Consume(ctx context.Context, handler JobHandler) error {
	jobCtx := context.WithoutCancel(ctx)
	q.logger.Info("通知キューの購読を開始しました", slog.String("key", q.key))

	consecutiveErrors := 0
	for {
		if ctx.Err() != nil {
			q.logger.Info("通知キューの購読を停止しました")
			return nil
		}

		result, err := q.client.BRPop(ctx, q.popTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			consecutiveErrors = 0
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			delay := retryBackoff(consecutiveErrors)
			consecutiveErrors++
			q.logger.Error("通知キューからの取り出しに失敗しました",
				slog.String("error", err.Error()),
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Duration("retry_in", delay),
			)
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			continue
		}
		consecutiveErrors = 0

		// BRPOPの結果は [key, value]
		if len(result) != 2 {
			continue
		}

		job, err := decodeJob([]byte(result[1]))
		if err != nil {
			q.logger.Warn("不正な通知ジョブを読み飛ばしました",
				slog.String("error", err.Error()),
				slog.Int("payload_bytes", len(result[1])),
			)
			continue
		}

		runJob(jobCtx, handler, job, q.logger)
	}
}

// Len はキューに残っているジョブ数を返す。
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
