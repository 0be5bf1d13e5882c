package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/likheet/folio/internal/notify"
)

// enqueueTimeout は通知ジョブの投入を待つ上限。
// Redisが応答しない場合でもAPIの応答を遅らせない。
const enqueueTimeout = 500 * time.Millisecond

// enqueueNotification は通知ジョブを積む。失敗は警告ログに残すだけで呼び出し元には返さない。
// リソースは作成済みのため、クライアントの切断で投入を取り消さない。
func enqueueNotification(ctx context.Context, q notify.Queue, job notify.Job, logger *slog.Logger, attrs ...any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	if err := q.Enqueue(ctx, job); err != nil {
		logger.Warn("failed to enqueue notification",
			append([]any{slog.String("kind", string(job.Kind)), slog.String("error", err.Error())}, attrs...)...,
		)
	}
}
