package notify

import "time"

const (
	// initialRetryDelay はRedisエラー後の初回待ち時間。
	initialRetryDelay = time.Second
	// maxRetryDelay は待ち時間の上限。
	maxRetryDelay = 30 * time.Second
)

// retryBackoff は連続エラー回数に基づいて指数バックオフの待ち時間を計算する。
// 初回1秒、2倍ずつ増加、最大30秒。
func retryBackoff(consecutiveErrors int) time.Duration {
	delay := initialRetryDelay
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}
