// Package notify は記事公開・購読登録時の通知メール配信を提供する。
// 通知はリクエスト処理から切り離され、キュー経由でワーカーが送信する。
// 配信はベストエフォートで、失敗してもログとメトリクスに記録するだけで再送しない。
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/likheet/folio/internal/model"
)

// Kind は通知ジョブの種類。
type Kind string

const (
	// KindNewPost は新着記事を全購読者に通知するジョブ。
	KindNewPost Kind = "new_post"
	// KindWelcome は新規購読者にウェルカムメールを送るジョブ。
	KindWelcome Kind = "welcome"
)

// Job はキューに積まれる通知ジョブ。
// 記事・購読者は作成時点のスナップショットを保持する。
type Job struct {
	Kind       Kind              `json:"kind"`
	Post       *model.Post       `json:"post,omitempty"`
	Subscriber *model.Subscriber `json:"subscriber,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// NewPostJob は新着記事通知ジョブを生成する。
func NewPostJob(post *model.Post, now time.Time) Job {
	snapshot := *post
	return Job{Kind: KindNewPost, Post: &snapshot, EnqueuedAt: now.UTC()}
}

// WelcomeJob はウェルカムメールのジョブを生成する。
func WelcomeJob(sub *model.Subscriber, now time.Time) Job {
	snapshot := *sub
	return Job{Kind: KindWelcome, Subscriber: &snapshot, EnqueuedAt: now.UTC()}
}

// Validate はジョブの種類と必要なペイロードが揃っているかを検証する。
func (j Job) Validate() error {
	switch j.Kind {
	case KindNewPost:
		if j.Post == nil {
			return fmt.Errorf("new_postジョブに記事がありません")
		}
	case KindWelcome:
		if j.Subscriber == nil {
			return fmt.Errorf("welcomeジョブに購読者がありません")
		}
	default:
		return fmt.Errorf("未知のジョブ種別です: %q", j.Kind)
	}
	return nil
}

// encodeJob はジョブをキュー用のJSONにエンコードする。
func encodeJob(j Job) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("ジョブのエンコードに失敗しました: %w", err)
	}
	return data, nil
}

// decodeJob はキューから取り出したJSONをジョブにデコードし、検証する。
func decodeJob(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("ジョブのデコードに失敗しました: %w", err)
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}
