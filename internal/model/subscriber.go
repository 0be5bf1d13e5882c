// Package model はドメインモデルを定義する。
package model

import "time"

// Subscriber は新着記事のメール通知を受け取る購読者を表す。
// 購読解除してもレコードは削除されず、Activeがfalseになる。
type Subscriber struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	SubscribedAt time.Time `json:"subscribed_at"`
	Active       bool      `json:"active"`
}

// DisplayName は挨拶文に使う名前を返す。名前が未設定の場合は "there" を返す。
func (s *Subscriber) DisplayName() string {
	if s.Name == "" {
		return "there"
	}
	return s.Name
}
