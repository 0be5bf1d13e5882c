// Package model はドメインモデルを定義する。
package model

import "time"

// Post はブログ記事を表す。
// JSONタグは通知キューのペイロードで使用する。
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
