// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/likheet/folio/internal/model"
)

var (
	// ErrNotFound は対象レコードが存在しない場合に返される。
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail は購読者のemail一意制約に違反した場合に返される。
	ErrDuplicateEmail = errors.New("duplicate subscriber email")
)

// PostRepository は記事データの永続化インターフェース。
type PostRepository interface {
	// Create は記事を保存する。ID・タイムスタンプは呼び出し側で設定済みであること。
	Create(ctx context.Context, post *model.Post) error

	// ListAll は全記事をcreated_at降順（同時刻はid降順）で返す。
	// 記事がない場合は空スライスを返す。
	ListAll(ctx context.Context, limit int) ([]*model.Post, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はErrNotFoundを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// DeleteByID は指定IDの記事を物理削除する。見つからない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error
}

// SubscriberRepository は購読者データの永続化インターフェース。
type SubscriberRepository interface {
	// Create は購読者を保存する。
	// 同じemailのレコードが（有効・無効に関わらず）存在する場合はErrDuplicateEmailを返す。
	// 存在確認と挿入は不可分に行われる。
	Create(ctx context.Context, sub *model.Subscriber) error

	// ListActive はactive=trueの購読者をsubscribed_at昇順（同時刻はid昇順）で返す。
	ListActive(ctx context.Context) ([]*model.Subscriber, error)

	// DeactivateByEmail は指定emailの購読者をactive=falseにする。
	// 該当レコードがない場合はErrNotFoundを返す。既に無効なレコードでも成功とする。
	DeactivateByEmail(ctx context.Context, email string) error
}

// Pinger はストアの疎通確認インターフェース。ヘルスチェックで使用する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NoLimit はListAllで件数制限を行わないことを示す。
const NoLimit = 0
