package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/likheet/folio/internal/model"
)

// MemoryPostRepo はプロセス内メモリに記事を保持するリポジトリ。
// テストとDBなしのローカル起動（STORE_BACKEND=memory）で使用する。
// 呼び出し側とレコードを共有しないよう、入出力ともコピーを扱う。
type MemoryPostRepo struct {
	mu    sync.RWMutex
	posts map[string]model.Post
}

// NewMemoryPostRepo はMemoryPostRepoを生成する。
func NewMemoryPostRepo() *MemoryPostRepo {
	return &MemoryPostRepo{posts: make(map[string]model.Post)}
}

// Create は記事を保存する。
func (r *MemoryPostRepo) Create(ctx context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = *post
	return nil
}

// ListAll は全記事をcreated_at降順（同時刻はid降順）で返す。
func (r *MemoryPostRepo) ListAll(ctx context.Context, limit int) ([]*model.Post, error) {
	r.mu.RLock()
	posts := make([]*model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		p := p
		posts = append(posts, &p)
	}
	r.mu.RUnlock()

	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// FindByID は指定IDの記事を取得する。
func (r *MemoryPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// DeleteByID は指定IDの記事を削除する。
func (r *MemoryPostRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// PingContext はメモリストアでは常に成功する。
func (r *MemoryPostRepo) PingContext(ctx context.Context) error {
	return nil
}

// compile-time interface check
var _ PostRepository = (*MemoryPostRepo)(nil)
