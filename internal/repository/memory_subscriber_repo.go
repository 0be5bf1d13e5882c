package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/likheet/folio/internal/model"
)

// MemorySubscriberRepo はプロセス内メモリに購読者を保持するリポジトリ。
// emailの存在確認と挿入は同じロックの中で行う。
type MemorySubscriberRepo struct {
	mu      sync.Mutex
	byEmail map[string]model.Subscriber
}

// NewMemorySubscriberRepo はMemorySubscriberRepoを生成する。
func NewMemorySubscriberRepo() *MemorySubscriberRepo {
	return &MemorySubscriberRepo{byEmail: make(map[string]model.Subscriber)}
}

// Create は購読者を保存する。
func (r *MemorySubscriberRepo) Create(ctx context.Context, sub *model.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[sub.Email]; exists {
		return ErrDuplicateEmail
	}
	r.byEmail[sub.Email] = *sub
	return nil
}

// ListActive は有効な購読者をsubscribed_at昇順（同時刻はid昇順）で返す。
func (r *MemorySubscriberRepo) ListActive(ctx context.Context) ([]*model.Subscriber, error) {
	r.mu.Lock()
	subs := make([]*model.Subscriber, 0, len(r.byEmail))
	for _, s := range r.byEmail {
		if !s.Active {
			continue
		}
		s := s
		subs = append(subs, &s)
	}
	r.mu.Unlock()

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].SubscribedAt.Equal(subs[j].SubscribedAt) {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].SubscribedAt.Before(subs[j].SubscribedAt)
	})
	return subs, nil
}

// DeactivateByEmail は指定emailの購読者を無効化する。
func (r *MemorySubscriberRepo) DeactivateByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byEmail[email]
	if !ok {
		return ErrNotFound
	}
	s.Active = false
	r.byEmail[email] = s
	return nil
}

// compile-time interface check
var _ SubscriberRepository = (*MemorySubscriberRepo)(nil)
