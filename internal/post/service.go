// Package post はブログ記事管理のドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/likheet/folio/internal/model"
	"github.com/likheet/folio/internal/repository"
)

// ExcerptLength は自動生成する抜粋の最大文字数（rune数）。
const ExcerptLength = 150

// excerptEllipsis は抜粋が本文より短く切り詰められた場合に付与する省略記号。
const excerptEllipsis = "..."

// CreateInput は記事作成の入力値。
type CreateInput struct {
	Title   string
	Content string
	Excerpt string // 空または空白のみの場合は本文から生成する
}

// Service は記事管理のサービス層。
// 入力検証、ID採番、抜粋生成を行い、永続化はPostRepositoryに委譲する。
type Service struct {
	repo   repository.PostRepository
	author string
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// authorは作成される全記事の著者名として使われる。
func NewService(repo repository.PostRepository, author string) *Service {
	return &Service{
		repo:   repo,
		author: author,
		now:    time.Now,
	}
}

// Create は記事を作成して保存し、保存された記事を返す。
// タイトルまたは本文が空（空白のみを含む）の場合は何も保存せずバリデーションエラーを返す。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Post, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, model.NewValidationError("Title and content are required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("記事IDの生成に失敗しました: %w", err)
	}

	excerpt := in.Excerpt
	if strings.TrimSpace(excerpt) == "" {
		excerpt = DeriveExcerpt(in.Content)
	}

	now := s.now().UTC()
	p := &model.Post{
		ID:        id.String(),
		Title:     in.Title,
		Content:   in.Content,
		Excerpt:   excerpt,
		Author:    s.author,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("記事の保存に失敗しました: %w", err)
	}
	return p, nil
}

// ListAll は全記事を作成日時の新しい順で返す。記事がない場合は空スライスを返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Post, error) {
	return s.ListLatest(ctx, repository.NoLimit)
}

// ListLatest は新しい順に最大limit件の記事を返す。limitが0の場合は全件を返す。
func (s *Service) ListLatest(ctx context.Context, limit int) ([]*model.Post, error) {
	posts, err := s.repo.ListAll(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}

// GetByID は指定IDの記事を返す。
// 存在しないID、およびUUIDとして解釈できないIDの場合はPOST_NOT_FOUNDを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Post, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewPostNotFoundError(id)
	}

	p, err := s.repo.FindByID(ctx, parsed.String())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewPostNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return p, nil
}

// DeleteByID は指定IDの記事を削除する。削除済みのIDを再度指定した場合もPOST_NOT_FOUNDを返す。
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.NewPostNotFoundError(id)
	}

	err = s.repo.DeleteByID(ctx, parsed.String())
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewPostNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	return nil
}

// DeriveExcerpt は本文の先頭ExcerptLength文字（rune数）を抜粋とする。
// 本文はプレーンテキストとしてそのまま切り詰め、ExcerptLength文字を超える場合のみ末尾に "..." を付与する。
func DeriveExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= ExcerptLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:ExcerptLength]) + excerptEllipsis
}
