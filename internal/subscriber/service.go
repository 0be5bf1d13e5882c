// Package subscriber はメール購読者管理のドメインロジックを提供する。
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/likheet/folio/internal/model"
	"github.com/likheet/folio/internal/repository"
)

// Service は購読者管理のサービス層。
// 購読登録、有効な購読者一覧の取得、購読解除を提供する。
type Service struct {
	repo repository.SubscriberRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SubscriberRepository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Subscribe は購読者を登録する。
// メールアドレスは前後の空白を除去してから検証・保存する。比較は大文字小文字を区別する。
// 同じアドレスが（購読解除済みを含めて）登録済みの場合はDUPLICATE_EMAILを返す。
func (s *Service) Subscribe(ctx context.Context, email, name string) (*model.Subscriber, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("購読者IDの生成に失敗しました: %w", err)
	}

	sub := &model.Subscriber{
		ID:           id.String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		SubscribedAt: s.now().UTC(),
		Active:       true,
	}

	err = s.repo.Create(ctx, sub)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, model.NewDuplicateEmailError()
	}
	if err != nil {
		return nil, fmt.Errorf("購読者の保存に失敗しました: %w", err)
	}
	return sub, nil
}

// ListActive は購読中の購読者を登録順で返す。
func (s *Service) ListActive(ctx context.Context) ([]*model.Subscriber, error) {
	subs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("購読者一覧の取得に失敗しました: %w", err)
	}
	if subs == nil {
		subs = []*model.Subscriber{}
	}
	return subs, nil
}

// Unsubscribe は購読を解除する。レコードは削除せず無効化する。
// 登録のないアドレスの場合はSUBSCRIBER_NOT_FOUNDを返す。
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	err = s.repo.DeactivateByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewSubscriberNotFoundError()
	}
	if err != nil {
		return fmt.Errorf("購読解除に失敗しました: %w", err)
	}
	return nil
}

// normalizeEmail は前後の空白を除去し、メールアドレスとして解釈できるかを検証する。
// 表示名付きの形式（"Name <a@example.com>"）は受け付けない。
func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", model.NewValidationError("Email is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewValidationError("Email address is invalid")
	}
	return email, nil
}
