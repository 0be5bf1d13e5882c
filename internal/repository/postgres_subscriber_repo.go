package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/likheet/folio/internal/model"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// PostgresSubscriberRepo はPostgreSQLを使用した購読者リポジトリ。
type PostgresSubscriberRepo struct {
	db *sql.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sql.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

// Create は購読者を作成する。
// emailの一意性はsubscribers.emailのUNIQUE制約で保証するため、
// 同時に同じemailで登録されても片方だけが成功する。
func (r *PostgresSubscriberRepo) Create(ctx context.Context, sub *model.Subscriber) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers (id, email, name, subscribed_at, active)
		 VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.Email, nullString(sub.Name), sub.SubscribedAt, sub.Active,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("購読者の作成に失敗しました: %w", err)
	}
	return nil
}

// ListActive は有効な購読者一覧を返す。
func (r *PostgresSubscriberRepo) ListActive(ctx context.Context) ([]*model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, name, subscribed_at, active
		 FROM subscribers WHERE active = TRUE
		 ORDER BY subscribed_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("購読者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	subs := []*model.Subscriber{}
	for rows.Next() {
		sub := &model.Subscriber{}
		var name sql.NullString
		if err := rows.Scan(&sub.ID, &sub.Email, &name, &sub.SubscribedAt, &sub.Active); err != nil {
			return nil, fmt.Errorf("購読者行の読み取りに失敗しました: %w", err)
		}
		sub.Name = nullStringValue(name)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読者一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

// DeactivateByEmail は指定emailの購読者を無効化する。
func (r *PostgresSubscriberRepo) DeactivateByEmail(ctx context.Context, email string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET active = FALSE WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("購読者の無効化に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ SubscriberRepository = (*PostgresSubscriberRepo)(nil)
