// Package mailer は通知メールの送信手段を提供する。
// SMTP、HTTPメール中継API、ログ出力のみの3種類の実装があり、MAIL_TRANSPORTで切り替える。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/likheet/folio/internal/security"
)

// Message は送信する1通のメールを表す。本文はHTML。
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender はメール送信のインターフェース。
// 送信に失敗した場合はエラーを返す。再送は行わない。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// 送信手段の種類
const (
	TransportSMTP = "smtp"
	TransportHTTP = "http"
	TransportLog  = "log"
)

// Config はメール送信手段の設定。
type Config struct {
	Transport    string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	RelayURL     string
	RelayToken   string
	SendTimeout  time.Duration
}

// New は設定に応じたSenderを生成する。
func New(cfg Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Transport {
	case TransportSMTP:
		return NewSMTPSender(cfg)
	case TransportHTTP:
		guard := security.NewSSRFGuard()
		if err := guard.ValidateURL(cfg.RelayURL); err != nil {
			return nil, fmt.Errorf("MAIL_RELAY_URLが不正です: %w", err)
		}
		return NewRelaySender(guard.NewSafeClient(cfg.SendTimeout), cfg.RelayURL, cfg.RelayToken, cfg.From, logger), nil
	case TransportLog, "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("未対応のMAIL_TRANSPORTです: %q", cfg.Transport)
	}
}
