package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPSender はSMTPサーバー経由でメールを送信する。
// 送信ごとに接続を確立し、送信後に切断する。
type SMTPSender struct {
	host    string
	from    string
	options []mail.Option
}

// NewSMTPSender はSMTPSenderを生成する。
// ユーザー名が設定されている場合のみPLAIN認証を行う。TLSはサーバーが対応していれば使用する。
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("SMTP_HOSTが設定されていません")
	}
	if cfg.From == "" {
		return nil, errors.New("MAIL_FROMが設定されていません")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.SendTimeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.SendTimeout))
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	return &SMTPSender{
		host:    cfg.SMTPHost,
		from:    cfg.From,
		options: opts,
	}, nil
}

// Send はメールを1通送信する。
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(s.from, msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.host, s.options...)
	if err != nil {
		return fmt.Errorf("SMTPクライアントの生成に失敗しました: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("SMTP送信に失敗しました: %w", err)
	}
	return nil
}

// buildMessage は送信元とMessageからgo-mailのメッセージを組み立てる。
func buildMessage(from string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("送信元アドレスが不正です: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("宛先アドレスが不正です: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}
