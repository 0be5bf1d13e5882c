package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// userAgent は中継APIへのリクエストに付与するUser-Agent。
const userAgent = "Folio/1.0 Blog Notifier"

// relayRequest は中継APIへ送信するJSONペイロード。
type relayRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// RelaySender はHTTPのメール中継API（トランザクションメールサービス等）経由でメールを送信する。
// 2xx応答を受理とみなす。
type RelaySender struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	token      string
	from       string
}

// NewRelaySender はRelaySenderを生成する。
// 本番ではSSRF防止付きのHTTPクライアントを渡す。
func NewRelaySender(httpClient *http.Client, endpoint, token, from string, logger *slog.Logger) *RelaySender {
	return &RelaySender{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		token:      token,
		from:       from,
	}
}

// Send はメールを1通、中継APIへPOSTする。
func (s *RelaySender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(relayRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("中継リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("メール中継APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("メール中継APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("response", string(detail)),
		)
		return fmt.Errorf("メール中継APIがステータス %d を返しました", resp.StatusCode)
	}

	// keep-aliveで接続を再利用できるようボディを読み切る
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
