package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/likheet/folio/internal/metrics"
	"github.com/likheet/folio/internal/model"
	"github.com/likheet/folio/internal/notify"
)

// SubscriberServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriberServiceInterface interface {
	Subscribe(ctx context.Context, email, name string) (*model.Subscriber, error)
	Unsubscribe(ctx context.Context, email string) error
}

// SubscriberHandler はメール購読の登録・解除を扱うHTTPハンドラー。
type SubscriberHandler struct {
	service SubscriberServiceInterface
	queue   notify.Queue
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewSubscriberHandler はSubscriberHandlerを生成する。
func NewSubscriberHandler(service SubscriberServiceInterface, queue notify.Queue, collector metrics.MetricsCollector, logger *slog.Logger) *SubscriberHandler {
	return &SubscriberHandler{
		service: service,
		queue:   queue,
		metrics: collector,
		logger:  logger,
	}
}

type subscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r *subscribeRequest) fromForm(v url.Values) {
	r.Email = v.Get("email")
	r.Name = v.Get("name")
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

func (r *unsubscribeRequest) fromForm(v url.Values) {
	r.Email = v.Get("email")
}

// Subscribe は購読者を登録し、ウェルカムメールのジョブを積む。
// POST /api/subscribe
func (h *SubscriberHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), req.Email, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.metrics.RecordSubscriberCreated()

	enqueueNotification(r.Context(), h.queue, notify.WelcomeJob(sub, time.Now()), h.logger,
		slog.String("subscriber_id", sub.ID),
	)

	writeJSON(w, http.StatusCreated, messageResponse{Message: "Successfully subscribed to blog notifications!"})
}

// Unsubscribe は購読を解除する。レコードは残り、通知対象から外れる。
// POST /api/unsubscribe
func (h *SubscriberHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.Unsubscribe(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully unsubscribed from blog notifications"})
}
