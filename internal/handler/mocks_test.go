package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/likheet/folio/internal/model"
	"github.com/likheet/folio/internal/notify"
	"github.com/likheet/folio/internal/post"
)

// --- モック定義 ---

// mockPostService はPostServiceInterfaceとPostListerのモック実装。
type mockPostService struct {
	createFn     func(ctx context.Context, in post.CreateInput) (*model.Post, error)
	listAllFn    func(ctx context.Context) ([]*model.Post, error)
	listLatestFn func(ctx context.Context, limit int) ([]*model.Post, error)
	getByIDFn    func(ctx context.Context, id string) (*model.Post, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockPostService) Create(ctx context.Context, in post.CreateInput) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return testPost(), nil
}

func (m *mockPostService) ListAll(ctx context.Context) ([]*model.Post, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return []*model.Post{}, nil
}

func (m *mockPostService) ListLatest(ctx context.Context, limit int) ([]*model.Post, error) {
	if m.listLatestFn != nil {
		return m.listLatestFn(ctx, limit)
	}
	return []*model.Post{}, nil
}

func (m *mockPostService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.NewPostNotFoundError(id)
}

func (m *mockPostService) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// mockSubscriberService はSubscriberServiceInterfaceのモック実装。
type mockSubscriberService struct {
	subscribeFn   func(ctx context.Context, email, name string) (*model.Subscriber, error)
	unsubscribeFn func(ctx context.Context, email string) error
}

func (m *mockSubscriberService) Subscribe(ctx context.Context, email, name string) (*model.Subscriber, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, email, name)
	}
	return &model.Subscriber{ID: "sub-1", Email: email, Name: name, Active: true}, nil
}

func (m *mockSubscriberService) Unsubscribe(ctx context.Context, email string) error {
	if m.unsubscribeFn != nil {
		return m.unsubscribeFn(ctx, email)
	}
	return nil
}

// mockQueue はnotify.Queueのモック実装。積まれたジョブを記録する。
type mockQueue struct {
	mu        sync.Mutex
	jobs      []notify.Job
	enqueueFn func(ctx context.Context, job notify.Job) error
}

func (m *mockQueue) Enqueue(ctx context.Context, job notify.Job) error {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, job)
	}
	return nil
}

func (m *mockQueue) enqueued() []notify.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Job(nil), m.jobs...)
}

// mockMetrics はmetrics.MetricsCollectorのモック実装。
type mockMetrics struct {
	mu                 sync.Mutex
	postsCreated       int
	subscribersCreated int
	statuses           []int
}

func (m *mockMetrics) RecordNotificationSent(string)   {}
func (m *mockMetrics) RecordNotificationFailed(string) {}
func (m *mockMetrics) RecordSendLatency(time.Duration) {}
func (m *mockMetrics) RecordJobDropped(string)         {}

func (m *mockMetrics) RecordHTTPStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, code)
}

func (m *mockMetrics) RecordPostCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postsCreated++
}

func (m *mockMetrics) RecordSubscriberCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribersCreated++
}

// mockPinger はrepository.Pingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPost() *model.Post {
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return &model.Post{
		ID:        "0190f5c2-0000-7000-8000-000000000001",
		Title:     "First Post",
		Content:   "<p>Hello <strong>readers</strong></p>",
		Excerpt:   "Hello readers",
		Author:    "Likheet Shetty",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// withURLParam はテスト用にchiのURLパラメータを注入したリクエストを返す。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
