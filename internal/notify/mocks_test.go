package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/likheet/folio/internal/mailer"
	"github.com/likheet/folio/internal/model"
)

// --- モック ---

type mockSender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	sendFn func(ctx context.Context, msg mailer.Message) error
}

func (m *mockSender) Send(ctx context.Context, msg mailer.Message) error {
	var err error
	if m.sendFn != nil {
		err = m.sendFn(ctx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return err
}

func (m *mockSender) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mailer.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

type mockLister struct {
	listActiveFn func(ctx context.Context) ([]*model.Subscriber, error)
}

func (m *mockLister) ListActive(ctx context.Context) ([]*model.Subscriber, error) {
	return m.listActiveFn(ctx)
}

func listerOf(subs ...*model.Subscriber) *mockLister {
	return &mockLister{listActiveFn: func(ctx context.Context) ([]*model.Subscriber, error) {
		return subs, nil
	}}
}

type mockMetrics struct {
	mu      sync.Mutex
	sent    map[string]int
	failed  map[string]int
	dropped map[string]int
	latency int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{sent: map[string]int{}, failed: map[string]int{}, dropped: map[string]int{}}
}

func (m *mockMetrics) RecordNotificationSent(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[kind]++
}
func (m *mockMetrics) RecordNotificationFailed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[kind]++
}
func (m *mockMetrics) RecordSendLatency(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency++
}
func (m *mockMetrics) RecordJobDropped(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[kind]++
}
func (m *mockMetrics) RecordHTTPStatus(statusCode int) {}
func (m *mockMetrics) RecordPostCreated()              {}
func (m *mockMetrics) RecordSubscriberCreated()        {}

func (m *mockMetrics) count(counter map[string]int, kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return counter[kind]
}

type mockHandler struct {
	handleFn func(ctx context.Context, job Job) error
}

func (m *mockHandler) Handle(ctx context.Context, job Job) error {
	return m.handleFn(ctx, job)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSubscriber(email, name string) *model.Subscriber {
	return &model.Subscriber{ID: "sub-" + email, Email: email, Name: name, Active: true}
}

func testPost() *model.Post {
	return &model.Post{
		ID:      "0190f5c2-0000-7000-8000-000000000001",
		Title:   "Hello <World>",
		Content: "<p>content</p>",
		Excerpt: "An excerpt & more",
		Author:  "Likheet Shetty",
	}
}

func testDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BaseURL:       "https://blog.example.com/",
		Author:        "Likheet Shetty",
		BlogTitle:     "Likheet Shetty's Blog",
		MaxConcurrent: 2,
		SendTimeout:   time.Second,
	}
}
