package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/likheet/folio/internal/middleware"
	"github.com/likheet/folio/internal/notify"
	"github.com/likheet/folio/internal/post"
	"github.com/likheet/folio/internal/repository"
	"github.com/likheet/folio/internal/security"
	"github.com/likheet/folio/internal/subscriber"
)

type testServer struct {
	*httptest.Server
	queue   *mockQueue
	metrics *mockMetrics
}

// newTestServer はインメモリストアと実サービスでルーター全体を構成する。
func newTestServer(t *testing.T, modify func(*RouterDeps)) *testServer {
	t.Helper()

	postRepo := repository.NewMemoryPostRepo()
	postSvc := post.NewService(postRepo, "Likheet Shetty")
	subSvc := subscriber.NewService(repository.NewMemorySubscriberRepo())

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	q := &mockQueue{}
	m := &mockMetrics{}
	deps := &RouterDeps{
		Logger:            discardLogger(),
		RateLimiter:       rl,
		Metrics:           m,
		MetricsHandler:    http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics\n")) }),
		HealthChecker:     postRepo,
		PostService:       postSvc,
		PostLister:        postSvc,
		SubscriberService: subSvc,
		Queue:             q,
		Sanitizer:         security.NewContentSanitizer(),
		RSS:               RSSConfig{BaseURL: "http://localhost:8080", Title: "Test Blog"},
	}
	if modify != nil {
		modify(deps)
	}

	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, queue: q, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestRouter_PostLifecycle は作成・一覧・取得・削除の一連の流れを検証する。
func TestRouter_PostLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, "/api/posts", `{"title":"Hello","content":"World <3"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	var created createPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if created.Post.Excerpt != "World <3" || created.Post.Author != "Likheet Shetty" {
		t.Errorf("unexpected post %+v", created.Post)
	}

	resp = s.do(t, http.MethodGet, "/api/posts", "")
	var list postListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(list.Posts) != 1 || list.Posts[0].ID != created.Post.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	resp = s.do(t, http.MethodGet, "/api/posts/"+created.Post.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get: status = %d, want 200", resp.StatusCode)
	}

	resp = s.do(t, http.MethodDelete, "/api/posts/"+created.Post.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete: status = %d, want 200", resp.StatusCode)
	}
	resp = s.do(t, http.MethodDelete, "/api/posts/"+created.Post.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", resp.StatusCode)
	}
	resp = s.do(t, http.MethodGet, "/api/posts/not-a-uuid", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("invalid id: status = %d, want 404", resp.StatusCode)
	}

	jobs := s.queue.enqueued()
	if len(jobs) != 1 || jobs[0].Kind != notify.KindNewPost {
		t.Errorf("expected one new_post job, got %+v", jobs)
	}
}

// TestRouter_SubscribeLifecycle は購読登録・重複・解除の流れを検証する。
func TestRouter_SubscribeLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	steps := []struct {
		path       string
		body       string
		wantStatus int
	}{
		{"/api/subscribe", `{"email":"ada@example.com","name":"Ada"}`, http.StatusCreated},
		{"/api/subscribe", `{"email":"ada@example.com"}`, http.StatusConflict},
		{"/api/subscribe", `{"email":"not-an-email"}`, http.StatusBadRequest},
		{"/api/unsubscribe", `{"email":"ada@example.com"}`, http.StatusOK},
		{"/api/unsubscribe", `{"email":"ada@example.com"}`, http.StatusOK},
		{"/api/subscribe", `{"email":"ada@example.com"}`, http.StatusConflict},
		{"/api/unsubscribe", `{"email":"nobody@example.com"}`, http.StatusNotFound},
	}
	for i, st := range steps {
		resp := s.do(t, http.MethodPost, st.path, st.body)
		if resp.StatusCode != st.wantStatus {
			t.Errorf("step %d %s %s: status = %d, want %d", i, st.path, st.body, resp.StatusCode, st.wantStatus)
		}
	}

	jobs := s.queue.enqueued()
	if len(jobs) != 1 || jobs[0].Kind != notify.KindWelcome {
		t.Errorf("expected exactly one welcome job, got %+v", jobs)
	}
}

// TestRouter_SubscribeRateLimit は購読エンドポイントのレート制限で429を返すことを検証する。
func TestRouter_SubscribeRateLimit(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			GeneralRate:     100,
			GeneralBurst:    100,
			SubscribeRate:   0.1,
			SubscribeBurst:  2,
			CleanupInterval: time.Minute,
		})
		t.Cleanup(rl.Stop)
		d.RateLimiter = rl
	})

	for i := 0; i < 2; i++ {
		s.do(t, http.MethodPost, "/api/unsubscribe", `{"email":"x@example.com"}`)
	}
	resp := s.do(t, http.MethodPost, "/api/subscribe", `{"email":"y@example.com"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// 記事APIは購読の制限を受けない
	if resp := s.do(t, http.MethodGet, "/api/posts", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("posts: status = %d, want 200", resp.StatusCode)
	}
}

// TestRouter_Health はストアの疎通状態に応じたステータスを返すことを検証する。
func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil)
	if resp := s.do(t, http.MethodGet, "/health", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	down := newTestServer(t, func(d *RouterDeps) {
		d.HealthChecker = &mockPinger{err: os.ErrDeadlineExceeded}
	})
	resp := down.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

// TestRouter_FeedAndMetrics はRSSとメトリクスのルーティングを検証する。
func TestRouter_FeedAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/feed.xml", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("feed: status = %d, want 200", resp.StatusCode)
	}
	resp = s.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: status = %d, want 200", resp.StatusCode)
	}

	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	if len(s.metrics.statuses) != 2 {
		t.Errorf("expected 2 recorded statuses, got %v", s.metrics.statuses)
	}
}

// TestRouter_SecurityHeadersAndCORS はミドルウェアチェーンが適用されることを検証する。
func TestRouter_SecurityHeadersAndCORS(t *testing.T) {
	s := newTestServer(t, func(d *RouterDeps) {
		d.CORSAllowedOrigin = "https://likheet.dev"
		d.HSTS = true
	})

	req, err := http.NewRequest(http.MethodOptions, s.URL+"/api/subscribe", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://likheet.dev")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight: status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://likheet.dev" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("Strict-Transport-Security"); got == "" {
		t.Error("expected Strict-Transport-Security when HSTS is enabled")
	}
}

// TestRouter_StaticDir は静的ファイルを配信することを検証する。
func TestRouter_StaticDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>blog</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, func(d *RouterDeps) { d.StaticDir = dir })

	resp := s.do(t, http.MethodGet, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<h1>blog</h1>") {
		t.Errorf("unexpected body %q", buf.String())
	}

	// APIルートは静的配信より優先される
	if resp := s.do(t, http.MethodGet, "/api/posts", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("api: status = %d, want 200", resp.StatusCode)
	}
}
