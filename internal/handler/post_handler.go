package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/likheet/folio/internal/metrics"
	"github.com/likheet/folio/internal/model"
	"github.com/likheet/folio/internal/notify"
	"github.com/likheet/folio/internal/post"
)

// PostServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, in post.CreateInput) (*model.Post, error)
	ListAll(ctx context.Context) ([]*model.Post, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	DeleteByID(ctx context.Context, id string) error
}

// PostHandler は記事管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	queue   notify.Queue
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, queue notify.Queue, collector metrics.MetricsCollector, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		service: service,
		queue:   queue,
		metrics: collector,
		logger:  logger,
	}
}

// createPostRequest は記事作成リクエストのボディ。
type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
}

func (r *createPostRequest) fromForm(v url.Values) {
	r.Title = v.Get("title")
	r.Content = v.Get("content")
	r.Excerpt = v.Get("excerpt")
}

// postResponse は記事のAPIレスポンス。
type postResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type postListResponse struct {
	Posts []postResponse `json:"posts"`
}

type postDetailResponse struct {
	Post postResponse `json:"post"`
}

type createPostResponse struct {
	Message string       `json:"message"`
	Post    postResponse `json:"post"`
}

// ListPosts は全記事を新しい順に返す。
// GET /api/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := postListResponse{Posts: make([]postResponse, len(posts))}
	for i, p := range posts {
		resp.Posts[i] = toPostResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPost は記事詳細を返す。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postDetailResponse{Post: toPostResponse(p)})
}

// CreatePost は記事を作成し、購読者への通知ジョブを積む。
// 通知の完了は待たずに応答する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	p, err := h.service.Create(r.Context(), post.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Excerpt: req.Excerpt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.metrics.RecordPostCreated()

	enqueueNotification(r.Context(), h.queue, notify.NewPostJob(p, time.Now()), h.logger,
		slog.String("post_id", p.ID),
	)

	writeJSON(w, http.StatusCreated, createPostResponse{
		Message: "Post created successfully",
		Post:    toPostResponse(p),
	})
}

// DeletePost は記事を削除する。
// DELETE /api/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteByID(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Post deleted successfully"})
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Excerpt:   p.Excerpt,
		Author:    p.Author,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
