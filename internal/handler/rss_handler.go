package handler

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/likheet/folio/internal/model"
	"github.com/likheet/folio/internal/security"
)

// PostLister はRSS配信で最新記事を取得するためのインターフェース。
type PostLister interface {
	ListLatest(ctx context.Context, limit int) ([]*model.Post, error)
}

// RSSConfig はRSSフィードのチャンネル情報を保持する。
// Authorは著者名のない記事のdc:creatorに使われる。
type RSSConfig struct {
	BaseURL  string
	Title    string
	Author   string
	MaxItems int
}

// RSSHandler は最新記事のRSS 2.0フィードを配信する。
type RSSHandler struct {
	posts     PostLister
	sanitizer security.ContentSanitizerService
	config    RSSConfig
	now       func() time.Time
}

// NewRSSHandler はRSSHandlerを生成する。MaxItemsが0以下の場合は20件とする。
func NewRSSHandler(posts PostLister, sanitizer security.ContentSanitizerService, config RSSConfig) *RSSHandler {
	if config.MaxItems <= 0 {
		config.MaxItems = 20
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &RSSHandler{
		posts:     posts,
		sanitizer: sanitizer,
		config:    config,
		now:       time.Now,
	}
}

const (
	contentNamespace = "http://purl.org/rss/1.0/modules/content/"
	dcNamespace      = "http://purl.org/dc/elements/1.1/"
)

type rssDocument struct {
	XMLName          xml.Name   `xml:"rss"`
	Version          string     `xml:"version,attr"`
	ContentNamespace string     `xml:"xmlns:content,attr"`
	DCNamespace      string     `xml:"xmlns:dc,attr"`
	Channel          rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	GUID        rssGUID    `xml:"guid"`
	PubDate     string     `xml:"pubDate"`
	Creator     string     `xml:"dc:creator"`
	Description string     `xml:"description"`
	Content     rssContent `xml:"content:encoded"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssContent struct {
	Value string `xml:",cdata"`
}

// Feed はRSSフィードを返す。プレーンテキストの本文はエスケープ済みの段落に変換して配信する。
// GET /feed.xml
func (h *RSSHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListLatest(r.Context(), h.config.MaxItems)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	doc := rssDocument{
		Version:          "2.0",
		ContentNamespace: contentNamespace,
		DCNamespace:      dcNamespace,
		Channel: rssChannel{
			Title:         h.config.Title,
			Link:          h.config.BaseURL + "/",
			Description:   "Latest posts from " + h.config.Title,
			LastBuildDate: h.now().UTC().Format(time.RFC1123Z),
			Items:         make([]rssItem, len(posts)),
		},
	}
	for i, p := range posts {
		creator := p.Author
		if creator == "" {
			creator = h.config.Author
		}
		doc.Channel.Items[i] = rssItem{
			Title:       p.Title,
			Link:        h.config.BaseURL + "/?post=" + url.QueryEscape(p.ID),
			GUID:        rssGUID{IsPermaLink: false, Value: p.ID},
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
			Creator:     creator,
			Description: p.Excerpt,
			Content:     rssContent{Value: h.sanitizer.Sanitize(security.TextToHTML(p.Content))},
		}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(out)
}
