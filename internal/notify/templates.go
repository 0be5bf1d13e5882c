package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// newPostTemplate は新着記事通知メールの本文。本文全体は載せず、抜粋と記事へのリンクのみを含む。
var newPostTemplate = template.Must(template.New("new_post").Parse(`<h2>New Blog Post from {{.Author}}</h2>
<h3>{{.Post.Title}}</h3>
<p>{{.Post.Excerpt}}</p>
<p><a href="{{.PostURL}}">Read the full post</a></p>
<hr>
<p><small>You're receiving this because you subscribed to {{.BlogTitle}}.
<a href="{{.UnsubscribeURL}}">Unsubscribe</a></small></p>
`))

// welcomeTemplate はウェルカムメールの本文。
var welcomeTemplate = template.Must(template.New("welcome").Parse(`<h2>Welcome to {{.BlogTitle}}!</h2>
<p>Hi {{.Name}}!</p>
<p>Thank you for subscribing to my blog. You'll receive notifications whenever I publish new posts.</p>
<p><a href="{{.SiteURL}}">Visit the blog</a></p>
<p>Best regards,<br>{{.Author}}</p>
`))

type newPostData struct {
	Author         string
	BlogTitle      string
	Post           postView
	PostURL        string
	UnsubscribeURL string
}

type postView struct {
	Title   string
	Excerpt string
}

type welcomeData struct {
	Author    string
	BlogTitle string
	Name      string
	SiteURL   string
}

// render はテンプレートを実行して文字列を返す。
// 値はhtml/templateによりエスケープされる。
func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("メール本文の生成に失敗しました: %w", err)
	}
	return buf.String(), nil
}
