package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は投稿本文で使う許可タグが通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "見出しと段落が許可される",
			input:        "<h2>Release notes</h2><p>First paragraph</p>",
			wantContains: []string{"<h2>Release notes</h2>", "<p>First paragraph</p>"},
		},
		{
			name:         "リストが許可される",
			input:        "<ul><li>one</li><li>two</li></ul>",
			wantContains: []string{"<ul>", "<li>one</li>", "</ul>"},
		},
		{
			name:         "コードブロックが許可される",
			input:        "<pre><code>func main() {}</code></pre>",
			wantContains: []string{"<pre><code>func main() {}</code></pre>"},
		},
		{
			name:         "強調が許可される",
			input:        "<strong>bold</strong> and <em>italic</em>",
			wantContains: []string{"<strong>bold</strong>", "<em>italic</em>"},
		},
		{
			name:         "引用が許可される",
			input:        "<blockquote>quoted</blockquote>",
			wantContains: []string{"<blockquote>quoted</blockquote>"},
		},
		{
			name:         "httpsの画像が許可される",
			input:        `<img src="https://example.com/cover.png" alt="cover">`,
			wantContains: []string{`src="https://example.com/cover.png"`, `alt="cover"`},
		},
		{
			name:         "mailtoリンクが許可される",
			input:        `<a href="mailto:hello@example.com">mail me</a>`,
			wantContains: []string{`href="mailto:hello@example.com"`, "mail me"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, want to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_RemovesDangerousContent は危険なタグと属性が除去されることを検証する。
func TestSanitize_RemovesDangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name        string
		input       string
		notContains []string
	}{
		{
			name:        "scriptタグが除去される",
			input:       `<p>hi</p><script>alert("xss")</script>`,
			notContains: []string{"<script", "alert"},
		},
		{
			name:        "iframeタグが除去される",
			input:       `<iframe src="https://evil.example.com"></iframe>`,
			notContains: []string{"<iframe"},
		},
		{
			name:        "styleタグが除去される",
			input:       `<style>body{display:none}</style><p>x</p>`,
			notContains: []string{"<style", "display:none"},
		},
		{
			name:        "onclick属性が除去される",
			input:       `<p onclick="steal()">click</p>`,
			notContains: []string{"onclick", "steal"},
		},
		{
			name:        "javascriptスキームのリンクが除去される",
			input:       `<a href="javascript:alert(1)">link</a>`,
			notContains: []string{"javascript:"},
		},
		{
			name:        "dataスキームの画像が除去される",
			input:       `<img src="data:image/png;base64,AAAA">`,
			notContains: []string{"data:image"},
		},
		{
			name:        "相対URLのリンクが除去される",
			input:       `<a href="/admin">admin</a>`,
			notContains: []string{`href="/admin"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, bad := range tt.notContains {
				if strings.Contains(got, bad) {
					t.Errorf("Sanitize(%q) = %q, must not contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

// TestSanitize_LinkAttributes はリンクにtargetとrelが付与されることを検証する。
func TestSanitize_LinkAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com/post">read</a>`)

	for _, want := range []string{`target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, want to contain %q", got, want)
		}
	}
}

// TestSanitize_Idempotent は同一入力に対して同一出力を返し、再サニタイズしても変化しないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := `<p>Hello <strong>world</strong></p><script>x()</script>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(input)
	if first != second {
		t.Errorf("Sanitize() not deterministic: %q vs %q", first, second)
	}
	if again := sanitizer.Sanitize(first); again != first {
		t.Errorf("Sanitize(Sanitize(x)) = %q, want %q", again, first)
	}
}

// TestSanitize_Empty は空文字列に空文字列を返すことを検証する。
func TestSanitize_Empty(t *testing.T) {
	sanitizer := NewContentSanitizer()
	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}

// TestTextToHTML はプレーンテキストの本文が文字を失わずにHTML化されることを検証する。
func TestTextToHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "1段落", input: "Just some text", want: "<p>Just some text</p>"},
		{name: "不等号はエスケープされる", input: "if a<b and c>d then return", want: "<p>if a&lt;b and c&gt;d then return</p>"},
		{name: "タグに見える文字列も本文のまま", input: "Use Vec<T> for growable arrays", want: "<p>Use Vec&lt;T&gt; for growable arrays</p>"},
		{name: "アンパサンド", input: "Tom & Jerry", want: "<p>Tom &amp; Jerry</p>"},
		{name: "空行で段落を分ける", input: "one\n\ntwo", want: "<p>one</p><p>two</p>"},
		{name: "段落内の改行はbr", input: "line1\nline2", want: "<p>line1<br>line2</p>"},
		{name: "CRLF", input: "one\r\n\r\ntwo", want: "<p>one</p><p>two</p>"},
		{name: "空白のみ", input: " \n\n ", want: ""},
		{name: "空文字列", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextToHTML(tt.input); got != tt.want {
				t.Errorf("TextToHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestTextToHTML_SurvivesSanitize は変換結果がサニタイズ後も同じ文字を保つことを検証する。
func TestTextToHTML_SurvivesSanitize(t *testing.T) {
	sanitizer := NewContentSanitizer()
	rendered := TextToHTML("if a<b and c>d\n\n<script>alert(1)</script>")

	got := sanitizer.Sanitize(rendered)
	if !strings.Contains(got, "a&lt;b and c&gt;d") {
		t.Errorf("escaped text lost after Sanitize: %q", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("script must stay escaped: %q", got)
	}
}
