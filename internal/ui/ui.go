package ui

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/waseemkhan00777/askify-gemini/web"
)

type UI struct {
	log      *slog.Logger
	tpl      *template.Template
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	provider string
}

// New parses the embedded templates. provider is shown in the page header.
func New(log *slog.Logger, provider string) (*UI, error) {
	t, err := template.New("root").ParseFS(web.Templates(), "*.html", "partials/*.html")
	if err != nil {
		return nil, err
	}

	md := goldmark.New(
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("dracula"),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(false),
				),
			),
		),
	)

	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("code", "pre", "span")
	p.AllowAttrs("style").OnElements("span", "pre") // inline styles from the highlighter

	return &UI{
		log:      log,
		tpl:      t,
		md:       md,
		policy:   p,
		provider: provider,
	}, nil
}

type MsgView struct {
	Role string
	HTML template.HTML
}

// RenderMarkdown converts model or user text to sanitised HTML.
func (u *UI) RenderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := u.md.Convert([]byte(src), &buf); err != nil {
		u.log.Warn("markdown convert", "err", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(u.policy.SanitizeBytes(buf.Bytes()))
}

func (u *UI) render(w http.ResponseWriter, name string, data any, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := u.tpl.ExecuteTemplate(w, name, data); err != nil {
		u.errTpl(w, err)
	}
}

func (u *UI) errTpl(w http.ResponseWriter, err error) {
	u.log.Error("template execute", "err", err)
	_, _ = w.Write([]byte("<pre>template error</pre>"))
}
