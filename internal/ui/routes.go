package ui

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/waseemkhan00777/askify-gemini/internal/buildinfo"
	"github.com/waseemkhan00777/askify-gemini/web"
)

// maxMarkdownBytes caps /ui/markdown input.
const maxMarkdownBytes = 1 << 20

func RegisterRoutes(mux chi.Router, h *UI) {
	mux.Get("/", h.Home)
	mux.Post("/ui/markdown", h.Markdown)
	mux.Get("/ui/version-pill", h.VersionPill)
	mux.Handle("/static/*", http.StripPrefix("/static/", web.StaticHandler()))
}

type versionVM struct {
	Version string
	Commit  string
	BuiltAt string
}

func currentVersion() versionVM {
	return versionVM{
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
		BuiltAt: buildinfo.BuiltAt,
	}
}

// Home shows the chat page. The transcript lives in the browser only.
func (u *UI) Home(w http.ResponseWriter, r *http.Request) {
	u.render(w, "chat.html", map[string]any{
		"Provider": u.provider,
		"Build":    currentVersion(),
		"Empty":    MsgView{},
	}, http.StatusOK)
}

// Markdown renders {"content": "..."} (or a form field "content") to a
// sanitised HTML fragment.
func (u *UI) Markdown(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMarkdownBytes)

	var content string
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var in struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && err != io.EOF {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		content = in.Content
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		content = r.Form.Get("content")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, string(u.RenderMarkdown(content)))
}

func (u *UI) VersionPill(w http.ResponseWriter, r *http.Request) {
	// Fragment response; avoid caching so rollouts show quickly
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	if err := u.tpl.ExecuteTemplate(w, "version-pill.html", currentVersion()); err != nil {
		u.errTpl(w, err)
	}
}
