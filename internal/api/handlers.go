package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/waseemkhan00777/askify-gemini/internal/buildinfo"
	"github.com/waseemkhan00777/askify-gemini/internal/chat"
	"github.com/waseemkhan00777/askify-gemini/internal/middleware"
	"github.com/waseemkhan00777/askify-gemini/pkg/utils"
)

// defaultMaxBodyBytes caps a chat request body (1MB).
const defaultMaxBodyBytes = 1 << 20

type Options struct {
	// Framing is used when the request does not ask for one.
	Framing Framing
	// MaxBodyBytes caps the request body; zero means 1MB.
	MaxBodyBytes int64
	// OriginPatterns are the hosts allowed to open the websocket from a
	// different origin.
	OriginPatterns []string
}

type Handlers struct {
	log     *slog.Logger
	relay   *chat.Relay
	framing Framing
	maxBody int64
	origins []string
}

func NewHandlers(log *slog.Logger, relay *chat.Relay, opts Options) *Handlers {
	if opts.Framing == "" {
		opts.Framing = FramingRaw
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handlers{
		log:     log,
		relay:   relay,
		framing: opts.Framing,
		maxBody: opts.MaxBodyBytes,
		origins: opts.OriginPatterns,
	}
}

// Health is a basic liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"status":    true,
		"message":   "askify",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"version":  buildinfo.Version,
		"commit":   buildinfo.Commit,
		"built_at": buildinfo.BuiltAt,
	}

	utils.JSON(w, http.StatusOK, res)
}

// Chat POST /api/chat { messages: [{role, content}, ...] }
// Streams the provider's answer to messages[0].content.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	log := h.log.With("req_id", middleware.GetRequestID(r.Context()))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	req, err := chat.DecodeRequest(r.Body)
	if err != nil {
		e := chat.AsError(err)
		log.Warn("rejected chat request", "code", e.Code, "reason", e.Reason)
		utils.Error(w, e.HTTPStatus(), string(e.Code), e.Reason)
		return
	}
	if role := req.Messages[0].Role; !role.Valid() {
		log.Debug("unexpected role on first message", "role", role)
	}
	if extra := len(req.Messages) - 1; extra > 0 {
		log.Debug("ignoring messages after the first", "count", extra)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.Error(w, http.StatusInternalServerError, string(chat.ErrorInternal), "streaming not supported")
		return
	}

	framing := negotiateFraming(r, h.framing)
	sw := newStreamWriter(w, flusher, framing)
	prompt, _ := req.Prompt()

	res, err := h.relay.Stream(r.Context(), prompt, sw.Fragment)
	switch {
	case err == nil:
		sw.Done()
	case errors.Is(err, chat.ErrClientGone):
		log.Info("client went away mid-stream", "fragments", res.Fragments, "err", err)
		return
	default:
		e := chat.AsError(err)
		log.Error("chat stream failed", "code", e.Code, "fragments", res.Fragments, "err", err)
		sw.Fail(e)
		return
	}

	log.Info("chat relayed",
		"framing", framing,
		"fragments", res.Fragments,
		"bytes", res.Bytes,
		"latency_ms", res.Latency.Milliseconds(),
	)
}

// ChatWS GET /api/chat/ws
// The client sends one ChatRequest as a text message; every fragment comes
// back as a text message and the server closes the socket when done.
func (h *Handlers) ChatWS(w http.ResponseWriter, r *http.Request) {
	log := h.log.With("req_id", middleware.GetRequestID(r.Context()))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		log.Warn("websocket accept failed", "err", err)
		return
	}
	defer func() { _ = ws.CloseNow() }()
	ws.SetReadLimit(h.maxBody)

	ctx := r.Context()
	_, data, err := ws.Read(ctx)
	if err != nil {
		log.Info("websocket closed before request", "err", err)
		return
	}

	req, err := chat.DecodeRequest(bytes.NewReader(data))
	if err != nil {
		e := chat.AsError(err)
		_ = ws.Close(websocket.StatusPolicyViolation, string(e.Code))
		return
	}
	prompt, _ := req.Prompt()

	res, err := h.relay.Stream(ctx, prompt, func(frag string) error {
		return ws.Write(ctx, websocket.MessageText, []byte(frag))
	})
	switch {
	case err == nil:
		_ = ws.Close(websocket.StatusNormalClosure, "done")
		log.Info("chat relayed", "transport", "websocket", "fragments", res.Fragments, "bytes", res.Bytes)
	case errors.Is(err, chat.ErrClientGone):
		log.Info("websocket client went away", "fragments", res.Fragments, "err", err)
	default:
		e := chat.AsError(err)
		log.Error("chat stream failed", "transport", "websocket", "code", e.Code, "err", err)
		_ = ws.Close(websocket.StatusInternalError, string(e.Code))
	}
}
