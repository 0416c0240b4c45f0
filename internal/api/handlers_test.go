package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/waseemkhan00777/askify-gemini/internal/chat"
	"github.com/waseemkhan00777/askify-gemini/internal/logging"
	"github.com/waseemkhan00777/askify-gemini/internal/provider"
	"github.com/waseemkhan00777/askify-gemini/pkg/types"
)

const pingBody = `{"messages":[{"role":"user","content":"ping"},{"role":"user","content":"ignored"}]}`

func newHandlers(p provider.Provider, framing Framing) *Handlers {
	log := logging.Discard()
	return NewHandlers(log, chat.NewRelay(log, p, 0), Options{Framing: framing})
}

func postChat(h *Handlers, body string, mutate func(*http.Request)) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.Chat(w, req)
	return w.Result()
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	var b strings.Builder
	buf := make([]byte, 512)
	for {
		n, err := res.Body.Read(buf)
		b.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return b.String()
}

func decodeError(t *testing.T, res *http.Response) types.ErrorResponse {
	t.Helper()
	var out types.ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestChat_ForwardsFirstMessageOnly(t *testing.T) {
	m := provider.NewMock("Hel", "lo, ", "world")
	res := postChat(newHandlers(m, FramingRaw), pingBody, nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
	require.Equal(t, "no-cache", res.Header.Get("Cache-Control"))
	require.Equal(t, "keep-alive", res.Header.Get("Connection"))
	require.Equal(t, "raw", res.Header.Get(FramingHeader))
	require.Equal(t, "Hello, world", readBody(t, res))
	require.Equal(t, []string{"ping"}, m.Prompts())
	require.Empty(t, res.Trailer.Get(StreamErrorTrailer))
}

func TestChat_ZeroFragments(t *testing.T) {
	res := postChat(newHandlers(provider.NewMock(), FramingRaw), pingBody, nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))
	require.Empty(t, readBody(t, res))
}

func TestChat_InvalidRequests(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed json", body: `{"messages":`, status: http.StatusBadRequest},
		{name: "empty messages", body: `{"messages":[]}`, status: http.StatusBadRequest},
		{name: "empty prompt", body: `{"messages":[{"role":"user","content":""}]}`, status: http.StatusBadRequest},
		{name: "too large", body: `{"messages":[{"role":"user","content":"` + strings.Repeat("x", 2<<20) + `"}]}`, status: http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := provider.NewMock("never")
			res := postChat(newHandlers(m, FramingRaw), tc.body, nil)

			require.Equal(t, tc.status, res.StatusCode)
			require.Equal(t, string(chat.ErrorInvalidRequest), decodeError(t, res).Error)
			require.Empty(t, m.Prompts(), "provider must not be called")
		})
	}
}

func TestChat_UnexpectedRoleIsLoggedNotRejected(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "debug", false)
	m := provider.NewMock("ok")
	h := NewHandlers(log, chat.NewRelay(log, m, 0), Options{})

	res := postChat(h, `{"messages":[{"role":"system","content":"ping"}]}`, nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", readBody(t, res))
	require.Equal(t, []string{"ping"}, m.Prompts())
	require.Contains(t, buf.String(), "unexpected role on first message")
	require.Contains(t, buf.String(), "role=system")
}

func TestChat_ProviderUnavailable(t *testing.T) {
	m := &provider.Mock{Fragments: []string{"a"}, Err: errors.New("quota exceeded")}
	res := postChat(newHandlers(m, FramingRaw), pingBody, nil)

	require.Equal(t, http.StatusBadGateway, res.StatusCode)
	require.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	require.Equal(t, string(chat.ErrorProviderUnavailable), decodeError(t, res).Error)
}

func TestChat_RawAbortSetsTrailer(t *testing.T) {
	m := &provider.Mock{Fragments: []string{"Hel", "lo"}, Err: errors.New("reset"), FailAfter: 1}
	res := postChat(newHandlers(m, FramingRaw), pingBody, nil)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "Hel", readBody(t, res))
	require.Equal(t, string(chat.ErrorStreamAborted), res.Trailer.Get(StreamErrorTrailer))
}

func TestChat_SSEFraming(t *testing.T) {
	m := provider.NewMock("Hel", "lo\nworld")
	res := postChat(newHandlers(m, FramingRaw), pingBody, func(r *http.Request) {
		r.Header.Set("Accept", "text/event-stream")
	})

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "sse", res.Header.Get(FramingHeader))
	require.Equal(t,
		"data: Hel\n\n"+
			"data: lo\ndata: world\n\n"+
			"event: done\ndata: {}\n\n",
		readBody(t, res))
}

func TestChat_SSEFramingDefault(t *testing.T) {
	res := postChat(newHandlers(provider.NewMock(), FramingSSE), pingBody, nil)
	require.Equal(t, "event: done\ndata: {}\n\n", readBody(t, res))
}

func TestChat_FramingQueryOverridesAccept(t *testing.T) {
	req := func(r *http.Request) {
		r.URL.RawQuery = "framing=raw"
		r.Header.Set("Accept", "text/event-stream")
	}
	res := postChat(newHandlers(provider.NewMock("a", "b"), FramingSSE), pingBody, req)
	require.Equal(t, "ab", readBody(t, res))
}

func TestChat_SSEAbort(t *testing.T) {
	m := &provider.Mock{Fragments: []string{"Hel", "lo"}, Err: errors.New("reset"), FailAfter: 1}
	res := postChat(newHandlers(m, FramingSSE), pingBody, nil)

	body := readBody(t, res)
	require.True(t, strings.HasPrefix(body, "data: Hel\n\n"), body)
	require.Contains(t, body, "event: error\ndata: {\"error\":\"STREAM_ABORTED\",\"reason\":\"provider error\"}\n\n")
	require.NotContains(t, body, "event: done")
}

func TestParseFraming(t *testing.T) {
	f, err := ParseFraming("SSE")
	require.NoError(t, err)
	require.Equal(t, FramingSSE, f)

	f, err = ParseFraming("")
	require.NoError(t, err)
	require.Equal(t, FramingRaw, f)

	_, err = ParseFraming("ndjson")
	require.Error(t, err)
}

func TestHealthAndVersion(t *testing.T) {
	h := newHandlers(provider.NewMock(), FramingRaw)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":true`)

	w = httptest.NewRecorder()
	h.Version(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"version"`)
}

func dialWS(t *testing.T, h *Handlers) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ChatWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn, ctx
}

func TestChatWS(t *testing.T) {
	m := provider.NewMock("Hel", "lo")
	conn, ctx := dialWS(t, newHandlers(m, FramingRaw))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(pingBody)))

	var got []string
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			require.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			break
		}
		got = append(got, string(data))
	}
	require.Equal(t, []string{"Hel", "lo"}, got)
	require.Equal(t, []string{"ping"}, m.Prompts())
}

func TestChatWS_InvalidRequest(t *testing.T) {
	m := provider.NewMock("never")
	conn, ctx := dialWS(t, newHandlers(m, FramingRaw))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"messages":[]}`)))
	_, _, err := conn.Read(ctx)
	require.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	require.Empty(t, m.Prompts())
}
