package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/waseemkhan00777/askify-gemini/internal/api"
	"github.com/waseemkhan00777/askify-gemini/internal/chat"
	"github.com/waseemkhan00777/askify-gemini/pkg/types"
)

// Client talks to a running askify server over POST /api/chat.
type Client struct {
	baseURL string
	http    *http.Client
	framing api.Framing
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithFraming asks the server for a specific body framing. Without it the
// server picks its default.
func WithFraming(f api.Framing) ClientOption {
	return func(c *Client) { c.framing = f }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No timeout: a reply streams for as long as the provider talks.
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask submits prompt to tr and streams the reply into it.
func (c *Client) Ask(ctx context.Context, tr *Transcript, prompt string) error {
	turn, err := tr.Submit(prompt)
	if err != nil {
		return err
	}
	return c.Send(ctx, turn)
}

// Send requests the reply for turn and feeds it to turn.Update as it
// arrives. turn.Finish is always called before Send returns.
func (c *Client) Send(ctx context.Context, turn *Turn) (err error) {
	defer func() { turn.Finish(err) }()

	body, err := json.Marshal(types.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: turn.Prompt()}},
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.framing == api.FramingSSE {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.framing != "" {
		q := req.URL.Query()
		q.Set("framing", string(c.framing))
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post chat: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(res)
	}

	framing, err := api.ParseFraming(res.Header.Get(api.FramingHeader))
	if err != nil {
		framing = api.FramingRaw
	}
	if framing == api.FramingSSE {
		return readSSE(res.Body, turn)
	}
	return readRaw(res, turn)
}

func readRaw(res *http.Response, turn *Turn) error {
	dec := newTextDecoder()
	var acc strings.Builder
	push := func(text string) {
		if text == "" {
			return
		}
		acc.WriteString(text)
		turn.Update(acc.String())
	}

	if err := readChunks(res.Body, dec, push); err != nil {
		return err
	}
	if code := res.Trailer.Get(api.StreamErrorTrailer); code != "" {
		return &chat.Error{Code: chat.ErrorCode(code), Reason: "stream aborted by server"}
	}
	return nil
}

func readSSE(body io.Reader, turn *Turn) error {
	dec := newTextDecoder()
	var (
		p      sseParser
		acc    strings.Builder
		done   bool
		failed error
	)
	push := func(text string) {
		for _, ev := range p.Feed(text) {
			if done || failed != nil {
				return
			}
			switch ev.Name {
			case "", "message":
				if ev.Data == "" {
					continue
				}
				acc.WriteString(ev.Data)
				turn.Update(acc.String())
			case "done":
				done = true
			case "error":
				failed = eventError(ev.Data)
			}
		}
	}

	if err := readChunks(body, dec, push); err != nil {
		return err
	}
	switch {
	case failed != nil:
		return failed
	case !done:
		return &chat.Error{Code: chat.ErrorStreamAborted, Reason: "stream ended before done"}
	}
	return nil
}

// readChunks decodes body as it arrives and hands each piece of text to fn.
func readChunks(body io.Reader, dec *textDecoder, fn func(string)) error {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			fn(dec.Decode(buf[:n], false))
		}
		if errors.Is(err, io.EOF) {
			fn(dec.Decode(nil, true))
			return nil
		}
		if err != nil {
			return fmt.Errorf("read reply: %w", err)
		}
	}
}

func eventError(data string) error {
	var er types.ErrorResponse
	if err := json.Unmarshal([]byte(data), &er); err != nil || er.Error == "" {
		return &chat.Error{Code: chat.ErrorStreamAborted, Reason: "malformed error event"}
	}
	return &chat.Error{Code: chat.ErrorCode(er.Error), Reason: er.Reason}
}

// statusError turns a non-2xx reply into a *chat.Error, using the JSON
// error body when the server sent one.
func statusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var er types.ErrorResponse
	if err := json.Unmarshal(raw, &er); err != nil || er.Error == "" {
		return &chat.Error{
			Code:   chat.ErrorInternal,
			Reason: http.StatusText(res.StatusCode),
			Err:    fmt.Errorf("http status %d", res.StatusCode),
		}
	}
	return &chat.Error{
		Code:   chat.ErrorCode(er.Error),
		Reason: er.Reason,
		Err:    fmt.Errorf("http status %d", res.StatusCode),
	}
}
