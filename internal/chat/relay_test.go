package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waseemkhan00777/askify-gemini/internal/logging"
	"github.com/waseemkhan00777/askify-gemini/internal/provider"
)

func TestDecodeRequest(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		prompt string
		reason string
	}{
		{name: "first message only", body: `{"messages":[{"role":"user","content":"ping"},{"role":"user","content":"ignored"}]}`, prompt: "ping"},
		{name: "role not checked", body: `{"messages":[{"role":"assistant","content":"hi"}]}`, prompt: "hi"},
		{name: "empty body", body: ``, reason: "empty body"},
		{name: "malformed", body: `{"messages":`, reason: "invalid json"},
		{name: "not an object", body: `[1,2]`, reason: "invalid json"},
		{name: "missing messages", body: `{}`, reason: "messages must not be empty"},
		{name: "empty messages", body: `{"messages":[]}`, reason: "messages must not be empty"},
		{name: "empty content", body: `{"messages":[{"role":"user","content":""}]}`, reason: "messages[0].content must not be empty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := DecodeRequest(strings.NewReader(tc.body))
			if tc.reason == "" {
				require.NoError(t, err)
				p, _ := req.Prompt()
				require.Equal(t, tc.prompt, p)
				return
			}
			var e *Error
			require.ErrorAs(t, err, &e)
			require.Equal(t, ErrorInvalidRequest, e.Code)
			require.Equal(t, tc.reason, e.Reason)
			require.Equal(t, http.StatusBadRequest, e.HTTPStatus())
		})
	}
}

func TestDecodeRequest_TooLarge(t *testing.T) {
	body := http.MaxBytesReader(nil, io.NopCloser(strings.NewReader(`{"messages":[{"role":"user","content":"` + strings.Repeat("x", 64) + `"}]}`)), 16)
	_, err := DecodeRequest(body)
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, http.StatusRequestEntityTooLarge, e.HTTPStatus())
}

func TestErrorStatus(t *testing.T) {
	require.Equal(t, http.StatusBadGateway, (&Error{Code: ErrorProviderUnavailable}).HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, (&Error{Code: ErrorInternal}).HTTPStatus())
	require.Equal(t, ErrorInternal, AsError(errors.New("boom")).Code)

	wrapped := &Error{Code: ErrorStreamAborted, Reason: "provider error", Err: errors.New("reset")}
	require.Equal(t, ErrorStreamAborted, AsError(wrapped).Code)
	require.Contains(t, wrapped.Error(), "reset")
}

func relayWith(p provider.Provider, timeout time.Duration) *Relay {
	return NewRelay(logging.Discard(), p, timeout)
}

func TestRelay_PreservesOrder(t *testing.T) {
	m := provider.NewMock("Hel", "", "lo, ", "world")
	var got []string
	res, err := relayWith(m, 0).Stream(context.Background(), "ping", func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo, ", "world"}, got)
	require.Equal(t, 3, res.Fragments)
	require.Equal(t, len("Hello, world"), res.Bytes)
	require.Equal(t, []string{"ping"}, m.Prompts())
}

func TestRelay_ZeroFragments(t *testing.T) {
	res, err := relayWith(provider.NewMock(), 0).Stream(context.Background(), "ping", func(string) error {
		t.Fatal("emit must not be called")
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, res.Fragments)
}

func TestRelay_ProviderUnavailable(t *testing.T) {
	m := &provider.Mock{Fragments: []string{"a"}, Err: errors.New("401 unauthorized"), FailAfter: 0}
	_, err := relayWith(m, 0).Stream(context.Background(), "ping", func(string) error { return nil })

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, ErrorProviderUnavailable, e.Code)
}

func TestRelay_StreamAborted(t *testing.T) {
	m := &provider.Mock{Fragments: []string{"a", "b"}, Err: errors.New("connection reset"), FailAfter: 1}
	res, err := relayWith(m, 0).Stream(context.Background(), "ping", func(string) error { return nil })

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, ErrorStreamAborted, e.Code)
	require.Equal(t, 1, res.Fragments)
}

func TestRelay_ClientGone(t *testing.T) {
	_, err := relayWith(provider.NewMock("a", "b"), 0).Stream(context.Background(), "ping", func(string) error {
		return errors.New("broken pipe")
	})
	require.ErrorIs(t, err, ErrClientGone)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = relayWith(provider.NewMock("a"), 0).Stream(ctx, "ping", func(string) error { return nil })
	require.ErrorIs(t, err, ErrClientGone)
}

func TestRelay_Timeout(t *testing.T) {
	m := &provider.Mock{Fragments: []string{"a"}, Gate: make(chan struct{})}
	_, err := relayWith(m, 20*time.Millisecond).Stream(context.Background(), "ping", func(string) error { return nil })

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, ErrorProviderUnavailable, e.Code)
	require.Equal(t, "provider timeout", e.Reason)
}
