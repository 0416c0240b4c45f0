package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/waseemkhan00777/askify-gemini/internal/chat"
	"github.com/waseemkhan00777/askify-gemini/pkg/types"
	"github.com/waseemkhan00777/askify-gemini/pkg/utils"
)

// Framing is how fragments are laid out in the response body.
type Framing string

const (
	// FramingRaw writes fragments back to back with no delimiters.
	FramingRaw Framing = "raw"
	// FramingSSE writes each fragment as a server-sent event.
	FramingSSE Framing = "sse"
)

// StreamErrorTrailer carries the error code when a raw stream fails after
// the first fragment.
const StreamErrorTrailer = "X-Stream-Error"

// FramingHeader tells clients which framing the body uses.
const FramingHeader = "X-Stream-Framing"

func ParseFraming(s string) (Framing, error) {
	switch Framing(strings.ToLower(strings.TrimSpace(s))) {
	case FramingRaw, "":
		return FramingRaw, nil
	case FramingSSE:
		return FramingSSE, nil
	default:
		return "", fmt.Errorf("unknown stream framing %q", s)
	}
}

// negotiateFraming honours ?framing= first, then an explicit Accept of
// text/event-stream, then the server default.
func negotiateFraming(r *http.Request, def Framing) Framing {
	if q := r.URL.Query().Get("framing"); q != "" {
		if f, err := ParseFraming(q); err == nil {
			return f
		}
	}
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return FramingSSE
	}
	return def
}

// streamWriter commits response headers on the first fragment (or at the
// end of an empty stream) so that a failure before any output can still be
// reported with a real status code.
type streamWriter struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	framing   Framing
	committed bool
}

func newStreamWriter(w http.ResponseWriter, f http.Flusher, framing Framing) *streamWriter {
	return &streamWriter{w: w, flusher: f, framing: framing}
}

func (s *streamWriter) commit() {
	if s.committed {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(FramingHeader, string(s.framing))
	if s.framing == FramingRaw {
		h.Set("Trailer", StreamErrorTrailer)
	}
	s.w.WriteHeader(http.StatusOK)
	s.committed = true
}

// Fragment writes one fragment and flushes it to the client.
func (s *streamWriter) Fragment(text string) error {
	s.commit()
	var err error
	if s.framing == FramingSSE {
		err = writeSSEData(s.w, text)
	} else {
		_, err = io.WriteString(s.w, text)
	}
	if err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Done ends a successful stream.
func (s *streamWriter) Done() {
	s.commit()
	if s.framing == FramingSSE {
		_ = writeSSE(s.w, "done", "{}")
	}
	s.flusher.Flush()
}

// Fail reports e. Before commit this is a JSON error with e's status; after
// commit it is an error event (SSE) or the X-Stream-Error trailer (raw).
func (s *streamWriter) Fail(e *chat.Error) {
	if !s.committed {
		utils.Error(s.w, e.HTTPStatus(), string(e.Code), e.Reason)
		return
	}
	if s.framing == FramingRaw {
		s.w.Header().Set(StreamErrorTrailer, string(e.Code))
		return
	}
	data, _ := json.Marshal(types.ErrorResponse{Error: string(e.Code), Reason: e.Reason})
	_ = writeSSE(s.w, "error", string(data))
	s.flusher.Flush()
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// writeSSEData emits text as one unnamed event, one data line per line of
// text. Clients rebuild the fragment by joining data lines with "\n".
func writeSSEData(w io.Writer, text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
