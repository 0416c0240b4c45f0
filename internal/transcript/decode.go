package transcript

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textDecoder turns a byte stream into text chunk by chunk. A multi-byte
// sequence split across two chunks is held back until it is complete, and
// invalid bytes become U+FFFD.
type textDecoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newTextDecoder() *textDecoder {
	return &textDecoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text completed by p. final flushes anything held back.
func (d *textDecoder) Decode(p []byte, final bool) string {
	src := append(d.pending, p...)
	d.pending = nil

	var out strings.Builder
	for {
		if need := 3*len(src) + utf8.UTFMax; len(d.dst) < need {
			d.dst = make([]byte, need)
		}
		nDst, nSrc, err := d.t.Transform(d.dst, src, final)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]
		if err == transform.ErrShortDst && nSrc > 0 {
			continue
		}
		break
	}
	if len(src) > 0 {
		d.pending = append([]byte(nil), src...)
	}
	if final {
		d.t.Reset()
		d.pending = nil
	}
	return out.String()
}

type sseEvent struct {
	Name string
	Data string
}

// sseParser splits decoded text into server-sent events. Text may end
// mid-line; the remainder is kept for the next Feed.
type sseParser struct {
	partial string
	name    string
	data    []string
	hasData bool
}

func (p *sseParser) Feed(text string) []sseEvent {
	var events []sseEvent
	buf := p.partial + text
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(buf[:i], "\r")
		buf = buf[i+1:]
		if ev, ok := p.line(line); ok {
			events = append(events, ev)
		}
	}
	p.partial = buf
	return events
}

func (p *sseParser) line(line string) (sseEvent, bool) {
	if line == "" {
		if !p.hasData && p.name == "" {
			return sseEvent{}, false
		}
		ev := sseEvent{Name: p.name, Data: strings.Join(p.data, "\n")}
		p.name, p.data, p.hasData = "", nil, false
		return ev, true
	}
	if strings.HasPrefix(line, ":") {
		return sseEvent{}, false
	}
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")
	switch field {
	case "event":
		p.name = value
	case "data":
		p.data = append(p.data, value)
		p.hasData = true
	}
	return sseEvent{}, false
}
