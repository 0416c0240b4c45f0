package provider

import (
	"context"
	"strings"
	"time"
)

// Echo is an offline provider that streams the prompt back word by word.
// It lets the UI be exercised without credentials.
type Echo struct {
	delay time.Duration
}

func NewEcho(delay time.Duration) *Echo { return &Echo{delay: delay} }

func (e *Echo) Name() string { return NameEcho }

func (e *Echo) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	for _, frag := range splitKeepSpace("you said: " + prompt) {
		if e.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.delay):
			}
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	return nil
}

// splitKeepSpace splits s after each run of spaces so that joining the parts
// reproduces s exactly.
func splitKeepSpace(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		j := i
		for j < len(s) && s[j] == ' ' {
			j++
		}
		out = append(out, s[:j])
		s = s[j:]
	}
	return out
}
