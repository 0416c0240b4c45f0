package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waseemkhan00777/askify-gemini/internal/provider"
)

// Relay forwards one prompt to the provider and passes each fragment on
// verbatim, in arrival order, without buffering.
type Relay struct {
	log      *slog.Logger
	provider provider.Provider
	timeout  time.Duration
}

// NewRelay builds a relay around p. timeout bounds a whole provider stream;
// zero means no bound.
func NewRelay(log *slog.Logger, p provider.Provider, timeout time.Duration) *Relay {
	return &Relay{log: log, provider: p, timeout: timeout}
}

type Result struct {
	Fragments int
	Bytes     int
	Latency   time.Duration
}

// Stream relays prompt and calls emit once per non-empty fragment.
//
// Errors are *Error values: PROVIDER_UNAVAILABLE if the provider failed
// before the first fragment, STREAM_ABORTED afterwards. If emit fails or ctx
// is cancelled by the caller the error wraps ErrClientGone instead.
func (r *Relay) Stream(ctx context.Context, prompt string, emit func(string) error) (Result, error) {
	start := time.Now()
	r.log.Debug("relay start", "provider", r.provider.Name(), "prompt_len", len(prompt))

	pctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var res Result
	var emitErr error
	err := r.provider.Stream(pctx, prompt, func(frag string) error {
		if frag == "" {
			return nil
		}
		if err := emit(frag); err != nil {
			emitErr = err
			return err
		}
		res.Fragments++
		res.Bytes += len(frag)
		return nil
	})
	res.Latency = time.Since(start)

	switch {
	case err == nil:
		r.log.Debug("relay done", "fragments", res.Fragments, "bytes", res.Bytes, "latency_ms", res.Latency.Milliseconds())
		return res, nil
	case emitErr != nil:
		return res, fmt.Errorf("%w: %v", ErrClientGone, emitErr)
	case ctx.Err() != nil:
		return res, fmt.Errorf("%w: %v", ErrClientGone, ctx.Err())
	}

	reason := "provider error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "provider timeout"
	}
	r.log.Error("relay failed", "provider", r.provider.Name(), "fragments", res.Fragments, "err", err)
	if res.Fragments == 0 {
		return res, newError(ErrorProviderUnavailable, reason, err)
	}
	return res, newError(ErrorStreamAborted, reason, err)
}
