package chat

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrorProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrorStreamAborted       ErrorCode = "STREAM_ABORTED"
	ErrorInternal            ErrorCode = "INTERNAL_ERROR"
)

// ErrClientGone is returned by Relay.Stream when the caller stopped reading.
var ErrClientGone = errors.New("chat: client went away")

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("chat: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("chat: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus is the status used when the error is reported before any
// fragment has been written.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrorInvalidRequest:
		if errors.As(e.Err, new(*http.MaxBytesError)) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case ErrorProviderUnavailable, ErrorStreamAborted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AsError returns err as *Error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(ErrorInternal, "unexpected", err)
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
