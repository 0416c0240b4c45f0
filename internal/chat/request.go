package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/waseemkhan00777/askify-gemini/pkg/types"
)

// DecodeRequest parses a ChatRequest body and checks it can be relayed.
// Every failure is an *Error with code INVALID_REQUEST.
func DecodeRequest(body io.Reader) (types.ChatRequest, error) {
	var req types.ChatRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, newError(ErrorInvalidRequest, "empty body", err)
		}
		if errors.As(err, new(*http.MaxBytesError)) {
			return req, newError(ErrorInvalidRequest, "body too large", err)
		}
		return req, newError(ErrorInvalidRequest, "invalid json", err)
	}
	return req, ValidateRequest(req)
}

// ValidateRequest checks a decoded request. Only the first message matters;
// its role is not inspected.
func ValidateRequest(req types.ChatRequest) error {
	prompt, ok := req.Prompt()
	if !ok {
		return newError(ErrorInvalidRequest, "messages must not be empty", nil)
	}
	if prompt == "" {
		return newError(ErrorInvalidRequest, "messages[0].content must not be empty", nil)
	}
	return nil
}
