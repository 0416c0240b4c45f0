package utils

import (
	"encoding/json"
	"net/http"

	"github.com/waseemkhan00777/askify-gemini/pkg/types"
)

// JSON writes a JSON response with status and sensible headers.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an ErrorResponse with the given code and reason.
func Error(w http.ResponseWriter, status int, code, reason string) {
	JSON(w, status, types.ErrorResponse{Error: code, Reason: reason})
}
