// Package httpjson holds the JSON plumbing shared by the HTTP handlers: response envelopes and
// schema-validated request decoding.
package httpjson

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope is the part every response body carries.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// JSON writes payload with the given status code.
func JSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response failed", "status", code, "error", err)
	}
}

// Error writes {success:false, message} with the given status code.
func Error(w http.ResponseWriter, code int, message string) {
	JSON(w, code, Envelope{Success: false, Message: message})
}

// OK writes {success:true, message} with status 200.
func OK(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}
