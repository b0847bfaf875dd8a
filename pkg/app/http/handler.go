// Package http provides chi-compatible handler helpers and the HTTP server lifecycle.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/ministryhub/checkin-rollup/pkg/app/errors"
)

// HandlerFunc is an http handler that reports failures as an error.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError adapts an error-returning HandlerFunc to http.HandlerFunc.
//
// Usage with chi:
//
//	r.Post("/checkins", http.HandleError(handler.recordCheckIn))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// DefaultErrorHandler writes err as a JSON error body. Errors that are not a
// ServiceError are reported as a generic 500.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: "Unexpected Service Error", Code: http.StatusInternalServerError}
	if svcErr := (*apperrors.ServiceError)(nil); errors.As(err, &svcErr) {
		resp = errorResponse{Error: svcErr.Message, Code: svcErr.StatusCode()}
	}
	WriteJSON(w, resp.Code, &resp)
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
