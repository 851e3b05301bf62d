package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docdir/docdir/pkg/domain"
)

// ErrorResponse is the JSON envelope every failed request answers with
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// WriteJSONError writes an error envelope with an explicit status code
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	json.NewEncoder(w).Encode(response)
}

// WriteStoreError maps a store-layer failure to a status code. A closed
// store means the process is shutting down, so the request gets a 503
// rather than a 500; the same applies when the request's context
// expired before the store finished loading.
func WriteStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	WriteJSONError(w, status, err.Error())
}
