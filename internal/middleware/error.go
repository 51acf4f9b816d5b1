// Package middleware provides the tenant-resolution, authentication,
// authorization, and rate-limiting HTTP middleware.
package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lachgar03/crm-project/internal/domain"
)

// errorBody is the structured error envelope shared with the HTTP
// handlers: {timestamp, status, error, message}.
type errorBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// writeError renders a domain error as the structured JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     domain.Category(err),
		Message:   domain.PublicMessage(err),
	})
}
