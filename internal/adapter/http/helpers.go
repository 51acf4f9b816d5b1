package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lachgar03/crm-project/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, domain.E(domain.KindValidation, "request body too large"))
		} else {
			writeError(w, domain.E(domain.KindValidation, "invalid request body"))
		}
		return v, false
	}
	return v, true
}

// idParam parses the named chi URL parameter as a positive int64.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, domain.Ef(domain.KindValidation, "invalid %s", name))
		return 0, false
	}
	return id, true
}

// errorBody is the structured error envelope shared with the middleware
// layer: {timestamp, status, error, message}.
type errorBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError renders a domain error as the structured JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	writeJSON(w, status, errorBody{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     domain.Category(err),
		Message:   domain.PublicMessage(err),
	})
}
