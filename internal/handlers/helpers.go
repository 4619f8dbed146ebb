package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	logpkg "github.com/cyans/todo-app-sub000/internal/logger"
	"github.com/cyans/todo-app-sub000/internal/metrics"
	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/request"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxErrorMessageLength bounds messages echoed to clients
const maxErrorMessageLength = 200

// Response is the envelope every API endpoint answers with
type Response struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Field     string `json:"field,omitempty"`
	Timestamp string `json:"timestamp"`
}

// respondJSON sends a success envelope
func respondJSON(w http.ResponseWriter, status int, data any) {
	respondEnvelope(w, status, Response{Success: true, Data: data})
}

// respondMessage sends a success envelope carrying a message
func respondMessage(w http.ResponseWriter, status int, data any, message string) {
	respondEnvelope(w, status, Response{Success: true, Data: data, Message: message})
}

// respondJSONError sends an error envelope with a sanitized message
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	respondEnvelope(w, status, Response{
		Error:   errorType,
		Message: logpkg.SanitizeString(message, maxErrorMessageLength),
	})
}

func respondEnvelope(w http.ResponseWriter, status int, response Response) {
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// statusForKind maps typed error kinds to HTTP status codes
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidStatus, models.KindInvalidTransition, models.KindInvalidCriteria, models.KindInvalidInput:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError translates a service error into an error envelope.
// Server-side failures are logged and answered without internal detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) || statusForKind(typed.Kind) == http.StatusInternalServerError {
		metrics.TagError(r.Context(), string(models.KindQueryExecution))
		logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("request_id", request.IDFromContext(r.Context())),
			zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, string(models.KindQueryExecution), "An internal error occurred")
		return
	}

	metrics.TagError(r.Context(), string(typed.Kind))
	respondEnvelope(w, statusForKind(typed.Kind), Response{
		Error:   string(typed.Kind),
		Message: logpkg.SanitizeString(typed.Message, maxErrorMessageLength),
		Field:   typed.Field,
	})
}

// decodeJSON reads a JSON body into dst. Oversized bodies are reported as 413;
// anything else that fails to decode becomes an invalid_input error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		if errors.Is(err, io.EOF) {
			respondJSONError(w, http.StatusBadRequest, string(models.KindInvalidInput), "Request body is required")
			return false
		}
		respondJSONError(w, http.StatusBadRequest, string(models.KindInvalidInput), "Invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} route variable. A malformed ID cannot name a stored
// todo, so it is reported as not found.
func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, models.NewNotFoundError(logpkg.SanitizeString(raw, 64))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
