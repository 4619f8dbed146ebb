package middleware

import (
	"net/http"

	"github.com/cyans/todo-app-sub000/internal/request"
)

// RequestID tags each request with a correlation ID. A well-formed inbound
// X-Request-ID is kept; otherwise one is generated. The ID is echoed in the
// response and stored in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := request.ID(r)
		w.Header().Set(request.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(request.WithID(r.Context(), id)))
	})
}
