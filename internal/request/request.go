package request

import (
	"context"
	"net"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation ID in both directions
const HeaderRequestID = "X-Request-ID"

// maxIDLength bounds inbound IDs before they reach logs
const maxIDLength = 64

type contextKey string

const idContextKey contextKey = "request_id"

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ID returns the inbound X-Request-ID when it is usable, otherwise a new UUID
func ID(r *http.Request) string {
	if id := r.Header.Get(HeaderRequestID); validID(id) {
		return id
	}
	return uuid.NewString()
}

func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, c := range id {
		if c > unicode.MaxASCII || !unicode.IsPrint(c) || c == ' ' {
			return false
		}
	}
	return true
}

// WithID returns a context carrying the request ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idContextKey, id)
}

// IDFromContext returns the request ID, or "" outside a request.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(idContextKey).(string)
	return id
}
