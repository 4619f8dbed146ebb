package middleware

import (
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout is the default request timeout (30 seconds)
	DefaultRequestTimeout = 30 * time.Second
)

// timeoutBody is written by http.TimeoutHandler with a 503 status
const timeoutBody = `{"success":false,"error":"timeout","message":"Request timed out"}`

// Timeout bounds handler execution. The handler's context is cancelled at the
// deadline so in-flight store queries stop too.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
