package middleware

import (
	"net/http"
	"time"

	"github.com/cyans/todo-app-sub000/internal/metrics"
)

// Metrics records a request sample for every request and an error sample for
// every 4xx or 5xx answer
func Metrics(recorder *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := metrics.TrackErrors(r.Context())
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			recorder.RecordRequest(ctx, r.Method, wrapped.statusCode, time.Since(start))
			if wrapped.statusCode >= http.StatusBadRequest {
				recorder.RecordError(ctx, wrapped.statusCode)
			}
		})
	}
}
