package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyans/todo-app-sub000/internal/metrics"
	"github.com/google/go-cmp/cmp"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	recorder, err := metrics.New()
	if err != nil {
		t.Fatalf("metrics.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = recorder.Shutdown(context.Background())
	})

	handler := Metrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests", nil)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	for _, path := range []string{"/ok", "/limited", "/broken"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	snap, err := recorder.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Requests.Total != 3 || snap.Requests.Successful != 1 {
		t.Errorf("requests total=%d successful=%d, want 3 and 1", snap.Requests.Total, snap.Requests.Successful)
	}
	want := map[string]int64{"rate_limited": 1, "server_error": 1}
	if diff := cmp.Diff(want, snap.Errors.ByType); diff != "" {
		t.Errorf("errors by type mismatch (-want +got):\n%s", diff)
	}
}
