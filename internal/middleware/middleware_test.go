package middleware

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyans/todo-app-sub000/internal/request"
	"github.com/google/go-cmp/cmp"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{name: "GET without header", method: http.MethodGet, want: http.StatusOK},
		{name: "POST json", method: http.MethodPost, body: `{}`, contentType: "application/json", want: http.StatusOK},
		{name: "POST json with charset", method: http.MethodPost, body: `{}`, contentType: "application/json; charset=utf-8", want: http.StatusOK},
		{name: "POST missing header", method: http.MethodPost, body: `{}`, want: http.StatusBadRequest},
		{name: "PUT form", method: http.MethodPut, body: `a=b`, contentType: "application/x-www-form-urlencoded", want: http.StatusUnsupportedMediaType},
		{name: "PATCH lookalike type", method: http.MethodPatch, body: `{}`, contentType: "application/jsonp", want: http.StatusUnsupportedMediaType},
		{name: "bodyless toggle", method: http.MethodPatch, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, "/api/todos/1/toggle", body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(okHandler).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name         string
		body         string
		hideLength   bool
		want         int
		wantEnvelope bool
	}{
		{name: "within limit", body: "0123456789", want: http.StatusOK},
		{name: "declared too large", body: strings.Repeat("x", 11), want: http.StatusRequestEntityTooLarge, wantEnvelope: true},
		{name: "streamed too large", body: strings.Repeat("x", 11), hideLength: true, want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/todos", strings.NewReader(tt.body))
			if tt.hideLength {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			MaxRequestSize(10)(readAll).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.wantEnvelope {
				var body ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Error != "request_too_large" {
					t.Errorf("body = %+v, err = %v", body, err)
				}
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hsts     bool
		tls      bool
		wantHSTS bool
	}{
		{name: "hsts disabled", hsts: false, tls: true},
		{name: "hsts over plain http", hsts: true, tls: false},
		{name: "hsts over tls", hsts: true, tls: true, wantHSTS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			w := httptest.NewRecorder()
			SecurityHeaders(tt.hsts)(okHandler).ServeHTTP(w, req)

			for _, kv := range apiSecurityHeaders {
				if got := w.Header().Get(kv[0]); got != kv[1] {
					t.Errorf("%s = %q, want %q", kv[0], got, kv[1])
				}
			}
			if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(slow).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search/popular", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"timeout"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	fast := httptest.NewRecorder()
	Timeout(time.Second)(okHandler).ServeHTTP(fast, httptest.NewRequest(http.MethodGet, "/", nil))
	if fast.Code != http.StatusOK {
		t.Errorf("fast handler status = %d, want 200", fast.Code)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	handler := CORS([]string{"https://app.example.com"}, nil)(okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "https://app.example.com", wantOrigin: "https://app.example.com"},
		{name: "disallowed origin", method: http.MethodGet, origin: "https://evil.example.com"},
		{name: "preflight", method: http.MethodOptions, origin: "https://app.example.com", wantOrigin: "https://app.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/api/v1/todos/1/status", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.method == http.MethodOptions && !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut) {
				t.Errorf("preflight should allow PUT, got %q", w.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	t.Parallel()

	got := ParseOrigins(" https://a.example.com ,https://b.example.com,, https://a.example.com")
	want := []string{"https://a.example.com", "https://b.example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseOrigins() mismatch (-want +got):\n%s", diff)
	}
	if ParseOrigins("") != nil {
		t.Error("ParseOrigins(\"\") should be nil")
	}
}

func TestRateLimit_MemoryStore(t *testing.T) {
	t.Parallel()

	mw, err := RateLimit("2-M", nil, nil)
	if err != nil {
		t.Fatalf("RateLimit() error = %v", err)
	}
	handler := mw(okHandler)

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/todos", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send("203.0.113.7"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	limited := send("203.0.113.7")
	if limited.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", limited.Code)
	}
	if limited.Header().Get("Retry-After") == "" || limited.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("headers = %v", limited.Header())
	}

	if w := send("198.51.100.1"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestRateLimit_InvalidRate(t *testing.T) {
	t.Parallel()

	if _, err := RateLimit("lots", nil, nil); err == nil {
		t.Error("RateLimit() should reject a malformed rate")
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = request.IDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/todos", nil)
	req.Header.Set(request.HeaderRequestID, "trace-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "trace-123" {
		t.Errorf("context request ID = %q, want trace-123", seen)
	}
	if got := w.Header().Get(request.HeaderRequestID); got != "trace-123" {
		t.Errorf("response %s = %q, want trace-123", request.HeaderRequestID, got)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/todos", nil))
	if seen == "" || seen == "trace-123" {
		t.Errorf("generated request ID = %q, want a fresh ID", seen)
	}
	if got := w.Header().Get(request.HeaderRequestID); got != seen {
		t.Errorf("response %s = %q, want %q", request.HeaderRequestID, got, seen)
	}
}
