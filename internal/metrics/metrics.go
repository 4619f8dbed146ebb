// Package metrics records request, error and search cache counters through the
// OpenTelemetry metric API and renders a point-in-time snapshot for /metrics.
package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "github.com/cyans/todo-app-sub000/internal/metrics"

const (
	requestsName = "http.server.requests"
	durationName = "http.server.duration"
	errorsName   = "http.server.errors"
	cacheName    = "search.cache.lookups"
)

const (
	methodKey     = attribute.Key("http.request.method")
	outcomeKey    = attribute.Key("outcome")
	errorTypeKey  = attribute.Key("error.type")
	statusCodeKey = attribute.Key("http.response.status_code")
	resultKey     = attribute.Key("result")
)

// durationBuckets are the response time histogram bounds in milliseconds
var durationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder owns a meter provider whose instruments are read back on demand
type Recorder struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	cache    metric.Int64Counter
	started  time.Time
	now      func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock overrides the clock used for uptime and snapshot timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// New creates a Recorder with its own meter provider
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		reader: sdkmetric.NewManualReader(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.started = r.now()
	r.provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(r.reader))

	meter := r.provider.Meter(meterName)

	var err error
	r.requests, err = meter.Int64Counter(requestsName,
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", requestsName, err)
	}

	r.duration, err = meter.Float64Histogram(durationName,
		metric.WithDescription("HTTP response time"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", durationName, err)
	}

	r.errors, err = meter.Int64Counter(errorsName,
		metric.WithDescription("HTTP requests answered with a 4xx or 5xx status"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", errorsName, err)
	}

	r.cache, err = meter.Int64Counter(cacheName,
		metric.WithDescription("Search cache lookups by result"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", cacheName, err)
	}

	return r, nil
}

// Shutdown releases the meter provider
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

// RecordRequest records one served request. Statuses from 200 to 399 count as
// successful.
func (r *Recorder) RecordRequest(ctx context.Context, method string, status int, elapsed time.Duration) {
	outcome := "failure"
	if status >= http.StatusOK && status < http.StatusBadRequest {
		outcome = "success"
	}
	r.requests.Add(ctx, 1, metric.WithAttributes(
		methodKey.String(normalizeMethod(method)),
		outcomeKey.String(outcome),
	))
	r.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond))
}

// RecordError records a failed request. The type is whatever TagError set on
// ctx, or the status class when nothing was tagged.
func (r *Recorder) RecordError(ctx context.Context, status int) {
	errType := taggedError(ctx)
	if errType == "" {
		errType = "client_error"
		if status >= http.StatusInternalServerError {
			errType = "server_error"
		}
	}
	r.errors.Add(ctx, 1, metric.WithAttributes(
		errorTypeKey.String(errType),
		statusCodeKey.Int(status),
	))
}

// RecordCacheLookup records a search cache hit or miss
func (r *Recorder) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.Add(ctx, 1, metric.WithAttributes(resultKey.String(result)))
}

func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead:
		return method
	default:
		return "OTHER"
	}
}

// Snapshot is the /metrics document
type Snapshot struct {
	Requests      RequestStats      `json:"requests"`
	ResponseTime  ResponseTimeStats `json:"responseTime"`
	Errors        ErrorStats        `json:"errors"`
	Cache         CacheLookupStats  `json:"cache"`
	UptimeSeconds float64           `json:"uptimeSeconds"`
	Timestamp     time.Time         `json:"timestamp"`
}

// RequestStats counts served requests
type RequestStats struct {
	Total       int64            `json:"total"`
	Successful  int64            `json:"successful"`
	Failed      int64            `json:"failed"`
	ByMethod    map[string]int64 `json:"byMethod"`
	SuccessRate float64          `json:"successRate"`
	ErrorRate   float64          `json:"errorRate"`
}

// ResponseTimeStats summarizes the response time histogram. Percentiles are
// the upper bound of the bucket holding the rank, capped at the observed max.
type ResponseTimeStats struct {
	Count uint64  `json:"count"`
	AvgMs float64 `json:"avgMs"`
	MinMs float64 `json:"minMs"`
	MaxMs float64 `json:"maxMs"`
	P50Ms float64 `json:"p50Ms"`
	P95Ms float64 `json:"p95Ms"`
	P99Ms float64 `json:"p99Ms"`
}

// ErrorStats counts failed requests
type ErrorStats struct {
	Total        int64            `json:"total"`
	ByType       map[string]int64 `json:"byType"`
	ByStatusCode map[string]int64 `json:"byStatusCode"`
}

// CacheLookupStats counts search cache lookups
type CacheLookupStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hitRatio"`
}

// Snapshot collects the current cumulative values
func (r *Recorder) Snapshot(ctx context.Context) (*Snapshot, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	now := r.now()
	snap := &Snapshot{
		Requests:      RequestStats{ByMethod: map[string]int64{}},
		Errors:        ErrorStats{ByType: map[string]int64{}, ByStatusCode: map[string]int64{}},
		UptimeSeconds: now.Sub(r.started).Seconds(),
		Timestamp:     now.UTC(),
	}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch m.Name {
			case requestsName:
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					continue
				}
				for _, dp := range sum.DataPoints {
					method, _ := dp.Attributes.Value(methodKey)
					outcome, _ := dp.Attributes.Value(outcomeKey)
					snap.Requests.Total += dp.Value
					snap.Requests.ByMethod[method.AsString()] += dp.Value
					if outcome.AsString() == "success" {
						snap.Requests.Successful += dp.Value
					} else {
						snap.Requests.Failed += dp.Value
					}
				}
			case durationName:
				hist, ok := m.Data.(metricdata.Histogram[float64])
				if !ok || len(hist.DataPoints) == 0 {
					continue
				}
				snap.ResponseTime = responseTimeStats(hist.DataPoints[0])
			case errorsName:
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					continue
				}
				for _, dp := range sum.DataPoints {
					errType, _ := dp.Attributes.Value(errorTypeKey)
					status, _ := dp.Attributes.Value(statusCodeKey)
					snap.Errors.Total += dp.Value
					snap.Errors.ByType[errType.AsString()] += dp.Value
					snap.Errors.ByStatusCode[strconv.FormatInt(status.AsInt64(), 10)] += dp.Value
				}
			case cacheName:
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					continue
				}
				for _, dp := range sum.DataPoints {
					if result, _ := dp.Attributes.Value(resultKey); result.AsString() == "hit" {
						snap.Cache.Hits += dp.Value
					} else {
						snap.Cache.Misses += dp.Value
					}
				}
			}
		}
	}

	if total := snap.Requests.Total; total > 0 {
		snap.Requests.SuccessRate = percent(snap.Requests.Successful, total)
		snap.Requests.ErrorRate = percent(snap.Requests.Failed, total)
	}
	if lookups := snap.Cache.Hits + snap.Cache.Misses; lookups > 0 {
		snap.Cache.HitRatio = percent(snap.Cache.Hits, lookups)
	}
	return snap, nil
}

func percent(part, total int64) float64 {
	return float64(part) / float64(total) * 100
}

func responseTimeStats(dp metricdata.HistogramDataPoint[float64]) ResponseTimeStats {
	stats := ResponseTimeStats{Count: dp.Count}
	if dp.Count == 0 {
		return stats
	}
	stats.AvgMs = dp.Sum / float64(dp.Count)
	if v, ok := dp.Min.Value(); ok {
		stats.MinMs = v
	}
	if v, ok := dp.Max.Value(); ok {
		stats.MaxMs = v
	}
	stats.P50Ms = bucketPercentile(dp, 50, stats.MaxMs)
	stats.P95Ms = bucketPercentile(dp, 95, stats.MaxMs)
	stats.P99Ms = bucketPercentile(dp, 99, stats.MaxMs)
	return stats
}

func bucketPercentile(dp metricdata.HistogramDataPoint[float64], p, observedMax float64) float64 {
	rank := uint64(math.Ceil(p / 100 * float64(dp.Count)))
	if rank == 0 {
		rank = 1
	}

	var seen uint64
	for i, n := range dp.BucketCounts {
		seen += n
		if seen < rank {
			continue
		}
		if i < len(dp.Bounds) && dp.Bounds[i] < observedMax {
			return dp.Bounds[i]
		}
		return observedMax
	}
	return observedMax
}
