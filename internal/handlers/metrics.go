package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cyans/todo-app-sub000/internal/metrics"
	"go.uber.org/zap"
)

// MetricsHandler serves the operational metrics snapshot
type MetricsHandler struct {
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// NewMetricsHandler creates a metrics handler
func NewMetricsHandler(recorder *metrics.Recorder, logger *zap.Logger) *MetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsHandler{recorder: recorder, logger: logger}
}

// Snapshot handles the /metrics endpoint
func (h *MetricsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.recorder.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(snap)
}
