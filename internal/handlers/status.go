package handlers

import (
	"net/http"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/services/workflow"
	"github.com/cyans/todo-app-sub000/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StatusHandler serves the status workflow endpoints
type StatusHandler struct {
	workflow *workflow.Service
	logger   *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(workflowService *workflow.Service, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{workflow: workflowService, logger: logger}
}

// RegisterRoutes registers status routes on a router carrying the /todos prefix
func (h *StatusHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/status", h.UpdateStatus).Methods(http.MethodPut)
	r.HandleFunc("/{id}/history", h.History).Methods(http.MethodGet)
	r.HandleFunc("/{id}/transitions", h.Transitions).Methods(http.MethodGet)
}

// UpdateStatusRequest represents a status transition request
type UpdateStatusRequest struct {
	Status    string     `json:"status"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	Reason    string     `json:"reason,omitempty" validate:"max=500"`
}

// TransitionsResponse lists the statuses a todo can move to next
type TransitionsResponse struct {
	TodoID           uuid.UUID       `json:"todoId"`
	CurrentStatus    models.Status   `json:"currentStatus"`
	ValidTransitions []models.Status `json:"validTransitions"`
}

// UpdateStatus requests a status transition
func (h *StatusHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Reason = validation.SanitizeText(req.Reason)
	if err := validation.Validate.Struct(req); err != nil {
		respondServiceError(w, r, h.logger, validation.FieldError(err))
		return
	}

	todo, err := h.workflow.RequestTransition(r.Context(), id, models.Status(req.Status), req.ChangedBy, req.Reason)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, todo, "Status updated successfully")
}

// History returns the status history of a todo
func (h *StatusHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	view, err := h.workflow.StatusHistory(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Transitions returns the statuses reachable from the todo's current status
func (h *StatusHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	todo, err := h.workflow.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, TransitionsResponse{
		TodoID:           todo.ID,
		CurrentStatus:    todo.Status,
		ValidTransitions: h.workflow.ValidTransitionsFrom(todo.Status),
	})
}
