package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/services/search"
	"github.com/cyans/todo-app-sub000/internal/services/workflow"
	"github.com/cyans/todo-app-sub000/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TodoHandler serves todo CRUD, statistics and query-string search
type TodoHandler struct {
	workflow *workflow.Service
	search   *search.Service
	logger   *zap.Logger
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(workflowService *workflow.Service, searchService *search.Service, logger *zap.Logger) *TodoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoHandler{
		workflow: workflowService,
		search:   searchService,
		logger:   logger,
	}
}

// RegisterRoutes registers todo routes on a router already carrying the
// /todos prefix. Fixed paths are registered before /{id} so they win.
func (h *TodoHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTodos).Methods(http.MethodGet)
	r.HandleFunc("", h.CreateTodo).Methods(http.MethodPost)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/search", h.SearchTodos).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.GetTodo).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.UpdateTodo).Methods(http.MethodPut)
	r.HandleFunc("/{id}", h.DeleteTodo).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/toggle", h.ToggleTodo).Methods(http.MethodPatch)
}

// CreateTodoRequest represents a create todo request
type CreateTodoRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=1000"`
	Status      string     `json:"status,omitempty" validate:"omitempty,todo_status"`
	Priority    string     `json:"priority,omitempty" validate:"omitempty,todo_priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
}

// optionalTime tells an absent dueDate apart from an explicit null
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// UpdateTodoRequest represents an update todo request. Status is accepted only
// so it can be rejected with a pointer to the status endpoint.
type UpdateTodoRequest struct {
	Title       *string      `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=1000"`
	Priority    *string      `json:"priority,omitempty" validate:"omitempty,todo_priority"`
	DueDate     optionalTime `json:"dueDate"`
	Tags        *[]string    `json:"tags,omitempty"`
	AssignedTo  *uuid.UUID   `json:"assignedTo,omitempty"`
	Status      *string      `json:"status,omitempty"`
}

// ListTodos lists todos with optional status and priority filters
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter workflow.ListFilter

	if s := q.Get("status"); s != "" {
		status := models.Status(s)
		filter.Status = &status
	}
	if p := q.Get("priority"); p != "" {
		priority := models.Priority(p)
		filter.Priority = &priority
	}

	page, _, err := queryInt(r, "page")
	if err != nil {
		respondServiceError(w, r, h.logger, models.NewInvalidInputError("page", "must be an integer"))
		return
	}
	pageSize, _, err := queryInt(r, "page_size")
	if err != nil {
		respondServiceError(w, r, h.logger, models.NewInvalidInputError("page_size", "must be an integer"))
		return
	}
	filter.Page = page
	filter.PageSize = pageSize

	result, err := h.workflow.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateTodo creates a new todo
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var req CreateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Title = validation.SanitizeText(req.Title)
	req.Description = validation.SanitizeText(req.Description)
	if err := validation.Validate.Struct(req); err != nil {
		respondServiceError(w, r, h.logger, validation.FieldError(err))
		return
	}

	input := models.CreateTodoInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		AssignedTo:  req.AssignedTo,
	}
	if req.Status != "" {
		status := models.Status(req.Status)
		input.Status = &status
	}
	if req.Priority != "" {
		priority := models.Priority(req.Priority)
		input.Priority = &priority
	}

	todo, err := h.workflow.Create(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusCreated, todo, "Todo created successfully")
}

// GetTodo returns one todo
func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, todo)
}

// UpdateTodo edits todo details
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	var req UpdateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != nil {
		respondServiceError(w, r, h.logger,
			models.NewInvalidInputError("status", "use PUT /api/v1/todos/{id}/status to change status"))
		return
	}

	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		req.Title = &title
	}
	if req.Description != nil {
		description := validation.SanitizeText(*req.Description)
		req.Description = &description
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondServiceError(w, r, h.logger, validation.FieldError(err))
		return
	}

	patch := models.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
	}
	if req.Priority != nil {
		priority := models.Priority(*req.Priority)
		patch.Priority = &priority
	}
	if req.DueDate.Set {
		patch.DueDate = req.DueDate.Value
		patch.ClearDue = req.DueDate.Value == nil
	}
	if req.Tags != nil {
		patch.Tags = *req.Tags
		patch.SetTags = true
	}

	todo, err := h.workflow.Update(r.Context(), id, patch)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, todo, "Todo updated successfully")
}

// DeleteTodo removes a todo
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	if err := h.workflow.Delete(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleTodo flips a todo between done and todo
func (h *TodoHandler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	todo, err := h.workflow.Toggle(r.Context(), id, nil)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, todo)
}

// Stats returns counts by status and priority
func (h *TodoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.workflow.Statistics(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// SearchTodos runs a search described by query parameters
func (h *TodoHandler) SearchTodos(w http.ResponseWriter, r *http.Request) {
	criteria, opts, err := parseSearchQuery(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.search.SearchWithMetadata(r.Context(), criteria, opts)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
