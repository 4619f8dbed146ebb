package workflow

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cyans/todo-app-sub000/internal/database"
	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxTags         = 20
	MaxTagLength    = 50
)

// ListFilter selects a page of todos for List
type ListFilter struct {
	Status   *models.Status
	Priority *models.Priority
	Page     int
	PageSize int
}

// TodoPage is one page of todos with its totals
type TodoPage struct {
	Todos      []*models.Todo `json:"todos"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// Create persists a new todo. Its status defaults to todo and the store records
// the initial history entry.
func (s *Service) Create(ctx context.Context, input models.CreateTodoInput) (*models.Todo, error) {
	todo := &models.Todo{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      models.StatusTodo,
		Priority:    models.PriorityMedium,
		DueDate:     input.DueDate,
		AssignedTo:  input.AssignedTo,
	}

	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, models.NewInvalidStatusError(string(*input.Status))
		}
		todo.Status = *input.Status
	}
	if input.Priority != nil {
		todo.Priority = *input.Priority
	}

	tags, err := normalizeTags(input.Tags)
	if err != nil {
		return nil, err
	}
	todo.Tags = tags

	if err := validateDetails(todo); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, todo); err != nil {
		return nil, storeError("create todo", err)
	}

	s.logger.Info("todo_created",
		zap.String("todo_id", todo.ID.String()),
		zap.String("status", string(todo.Status)))

	if todo.Status == models.StatusDone {
		s.scheduleArchive(ctx, todo)
	}
	return todo, nil
}

// GetByID returns one todo
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Todo, error) {
	todo, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load todo", err)
	}
	return todo, nil
}

// Update applies detail edits. Status only changes through RequestTransition.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch models.TodoPatch) (*models.Todo, error) {
	todo, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load todo", err)
	}

	if patch.Title != nil {
		todo.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		todo.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		todo.Priority = *patch.Priority
	}
	if patch.ClearDue {
		todo.DueDate = nil
	} else if patch.DueDate != nil {
		todo.DueDate = patch.DueDate
	}
	if patch.SetTags {
		tags, err := normalizeTags(patch.Tags)
		if err != nil {
			return nil, err
		}
		todo.Tags = tags
	}
	if patch.AssignedTo != nil {
		todo.AssignedTo = patch.AssignedTo
	}

	if err := validateDetails(todo); err != nil {
		return nil, err
	}

	if err := s.store.UpdateDetails(ctx, todo); err != nil {
		return nil, storeError("update todo", err)
	}

	s.logger.Info("todo_updated", zap.String("todo_id", id.String()))
	return todo, nil
}

// Delete removes a todo
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError("delete todo", err)
	}
	s.logger.Info("todo_deleted", zap.String("todo_id", id.String()))
	return nil
}

// List returns a page of todos, newest first
func (s *Service) List(ctx context.Context, f ListFilter) (*TodoPage, error) {
	if f.Status != nil && !f.Status.IsValid() {
		return nil, models.NewInvalidStatusError(string(*f.Status))
	}
	if f.Priority != nil && !f.Priority.IsValid() {
		return nil, models.NewInvalidInputError("priority", "must be one of low, medium, high")
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	filter := models.TodoFilter{Status: f.Status, Priority: f.Priority}
	sort := models.SortSpec{Field: models.DefaultSortBy, Order: models.SortDescending}

	todos, err := s.store.Find(ctx, filter, sort, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, storeError("list todos", err)
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, storeError("count todos", err)
	}

	return &TodoPage{
		Todos:      todos,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// StatusHistory returns the workflow view of one todo
func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) (*models.StatusHistoryView, error) {
	todo, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load todo", err)
	}

	return &models.StatusHistoryView{
		TodoID:           todo.ID,
		CurrentStatus:    todo.Status,
		CompletedAt:      todo.CompletedAt,
		StatusHistory:    todo.StatusHistory,
		ValidTransitions: models.ValidTransitionsFrom(todo.Status),
	}, nil
}

// Statistics counts todos by status and priority. Every status and priority is present.
func (s *Service) Statistics(ctx context.Context) (*models.TodoStatistics, error) {
	byStatus, err := s.store.CountBy(ctx, database.GroupByStatus)
	if err != nil {
		return nil, storeError("count todos by status", err)
	}
	byPriority, err := s.store.CountBy(ctx, database.GroupByPriority)
	if err != nil {
		return nil, storeError("count todos by priority", err)
	}

	stats := &models.TodoStatistics{
		ByStatus:   make(map[models.Status]int, len(models.ValidStatuses())),
		ByPriority: make(map[models.Priority]int, len(models.ValidPriorities())),
	}
	for _, status := range models.ValidStatuses() {
		stats.ByStatus[status] = byStatus[string(status)]
		stats.Total += byStatus[string(status)]
	}
	for _, priority := range models.ValidPriorities() {
		stats.ByPriority[priority] = byPriority[string(priority)]
	}
	stats.Completed = stats.ByStatus[models.StatusDone]
	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}

	return stats, nil
}

func validateDetails(todo *models.Todo) error {
	if todo.Title == "" {
		return models.NewInvalidInputError("title", "is required")
	}
	if utf8.RuneCountInString(todo.Title) > models.MaxTitleLength {
		return models.NewInvalidInputError("title", fmt.Sprintf("must be at most %d characters", models.MaxTitleLength))
	}
	if utf8.RuneCountInString(todo.Description) > models.MaxDescriptionLength {
		return models.NewInvalidInputError("description", fmt.Sprintf("must be at most %d characters", models.MaxDescriptionLength))
	}
	if !todo.Priority.IsValid() {
		return models.NewInvalidInputError("priority", "must be one of low, medium, high")
	}
	return nil
}

// normalizeTags trims tags, drops empties and removes duplicates, keeping first occurrences
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, models.NewInvalidInputError("tags", fmt.Sprintf("each tag must be at most %d characters", MaxTagLength))
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, models.NewInvalidInputError("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	return out, nil
}
