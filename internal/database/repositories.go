package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/uuid"
)

// TodoStore is the persistence contract the workflow and search services depend on.
// Implementations return *models.Error values for not-found and conflict outcomes.
type TodoStore interface {
	Create(ctx context.Context, todo *models.Todo) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Todo, error)
	// Find returns todos matching filter; a limit of 0 means no limit
	Find(ctx context.Context, filter models.TodoFilter, sort models.SortSpec, skip, limit int) ([]*models.Todo, error)
	Count(ctx context.Context, filter models.TodoFilter) (int, error)
	// UpdateDetails writes the editable fields and refreshes todo from the stored
	// row. Status, history and completion are never written.
	UpdateDetails(ctx context.Context, todo *models.Todo) error
	// ApplyStatusChange commits a transition only if the stored version still equals expectedVersion
	ApplyStatusChange(ctx context.Context, id uuid.UUID, expectedVersion int, change models.StatusChange) (*models.Todo, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// CountBy groups todos by "status" or "priority"
	CountBy(ctx context.Context, field string) (map[string]int, error)
	PopularTerms(ctx context.Context, limit int) ([]models.TermCount, error)
	Ping(ctx context.Context) error
}

// Ensure concrete types implement the interface
var (
	_ TodoStore = (*PostgresTodoStore)(nil)
	_ TodoStore = (*MemoryTodoStore)(nil)
)

// Group-by fields accepted by CountBy
const (
	GroupByStatus   = "status"
	GroupByPriority = "priority"
)

// prepareForInsert fills the store-managed fields of a new todo and appends
// the initial history entry when the caller has not supplied one.
func prepareForInsert(todo *models.Todo, now time.Time) {
	if todo.ID == uuid.Nil {
		todo.ID = uuid.New()
	}
	if todo.Status == "" {
		todo.Status = models.StatusTodo
	}
	if todo.Priority == "" {
		todo.Priority = models.PriorityMedium
	}
	if todo.Tags == nil {
		todo.Tags = []string{}
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	todo.UpdatedAt = todo.CreatedAt
	todo.Version = 1
	if len(todo.StatusHistory) == 0 {
		todo.StatusHistory = []models.StatusHistoryEntry{{
			Status:    todo.Status,
			ChangedAt: todo.CreatedAt,
			Reason:    models.InitialHistoryReason,
		}}
	}
	if todo.Status == models.StatusDone && todo.CompletedAt == nil {
		completed := todo.CreatedAt
		todo.CompletedAt = &completed
	}
}

func validateGroupBy(field string) error {
	switch field {
	case GroupByStatus, GroupByPriority:
		return nil
	default:
		return fmt.Errorf("unsupported group by field %q", field)
	}
}

// priorityRank orders priorities by urgency rather than lexically
func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityLow:
		return 1
	case models.PriorityMedium:
		return 2
	case models.PriorityHigh:
		return 3
	default:
		return 0
	}
}

// statusRank orders statuses along the main workflow path
func statusRank(s models.Status) int {
	for i, status := range models.ValidStatuses() {
		if status == s {
			return i + 1
		}
	}
	return 0
}
