package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority represents how urgent a todo is
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities returns all priority values
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValid reports whether p is a known priority
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

const (
	// MaxTitleLength is the maximum length for a todo title
	MaxTitleLength = 200
	// MaxDescriptionLength is the maximum length for a todo description
	MaxDescriptionLength = 1000
	// InitialHistoryReason is recorded on the history entry appended at creation
	InitialHistoryReason = "Initial creation"
)

// StatusHistoryEntry is one immutable record in a todo's status audit log
type StatusHistoryEntry struct {
	Status    Status     `json:"status"`
	ChangedAt time.Time  `json:"changedAt"`
	ChangedBy *uuid.UUID `json:"changedBy,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Todo represents a todo item
type Todo struct {
	ID            uuid.UUID            `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description,omitempty"`
	Status        Status               `json:"status"`
	Priority      Priority             `json:"priority"`
	DueDate       *time.Time           `json:"dueDate,omitempty"`
	Tags          []string             `json:"tags"`
	AssignedTo    *uuid.UUID           `json:"assignedTo,omitempty"`
	CompletedAt   *time.Time           `json:"completedAt,omitempty"`
	StatusHistory []StatusHistoryEntry `json:"statusHistory"`
	Version       int                  `json:"version"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// IsCompleted reports whether the todo is in the done state
func (t *Todo) IsCompleted() bool {
	return t.Status == StatusDone
}

// IsArchived reports whether the todo is archived
func (t *Todo) IsArchived() bool {
	return t.Status == StatusArchived
}

// LastStatusChange returns the most recent history entry, or nil for a todo
// that has not been persisted yet.
func (t *Todo) LastStatusChange() *StatusHistoryEntry {
	if len(t.StatusHistory) == 0 {
		return nil
	}
	entry := t.StatusHistory[len(t.StatusHistory)-1]
	return &entry
}

// Clone returns a deep copy of the todo
func (t *Todo) Clone() *Todo {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.StatusHistory = make([]StatusHistoryEntry, len(t.StatusHistory))
	for i, entry := range t.StatusHistory {
		c.StatusHistory[i] = entry
		if entry.ChangedBy != nil {
			by := *entry.ChangedBy
			c.StatusHistory[i].ChangedBy = &by
		}
	}
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		c.AssignedTo = &a
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StatusChange is the write applied atomically by a successful transition
type StatusChange struct {
	// Via holds intermediate steps, appended to the history before Entry
	Via   []StatusHistoryEntry
	Entry StatusHistoryEntry
	// CompletedAt is applied only when the stored value is still unset
	CompletedAt *time.Time
}

// Entries returns the history entries in the order they are appended
func (c StatusChange) Entries() []StatusHistoryEntry {
	entries := make([]StatusHistoryEntry, 0, len(c.Via)+1)
	entries = append(entries, c.Via...)
	return append(entries, c.Entry)
}

// CreateTodoInput holds the fields accepted when creating a todo
type CreateTodoInput struct {
	Title       string
	Description string
	Status      *Status
	Priority    *Priority
	DueDate     *time.Time
	Tags        []string
	AssignedTo  *uuid.UUID
}

// TodoPatch holds optional detail edits; status is changed only through transitions
type TodoPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	DueDate     *time.Time
	ClearDue    bool
	Tags        []string
	SetTags     bool
	AssignedTo  *uuid.UUID
}

// StatusHistoryView is the read model for a todo's workflow state
type StatusHistoryView struct {
	TodoID           uuid.UUID            `json:"todoId"`
	CurrentStatus    Status               `json:"currentStatus"`
	CompletedAt      *time.Time           `json:"completedAt,omitempty"`
	StatusHistory    []StatusHistoryEntry `json:"statusHistory"`
	ValidTransitions []Status             `json:"validTransitions"`
}

// TodoStatistics summarizes the stored todos
type TodoStatistics struct {
	Total          int              `json:"total"`
	ByStatus       map[Status]int   `json:"byStatus"`
	ByPriority     map[Priority]int `json:"byPriority"`
	Completed      int              `json:"completed"`
	CompletionRate int              `json:"completionRate"`
}
