package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/uuid"
)

// Text match weights per field
const (
	titleWeight       = 10
	tagsWeight        = 8
	descriptionWeight = 5
)

// MemoryTodoStore keeps todos in process memory. Reads and writes deep-copy,
// so callers never share state with the store.
type MemoryTodoStore struct {
	mu    sync.RWMutex
	todos map[uuid.UUID]*models.Todo
	order []uuid.UUID
	now   func() time.Time
}

// MemoryOption configures a MemoryTodoStore
type MemoryOption func(*MemoryTodoStore)

// WithMemoryClock overrides the clock used for store-managed timestamps
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryTodoStore) {
		s.now = now
	}
}

// NewMemoryTodoStore creates an empty in-memory store
func NewMemoryTodoStore(opts ...MemoryOption) *MemoryTodoStore {
	s := &MemoryTodoStore{
		todos: make(map[uuid.UUID]*models.Todo),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new todo along with its initial history entry
func (s *MemoryTodoStore) Create(ctx context.Context, todo *models.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prepareForInsert(todo, s.now())
	if _, exists := s.todos[todo.ID]; exists {
		return models.NewConflictError(todo.ID)
	}

	s.todos[todo.ID] = todo.Clone()
	s.order = append(s.order, todo.ID)
	return nil
}

// GetByID retrieves a todo by ID
func (s *MemoryTodoStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	todo, ok := s.todos[id]
	if !ok {
		return nil, models.NewNotFoundError(id)
	}
	return todo.Clone(), nil
}

// Find retrieves todos matching filter in the requested order
func (s *MemoryTodoStore) Find(ctx context.Context, filter models.TodoFilter, spec models.SortSpec, skip, limit int) ([]*models.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := s.match(filter)
	s.mu.RUnlock()

	sortMatches(matched, spec)

	if skip >= len(matched) {
		return []*models.Todo{}, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*models.Todo, len(matched))
	for i, m := range matched {
		out[i] = m.todo
	}
	return out, nil
}

// Count returns the number of todos matching filter
func (s *MemoryTodoStore) Count(ctx context.Context, filter models.TodoFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.match(filter)), nil
}

// UpdateDetails writes the editable fields of a todo and refreshes todo from
// the stored row
func (s *MemoryTodoStore) UpdateDetails(ctx context.Context, todo *models.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.todos[todo.ID]
	if !ok {
		return models.NewNotFoundError(todo.ID)
	}

	update := todo.Clone()
	stored.Title = update.Title
	stored.Description = update.Description
	stored.Priority = update.Priority
	stored.DueDate = update.DueDate
	stored.Tags = update.Tags
	if stored.Tags == nil {
		stored.Tags = []string{}
	}
	stored.AssignedTo = update.AssignedTo
	stored.Version++
	stored.UpdatedAt = s.now()

	*todo = *stored.Clone()
	return nil
}

// ApplyStatusChange commits a transition if the stored version still equals expectedVersion
func (s *MemoryTodoStore) ApplyStatusChange(ctx context.Context, id uuid.UUID, expectedVersion int, change models.StatusChange) (*models.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.todos[id]
	if !ok {
		return nil, models.NewNotFoundError(id)
	}
	if stored.Version != expectedVersion {
		return nil, models.NewConflictError(id)
	}

	next := stored.Clone()
	for _, entry := range change.Entries() {
		if entry.ChangedBy != nil {
			by := *entry.ChangedBy
			entry.ChangedBy = &by
		}
		next.StatusHistory = append(next.StatusHistory, entry)
	}
	next.Status = change.Entry.Status
	if next.CompletedAt == nil && change.CompletedAt != nil {
		completed := *change.CompletedAt
		next.CompletedAt = &completed
	}
	next.Version++
	next.UpdatedAt = change.Entry.ChangedAt

	s.todos[id] = next
	return next.Clone(), nil
}

// Delete deletes a todo by ID
func (s *MemoryTodoStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[id]; !ok {
		return models.NewNotFoundError(id)
	}
	delete(s.todos, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// CountBy groups todos by status or priority
func (s *MemoryTodoStore) CountBy(ctx context.Context, field string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateGroupBy(field); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, id := range s.order {
		todo := s.todos[id]
		if field == GroupByStatus {
			counts[string(todo.Status)]++
		} else {
			counts[string(todo.Priority)]++
		}
	}
	return counts, nil
}

// PopularTerms counts alphabetic words of three or more letters across titles and descriptions
func (s *MemoryTodoStore) PopularTerms(ctx context.Context, limit int) ([]models.TermCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	counts := make(map[string]int)
	for _, id := range s.order {
		todo := s.todos[id]
		for _, token := range strings.Fields(strings.ToLower(todo.Title + " " + todo.Description)) {
			if isPopularTerm(token) {
				counts[token]++
			}
		}
	}
	s.mu.RUnlock()

	terms := make([]models.TermCount, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, models.TermCount{Term: term, Count: count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	if limit > 0 && limit < len(terms) {
		terms = terms[:limit]
	}
	return terms, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryTodoStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type scoredTodo struct {
	todo  *models.Todo
	score int
}

// match returns clones of the todos satisfying filter, in insertion order.
// Callers must hold at least the read lock.
func (s *MemoryTodoStore) match(filter models.TodoFilter) []scoredTodo {
	var terms []string
	if filter.Text != "" {
		terms = textTerms(filter.Text)
		if len(terms) == 0 {
			return nil
		}
	}

	var matched []scoredTodo
	for _, id := range s.order {
		todo := s.todos[id]
		score := 0
		if terms != nil {
			score = relevance(todo, terms)
			if score == 0 {
				continue
			}
		}
		if !matchesFields(todo, filter) {
			continue
		}
		matched = append(matched, scoredTodo{todo: todo.Clone(), score: score})
	}
	return matched
}

func matchesFields(todo *models.Todo, filter models.TodoFilter) bool {
	if filter.Contains != "" {
		needle := strings.ToLower(filter.Contains)
		if !strings.Contains(strings.ToLower(todo.Title), needle) &&
			!strings.Contains(strings.ToLower(todo.Description), needle) {
			return false
		}
	}
	if filter.Priority != nil && todo.Priority != *filter.Priority {
		return false
	}
	if filter.Status != nil && todo.Status != *filter.Status {
		return false
	}
	if filter.AssignedTo != nil && (todo.AssignedTo == nil || *todo.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if len(filter.TagsAny) > 0 && !hasAnyTag(todo.Tags, filter.TagsAny) {
		return false
	}
	if filter.DueFrom != nil && (todo.DueDate == nil || todo.DueDate.Before(*filter.DueFrom)) {
		return false
	}
	if filter.DueTo != nil && (todo.DueDate == nil || todo.DueDate.After(*filter.DueTo)) {
		return false
	}
	return true
}

func hasAnyTag(tags, wanted []string) bool {
	for _, tag := range tags {
		for _, w := range wanted {
			if tag == w {
				return true
			}
		}
	}
	return false
}

// relevance scores a todo by which fields contain each search term
func relevance(todo *models.Todo, terms []string) int {
	title := termSet(todo.Title)
	description := termSet(todo.Description)
	tags := termSet(strings.Join(todo.Tags, " "))

	score := 0
	for _, term := range terms {
		if title[term] {
			score += titleWeight
		}
		if tags[term] {
			score += tagsWeight
		}
		if description[term] {
			score += descriptionWeight
		}
	}
	return score
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, term := range textTerms(text) {
		set[term] = true
	}
	return set
}

func sortMatches(matched []scoredTodo, spec models.SortSpec) {
	desc := spec.Order != models.SortAscending

	var less func(a, b *models.Todo) bool
	switch spec.Field {
	case models.SortByRelevance:
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].score != matched[j].score {
				return matched[i].score > matched[j].score
			}
			return matched[i].todo.CreatedAt.After(matched[j].todo.CreatedAt)
		})
		return
	case "dueDate":
		// Todos without a due date sort last in either direction
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i].todo.DueDate, matched[j].todo.DueDate
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			case desc:
				return a.After(*b)
			default:
				return a.Before(*b)
			}
		})
		return
	case "updatedAt":
		less = func(a, b *models.Todo) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "priority":
		less = func(a, b *models.Todo) bool { return priorityRank(a.Priority) < priorityRank(b.Priority) }
	case "status":
		less = func(a, b *models.Todo) bool { return statusRank(a.Status) < statusRank(b.Status) }
	case "title":
		less = func(a, b *models.Todo) bool { return a.Title < b.Title }
	default:
		less = func(a, b *models.Todo) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j].todo, matched[i].todo)
		}
		return less(matched[i].todo, matched[j].todo)
	})
}
