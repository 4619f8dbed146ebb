package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const todoColumns = `id, title, description, status, priority, due_date, tags, assigned_to,
	completed_at, status_history, version, created_at, updated_at`

// PostgresTodoStore handles todo database operations
type PostgresTodoStore struct {
	db  *DB
	now func() time.Time
}

// NewPostgresTodoStore creates a new Postgres-backed todo store
func NewPostgresTodoStore(db *DB) *PostgresTodoStore {
	return &PostgresTodoStore{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	todo := &models.Todo{}
	var (
		dueDate     sql.NullTime
		completedAt sql.NullTime
		assignedTo  uuid.NullUUID
		historyJSON []byte
	)

	err := row.Scan(
		&todo.ID,
		&todo.Title,
		&todo.Description,
		&todo.Status,
		&todo.Priority,
		&dueDate,
		pq.Array(&todo.Tags),
		&assignedTo,
		&completedAt,
		&historyJSON,
		&todo.Version,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(historyJSON, &todo.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}
	if dueDate.Valid {
		todo.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		todo.CompletedAt = &completedAt.Time
	}
	if assignedTo.Valid {
		todo.AssignedTo = &assignedTo.UUID
	}
	if todo.Tags == nil {
		todo.Tags = []string{}
	}

	return todo, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Create inserts a new todo along with its initial history entry
func (s *PostgresTodoStore) Create(ctx context.Context, todo *models.Todo) error {
	prepareForInsert(todo, s.now())

	historyJSON, err := json.Marshal(todo.StatusHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal status history: %w", err)
	}

	query := `
		INSERT INTO todos (` + todoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		todo.ID,
		todo.Title,
		todo.Description,
		todo.Status,
		todo.Priority,
		nullTime(todo.DueDate),
		pq.Array(todo.Tags),
		nullUUID(todo.AssignedTo),
		nullTime(todo.CompletedAt),
		historyJSON,
		todo.Version,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}

	return nil
}

// GetByID retrieves a todo by ID
func (s *PostgresTodoStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1`

	todo, err := scanTodo(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}

	return todo, nil
}

// Find retrieves todos matching filter in the requested order
func (s *PostgresTodoStore) Find(ctx context.Context, filter models.TodoFilter, sort models.SortSpec, skip, limit int) ([]*models.Todo, error) {
	where := buildWhere(filter)
	query := `SELECT ` + todoColumns + ` FROM todos` + where.SQL() + orderBy(sort, where)

	if skip > 0 {
		query += " OFFSET " + where.bind(skip)
	}
	if limit > 0 {
		query += " LIMIT " + where.bind(limit)
	}

	rows, err := s.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todos: %w", err)
	}

	return todos, nil
}

// Count returns the number of todos matching filter
func (s *PostgresTodoStore) Count(ctx context.Context, filter models.TodoFilter) (int, error) {
	where := buildWhere(filter)

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos`+where.SQL(), where.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count todos: %w", err)
	}

	return count, nil
}

// UpdateDetails writes the editable fields of a todo and refreshes todo from
// the stored row, so status changes committed meanwhile are reflected
func (s *PostgresTodoStore) UpdateDetails(ctx context.Context, todo *models.Todo) error {
	query := `
		UPDATE todos
		SET title = $2, description = $3, priority = $4, due_date = $5, tags = $6, assigned_to = $7,
		    version = version + 1, updated_at = $8
		WHERE id = $1
		RETURNING ` + todoColumns

	stored, err := scanTodo(s.db.QueryRowContext(ctx, query,
		todo.ID,
		todo.Title,
		todo.Description,
		todo.Priority,
		nullTime(todo.DueDate),
		pq.Array(todo.Tags),
		nullUUID(todo.AssignedTo),
		s.now(),
	))

	if errors.Is(err, sql.ErrNoRows) {
		return models.NewNotFoundError(todo.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}

	*todo = *stored
	return nil
}

// ApplyStatusChange atomically sets the status, appends the history entries and
// records the completion time if none is stored yet. The write is conditional on
// the version the caller read.
func (s *PostgresTodoStore) ApplyStatusChange(ctx context.Context, id uuid.UUID, expectedVersion int, change models.StatusChange) (*models.Todo, error) {
	entryJSON, err := json.Marshal(change.Entries())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status history entries: %w", err)
	}

	query := `
		UPDATE todos
		SET status = $1,
		    status_history = status_history || $2::jsonb,
		    completed_at = COALESCE(completed_at, $3),
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5 AND version = $6
		RETURNING ` + todoColumns

	todo, err := scanTodo(s.db.QueryRowContext(ctx, query,
		change.Entry.Status,
		entryJSON,
		nullTime(change.CompletedAt),
		change.Entry.ChangedAt,
		id,
		expectedVersion,
	))
	if errors.Is(err, sql.ErrNoRows) {
		// Either the row is gone or another writer bumped the version
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM todos WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check todo existence: %w", err)
		}
		if !exists {
			return nil, models.NewNotFoundError(id)
		}
		return nil, models.NewConflictError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply status change: %w", err)
	}

	return todo, nil
}

// Delete deletes a todo by ID
func (s *PostgresTodoStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewNotFoundError(id)
	}

	return nil
}

// CountBy groups todos by status or priority
func (s *PostgresTodoStore) CountBy(ctx context.Context, field string) (map[string]int, error) {
	if err := validateGroupBy(field); err != nil {
		return nil, err
	}

	// field is one of two fixed column names
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM todos GROUP BY %s`, field, field))
	if err != nil {
		return nil, fmt.Errorf("failed to count todos by %s: %w", field, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", field, err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", field, err)
	}

	return counts, nil
}

// PopularTerms counts alphabetic words of three or more letters across titles and descriptions
func (s *PostgresTodoStore) PopularTerms(ctx context.Context, limit int) ([]models.TermCount, error) {
	query := `
		SELECT term, COUNT(*) AS count
		FROM (
			SELECT regexp_split_to_table(lower(title || ' ' || description), '\s+') AS term
			FROM todos
		) words
		WHERE term ~ '^[a-z]{3,}$'
		GROUP BY term
		ORDER BY count DESC, term ASC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate popular terms: %w", err)
	}
	defer rows.Close()

	terms := []models.TermCount{}
	for rows.Next() {
		var tc models.TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan popular term: %w", err)
		}
		terms = append(terms, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating popular terms: %w", err)
	}

	return terms, nil
}

// Ping reports whether the database is reachable
func (s *PostgresTodoStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
