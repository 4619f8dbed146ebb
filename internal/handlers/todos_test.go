package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/services/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTodo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      any
		wantCode  int
		wantKind  models.ErrorKind
		wantField string
		check     func(*testing.T, *models.Todo)
	}{
		{
			name:     "defaults",
			body:     map[string]any{"title": "  Buy milk  "},
			wantCode: http.StatusCreated,
			check: func(t *testing.T, todo *models.Todo) {
				assert.Equal(t, "Buy milk", todo.Title)
				assert.Equal(t, models.StatusTodo, todo.Status)
				assert.Equal(t, models.PriorityMedium, todo.Priority)
				require.Len(t, todo.StatusHistory, 1)
				assert.Equal(t, models.InitialHistoryReason, todo.StatusHistory[0].Reason)
			},
		},
		{
			name: "explicit fields",
			body: map[string]any{
				"title":    "Ship release",
				"status":   "in_progress",
				"priority": "high",
				"tags":     []string{"work", " work ", "", "release"},
				"dueDate":  "2026-11-01T09:00:00Z",
			},
			wantCode: http.StatusCreated,
			check: func(t *testing.T, todo *models.Todo) {
				assert.Equal(t, models.StatusInProgress, todo.Status)
				assert.Equal(t, models.PriorityHigh, todo.Priority)
				assert.Equal(t, []string{"work", "release"}, todo.Tags)
				require.NotNil(t, todo.DueDate)
				assert.True(t, todo.DueDate.Equal(time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)))
				assert.Equal(t, models.StatusInProgress, todo.StatusHistory[0].Status)
			},
		},
		{
			name:      "missing title",
			body:      map[string]any{"description": "no title"},
			wantCode:  http.StatusBadRequest,
			wantKind:  models.KindInvalidInput,
			wantField: "title",
		},
		{
			name:      "blank title",
			body:      map[string]any{"title": " \t "},
			wantCode:  http.StatusBadRequest,
			wantKind:  models.KindInvalidInput,
			wantField: "title",
		},
		{
			name:      "title too long",
			body:      map[string]any{"title": strings.Repeat("x", 201)},
			wantCode:  http.StatusBadRequest,
			wantKind:  models.KindInvalidInput,
			wantField: "title",
		},
		{
			name:      "unknown status",
			body:      map[string]any{"title": "x", "status": "finished"},
			wantCode:  http.StatusBadRequest,
			wantKind:  models.KindInvalidStatus,
			wantField: "status",
		},
		{
			name:      "unknown priority",
			body:      map[string]any{"title": "x", "priority": "urgent"},
			wantCode:  http.StatusBadRequest,
			wantKind:  models.KindInvalidInput,
			wantField: "priority",
		},
		{
			name:     "malformed body",
			body:     `{"title":`,
			wantCode: http.StatusBadRequest,
			wantKind: models.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newTestAPI(t)
			w := api.do(t, http.MethodPost, "/api/todos", tt.body)

			if tt.wantKind != "" {
				requireError(t, w, tt.wantCode, tt.wantKind, tt.wantField)
				return
			}
			require.Equal(t, tt.wantCode, w.Code, "body: %s", w.Body.String())
			tt.check(t, decodeData[*models.Todo](t, w))
		})
	}
}

func TestListTodos(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.create(t, models.CreateTodoInput{Title: "one"})
	api.create(t, models.CreateTodoInput{Title: "two", Priority: ptr(models.PriorityHigh)})
	api.create(t, models.CreateTodoInput{Title: "three", Status: ptr(models.StatusReview)})

	w := api.do(t, http.MethodGet, "/api/v1/todos?page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeData[workflow.TodoPage](t, w)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Todos, 2)

	w = api.do(t, http.MethodGet, "/api/todos?priority=high", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decodeData[workflow.TodoPage](t, w)
	require.Len(t, page.Todos, 1)
	assert.Equal(t, "two", page.Todos[0].Title)

	w = api.do(t, http.MethodGet, "/api/todos?status=review", nil)
	page = decodeData[workflow.TodoPage](t, w)
	require.Len(t, page.Todos, 1)
	assert.Equal(t, "three", page.Todos[0].Title)

	requireError(t, api.do(t, http.MethodGet, "/api/todos?status=finished", nil),
		http.StatusBadRequest, models.KindInvalidStatus, "status")
	requireError(t, api.do(t, http.MethodGet, "/api/todos?page=two", nil),
		http.StatusBadRequest, models.KindInvalidInput, "page")
}

func TestGetTodo(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	todo := api.create(t, models.CreateTodoInput{Title: "read"})

	w := api.do(t, http.MethodGet, "/api/v1/todos/"+todo.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, todo.ID, decodeData[*models.Todo](t, w).ID)

	requireError(t, api.do(t, http.MethodGet, "/api/v1/todos/00000000-0000-0000-0000-000000000001", nil),
		http.StatusNotFound, models.KindNotFound, "id")
	requireError(t, api.do(t, http.MethodGet, "/api/v1/todos/not-a-uuid", nil),
		http.StatusNotFound, models.KindNotFound, "id")
}

func TestUpdateTodo(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		body      any
		wantKind  models.ErrorKind
		wantField string
		check     func(*testing.T, *models.Todo)
	}{
		{
			name: "edits details",
			body: map[string]any{"title": "Buy oat milk", "priority": "low", "tags": []string{"shop"}},
			check: func(t *testing.T, todo *models.Todo) {
				assert.Equal(t, "Buy oat milk", todo.Title)
				assert.Equal(t, models.PriorityLow, todo.Priority)
				assert.Equal(t, []string{"shop"}, todo.Tags)
				assert.Equal(t, "keep me", todo.Description)
				assert.NotNil(t, todo.DueDate)
			},
		},
		{
			name: "null clears the due date",
			body: `{"dueDate": null}`,
			check: func(t *testing.T, todo *models.Todo) {
				assert.Nil(t, todo.DueDate)
				assert.Equal(t, "Buy milk", todo.Title)
			},
		},
		{
			name: "empty tag list clears tags",
			body: map[string]any{"tags": []string{}},
			check: func(t *testing.T, todo *models.Todo) {
				assert.Empty(t, todo.Tags)
			},
		},
		{
			name:      "status goes through the workflow",
			body:      map[string]any{"status": "done"},
			wantKind:  models.KindInvalidInput,
			wantField: "status",
		},
		{
			name:      "empty title",
			body:      map[string]any{"title": ""},
			wantKind:  models.KindInvalidInput,
			wantField: "title",
		},
		{
			name:      "bad priority",
			body:      map[string]any{"priority": "urgent"},
			wantKind:  models.KindInvalidInput,
			wantField: "priority",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newTestAPI(t)
			todo := api.create(t, models.CreateTodoInput{
				Title:       "Buy milk",
				Description: "keep me",
				DueDate:     &due,
				Tags:        []string{"home"},
			})

			w := api.do(t, http.MethodPut, "/api/todos/"+todo.ID.String(), tt.body)
			if tt.wantKind != "" {
				requireError(t, w, http.StatusBadRequest, tt.wantKind, tt.wantField)
				stored, err := api.store.GetByID(t.Context(), todo.ID)
				require.NoError(t, err)
				assert.Equal(t, models.StatusTodo, stored.Status)
				return
			}
			require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
			tt.check(t, decodeData[*models.Todo](t, w))
		})
	}
}

func TestDeleteTodo(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	todo := api.create(t, models.CreateTodoInput{Title: "gone soon"})
	path := "/api/todos/" + todo.ID.String()

	w := api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	requireError(t, api.do(t, http.MethodGet, path, nil), http.StatusNotFound, models.KindNotFound, "")
	requireError(t, api.do(t, http.MethodDelete, path, nil), http.StatusNotFound, models.KindNotFound, "")
}

func TestToggleTodo(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	todo := api.create(t, models.CreateTodoInput{Title: "toggle me"})
	path := "/api/todos/" + todo.ID.String() + "/toggle"

	w := api.do(t, http.MethodPatch, path, nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	done := decodeData[*models.Todo](t, w)
	assert.Equal(t, models.StatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)

	var walked []models.Status
	for _, entry := range done.StatusHistory {
		walked = append(walked, entry.Status)
	}
	assert.Equal(t, []models.Status{models.StatusTodo, models.StatusInProgress, models.StatusReview, models.StatusDone}, walked)

	w = api.do(t, http.MethodPatch, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reopened := decodeData[*models.Todo](t, w)
	assert.Equal(t, models.StatusTodo, reopened.Status)
	assert.Len(t, reopened.StatusHistory, 5)
	require.NotNil(t, reopened.CompletedAt)
	assert.True(t, reopened.CompletedAt.Equal(*done.CompletedAt), "completedAt is set once")
}

func TestStats(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.create(t, models.CreateTodoInput{Title: "a"})
	api.create(t, models.CreateTodoInput{Title: "b", Status: ptr(models.StatusDone)})
	api.create(t, models.CreateTodoInput{Title: "c", Status: ptr(models.StatusDone), Priority: ptr(models.PriorityHigh)})
	api.create(t, models.CreateTodoInput{Title: "d", Status: ptr(models.StatusArchived)})

	for _, path := range []string{"/api/todos/stats", "/api/v1/todos/stats"} {
		w := api.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		stats := decodeData[models.TodoStatistics](t, w)

		assert.Equal(t, 4, stats.Total)
		assert.Equal(t, 2, stats.Completed)
		assert.Equal(t, 50, stats.CompletionRate)
		assert.Equal(t, map[models.Status]int{
			models.StatusTodo:       1,
			models.StatusInProgress: 0,
			models.StatusReview:     0,
			models.StatusDone:       2,
			models.StatusArchived:   1,
		}, stats.ByStatus)
		assert.Equal(t, 1, stats.ByPriority[models.PriorityHigh])
	}
}

func TestSearchTodos_QueryString(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.create(t, models.CreateTodoInput{Title: "Fix login bug", Tags: []string{"work"}, Priority: ptr(models.PriorityHigh)})
	api.create(t, models.CreateTodoInput{Title: "Write bug report", Tags: []string{"work"}})
	api.create(t, models.CreateTodoInput{Title: "Water plants", Tags: []string{"home"}})

	w := api.do(t, http.MethodGet, "/api/todos/search?q=bug&priority=high", nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	result := decodeData[models.SearchResult](t, w)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Fix login bug", result.Results[0].Title)
	assert.Equal(t, 1, result.Metadata.TotalCount)

	w = api.do(t, http.MethodGet, "/api/todos/search?tags=home,garden&limit=5", nil)
	result = decodeData[models.SearchResult](t, w)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Water plants", result.Results[0].Title)
	assert.Equal(t, 5, result.Metadata.Limit)

	tests := []struct {
		query string
		field string
	}{
		{query: "limit=ten", field: "limit"},
		{query: "limit=500", field: "limit"},
		{query: "dueDateFrom=tomorrow", field: "dueDateFrom"},
		{query: "assignedTo=bob", field: "assignedTo"},
		{query: "sortBy=color", field: "sortBy"},
		{query: "status=finished", field: "status"},
	}
	for _, tt := range tests {
		requireError(t, api.do(t, http.MethodGet, "/api/todos/search?"+tt.query, nil),
			http.StatusBadRequest, models.KindInvalidCriteria, tt.field)
	}
}
