package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/cyans/todo-app-sub000/internal/database"
	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/services/search"
	"github.com/cyans/todo-app-sub000/internal/services/workflow"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

// testAPI wires the handlers to an in-memory store the same way the server does
type testAPI struct {
	router   *mux.Router
	store    *database.MemoryTodoStore
	workflow *workflow.Service
	search   *search.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := database.NewMemoryTodoStore()
	workflowService := workflow.NewService(store, nil)
	searchService := search.NewService(store, search.NewCache(search.DefaultCacheTTL, search.DefaultCacheSize), nil)

	todoHandler := NewTodoHandler(workflowService, searchService, nil)
	statusHandler := NewStatusHandler(workflowService, nil)
	searchHandler := NewSearchHandler(searchService, nil)

	r := mux.NewRouter()
	todoHandler.RegisterRoutes(r.PathPrefix("/api/todos").Subrouter())

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1Todos := v1.PathPrefix("/todos").Subrouter()
	todoHandler.RegisterRoutes(v1Todos)
	statusHandler.RegisterRoutes(v1Todos)
	searchHandler.RegisterRoutes(v1.PathPrefix("/search").Subrouter())

	return &testAPI{router: r, store: store, workflow: workflowService, search: searchService}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) create(t *testing.T, input models.CreateTodoInput) *models.Todo {
	t.Helper()
	todo, err := a.workflow.Create(context.Background(), input)
	require.NoError(t, err)
	return todo
}

// envelope mirrors Response with the payload left raw
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
	Field     string          `json:"field"`
	Timestamp string          `json:"timestamp"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, "body: %s", w.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, kind models.ErrorKind, field string) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	env := decodeEnvelope(t, w)
	require.False(t, env.Success)
	require.Equal(t, string(kind), env.Error)
	if field != "" {
		require.Equal(t, field, env.Field)
	}
}

func ptr[T any](v T) *T {
	return &v
}
