package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cyans/todo-app-sub000/internal/database"
	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	bogusStatus := models.Status("finished")
	bogusPriority := models.Priority("urgent")

	tests := []struct {
		name     string
		input    models.CreateTodoInput
		wantKind models.ErrorKind
		field    string
	}{
		{"blank title", models.CreateTodoInput{Title: "   "}, models.KindInvalidInput, "title"},
		{"long title", models.CreateTodoInput{Title: strings.Repeat("a", models.MaxTitleLength+1)}, models.KindInvalidInput, "title"},
		{"long description", models.CreateTodoInput{Title: "ok", Description: strings.Repeat("d", models.MaxDescriptionLength+1)}, models.KindInvalidInput, "description"},
		{"invalid status", models.CreateTodoInput{Title: "ok", Status: &bogusStatus}, models.KindInvalidStatus, "status"},
		{"invalid priority", models.CreateTodoInput{Title: "ok", Priority: &bogusPriority}, models.KindInvalidInput, "priority"},
		{"long tag", models.CreateTodoInput{Title: "ok", Tags: []string{strings.Repeat("t", MaxTagLength+1)}}, models.KindInvalidInput, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := NewService(database.NewMemoryTodoStore(), nil)
			_, err := svc.Create(context.Background(), tt.input)

			var typed *models.Error
			if !errors.As(err, &typed) {
				t.Fatalf("error = %v, want *models.Error", err)
			}
			if typed.Kind != tt.wantKind || typed.Field != tt.field {
				t.Errorf("error = %s/%s, want %s/%s", typed.Kind, typed.Field, tt.wantKind, tt.field)
			}
		})
	}
}

func TestCreate_NormalizesInput(t *testing.T) {
	t.Parallel()

	high := models.PriorityHigh
	svc := NewService(database.NewMemoryTodoStore(), nil)

	todo, err := svc.Create(context.Background(), models.CreateTodoInput{
		Title:    "  Plan sprint  ",
		Priority: &high,
		Tags:     []string{" work ", "", "planning", "work"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if todo.Title != "Plan sprint" {
		t.Errorf("Title = %q, want trimmed", todo.Title)
	}
	if todo.Priority != models.PriorityHigh {
		t.Errorf("Priority = %s, want high", todo.Priority)
	}
	if diff := cmp.Diff([]string{"work", "planning"}, todo.Tags); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_DoneSetsCompletedAt(t *testing.T) {
	t.Parallel()

	svc := NewService(database.NewMemoryTodoStore(), nil)
	todo := createTodo(t, svc, statusPtr(models.StatusDone))

	if todo.CompletedAt == nil {
		t.Fatal("CompletedAt should be set for a todo created as done")
	}
	if todo.StatusHistory[0].Status != models.StatusDone {
		t.Errorf("initial entry status = %s, want done", todo.StatusHistory[0].Status)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(database.NewMemoryTodoStore(), nil)
	todo := createTodo(t, svc, nil)

	title := "Renamed"
	low := models.PriorityLow
	updated, err := svc.Update(ctx, todo.ID, models.TodoPatch{
		Title:    &title,
		Priority: &low,
		Tags:     []string{"a", "a", "b"},
		SetTags:  true,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Renamed" || updated.Priority != models.PriorityLow {
		t.Errorf("updated = %+v", updated)
	}
	if diff := cmp.Diff([]string{"a", "b"}, updated.Tags); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
	if updated.Status != models.StatusTodo || len(updated.StatusHistory) != 1 {
		t.Errorf("Update touched workflow state: %+v", updated)
	}

	empty := ""
	if _, err := svc.Update(ctx, todo.ID, models.TodoPatch{Title: &empty}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("blank title error = %v, want invalid input", err)
	}
	if _, err := svc.Update(ctx, uuid.New(), models.TodoPatch{Title: &title}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing todo error = %v, want not found", err)
	}
}

func TestUpdate_ReturnsStoredWorkflowState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSpyStore()
	svc := NewService(store, nil)
	todo := createTodo(t, svc, nil)

	// A transition lands between the read and the write of the edit
	store.beforeUpdate = func() {
		store.beforeUpdate = nil
		if _, err := svc.RequestTransition(ctx, todo.ID, models.StatusInProgress, nil, "started"); err != nil {
			t.Errorf("RequestTransition() error = %v", err)
		}
	}

	title := "Renamed mid-flight"
	updated, err := svc.Update(ctx, todo.ID, models.TodoPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != title {
		t.Errorf("Title = %q, want %q", updated.Title, title)
	}
	if updated.Status != models.StatusInProgress || len(updated.StatusHistory) != 2 {
		t.Errorf("Update returned stale workflow state: status=%s history=%d",
			updated.Status, len(updated.StatusHistory))
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(database.NewMemoryTodoStore(), nil)
	todo := createTodo(t, svc, nil)

	if err := svc.Delete(ctx, todo.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.GetByID(ctx, todo.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want not found", err)
	}
	if err := svc.Delete(ctx, todo.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(database.NewMemoryTodoStore(), nil)
	for i := 0; i < 5; i++ {
		createTodo(t, svc, nil)
	}
	createTodo(t, svc, statusPtr(models.StatusReview))

	page, err := svc.List(ctx, ListFilter{Page: 2, PageSize: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 6 || page.TotalPages != 2 || len(page.Todos) != 2 {
		t.Errorf("page = total %d, pages %d, items %d; want 6, 2, 2", page.Total, page.TotalPages, len(page.Todos))
	}

	review := models.StatusReview
	filtered, err := svc.List(ctx, ListFilter{Status: &review})
	if err != nil {
		t.Fatalf("List(status) error = %v", err)
	}
	if filtered.Total != 1 || filtered.PageSize != DefaultPageSize {
		t.Errorf("filtered = total %d, page size %d", filtered.Total, filtered.PageSize)
	}

	bogus := models.Status("nope")
	if _, err := svc.List(ctx, ListFilter{Status: &bogus}); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("List(bogus) error = %v, want invalid status", err)
	}
}

func TestStatusHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(database.NewMemoryTodoStore(), nil)
	todo := createTodo(t, svc, nil)
	if _, err := svc.RequestTransition(ctx, todo.ID, models.StatusInProgress, nil, "started"); err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}

	view, err := svc.StatusHistory(ctx, todo.ID)
	if err != nil {
		t.Fatalf("StatusHistory() error = %v", err)
	}
	if view.CurrentStatus != models.StatusInProgress || len(view.StatusHistory) != 2 {
		t.Errorf("view = %+v", view)
	}
	if diff := cmp.Diff(models.ValidTransitionsFrom(models.StatusInProgress), view.ValidTransitions); diff != "" {
		t.Errorf("ValidTransitions mismatch (-want +got):\n%s", diff)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(database.NewMemoryTodoStore(), nil)

	empty, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if len(empty.ByStatus) != 5 || empty.CompletionRate != 0 {
		t.Errorf("empty stats = %+v, want zero-filled", empty)
	}

	createTodo(t, svc, nil)
	createTodo(t, svc, nil)
	createTodo(t, svc, statusPtr(models.StatusDone))

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	want := map[models.Status]int{
		models.StatusTodo: 2, models.StatusInProgress: 0, models.StatusReview: 0,
		models.StatusDone: 1, models.StatusArchived: 0,
	}
	if diff := cmp.Diff(want, stats.ByStatus); diff != "" {
		t.Errorf("ByStatus mismatch (-want +got):\n%s", diff)
	}
	if stats.Total != 3 || stats.Completed != 1 || stats.CompletionRate != 33 {
		t.Errorf("totals = %d/%d/%d%%, want 3/1/33%%", stats.Total, stats.Completed, stats.CompletionRate)
	}
	if stats.ByPriority[models.PriorityMedium] != 3 || stats.ByPriority[models.PriorityHigh] != 0 {
		t.Errorf("ByPriority = %v", stats.ByPriority)
	}
}
