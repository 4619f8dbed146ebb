// Package workflow enforces the todo status lifecycle: legal transitions,
// the append-only status history, and the one-time completion timestamp.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/cyans/todo-app-sub000/internal/database"
	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/queue"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/cyans/todo-app-sub000/internal/services/workflow"

	// maxTransitionAttempts bounds the compare-and-swap retry loop
	maxTransitionAttempts = 3

	// ToggleReason is recorded on history entries written by Toggle
	ToggleReason = "Toggled"
)

// Service is the status workflow engine
type Service struct {
	store        database.TodoStore
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
	archiver     queue.Enqueuer
	archiveAfter time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the clock used for history timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithArchiveScheduler enqueues an auto_archive job whenever a todo reaches done.
// A non-positive after disables scheduling.
func WithArchiveScheduler(enqueuer queue.Enqueuer, after time.Duration) Option {
	return func(s *Service) {
		s.archiver = enqueuer
		s.archiveAfter = after
	}
}

// NewService creates a workflow service backed by store
func NewService(store database.TodoStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidTransitionsFrom returns the statuses reachable from status in one step
func (s *Service) ValidTransitionsFrom(status models.Status) []models.Status {
	return models.ValidTransitionsFrom(status)
}

// RequestTransition moves a todo to newStatus. The current status is read fresh
// on every attempt and the write only lands if nobody else wrote in between.
func (s *Service) RequestTransition(ctx context.Context, id uuid.UUID, newStatus models.Status, changedBy *uuid.UUID, reason string) (*models.Todo, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.RequestTransition", trace.WithAttributes(
		attribute.String("todo.id", id.String()),
		attribute.String("todo.status.to", string(newStatus)),
	))
	defer span.End()

	todo, err := s.requestTransition(ctx, span, id, newStatus, changedBy, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(models.KindOf(err)))
		return nil, err
	}
	return todo, nil
}

func (s *Service) requestTransition(ctx context.Context, span trace.Span, id uuid.UUID, newStatus models.Status, changedBy *uuid.UUID, reason string) (*models.Todo, error) {
	if !newStatus.IsValid() {
		return nil, models.NewInvalidStatusError(string(newStatus))
	}

	return s.transition(ctx, span, id, changedBy, reason, func(current *models.Todo) ([]models.Status, error) {
		if !models.CanTransition(current.Status, newStatus) {
			return nil, models.NewInvalidTransitionError(current.Status, newStatus)
		}
		return []models.Status{newStatus}, nil
	})
}

// transition runs the compare-and-swap loop. plan receives the freshly read todo
// and returns the statuses to walk through, ending at the target. Every step is
// committed in a single conditional write.
func (s *Service) transition(ctx context.Context, span trace.Span, id uuid.UUID, changedBy *uuid.UUID, reason string, plan func(*models.Todo) ([]models.Status, error)) (*models.Todo, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, storeError("load todo", err)
		}

		span.SetAttributes(attribute.String("todo.status.from", string(current.Status)))
		steps, err := plan(current)
		if err != nil {
			return nil, err
		}

		now := s.now()
		change := models.StatusChange{}
		for i, step := range steps {
			entry := models.StatusHistoryEntry{
				Status:    step,
				ChangedAt: now,
				ChangedBy: changedBy,
				Reason:    reason,
			}
			if i == len(steps)-1 {
				change.Entry = entry
			} else {
				change.Via = append(change.Via, entry)
			}
			if step == models.StatusDone && current.CompletedAt == nil {
				change.CompletedAt = &now
			}
		}
		target := change.Entry.Status

		updated, err := s.store.ApplyStatusChange(ctx, id, current.Version, change)
		if errors.Is(err, models.ErrConflict) {
			s.logger.Debug("todo_transition_conflict",
				zap.String("todo_id", id.String()),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, storeError("apply status change", err)
		}

		s.logger.Info("todo_status_changed",
			zap.String("todo_id", id.String()),
			zap.String("from", string(current.Status)),
			zap.String("to", string(target)),
			zap.Int("steps", len(steps)),
			zap.Int("attempt", attempt))

		if target == models.StatusDone {
			s.scheduleArchive(ctx, updated)
		}
		return updated, nil
	}

	s.logger.Warn("todo_transition_retries_exhausted", zap.String("todo_id", id.String()))
	return nil, models.NewConflictError(id)
}

// Toggle flips a todo between done and todo. A todo that cannot reach done in one
// step walks the shortest legal path. Every step is recorded in its history and
// the whole path is written at once, so a failure leaves the todo untouched.
func (s *Service) Toggle(ctx context.Context, id uuid.UUID, changedBy *uuid.UUID) (*models.Todo, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Toggle", trace.WithAttributes(
		attribute.String("todo.id", id.String()),
	))
	defer span.End()

	todo, err := s.transition(ctx, span, id, changedBy, ToggleReason, func(current *models.Todo) ([]models.Status, error) {
		target := models.StatusDone
		if current.Status == models.StatusDone {
			target = models.StatusTodo
		}
		path := models.TransitionPath(current.Status, target)
		if len(path) == 0 {
			return nil, models.NewInvalidTransitionError(current.Status, target)
		}
		return path, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(models.KindOf(err)))
		return nil, err
	}
	return todo, nil
}

// scheduleArchive enqueues the auto_archive job for a todo that just reached done.
// A failed enqueue is logged and does not fail the transition.
func (s *Service) scheduleArchive(ctx context.Context, todo *models.Todo) {
	if s.archiver == nil || s.archiveAfter <= 0 {
		return
	}

	job := queue.NewAutoArchiveJob(todo.ID, s.now().Add(s.archiveAfter))
	if err := s.archiver.Enqueue(ctx, job); err != nil {
		s.logger.Warn("auto_archive_enqueue_failed",
			zap.String("todo_id", todo.ID.String()),
			zap.Error(err))
		return
	}

	s.logger.Debug("auto_archive_scheduled",
		zap.String("todo_id", todo.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Time("not_before", *job.NotBefore))
}

// storeError passes typed store errors through and wraps everything else as a query failure
func storeError(op string, err error) error {
	var typed *models.Error
	if errors.As(err, &typed) {
		return err
	}
	return models.NewQueryError(op, err)
}
