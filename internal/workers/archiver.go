package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AutoArchiveReason is recorded on history entries written by the archiver
const AutoArchiveReason = "Archived automatically"

// baseRetryDelay is the first backoff step for failed archive attempts
const baseRetryDelay = time.Minute

// StatusWorkflow is the part of the workflow engine the archiver drives
type StatusWorkflow interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Todo, error)
	RequestTransition(ctx context.Context, id uuid.UUID, newStatus models.Status, changedBy *uuid.UUID, reason string) (*models.Todo, error)
}

// Archiver processes auto_archive jobs: todos that stayed done for the
// configured period are moved to archived.
type Archiver struct {
	workflow StatusWorkflow
	jobQueue queue.Enqueuer
	after    time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewArchiver creates an archiver. jobQueue is used to reschedule early and failed jobs.
func NewArchiver(workflow StatusWorkflow, jobQueue queue.Enqueuer, after time.Duration, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		workflow: workflow,
		jobQueue: jobQueue,
		after:    after,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessJob handles one delivery and always settles it with an ack or nack
func (a *Archiver) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		a.logger.Warn("job_expired",
			zap.String("job_id", job.ID.String()),
			zap.Timep("not_after", job.NotAfter))
		if nackErr := msg.Nack(false); nackErr != nil {
			return fmt.Errorf("failed to nack expired job: %w", nackErr)
		}
		return nil
	}

	if !job.ShouldProcess() {
		return a.reschedule(ctx, msg, job, *job.NotBefore)
	}

	switch job.Type {
	case queue.JobTypeAutoArchive:
		if err := a.archive(ctx, job); err != nil {
			return a.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// archive moves the todo to archived if it is still done and has been done
// for long enough. Todos that moved on, vanished, or were re-completed later
// are left alone; a later completion schedules its own job.
func (a *Archiver) archive(ctx context.Context, job *queue.Job) error {
	todo, err := a.workflow.GetByID(ctx, job.TodoID)
	if errors.Is(err, models.ErrNotFound) {
		a.logger.Info("auto_archive_skipped", zap.String("todo_id", job.TodoID.String()), zap.String("reason", "not_found"))
		return nil
	}
	if err != nil {
		return err
	}

	if todo.Status != models.StatusDone {
		a.logger.Info("auto_archive_skipped",
			zap.String("todo_id", todo.ID.String()),
			zap.String("reason", "status_changed"),
			zap.String("status", string(todo.Status)))
		return nil
	}

	if last := todo.LastStatusChange(); last != nil && a.now().Sub(last.ChangedAt) < a.after {
		a.logger.Info("auto_archive_skipped",
			zap.String("todo_id", todo.ID.String()),
			zap.String("reason", "completed_recently"),
			zap.Time("completed_at", last.ChangedAt))
		return nil
	}

	_, err = a.workflow.RequestTransition(ctx, todo.ID, models.StatusArchived, nil, AutoArchiveReason)
	switch {
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrNotFound):
		a.logger.Info("auto_archive_skipped",
			zap.String("todo_id", todo.ID.String()),
			zap.String("reason", string(models.KindOf(err))))
		return nil
	case err != nil:
		return err
	}

	a.logger.Info("todo_auto_archived", zap.String("todo_id", todo.ID.String()))
	return nil
}

// handleJobError retries with exponential backoff while the job has budget
// left and dead-letters it afterwards.
func (a *Archiver) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if !job.CanRetry() {
		a.logger.Error("job_failed_max_retries",
			zap.String("job_id", job.ID.String()),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err))
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	delay := baseRetryDelay << job.RetryCount
	retry := *job
	retry.IncrementRetry()

	a.logger.Warn("job_failed_will_retry",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", retry.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("delay", delay),
		zap.Error(err))

	if rescheduleErr := a.reschedule(ctx, msg, &retry, a.now().Add(delay)); rescheduleErr != nil {
		return rescheduleErr
	}
	return fmt.Errorf("job failed (will retry): %w", err)
}

// reschedule publishes a copy of job due at notBefore and acks the original.
// If publishing fails the original is requeued instead.
func (a *Archiver) reschedule(ctx context.Context, msg queue.MessageInterface, job *queue.Job, notBefore time.Time) error {
	delayed := *job
	delayed.NotBefore = &notBefore

	if err := a.jobQueue.Enqueue(ctx, &delayed); err != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("failed to reschedule job %s: %w", job.ID, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack rescheduled job: %w", ackErr)
	}
	return nil
}
