package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/queue"
	"github.com/google/uuid"
)

// mockWorkflow is a mock implementation of StatusWorkflow
type mockWorkflow struct {
	getByIDFunc           func(ctx context.Context, id uuid.UUID) (*models.Todo, error)
	requestTransitionFunc func(ctx context.Context, id uuid.UUID, newStatus models.Status, changedBy *uuid.UUID, reason string) (*models.Todo, error)

	mu          sync.Mutex
	transitions []models.Status
	reasons     []string
}

func (m *mockWorkflow) GetByID(ctx context.Context, id uuid.UUID) (*models.Todo, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, models.NewNotFoundError(id)
}

func (m *mockWorkflow) RequestTransition(ctx context.Context, id uuid.UUID, newStatus models.Status, changedBy *uuid.UUID, reason string) (*models.Todo, error) {
	m.mu.Lock()
	m.transitions = append(m.transitions, newStatus)
	m.reasons = append(m.reasons, reason)
	m.mu.Unlock()
	if m.requestTransitionFunc != nil {
		return m.requestTransitionFunc(ctx, id, newStatus, changedBy, reason)
	}
	return &models.Todo{ID: id, Status: newStatus}, nil
}

var _ StatusWorkflow = (*mockWorkflow)(nil)

// mockEnqueuer records published jobs
type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (m *mockEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// mockMessage records how a delivery was settled
type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

var _ queue.MessageInterface = (*mockMessage)(nil)

func doneTodo(id uuid.UUID, completedAgo time.Duration) *models.Todo {
	completed := time.Now().Add(-completedAgo)
	return &models.Todo{
		ID:          id,
		Status:      models.StatusDone,
		CompletedAt: &completed,
		StatusHistory: []models.StatusHistoryEntry{
			{Status: models.StatusTodo, ChangedAt: completed.Add(-time.Hour), Reason: models.InitialHistoryReason},
			{Status: models.StatusDone, ChangedAt: completed},
		},
	}
}

func dueJob(todoID uuid.UUID) *queue.Job {
	return queue.NewAutoArchiveJob(todoID, time.Now().Add(-time.Second))
}

func TestArchiver_ProcessJob(t *testing.T) {
	t.Parallel()

	const after = 24 * time.Hour

	tests := []struct {
		name            string
		job             func(todoID uuid.UUID) *queue.Job
		workflow        func(todoID uuid.UUID) *mockWorkflow
		enqueueErr      error
		wantErr         bool
		wantAck         bool
		wantNack        bool
		wantRequeue     bool
		wantArchived    bool
		wantRescheduled int
	}{
		{
			name: "archives a todo done long enough",
			job:  dueJob,
			workflow: func(todoID uuid.UUID) *mockWorkflow {
				return &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
					return doneTodo(todoID, 25*time.Hour), nil
				}}
			},
			wantAck:      true,
			wantArchived: true,
		},
		{
			name: "skips a todo that left done",
			job:  dueJob,
			workflow: func(todoID uuid.UUID) *mockWorkflow {
				return &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
					todo := doneTodo(todoID, 25*time.Hour)
					todo.Status = models.StatusReview
					return todo, nil
				}}
			},
			wantAck: true,
		},
		{
			name: "skips a todo completed again recently",
			job:  dueJob,
			workflow: func(todoID uuid.UUID) *mockWorkflow {
				return &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
					return doneTodo(todoID, time.Hour), nil
				}}
			},
			wantAck: true,
		},
		{
			name: "skips a deleted todo",
			job:  dueJob,
			workflow: func(uuid.UUID) *mockWorkflow {
				return &mockWorkflow{}
			},
			wantAck: true,
		},
		{
			name: "treats a lost transition race as settled",
			job:  dueJob,
			workflow: func(todoID uuid.UUID) *mockWorkflow {
				return &mockWorkflow{
					getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
						return doneTodo(todoID, 25*time.Hour), nil
					},
					requestTransitionFunc: func(context.Context, uuid.UUID, models.Status, *uuid.UUID, string) (*models.Todo, error) {
						return nil, models.NewInvalidTransitionError(models.StatusArchived, models.StatusArchived)
					},
				}
			},
			wantAck:      true,
			wantArchived: true,
		},
		{
			name: "reschedules a failed attempt",
			job:  dueJob,
			workflow: func(todoID uuid.UUID) *mockWorkflow {
				return &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
					return nil, models.NewQueryError("load todo", errors.New("connection reset"))
				}}
			},
			wantErr:         true,
			wantAck:         true,
			wantRescheduled: 1,
		},
		{
			name: "dead-letters after the retry budget",
			job: func(todoID uuid.UUID) *queue.Job {
				job := dueJob(todoID)
				job.RetryCount = job.MaxRetries
				return job
			},
			workflow: func(todoID uuid.UUID) *mockWorkflow {
				return &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
					return nil, models.NewQueryError("load todo", errors.New("connection reset"))
				}}
			},
			wantErr:  true,
			wantNack: true,
		},
		{
			name: "requeues when the retry cannot be published",
			job:  dueJob,
			workflow: func(todoID uuid.UUID) *mockWorkflow {
				return &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
					return nil, models.NewQueryError("load todo", errors.New("connection reset"))
				}}
			},
			enqueueErr:  errors.New("broker down"),
			wantErr:     true,
			wantNack:    true,
			wantRequeue: true,
		},
		{
			name: "reschedules an early job",
			job: func(todoID uuid.UUID) *queue.Job {
				return queue.NewAutoArchiveJob(todoID, time.Now().Add(time.Hour))
			},
			workflow: func(uuid.UUID) *mockWorkflow {
				return &mockWorkflow{}
			},
			wantAck:         true,
			wantRescheduled: 1,
		},
		{
			name: "dead-letters an expired job",
			job: func(todoID uuid.UUID) *queue.Job {
				job := dueJob(todoID)
				notAfter := time.Now().Add(-time.Minute)
				job.NotAfter = &notAfter
				return job
			},
			workflow: func(uuid.UUID) *mockWorkflow {
				return &mockWorkflow{}
			},
			wantNack: true,
		},
		{
			name: "dead-letters an unknown job type",
			job: func(todoID uuid.UUID) *queue.Job {
				return queue.NewJob(queue.JobType("unknown"), todoID)
			},
			workflow: func(uuid.UUID) *mockWorkflow {
				return &mockWorkflow{}
			},
			wantErr:  true,
			wantNack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			todoID := uuid.New()
			wf := tt.workflow(todoID)
			enqueuer := &mockEnqueuer{err: tt.enqueueErr}
			archiver := NewArchiver(wf, enqueuer, after, nil)
			msg := &mockMessage{job: tt.job(todoID)}

			err := archiver.ProcessJob(context.Background(), msg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", msg.acked, tt.wantAck)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("nacked = %v, want %v", msg.nacked, tt.wantNack)
			}
			if msg.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", msg.requeue, tt.wantRequeue)
			}
			if archived := len(wf.transitions) > 0; archived != tt.wantArchived {
				t.Errorf("transition requested = %v, want %v", archived, tt.wantArchived)
			}
			if len(enqueuer.jobs) != tt.wantRescheduled {
				t.Errorf("rescheduled jobs = %d, want %d", len(enqueuer.jobs), tt.wantRescheduled)
			}
		})
	}
}

func TestArchiver_ArchiveUsesReason(t *testing.T) {
	t.Parallel()

	todoID := uuid.New()
	wf := &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
		return doneTodo(todoID, 48*time.Hour), nil
	}}
	archiver := NewArchiver(wf, &mockEnqueuer{}, 24*time.Hour, nil)

	if err := archiver.ProcessJob(context.Background(), &mockMessage{job: dueJob(todoID)}); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if len(wf.transitions) != 1 || wf.transitions[0] != models.StatusArchived {
		t.Fatalf("transitions = %v, want [archived]", wf.transitions)
	}
	if wf.reasons[0] != AutoArchiveReason {
		t.Errorf("reason = %q, want %q", wf.reasons[0], AutoArchiveReason)
	}
}

func TestArchiver_RetryBacksOff(t *testing.T) {
	t.Parallel()

	todoID := uuid.New()
	wf := &mockWorkflow{getByIDFunc: func(context.Context, uuid.UUID) (*models.Todo, error) {
		return nil, models.NewQueryError("load todo", errors.New("timeout"))
	}}
	enqueuer := &mockEnqueuer{}
	archiver := NewArchiver(wf, enqueuer, time.Hour, nil)

	job := dueJob(todoID)
	job.RetryCount = 2
	before := time.Now()

	_ = archiver.ProcessJob(context.Background(), &mockMessage{job: job})

	if len(enqueuer.jobs) != 1 {
		t.Fatalf("rescheduled jobs = %d, want 1", len(enqueuer.jobs))
	}
	retry := enqueuer.jobs[0]
	if retry.ID != job.ID || retry.RetryCount != 3 {
		t.Errorf("retry = %s attempt %d, want %s attempt 3", retry.ID, retry.RetryCount, job.ID)
	}
	if delay := retry.NotBefore.Sub(before); delay < 4*time.Minute {
		t.Errorf("retry delay = %v, want at least 4m", delay)
	}
	if job.RetryCount != 2 {
		t.Errorf("original job mutated: RetryCount = %d", job.RetryCount)
	}
}
