package store

import (
	"context"
	"errors"
	"time"

	"taskforge/internal/value"
)

var (
	// ErrNotFound is returned for lookups of unknown task ids or job names.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when a finalize call targets a task
	// that is not RUNNING. With single-claimant discipline this should be
	// unreachable; it exists as a defensive guard.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// State is the task lifecycle state. Transitions are forward-only:
// PENDING -> RUNNING -> COMPLETED | FAILED.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// TaskError is the structured failure recorded on a FAILED task. It is plain
// data; no live error values are ever persisted.
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Task is one unit of deferred work: a code reference plus arguments plus
// lifecycle state. Location, Symbol and Args are immutable after creation;
// State/Result/Error are mutated only through the store's transition methods.
type Task struct {
	ID       string      `json:"id"`
	Location string      `json:"location"`
	Symbol   string      `json:"symbol"`
	Args     value.Args  `json:"arguments"`
	State    State       `json:"state"`
	Result   value.Value `json:"result,omitempty"`
	Error    *TaskError  `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Filter narrows ListTasks. Zero value matches everything.
type Filter struct {
	State State // empty matches all states
	Limit int   // 0 means no limit
}

// JobRecord is the optional local registration record of a scheduled job.
// It mirrors what was registered with the external scheduler; the external
// scheduler remains the source of truth for execution.
type JobRecord struct {
	Name        string    `json:"name"`
	Target      string    `json:"target"`
	TriggerKind string    `json:"trigger_kind"`
	TriggerAt   string    `json:"trigger_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the persistence API for task records and job registrations.
//
// ListTasks returns tasks ordered oldest-first by creation time, so pending
// work is claimed fairly.
type Store interface {
	CreateTask(ctx context.Context, location, symbol string, args value.Args) (string, error)
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, f Filter) ([]Task, error)

	// TryClaim atomically transitions PENDING -> RUNNING and reports whether
	// this caller won the claim. A lost claim (or unknown id) returns false
	// without error.
	TryClaim(ctx context.Context, id string) (bool, error)

	CompleteTask(ctx context.Context, id string, result value.Value) error
	FailTask(ctx context.Context, id string, taskErr TaskError) error

	// ReapStale fails RUNNING tasks whose claim is older than olderThan.
	// This is the reconciliation policy for workers that died mid-task.
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)

	PutJobRecord(ctx context.Context, rec JobRecord) error
	ListJobRecords(ctx context.Context) ([]JobRecord, error)
	DeleteJobRecord(ctx context.Context, name string) error

	Close() error
}
