package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskforge/internal/value"
)

// memoryStore keeps everything in process memory. Same semantics as the
// sqlite driver, including claim atomicity; useful for tests and ephemeral
// runs.
type memoryStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	jobs  map[string]JobRecord
	seq   map[string]uint64 // creation order tie-break within one millisecond
	next  uint64
}

func NewMemory() Store {
	return &memoryStore{
		tasks: map[string]*Task{},
		jobs:  map[string]JobRecord{},
		seq:   map[string]uint64{},
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) CreateTask(ctx context.Context, location, symbol string, args value.Args) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", errors.New("location is required")
	}
	if strings.TrimSpace(symbol) == "" {
		return "", errors.New("symbol is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.next++
	m.seq[id] = m.next
	m.tasks[id] = &Task{
		ID:        id,
		Location:  location,
		Symbol:    symbol,
		Args:      args,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (m *memoryStore) GetTask(ctx context.Context, id string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *t, nil
}

func (m *memoryStore) ListTasks(ctx context.Context, f Filter) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Task
	for _, t := range m.tasks {
		if f.State != "" && t.State != f.State {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memoryStore) TryClaim(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.State != StatePending {
		return false, nil
	}
	now := time.Now().UTC()
	t.State = StateRunning
	t.StartedAt = &now
	return true, nil
}

func (m *memoryStore) CompleteTask(ctx context.Context, id string, result value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.State != StateRunning {
		return fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, id, t.State)
	}
	now := time.Now().UTC()
	t.State = StateCompleted
	t.Result = result
	t.FinishedAt = &now
	return nil
}

func (m *memoryStore) FailTask(ctx context.Context, id string, taskErr TaskError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.State != StateRunning {
		return fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, id, t.State)
	}
	now := time.Now().UTC()
	te := taskErr
	t.State = StateFailed
	t.Error = &te
	t.FinishedAt = &now
	return nil
}

func (m *memoryStore) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for _, t := range m.tasks {
		if t.State != StateRunning || t.StartedAt == nil || !t.StartedAt.Before(cutoff) {
			continue
		}
		now := time.Now().UTC()
		t.State = StateFailed
		t.Error = &TaskError{
			Kind:    "Stale",
			Message: fmt.Sprintf("claim exceeded %s without completion", olderThan),
		}
		t.FinishedAt = &now
		n++
	}
	return n, nil
}

func (m *memoryStore) PutJobRecord(ctx context.Context, rec JobRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return errors.New("job name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.jobs[rec.Name]; ok && rec.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.jobs[rec.Name] = rec
	return nil
}

func (m *memoryStore) ListJobRecords(ctx context.Context) ([]JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobRecord, 0, len(m.jobs))
	for _, rec := range m.jobs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) DeleteJobRecord(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, name)
	return nil
}
