package selfsched

import (
	"context"
	"errors"
	"testing"

	"taskforge/internal/schedos"
)

// fakeScheduler tracks registrations in memory.
type fakeScheduler struct {
	jobs     map[string]schedos.JobSpec
	ensured  int
	queryErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[string]schedos.JobSpec{}}
}

func (f *fakeScheduler) EnsureRegistered(_ context.Context, spec schedos.JobSpec) error {
	f.ensured++
	f.jobs[spec.Name] = spec
	return nil
}

func (f *fakeScheduler) List(context.Context, string) ([]schedos.JobInfo, error) {
	return nil, nil
}

func (f *fakeScheduler) Query(_ context.Context, name string) (schedos.JobInfo, bool, error) {
	if f.queryErr != nil {
		return schedos.JobInfo{}, false, f.queryErr
	}
	spec, ok := f.jobs[name]
	if !ok {
		return schedos.JobInfo{}, false, nil
	}
	return schedos.JobInfo{Name: spec.Name, Target: spec.Target}, true, nil
}

func (f *fakeScheduler) RunNow(context.Context, string) error { return nil }
func (f *fakeScheduler) Remove(context.Context, string) error { return nil }

func TestEnsureRegistersOnce(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	trigger := schedos.Trigger{Kind: schedos.TriggerLogon}
	opts := Options{Target: "/usr/local/bin/taskforged"}

	// First run registers, every later run is a no-op.
	for i := 0; i < 3; i++ {
		if err := Ensure(context.Background(), sched, "TaskforgeDaemon", trigger, opts); err != nil {
			t.Fatalf("Ensure run %d: %v", i, err)
		}
	}
	if sched.ensured != 1 {
		t.Fatalf("registrations = %d, want 1", sched.ensured)
	}
	spec := sched.jobs["TaskforgeDaemon"]
	if spec.Target != "/usr/local/bin/taskforged" {
		t.Fatalf("target = %q", spec.Target)
	}
}

func TestEnsureDefaultTargetIsExecutable(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	err := Ensure(context.Background(), sched, "Self", schedos.Trigger{Kind: schedos.TriggerLogon}, Options{})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if sched.jobs["Self"].Target == "" {
		t.Fatal("target should default to the current executable")
	}
}

func TestEnsurePropagatesQueryFailure(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	sched.queryErr = errors.New("scheduler offline")
	err := Ensure(context.Background(), sched, "Self", schedos.Trigger{Kind: schedos.TriggerLogon}, Options{Target: "/bin/x"})
	if err == nil {
		t.Fatal("expected error when the scheduler cannot be queried")
	}
	if sched.ensured != 0 {
		t.Fatal("must not register blindly after a failed query")
	}
}
