package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskforge/internal/value"
	logx "taskforge/pkg/logx"
)

// withStores runs fn against every driver so behavior stays aligned.
func withStores(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		st := NewMemory()
		t.Cleanup(func() { st.Close() })
		fn(t, st)
	})

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		st, err := Open(Config{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "tasks.db"),
		}, logx.Nop())
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { st.Close() })
		fn(t, st)
	})
}

func mustCreate(t *testing.T, st Store, location, symbol string) string {
	t.Helper()
	id, err := st.CreateTask(context.Background(), location, symbol, value.Args{})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return id
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		id, err := st.CreateTask(ctx, "jobs/add.py", "add", value.Args{
			Positional: []value.Value{value.Int(2), value.Int(3)},
		})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}

		got, err := st.GetTask(ctx, id)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if got.State != StatePending {
			t.Fatalf("state = %s, want PENDING", got.State)
		}
		if got.StartedAt != nil || got.FinishedAt != nil {
			t.Fatal("fresh task must have no started/finished time")
		}
		if len(got.Args.Positional) != 2 {
			t.Fatalf("args = %+v, want 2 positional", got.Args)
		}

		won, err := st.TryClaim(ctx, id)
		if err != nil || !won {
			t.Fatalf("TryClaim = %v, %v; want true, nil", won, err)
		}
		got, _ = st.GetTask(ctx, id)
		if got.State != StateRunning || got.StartedAt == nil {
			t.Fatalf("after claim: state=%s started=%v", got.State, got.StartedAt)
		}

		if err := st.CompleteTask(ctx, id, value.Int(5)); err != nil {
			t.Fatalf("CompleteTask: %v", err)
		}
		got, _ = st.GetTask(ctx, id)
		if got.State != StateCompleted || got.FinishedAt == nil {
			t.Fatalf("after complete: state=%s finished=%v", got.State, got.FinishedAt)
		}
		if n, _ := got.Result.AsInt64(); n != 5 {
			t.Fatalf("result = %v, want 5", got.Result)
		}
		if got.Error != nil {
			t.Fatal("completed task must not carry an error")
		}
	})
}

func TestFailTaskRecordsError(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		id := mustCreate(t, st, "jobs/boom.py", "boom")
		if _, err := st.TryClaim(ctx, id); err != nil {
			t.Fatalf("TryClaim: %v", err)
		}
		taskErr := TaskError{Kind: "TaskFailure", Message: "division by zero", Detail: "trace"}
		if err := st.FailTask(ctx, id, taskErr); err != nil {
			t.Fatalf("FailTask: %v", err)
		}
		got, _ := st.GetTask(ctx, id)
		if got.State != StateFailed {
			t.Fatalf("state = %s, want FAILED", got.State)
		}
		if got.Error == nil || got.Error.Message != "division by zero" {
			t.Fatalf("error = %+v", got.Error)
		}
		if !got.Result.IsNull() {
			t.Fatal("failed task must not carry a result")
		}
	})
}

func TestClaimIsExclusive(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		id := mustCreate(t, st, "jobs/solo.py", "run")

		const claimants = 8
		var wg sync.WaitGroup
		wins := make(chan bool, claimants)
		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				won, err := st.TryClaim(ctx, id)
				if err != nil {
					t.Errorf("TryClaim: %v", err)
					return
				}
				wins <- won
			}()
		}
		wg.Wait()
		close(wins)

		var wonCount int
		for w := range wins {
			if w {
				wonCount++
			}
		}
		if wonCount != 1 {
			t.Fatalf("claim winners = %d, want exactly 1", wonCount)
		}
	})
}

func TestClaimUnknownOrTerminal(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		if won, err := st.TryClaim(ctx, "no-such-id"); err != nil || won {
			t.Fatalf("claim unknown = %v, %v; want false, nil", won, err)
		}

		id := mustCreate(t, st, "jobs/x.py", "f")
		st.TryClaim(ctx, id)
		st.CompleteTask(ctx, id, value.Null())
		if won, _ := st.TryClaim(ctx, id); won {
			t.Fatal("terminal task must not be claimable")
		}
	})
}

func TestFinalizeGuards(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()

		if err := st.CompleteTask(ctx, "missing", value.Null()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("complete missing = %v, want ErrNotFound", err)
		}

		id := mustCreate(t, st, "jobs/x.py", "f")
		// Not yet claimed: finalize must refuse.
		if err := st.CompleteTask(ctx, id, value.Null()); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("complete pending = %v, want ErrInvalidTransition", err)
		}
		if err := st.FailTask(ctx, id, TaskError{Kind: "x", Message: "y"}); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("fail pending = %v, want ErrInvalidTransition", err)
		}

		st.TryClaim(ctx, id)
		st.CompleteTask(ctx, id, value.Null())
		// Already terminal: a second finalize must refuse too.
		if err := st.FailTask(ctx, id, TaskError{Kind: "x", Message: "y"}); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("fail completed = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestListTasksFilterAndOrder(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		first := mustCreate(t, st, "jobs/a.py", "a")
		second := mustCreate(t, st, "jobs/b.py", "b")
		third := mustCreate(t, st, "jobs/c.py", "c")
		st.TryClaim(ctx, second)

		pending, err := st.ListTasks(ctx, Filter{State: StatePending})
		if err != nil {
			t.Fatalf("ListTasks: %v", err)
		}
		if len(pending) != 2 || pending[0].ID != first || pending[1].ID != third {
			t.Fatalf("pending order = %v", ids(pending))
		}

		limited, err := st.ListTasks(ctx, Filter{State: StatePending, Limit: 1})
		if err != nil {
			t.Fatalf("ListTasks limit: %v", err)
		}
		if len(limited) != 1 || limited[0].ID != first {
			t.Fatalf("limited = %v, want [%s]", ids(limited), first)
		}

		all, err := st.ListTasks(ctx, Filter{})
		if err != nil {
			t.Fatalf("ListTasks all: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("all = %d tasks, want 3", len(all))
		}
	})
}

func TestReapStale(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		stale := mustCreate(t, st, "jobs/stale.py", "f")
		fresh := mustCreate(t, st, "jobs/fresh.py", "f")
		st.TryClaim(ctx, stale)
		time.Sleep(30 * time.Millisecond)
		st.TryClaim(ctx, fresh)

		n, err := st.ReapStale(ctx, 20*time.Millisecond)
		if err != nil {
			t.Fatalf("ReapStale: %v", err)
		}
		if n != 1 {
			t.Fatalf("reaped = %d, want 1", n)
		}

		got, _ := st.GetTask(ctx, stale)
		if got.State != StateFailed || got.Error == nil {
			t.Fatalf("stale task: state=%s err=%+v", got.State, got.Error)
		}
		got, _ = st.GetTask(ctx, fresh)
		if got.State != StateRunning {
			t.Fatalf("fresh task: state=%s, want RUNNING", got.State)
		}
	})
}

func TestJobRecords(t *testing.T) {
	t.Parallel()
	withStores(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		rec := JobRecord{
			Name:        "DailyReport",
			Target:      "./report.py",
			TriggerKind: "daily",
			TriggerAt:   "08:30",
			CreatedAt:   time.Now(),
		}
		if err := st.PutJobRecord(ctx, rec); err != nil {
			t.Fatalf("PutJobRecord: %v", err)
		}
		// Upsert: same name replaces.
		rec.TriggerAt = "09:00"
		if err := st.PutJobRecord(ctx, rec); err != nil {
			t.Fatalf("PutJobRecord upsert: %v", err)
		}

		recs, err := st.ListJobRecords(ctx)
		if err != nil {
			t.Fatalf("ListJobRecords: %v", err)
		}
		if len(recs) != 1 || recs[0].TriggerAt != "09:00" {
			t.Fatalf("records = %+v", recs)
		}

		if err := st.DeleteJobRecord(ctx, "DailyReport"); err != nil {
			t.Fatalf("DeleteJobRecord: %v", err)
		}
		// Like scheduler removal, deleting an absent record is a no-op.
		if err := st.DeleteJobRecord(ctx, "DailyReport"); err != nil {
			t.Fatalf("delete absent = %v, want nil", err)
		}
		recs, err = st.ListJobRecords(ctx)
		if err != nil {
			t.Fatalf("ListJobRecords: %v", err)
		}
		if len(recs) != 0 {
			t.Fatalf("records after delete = %+v", recs)
		}
	})
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
