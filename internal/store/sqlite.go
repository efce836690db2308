package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"taskforge/internal/value"
	logx "taskforge/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) CreateTask(ctx context.Context, location, symbol string, args value.Args) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", errors.New("location is required")
	}
	if strings.TrimSpace(symbol) == "" {
		return "", errors.New("symbol is required")
	}
	argsJSON, err := args.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, location, symbol, args, state, created_at)
		 VALUES(?,?,?,?,?,?)`,
		id, location, symbol, string(argsJSON), string(StatePending), now.UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

const taskColumns = `id, location, symbol, args, state, result, error, created_at, started_at, finished_at`

func (s *sqliteStore) GetTask(ctx context.Context, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *sqliteStore) ListTasks(ctx context.Context, f Filter) ([]Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks`
	var argv []any
	if f.State != "" {
		q += ` WHERE state = ?`
		argv = append(argv, string(f.State))
	}
	// rowid breaks same-millisecond ties in insertion order.
	q += ` ORDER BY created_at ASC, rowid ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		argv = append(argv, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, argv...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) TryClaim(ctx context.Context, id string) (bool, error) {
	// Single UPDATE guarded on the current state; with one writer connection
	// this is atomic against concurrent claimants.
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, started_at = ? WHERE id = ? AND state = ?`,
		string(StateRunning), time.Now().UnixMilli(), id, string(StatePending),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteStore) CompleteTask(ctx context.Context, id string, result value.Value) error {
	resJSON, err := value.ToJSON(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.finalize(ctx, id,
		`UPDATE tasks SET state = ?, result = ?, finished_at = ? WHERE id = ? AND state = ?`,
		string(StateCompleted), string(resJSON), time.Now().UnixMilli(), id, string(StateRunning),
	)
}

func (s *sqliteStore) FailTask(ctx context.Context, id string, taskErr TaskError) error {
	errJSON, err := json.Marshal(taskErr)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}
	return s.finalize(ctx, id,
		`UPDATE tasks SET state = ?, error = ?, finished_at = ? WHERE id = ? AND state = ?`,
		string(StateFailed), string(errJSON), time.Now().UnixMilli(), id, string(StateRunning),
	)
}

func (s *sqliteStore) finalize(ctx context.Context, id, query string, argv ...any) error {
	res, err := s.db.ExecContext(ctx, query, argv...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish an unknown id from a task outside RUNNING.
	var state string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM tasks WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, id, state)
}

func (s *sqliteStore) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	errJSON, err := json.Marshal(TaskError{
		Kind:    "Stale",
		Message: fmt.Sprintf("claim exceeded %s without completion", olderThan),
	})
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, error = ?, finished_at = ?
		 WHERE state = ? AND started_at < ?`,
		string(StateFailed), string(errJSON), time.Now().UnixMilli(),
		string(StateRunning), cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) PutJobRecord(ctx context.Context, rec JobRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return errors.New("job name is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs(name, target, trigger_kind, trigger_at, created_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   target=excluded.target, trigger_kind=excluded.trigger_kind, trigger_at=excluded.trigger_at`,
		rec.Name, rec.Target, rec.TriggerKind, nullStr(rec.TriggerAt), rec.CreatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) ListJobRecords(ctx context.Context) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, target, trigger_kind, trigger_at, created_at FROM scheduled_jobs ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var rec JobRecord
		var at sql.NullString
		var created int64
		if err := rows.Scan(&rec.Name, &rec.Target, &rec.TriggerKind, &at, &created); err != nil {
			return nil, err
		}
		rec.TriggerAt = at.String
		rec.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteJobRecord(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE name = ?`, name)
	return err
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var t Task
	var argsJSON, state string
	var created int64
	var result, errJSON sql.NullString
	var started, finished sql.NullInt64

	err := r.Scan(&t.ID, &t.Location, &t.Symbol, &argsJSON, &state,
		&result, &errJSON, &created, &started, &finished)
	if err != nil {
		return Task{}, err
	}

	t.State = State(state)
	if t.Args, err = value.ParseArgs([]byte(argsJSON)); err != nil {
		return Task{}, fmt.Errorf("decode arguments of task %s: %w", t.ID, err)
	}
	if result.Valid {
		if t.Result, err = value.FromJSON([]byte(result.String)); err != nil {
			return Task{}, fmt.Errorf("decode result of task %s: %w", t.ID, err)
		}
	}
	if errJSON.Valid {
		var te TaskError
		if err := json.Unmarshal([]byte(errJSON.String), &te); err != nil {
			return Task{}, fmt.Errorf("decode error of task %s: %w", t.ID, err)
		}
		t.Error = &te
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	if started.Valid {
		ts := time.UnixMilli(started.Int64).UTC()
		t.StartedAt = &ts
	}
	if finished.Valid {
		ts := time.UnixMilli(finished.Int64).UTC()
		t.FinishedAt = &ts
	}
	return t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
