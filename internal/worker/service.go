// Package worker runs the polling loop that discovers pending tasks, claims
// them, and executes them through the resolver and the sandbox boundary.
package worker

import (
	"context"
	"sync"
	"time"

	"taskforge/internal/resolve"
	"taskforge/internal/sandbox"
	"taskforge/internal/store"
	logx "taskforge/pkg/logx"
)

// Config controls the worker loop.
type Config struct {
	PollInterval time.Duration // default 3s
	Workers      int           // default 2
	QueueSize    int           // default 64
	ClaimBatch   int           // max candidates fetched per poll; default 32
	TaskTimeout  time.Duration // per-task execution timeout; 0 disables
	StaleAfter   time.Duration // auto-fail RUNNING tasks older than this; 0 disables
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.ClaimBatch <= 0 {
		c.ClaimBatch = 32
	}
	return c
}

// Service is the long-lived polling worker. Claimed tasks are dispatched to
// a bounded pool; claim order follows creation time, execution order across
// pool workers is not guaranteed.
type Service struct {
	cfg Config
	st  store.Store
	res resolve.Resolver
	log logx.Logger

	mu        sync.Mutex
	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	queue     chan store.Task
	wg        sync.WaitGroup
}

func New(cfg Config, st store.Store, res resolve.Resolver, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.withDefaults(), st: st, res: res, log: log}
}

// Start launches the poll loop and the execution pool. It is a no-op if the
// service is already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}

	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.queue = make(chan store.Task, s.cfg.QueueSize)

	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue

	s.wg.Add(s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		idx := i
		go func() {
			defer s.wg.Done()
			s.log.Debug("worker started", logx.Int("worker", idx))
			s.execLoop(runCtx, stopCh, queue)
			s.log.Debug("worker stopped", logx.Int("worker", idx))
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollLoop(runCtx, stopCh, queue)
	}()

	s.log.Info("worker loop started",
		logx.Duration("poll_interval", s.cfg.PollInterval),
		logx.Int("workers", s.cfg.Workers))
}

// Stop shuts the loop down and waits for in-flight executions, bounded by
// ctx. A task claimed but not finished by then stays RUNNING and is picked
// up by the stale reaper later.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.runCancel()
	s.stopCh = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("worker loop stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("worker loop stop timed out; in-flight tasks left RUNNING")
		return ctx.Err()
	}
}

func (s *Service) pollLoop(ctx context.Context, stopCh <-chan struct{}, queue chan<- store.Task) {
	var storeFails int
	lastReap := time.Now()

	for {
		interval := s.cfg.PollInterval
		if storeFails > 0 {
			// Store connectivity trouble: back off instead of hammering.
			interval = backoffDelay(storeFails, s.cfg.PollInterval, time.Minute)
			s.log.Warn("store unavailable, backing off",
				logx.Int("consecutive_failures", storeFails),
				logx.Duration("retry_in", interval))
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-time.After(interval):
		}

		if s.cfg.StaleAfter > 0 && time.Since(lastReap) >= s.cfg.StaleAfter/4 {
			if n, err := s.st.ReapStale(ctx, s.cfg.StaleAfter); err != nil {
				s.log.Warn("stale reap failed", logx.Err(err))
			} else if n > 0 {
				s.log.Info("reaped stale tasks", logx.Int("count", n))
			}
			lastReap = time.Now()
		}

		pending, err := s.st.ListTasks(ctx, store.Filter{State: store.StatePending, Limit: s.cfg.ClaimBatch})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			storeFails++
			continue
		}
		storeFails = 0

		for _, t := range pending {
			won, err := s.st.TryClaim(ctx, t.ID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Warn("claim failed", logx.String("task", t.ID), logx.Err(err))
				storeFails++
				break
			}
			if !won {
				// Another loop instance claimed it first.
				s.log.Debug("claim lost", logx.String("task", t.ID))
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case queue <- t:
			}
		}
	}
}

func (s *Service) execLoop(ctx context.Context, stopCh <-chan struct{}, queue <-chan store.Task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t store.Task) {
	start := time.Now()
	out := sandbox.Run(ctx, s.res, t.Location, t.Symbol, t.Args, s.cfg.TaskTimeout)
	dur := time.Since(start)

	if ctx.Err() != nil && !out.OK() {
		// Shutdown mid-task: leave the record RUNNING for the reaper rather
		// than recording a failure the task did not earn.
		s.log.Warn("shutdown during task, left RUNNING", logx.String("task", t.ID))
		return
	}

	if out.OK() {
		s.finalize(ctx, t.ID, func(fctx context.Context) error {
			return s.st.CompleteTask(fctx, t.ID, out.Value)
		})
		s.log.Info("task completed",
			logx.String("task", t.ID),
			logx.String("symbol", t.Symbol),
			logx.Duration("dur", dur))
		return
	}

	s.finalize(ctx, t.ID, func(fctx context.Context) error {
		return s.st.FailTask(fctx, t.ID, store.TaskError{
			Kind:    out.Failure.Kind,
			Message: out.Failure.Message,
			Detail:  out.Failure.Detail,
		})
	})
	s.log.Warn("task failed",
		logx.String("task", t.ID),
		logx.String("symbol", t.Symbol),
		logx.String("kind", out.Failure.Kind),
		logx.String("reason", out.Failure.Message),
		logx.Duration("dur", dur))
}

// finalize persists a terminal transition, retrying briefly on store errors.
// An InvalidTransition/NotFound result is logged and dropped; it means some
// external reconciliation already finalized the record.
func (s *Service) finalize(ctx context.Context, id string, fn func(context.Context) error) {
	const attempts = 5
	for i := 1; ; i++ {
		err := fn(ctx)
		if err == nil {
			return
		}
		if isTerminalStoreErr(err) || i >= attempts || ctx.Err() != nil {
			s.log.Error("could not persist task outcome", logx.String("task", id), logx.Err(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffDelay(i, 200*time.Millisecond, 5*time.Second)):
		}
	}
}
