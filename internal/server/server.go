// Package server exposes the submission and query HTTP surface: a thin
// layer over the task record store plus a passthrough to the OS scheduler
// adapter. All orchestration decisions live elsewhere; handlers only decode,
// delegate and encode.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"taskforge/internal/schedos"
	"taskforge/internal/store"
	logx "taskforge/pkg/logx"
)

type Config struct {
	Addr             string
	SubmitRatePerSec int
}

type Service struct {
	cfg     Config
	st      store.Store
	sched   schedos.Scheduler
	log     logx.Logger
	limiter *rate.Limiter

	srv *http.Server
}

func New(cfg Config, st store.Store, sched schedos.Scheduler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	burst := cfg.SubmitRatePerSec
	if burst <= 0 {
		burst = 20
	}
	return &Service{
		cfg:     cfg,
		st:      st,
		sched:   sched,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(burst), burst),
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tasks", s.handleSubmit)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /api/scheduled-jobs", s.handleListJobs)
	mux.HandleFunc("POST /api/scheduled-jobs/{name}/run", s.handleRunJob)
	mux.HandleFunc("DELETE /api/scheduled-jobs/{name}", s.handleRemoveJob)
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
