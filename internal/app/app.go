// Package app wires the daemon together: config, logging, store, scheduler
// adapter, worker loop and the HTTP surface, all under one supervisor.
package app

import (
	"context"
	"fmt"

	"taskforge/internal/config"
	"taskforge/internal/resolve"
	"taskforge/internal/runtime/supervisor"
	"taskforge/internal/schedos"
	"taskforge/internal/selfsched"
	"taskforge/internal/server"
	"taskforge/internal/store"
	"taskforge/internal/worker"
	logx "taskforge/pkg/logx"
)

type App struct {
	cfg config.Config
	log logx.Logger

	registry *resolve.Registry
	st       store.Store
	sched    schedos.Scheduler
	worker   *worker.Service
	sup      *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logx.New(cfg.Logx())
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return &App{cfg: cfg, log: log, registry: resolve.NewRegistry()}, nil
}

// Registry exposes the in-process function registry so embedding programs
// can publish their own "builtin:" targets before Start.
func (a *App) Registry() *resolve.Registry { return a.registry }

func (a *App) Log() logx.Logger { return a.log }

func (a *App) Start(ctx context.Context) error {
	storeCfg, err := a.cfg.StoreConfig()
	if err != nil {
		return err
	}
	a.st, err = store.Open(storeCfg, a.log.With(logx.String("component", "store")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	a.sched, err = schedos.New(a.cfg.Scheduler.Backend, nil, a.log.With(logx.String("component", "schedos")))
	if err != nil {
		return err
	}

	if a.cfg.Scheduler.SelfRegister {
		err := selfsched.Ensure(ctx, a.sched, a.cfg.SelfRegisterName(),
			schedos.Trigger{Kind: schedos.TriggerLogon},
			selfsched.Options{Log: a.log.With(logx.String("component", "selfsched"))})
		if err != nil {
			return err
		}
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	if a.cfg.WorkerEnabled() {
		wcfg, err := a.cfg.WorkerConfig()
		if err != nil {
			return err
		}
		mux := resolve.NewMux(a.registry, resolve.NewScriptLoader(a.cfg.Interpreters(), a.log))
		a.worker = worker.New(wcfg, a.st, mux, a.log.With(logx.String("component", "worker")))
		a.worker.Start(a.sup.Context())
	}

	if a.cfg.Server.Enabled {
		srv := server.New(server.Config{
			Addr:             a.cfg.ServerAddr(),
			SubmitRatePerSec: a.cfg.SubmitRate(),
		}, a.st, a.sched, a.log.With(logx.String("component", "http")))
		a.sup.Go("http", srv.Run)
	}

	a.log.Info("taskforged started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	var firstErr error
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.log.Info("taskforged stopped")
	_ = a.log.Close()
	return firstErr
}
