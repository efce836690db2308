// Package selfsched lets a program register itself with the OS scheduler at
// start of process. The first run creates the job; every later run observes
// it already registered and proceeds straight to its own work.
package selfsched

import (
	"context"
	"fmt"
	"os"

	"taskforge/internal/schedos"
	logx "taskforge/pkg/logx"
)

// Options tunes Ensure. Target defaults to the current executable.
type Options struct {
	Target string
	Args   []string
	Log    logx.Logger
}

// Ensure registers the calling process under name with the given trigger,
// unless a job of that name already exists. A registration failure is
// returned so the caller can halt startup with a diagnostic instead of
// silently running unscheduled.
func Ensure(ctx context.Context, sched schedos.Scheduler, name string, trigger schedos.Trigger, opts Options) error {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}

	_, exists, err := sched.Query(ctx, name)
	if err != nil {
		return fmt.Errorf("self-schedule %s: %w", name, err)
	}
	if exists {
		log.Debug("already scheduled", logx.String("job", name))
		return nil
	}

	target := opts.Target
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("self-schedule %s: resolve executable: %w", name, err)
		}
		target = exe
	}

	err = sched.EnsureRegistered(ctx, schedos.JobSpec{
		Name:    name,
		Target:  target,
		Args:    opts.Args,
		Trigger: trigger,
	})
	if err != nil {
		return fmt.Errorf("self-schedule %s: %w", name, err)
	}
	log.Info("registered self with OS scheduler",
		logx.String("job", name),
		logx.String("target", target),
		logx.String("trigger", trigger.String()))
	return nil
}
