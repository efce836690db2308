// Package sandbox is the boundary that turns failures of invoked code into
// data. Nothing that happens inside a task target (errors, panics, timeouts,
// resolution failures) escapes to the caller as a fault; every run produces
// an Outcome.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"taskforge/internal/resolve"
	"taskforge/internal/value"
)

// KindTaskFailure marks failures raised by the invoked code itself.
// Resolution failures keep their resolver kinds.
const KindTaskFailure = "TaskFailure"

// Failure describes why a run did not succeed. It is plain data and safe to
// persist.
type Failure struct {
	Kind    string
	Message string
	Detail  string
}

// Outcome is the tagged result of one run: either a value or a failure,
// never both.
type Outcome struct {
	Value   value.Value
	Failure *Failure
}

func (o Outcome) OK() bool { return o.Failure == nil }

func Success(v value.Value) Outcome { return Outcome{Value: v} }

func Failed(kind, message, detail string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: message, Detail: detail}}
}

// Invoke calls an already-resolved callable with the stored arguments,
// honoring timeout (0 disables it).
func Invoke(ctx context.Context, c resolve.Callable, args value.Args, timeout time.Duration) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(KindTaskFailure, fmt.Sprintf("panic: %v", r), string(debug.Stack()))
		}
	}()

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	v, err := c.Call(runCtx, args)
	if err != nil {
		return classify(err, timeout)
	}
	return Success(v)
}

// Run resolves and invokes in one step, converting resolution failures into
// outcomes as well. This is the entry the worker loop uses.
func Run(ctx context.Context, r resolve.Resolver, location, symbol string, args value.Args, timeout time.Duration) Outcome {
	c, err := r.Resolve(ctx, location, symbol)
	if err != nil {
		return classify(err, timeout)
	}
	return Invoke(ctx, c, args, timeout)
}

func classify(err error, timeout time.Duration) Outcome {
	var rerr *resolve.Error
	if errors.As(err, &rerr) {
		detail := ""
		if rerr.Err != nil {
			detail = rerr.Err.Error()
		}
		return Failed(string(rerr.Kind),
			fmt.Sprintf("%s#%s", rerr.Location, rerr.Symbol), detail)
	}
	var cerr *resolve.CallError
	if errors.As(err, &cerr) {
		return Failed(KindTaskFailure, cerr.Message, cerr.Detail)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failed(KindTaskFailure, fmt.Sprintf("task timed out after %s", timeout), "")
	}
	return Failed(KindTaskFailure, err.Error(), "")
}
