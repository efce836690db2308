// Package resolve turns a stored (location, symbol) reference into an
// invokable handle.
//
// Locations select a loader:
//   - "builtin:<namespace>" resolves against the in-process function registry
//   - anything else is treated as a script path on disk and resolved through
//     an interpreter subprocess
//
// Resolution is performed fresh on every call; nothing is cached, so an
// edited script is picked up by the next task that references it.
package resolve

import (
	"context"
	"strings"

	"taskforge/internal/value"
)

// Callable is an invokable handle produced by resolution. It accepts the
// positional and named arguments exactly as stored on the task.
type Callable interface {
	Call(ctx context.Context, args value.Args) (value.Value, error)
}

// Resolver loads the code unit at location and looks up symbol within it.
type Resolver interface {
	Resolve(ctx context.Context, location, symbol string) (Callable, error)
}

const builtinPrefix = "builtin:"

// Mux routes locations to the matching loader.
type Mux struct {
	Registry *Registry
	Script   *ScriptLoader
}

func NewMux(reg *Registry, script *ScriptLoader) *Mux {
	return &Mux{Registry: reg, Script: script}
}

func (m *Mux) Resolve(ctx context.Context, location, symbol string) (Callable, error) {
	if ns, ok := strings.CutPrefix(location, builtinPrefix); ok {
		if m.Registry == nil {
			return nil, newError(KindSourceNotFound, location, symbol, nil)
		}
		return m.Registry.resolve(location, ns, symbol)
	}
	if m.Script == nil {
		return nil, newError(KindSourceNotFound, location, symbol, nil)
	}
	return m.Script.resolve(ctx, location, symbol)
}
