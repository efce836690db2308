package resolve

import (
	"context"
	"fmt"
	"sync"

	"taskforge/internal/value"
)

// Func is an in-process task target.
type Func func(ctx context.Context, args value.Args) (value.Value, error)

// Registry holds named Go functions grouped by namespace, addressed as
// "builtin:<namespace>" locations. It is the statically-typed stand-in for
// importing a module and looking a function up by name.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{fns: map[string]map[string]Func{}}
}

// Register adds fn under namespace/symbol. Re-registering a symbol replaces
// the previous function.
func (r *Registry) Register(namespace, symbol string, fn Func) error {
	if namespace == "" || symbol == "" {
		return fmt.Errorf("registry: namespace and symbol are required")
	}
	if fn == nil {
		return fmt.Errorf("registry: nil function for %s.%s", namespace, symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.fns[namespace]
	if !ok {
		ns = map[string]Func{}
		r.fns[namespace] = ns
	}
	ns[symbol] = fn
	return nil
}

func (r *Registry) resolve(location, namespace, symbol string) (Callable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.fns[namespace]
	if !ok {
		return nil, newError(KindSourceNotFound, location, symbol, nil)
	}
	fn, ok := ns[symbol]
	if !ok {
		return nil, newError(KindSymbolNotFound, location, symbol, nil)
	}
	return funcCallable(fn), nil
}

type funcCallable Func

func (f funcCallable) Call(ctx context.Context, args value.Args) (value.Value, error) {
	return f(ctx, args)
}
