package resolve

import "fmt"

// FailKind classifies resolution failures. The names are recorded verbatim as
// the error kind on a failed task, so keep them stable.
type FailKind string

const (
	KindSourceNotFound FailKind = "SourceNotFound"
	KindSymbolNotFound FailKind = "SymbolNotFound"
	KindLoadError      FailKind = "LoadError"
)

// Error is a classified resolution failure.
type Error struct {
	Kind     FailKind
	Location string
	Symbol   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s#%s", e.Kind, e.Location, e.Symbol)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind FailKind, location, symbol string, err error) *Error {
	return &Error{Kind: kind, Location: location, Symbol: symbol, Err: err}
}
