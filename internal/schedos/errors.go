package schedos

import (
	"errors"
	"fmt"
)

// FailKind classifies adapter failures for callers (CLI exit messages,
// self-scheduling diagnostics).
type FailKind string

const (
	KindUnavailable FailKind = "SchedulerUnavailable"
	KindPermission  FailKind = "PermissionDenied"
	KindJobNotFound FailKind = "JobNotFound"
)

// Error is a classified scheduler failure.
type Error struct {
	Kind FailKind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func schedErr(kind FailKind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// KindOf extracts the failure kind, defaulting to SchedulerUnavailable for
// unclassified errors.
func KindOf(err error) FailKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}
