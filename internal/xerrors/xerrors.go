// Package xerrors defines the error-kind taxonomy used across the
// instancing pipeline. Components never unwind across each other's
// boundaries: they return a nullable result plus a list of these errors
// and the caller decides whether to continue.
package xerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error without tying it to a concrete Go type.
type Kind int

const (
	// Config marks malformed CLI arguments or config files.
	Config Kind = iota
	// IO marks a file open/read/write or directory-iteration failure.
	IO
	// Parse marks an invalid GLB, tileset JSON, or dangling internal
	// reference (accessor -> missing bufferView, etc).
	Parse
	// Decomposition marks a matrix whose TRS decomposition diverged
	// measurably from the source matrix; the transform is used anyway.
	Decomposition
	// Write marks a serializer or filesystem failure while emitting output.
	Write
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "ConfigError"
	case IO:
		return "IoError"
	case Parse:
		return "ParseError"
	case Decomposition:
		return "DecompositionError"
	case Write:
		return "WriteError"
	default:
		return "UnknownError"
	}
}

// Error pairs a Kind with a location hint and the underlying cause.
type Error struct {
	Kind    Kind
	Where   string // e.g. "model[3].node[12].mesh[2]"
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s at %s", e.Kind, e.Where)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Where, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error wrapping cause with a stack trace via pkg/errors,
// so the first time a Kind surfaces in a log at DEBUG level the call site
// is recoverable.
func New(kind Kind, where string, cause error) *Error {
	if cause == nil {
		cause = errors.Errorf("%s", kind)
	} else {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Where: where, Cause: cause}
}

// Newf is New with a formatted cause message.
func Newf(kind Kind, where, format string, args ...interface{}) *Error {
	return New(kind, where, errors.Errorf(format, args...))
}

// List is a structured batch of errors accumulated by a component run.
type List []*Error

// Add appends a non-nil error to the list.
func (l *List) Add(e *Error) {
	if e != nil {
		*l = append(*l, e)
	}
}

// HasFatal reports whether any error in the list is of a kind that should
// abandon the enclosing unit of work (Config or Write); Parse/IO/
// Decomposition errors are local-recoverable by design (§7).
func (l List) HasFatal() bool {
	for _, e := range l {
		if e.Kind == Config || e.Kind == Write {
			return true
		}
	}
	return false
}

// Clean reports whether the run produced zero errors of any kind —
// the "final success flag" distinguishing a fully-clean run from a
// partial one.
func (l List) Clean() bool {
	return len(l) == 0
}
