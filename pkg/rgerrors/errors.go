// Package rgerrors defines the error taxonomy shared by the planner,
// traverser, and codecs: a small set of kinds a caller can switch on,
// independent of the message text.
package rgerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure the way callers need to react to it, not the
// package that produced it.
type Kind string

const (
	// InvalidInput covers jobspec schema violations, constraint syntax
	// errors, unknown resource types, and inconsistent R during update.
	InvalidInput Kind = "invalid_input"
	// OutOfRange covers planner add_span failing on insufficient capacity,
	// update_total shrinking below current usage, and count-expression
	// overflow.
	OutOfRange Kind = "out_of_range"
	// NotFound covers avail_first finding no schedulable point, a missed
	// vertex path lookup, or cancel of an unknown jobid.
	NotFound Kind = "not_found"
	// OutOfMemory covers allocation failure for scoring groups or JSON
	// nodes.
	OutOfMemory Kind = "out_of_memory"
	// Unsupported covers a reader/writer not implementing a requested
	// operation.
	Unsupported Kind = "unsupported"
	// Internal covers invariant violations: planner corruption, a missing
	// x_checker, a trav_token mismatch during update.
	Internal Kind = "internal"
)

// Error is the carrier type the planner, parsing, filter, and traverser
// packages return for their own failures (traverser.Remove combines
// several into a multierror; internal/config returns plain errors). Code is a short machine-readable tag ("EINVAL", "ERANGE", "ENOENT"
// ...) mirroring the errno-style codes spec.md uses; Kind is what callers
// should switch on.
type Error struct {
	Kind      Kind
	Code      string
	Op        string
	Message   string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (%s): %v", e.Op, e.Code, e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", e.Op, e.Code, e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match on Kind+Code rather than pointer identity, so a
// caller can do errors.Is(err, sentinel) against any *Error built (e.g. via
// New) with the same Kind/Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// New builds an *Error for op, tagged with kind and the errno-style code.
func New(op string, kind Kind, code, message string) *Error {
	return &Error{Op: op, Kind: kind, Code: code, Message: message}
}

// Wrap builds an *Error carrying cause as its underlying error.
func Wrap(op string, kind Kind, code string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Code: code, Message: cause.Error(), Cause: cause}
}

// Builder gives callers that need optional fields (retryable, a formatted
// message) a fluent way to construct an Error without a long constructor.
type Builder struct {
	err *Error
}

// NewBuilder starts building an Error for op.
func NewBuilder(op string, kind Kind, code string) *Builder {
	return &Builder{err: &Error{Op: op, Kind: kind, Code: code}}
}

// Msgf sets the formatted message.
func (b *Builder) Msgf(format string, args ...interface{}) *Builder {
	b.err.Message = fmt.Sprintf(format, args...)
	return b
}

// Cause sets the wrapped cause.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Retryable marks the error retryable (used by callers deciding whether to
// fall back to orelse_reserve semantics).
func (b *Builder) Retryable(v bool) *Builder {
	b.err.Retryable = v
	return b
}

// Build returns the constructed *Error.
func (b *Builder) Build() *Error {
	return b.err
}

// Errno-style codes used throughout spec.md.
const (
	CodeEINVAL    = "EINVAL"
	CodeERANGE    = "ERANGE"
	CodeENOENT    = "ENOENT"
	CodeEINTERNAL = "EINTERNAL"
)

// Is reports whether err carries the given Kind, looking through any
// wrapping via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
