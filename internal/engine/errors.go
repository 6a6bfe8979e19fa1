package engine

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies query failures so the boundary can map them to a stable outward status.
type Kind int

const (
	// KindIO covers read/stat failures other than not-found, and cancelled scans.
	KindIO Kind = iota
	// KindNotFound means the target file does not exist or is not a regular file.
	KindNotFound
	// KindInvalidArgument means a negative count or a filter that does not compile.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "io"
	}
}

// Error is the error type returned by the Scanner and QueryEngine.
type Error struct {
	Kind Kind
	Op   string // "open", "stat", "read", "filter", "count"
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err. Errors not produced by this package are KindIO.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
