package store

import "fmt"

const (
	KindUnauthenticated Kind = iota + 1
	KindInvalidArgument
	KindRemoteReadFailed
	KindRemoteWriteFailed
)

type Kind int

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindRemoteReadFailed:
		return "remote_read_failed"
	case KindRemoteWriteFailed:
		return "remote_write_failed"
	default:
		return "unknown"
	}
}

// Error is the failure outcome of a store operation and the value kept in
// State.LastError. Its message is the underlying error's message, verbatim.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrRemoteReadFailed  = &Error{Kind: KindRemoteReadFailed}
	ErrRemoteWriteFailed = &Error{Kind: KindRemoteWriteFailed}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidArgument(op, format string, args ...any) *Error {
	return newError(KindInvalidArgument, op, fmt.Errorf(format, args...))
}
