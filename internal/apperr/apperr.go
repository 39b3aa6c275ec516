// Package apperr defines the error kinds shared by the adapters, the
// configuration loader and the scheduler.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration is fatal: placeholder or missing settings
	KindConfiguration
	// KindConnection covers dial and authentication failures on either adapter
	KindConnection
	// KindSend is a failed transmission on an established connection
	KindSend
	// KindSearch is a failed mailbox query on an established connection
	KindSearch
	// KindDateParse affects a single message only
	KindDateParse
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConnection:
		return "connection"
	case KindSend:
		return "send"
	case KindSearch:
		return "search"
	case KindDateParse:
		return "date_parse"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned when an operation runs with an empty connection slot
	ErrNotConnected = errors.New("not connected")
	// ErrConnectionLost marks failures of a connection that was established earlier
	ErrConnectionLost = errors.New("connection lost")
)

// Error is a classified failure of a single operation
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with a kind and operation name. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Recoverable reports whether the scheduler may retry after err
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindSend, KindSearch, KindDateParse:
		return true
	default:
		return false
	}
}
