// Package errs is the typed error taxonomy for the custody core. Callers match
// on Kind instead of comparing message strings.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDuplicate
	KindNotFound
	KindInvalidState
	KindInsufficientStock
	KindNotAvailable
	KindNoStock
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindDuplicate:
		return "DUPLICATE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindNotAvailable:
		return "NOT_AVAILABLE"
	case KindNoStock:
		return "NO_STOCK"
	case KindPersistence:
		return "PERSISTENCE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error carries a kind plus a human-readable message. Persistence errors wrap
// the underlying storage failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Duplicate(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStock(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

func NotAvailable(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotAvailable, Message: fmt.Sprintf(format, args...)}
}

func NoStock(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNoStock, Message: fmt.Sprintf(format, args...)}
}

func Persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Message: "storage failure", Err: err}
}

// KindOf extracts the kind from an error chain; KindUnknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
