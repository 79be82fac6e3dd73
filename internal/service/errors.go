package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service either wraps one of these or
// is an internal failure.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrBusinessLogic = errors.New("business rule violated")
)

// Error carries a client facing message and the kind it belongs to.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.kind
}

func notFound(format string, args ...any) error {
	return &Error{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &Error{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func rejected(format string, args ...any) error {
	return &Error{kind: ErrBusinessLogic, msg: fmt.Sprintf(format, args...)}
}

// IsClientError reports whether err is a not found, validation or business
// rule error. Those fail the same way on every attempt.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrBusinessLogic)
}
