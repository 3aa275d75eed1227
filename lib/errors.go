package lib

import "fmt"

// UserError is a problem with what the caller asked for. Its message is safe to show them.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

func userErrorf(err error, format string, args ...any) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...), Err: err}
}
