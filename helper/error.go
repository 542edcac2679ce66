package helper

import "fmt"

// Error wraps an error with the operation it happened in.
type Error struct {
	Operation string
	Err       error
}

// NewError creates a new error for the given operation.
// A nil err still produces an error naming the failed operation.
func NewError(operation string, err error) error {
	return &Error{
		Operation: operation,
		Err:       err,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: unknown error", e.Operation)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}
