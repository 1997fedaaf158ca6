package feed

import (
	"errors"
	"fmt"
)

// Result is the outcome of one feed call: either a success carrying data or
// a failure carrying a message and an optional cause.
type Result[T any] struct {
	data    T
	ok      bool
	message string
	cause   error
}

// Success wraps data in a successful Result.
func Success[T any](data T) Result[T] {
	return Result[T]{data: data, ok: true}
}

// Failure builds a failed Result. cause may be nil.
func Failure[T any](message string, cause error) Result[T] {
	return Result[T]{message: message, cause: cause}
}

func (r Result[T]) OK() bool {
	return r.ok
}

// Data returns the success payload, or the zero value for a failure.
func (r Result[T]) Data() T {
	return r.data
}

func (r Result[T]) Message() string {
	return r.message
}

func (r Result[T]) Cause() error {
	return r.cause
}

// Err returns nil on success, otherwise an error combining message and cause.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	if r.cause == nil {
		return errors.New(r.message)
	}
	return fmt.Errorf("%s: %w", r.message, r.cause)
}
