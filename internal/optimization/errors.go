package optimization

import (
	"errors"
	"fmt"
)

// Sentinel errors for request validation. Use errors.Is to test for them.
var (
	ErrUnknownMethod     = errors.New("unknown method")
	ErrUnknownObjective  = errors.New("unknown objective")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidSettings   = errors.New("invalid settings")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	prefix := e.Component
	if e.Op != "" {
		if prefix != "" {
			prefix += ": "
		}
		prefix += e.Op
	}

	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}

	if prefix == "" {
		return msg
	}
	return prefix + ": " + msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// NewErrorf creates a settings validation error with a formatted message.
// The result matches ErrInvalidSettings.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     ErrInvalidSettings,
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsOptimizationError reports whether err, or any error it wraps, is an
// *Error and returns the first one found.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CheckDimension returns an ErrDimensionMismatch error when x does not have
// the wanted number of coordinates. want <= 0 accepts any non-empty x.
func CheckDimension(x Point, want int) error {
	if len(x) == 0 {
		return WrapError(ErrDimensionMismatch, "starting point is empty").
			WithOperation("check_dimension")
	}
	if want > 0 && len(x) != want {
		return WrapErrorf(ErrDimensionMismatch, "got %d coordinates, want %d", len(x), want).
			WithOperation("check_dimension")
	}
	return nil
}
