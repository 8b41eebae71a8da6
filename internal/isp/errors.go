package isp

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrorCode classifies control-plane failures.
type ErrorCode string

// Error codes. Each code is itself an error so callers can write
// errors.Is(err, isp.ErrTimeout).
const (
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrIncompatibleDevice ErrorCode = "INCOMPATIBLE_DEVICE"
	ErrOutOfMemory        ErrorCode = "OUT_OF_MEMORY"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrBusy               ErrorCode = "BUSY"
	ErrIO                 ErrorCode = "IO_ERROR"
	ErrInvalidArgument    ErrorCode = "INVALID_ARGUMENT"
)

func (c ErrorCode) Error() string {
	return string(c)
}

// Error is a classified failure with an optional underlying cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewError creates a new classified error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Errorf creates a classified error without a cause.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches an ErrorCode target against the error's code.
func (e *Error) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

// FromDriver classifies a failed driver request. EBUSY is ErrBusy, anything
// else ErrIO.
func FromDriver(op string, err error) *Error {
	if errors.Is(err, syscall.EBUSY) {
		return NewError(ErrBusy, op, err)
	}
	return NewError(ErrIO, op, err)
}

// CodeOf returns the code of the first classified error in err's chain, or
// ErrIO when err carries no classification.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ErrIO
}
