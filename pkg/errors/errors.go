package errors

import (
	"errors"
	"fmt"
)

// StoreError provides a structured error that callers can match on by code.
type StoreError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches StoreErrors by code so wrapped copies still satisfy errors.Is
// against their sentinel.
func (e *StoreError) Is(target error) bool {
	if e == nil {
		return target == nil
	}

	other, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the StoreError with an attached internal error.
func (e *StoreError) WithInternal(err error) *StoreError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the StoreError carrying a more specific message.
func (e *StoreError) WithMessage(message string) *StoreError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the module.
var (
	ErrNotFound = &StoreError{
		Code:    "NOT_FOUND",
		Message: "Key not found",
	}

	ErrKeyExists = &StoreError{
		Code:    "KEY_EXISTS",
		Message: "Key already exists",
	}

	ErrUnsupportedValue = &StoreError{
		Code:    "UNSUPPORTED_VALUE",
		Message: "Value shape is not supported by the bound codec",
	}

	ErrUnsupportedOperation = &StoreError{
		Code:    "UNSUPPORTED_OPERATION",
		Message: "Operation is not supported for the bound value type",
	}

	ErrInvalidArgument = &StoreError{
		Code:    "INVALID_ARGUMENT",
		Message: "Invalid argument",
	}

	ErrCodecMismatch = &StoreError{
		Code:    "CODEC_MISMATCH",
		Message: "Table is registered with a different value type",
	}

	ErrStorage = &StoreError{
		Code:    "STORAGE_FAILURE",
		Message: "Storage operation failed",
	}
)

// New builds a new store error with the provided metadata.
func New(code, message string) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
	}
}

// Wrap turns a driver or I/O error into a storage failure while keeping the
// original error for logging and errors.Is checks.
func Wrap(err error, message string) *StoreError {
	return &StoreError{
		Code:     ErrStorage.Code,
		Message:  message,
		Internal: err,
	}
}

// FromError converts a generic error into a StoreError, defaulting to ErrStorage.
func FromError(err error) *StoreError {
	if err == nil {
		return nil
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr
	}

	return ErrStorage.WithInternal(err)
}

// NewInvalidArgument wraps argument-validation failures with a helpful message.
func NewInvalidArgument(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument.Code,
		Message: message,
	}
}

// NewUnsupportedValue reports a value the bound codec cannot encode.
func NewUnsupportedValue(message string) *StoreError {
	return &StoreError{
		Code:    ErrUnsupportedValue.Code,
		Message: message,
	}
}
