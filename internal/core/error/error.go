package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// BadRequestMessage describes malformed client input.
	BadRequestMessage = "invalid request"
	// CompletionErrorMessage describes failures of the text-completion service.
	CompletionErrorMessage = "completion service call failed"
	// TranslationErrorMessage describes failures of the translation service.
	TranslationErrorMessage = "translation service call failed"
)

// Kind classifies an AppError.
type Kind int

const (
	KindInternal Kind = iota
	KindExternalCall
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindExternalCall:
		return "external_call"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new internal AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindInternal,
	}
}

// NewExternal creates an AppError for a failed call to an external service.
func NewExternal(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindExternalCall,
	}
}

// BadRequest wraps a client input error.
func BadRequest(err error) *AppError {
	return &AppError{
		Err:     err,
		Status:  http.StatusBadRequest,
		Message: BadRequestMessage,
		Kind:    KindInvalidInput,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// IsExternal reports whether err was caused by an external service call.
func IsExternal(err error) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Kind == KindExternalCall
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show to clients.
func PublicMessage(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return SystemErrorMessage
}
