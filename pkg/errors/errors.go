package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four error kinds that may cross the domain
// boundary. Everything a service returns wraps exactly one of these.
var (
	// ErrNotFound indicates that a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that input failed a schema or business rule.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState indicates an illegal entity state transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrExternalService indicates an upstream extract/embed/LLM failure.
	ErrExternalService = errors.New("external service error")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// InvalidStatef wraps ErrInvalidState with a formatted message.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidState)...)
}

// ExternalServicef wraps ErrExternalService with a formatted message.
func ExternalServicef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrExternalService)...)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInvalidState reports whether err wraps ErrInvalidState.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsExternalService reports whether err wraps ErrExternalService.
func IsExternalService(err error) bool { return errors.Is(err, ErrExternalService) }
