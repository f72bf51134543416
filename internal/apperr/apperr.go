// Package apperr defines the error kinds surfaced to callers of the service.
// Callers wrap one of the sentinels with context and match with errors.Is.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPrecondition marks a request rejected before any external call
	// (missing identifier, wrong file count or type).
	ErrPrecondition = errors.New("precondition failed")

	// ErrUnauthorized marks a missing or mismatched bearer credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks a referenced user, document or job that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExtraction marks an oracle response with no usable text or JSON.
	ErrExtraction = errors.New("extraction failed")

	// ErrDependency marks a failing collaborator: oracle, catalog or store.
	ErrDependency = errors.New("dependency failed")

	// ErrOracleTimeout marks an oracle call that exceeded its deadline.
	ErrOracleTimeout = errors.New("oracle timeout")
)

// Precondition wraps a formatted message with ErrPrecondition.
func Precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// NotFound wraps a formatted message with ErrNotFound.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Extraction wraps a formatted message with ErrExtraction.
func Extraction(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExtraction, fmt.Sprintf(format, args...))
}

// Dependency tags err as a dependency failure unless it already carries a kind.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kinded(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrOracleTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}

// Kinded reports whether err already wraps one of the package sentinels.
func Kinded(err error) bool {
	for _, k := range []error{ErrPrecondition, ErrUnauthorized, ErrNotFound, ErrExtraction, ErrDependency, ErrOracleTimeout} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// HTTPStatus maps an error to the status code returned by the API.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrOracleTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
