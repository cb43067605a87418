// Package apperr holds the error classes shared by every bounded context.
//
// Domain sentinels wrap one of these classes so callers can branch on the
// class with errors.Is without knowing each sentinel.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not_found")
	ErrValidation = errors.New("validation_error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// NotFound returns a sentinel classified as ErrNotFound.
func NotFound(code string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, code)
}

// Validation returns a sentinel classified as ErrValidation.
func Validation(code string) error {
	return fmt.Errorf("%w: %s", ErrValidation, code)
}

// Conflict returns a sentinel classified as ErrConflict.
func Conflict(code string) error {
	return fmt.Errorf("%w: %s", ErrConflict, code)
}

// Forbidden returns a sentinel classified as ErrForbidden.
func Forbidden(code string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, code)
}

// Class reports the class name of err, or "internal" when it carries none.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
