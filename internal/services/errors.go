package services

import (
	"errors"

	"design-portal-backend/internal/docstore"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("not permitted")
	ErrLocked      = errors.New("attachment is locked until the project is paid")
	ErrSaveFailed  = errors.New("save failed")
	ErrAlreadyPaid = errors.New("project is already paid")
	ErrNotFound    = docstore.ErrNotFound
)

// ValidationError carries a message that is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}
