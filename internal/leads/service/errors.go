package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrStorageUnavailable marks failures of the lead store itself.
var ErrStorageUnavailable = errors.New("storage unavailable")

// NotFoundError is returned by get, update and delete for an unknown id.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Lead with ID %s not found", e.ID)
}

// DuplicateError is returned when another lead already uses the email.
type DuplicateError struct {
	Email string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("Lead with email %s already exists", e.Email)
}
