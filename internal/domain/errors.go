package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is by the HTTP layer and the CLI.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limited")

	// ErrInvalidArchive covers archives that cannot be opened or extracted.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrInvalidBibTeX covers malformed or empty BibTeX input.
	ErrInvalidBibTeX = errors.New("invalid bibtex")
	// ErrCommitFailed means the batch was rolled back and nothing was stored.
	ErrCommitFailed = errors.New("import commit failed")
)

// ValidationError reports a rejected field value. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NotFoundError names the missing entity and the key it was looked up by.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyExistsError is returned when a unique key is already taken.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Entity: entity, ID: id}
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// ImportError is a batch-level import failure. Stage is one of parse,
// extract, begin, resolve, stage or commit.
type ImportError struct {
	Stage string
	Err   error
}

func NewImportError(stage string, err error) *ImportError {
	return &ImportError{Stage: stage, Err: err}
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed at %s: %v", e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }
