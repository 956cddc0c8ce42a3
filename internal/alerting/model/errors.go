package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no user identity could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidInput is matched by every *ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means the referenced record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage failure")
	// ErrStaleRule is returned by a conditional trigger-state update when the stored
	// rule is in cooldown (usually after a concurrent firing) or no longer exists.
	ErrStaleRule = errors.New("alert rule in cooldown or gone")
)

// ValidationError reports a malformed field in a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Invalid builds a *ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StorageError wraps a failure of the underlying data store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a *StorageError unless it is nil or already classified
// as not-found, stale, or storage.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleRule) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
