// Package errs defines the error taxonomy shared by the persistence and
// recovery core. Every error type matches a sentinel through errors.Is so
// callers can branch on the class without caring about the details.
package errs

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConcurrency     = errors.New("concurrency conflict")
	ErrConflict        = errors.New("resource locked")
	ErrNotFound        = errors.New("not found")
	ErrNotOwner        = errors.New("not lock owner")
	ErrAlreadyReleased = errors.New("lock already released")
	ErrAlreadyConsumed = errors.New("checkpoint already consumed")
	ErrTransaction     = errors.New("transaction failed")
)

// ValidationError reports malformed input such as an unknown event type.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validation is a shorthand constructor.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConcurrencyError reports an optimistic-concurrency mismatch on append.
type ConcurrencyError struct {
	Stream   string
	Expected int64
	Actual   int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict on stream %s: expected head %d, actual %d", e.Stream, e.Expected, e.Actual)
}

func (e *ConcurrencyError) Is(target error) bool { return target == ErrConcurrency }

// ConflictError reports that a resource is already held by another holder.
type ConflictError struct {
	Resource string
	HolderID string
	LockID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %s is locked by %s (lock %s)", e.Resource, e.HolderID, e.LockID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a missing checkpoint, lock, mission or sortie.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound is a shorthand constructor.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// NotOwnerError reports a release attempt by someone other than the holder.
type NotOwnerError struct {
	LockID   string
	HolderID string
	Caller   string
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("lock %s is held by %s, not %s", e.LockID, e.HolderID, e.Caller)
}

func (e *NotOwnerError) Is(target error) bool { return target == ErrNotOwner }

// AlreadyReleasedError reports a second release of the same lock.
type AlreadyReleasedError struct {
	LockID     string
	ReleasedAt string
}

func (e *AlreadyReleasedError) Error() string {
	return fmt.Sprintf("lock %s already released at %s", e.LockID, e.ReleasedAt)
}

func (e *AlreadyReleasedError) Is(target error) bool { return target == ErrAlreadyReleased }

// AlreadyConsumedError reports a checkpoint that was already restored while
// re-consumption is disabled. It also matches ErrNotFound: from the caller's
// point of view there is no restorable checkpoint under that id.
type AlreadyConsumedError struct {
	CheckpointID string
	ConsumedAt   string
}

func (e *AlreadyConsumedError) Error() string {
	return fmt.Sprintf("checkpoint %s already consumed at %s", e.CheckpointID, e.ConsumedAt)
}

func (e *AlreadyConsumedError) Is(target error) bool {
	return target == ErrAlreadyConsumed || target == ErrNotFound
}

// TransactionError wraps a storage failure that forced a rollback.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction rolled back: %v", e.Op, e.Err)
}

func (e *TransactionError) Is(target error) bool { return target == ErrTransaction }

func (e *TransactionError) Unwrap() error { return e.Err }
