package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/askew/internal/domain"
)

// DefaultListLimit caps every list query.
const DefaultListLimit = 100

var (
	// ErrConstraintViolation is returned when an insert breaches a unique field.
	ErrConstraintViolation = errors.New("unique constraint violated")
	// ErrStoreUnavailable is returned before Connect succeeds.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ConstraintError names the unique field an insert collided on.
type ConstraintError struct {
	Field string
	Err   error
}

func (e *ConstraintError) Error() string {
	if e.Field == "" {
		return ErrConstraintViolation.Error()
	}
	return fmt.Sprintf("%s: %s already exists", ErrConstraintViolation, e.Field)
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// RecordRepository defines persistence access for one document collection.
type RecordRepository interface {
	// Connect establishes the connection and ensures the collection and its
	// unique indexes exist. Other methods fail with ErrStoreUnavailable until
	// it has returned nil.
	Connect(ctx context.Context) error
	Ping(ctx context.Context) error
	// List returns at most limit documents, newest first.
	List(ctx context.Context, limit int) ([]domain.Document, error)
	// Insert persists fields as a new document with a store-assigned id and
	// creation timestamps.
	Insert(ctx context.Context, fields map[string]string) (domain.Document, error)
	Close()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
