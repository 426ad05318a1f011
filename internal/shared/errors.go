package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sentinel error kinds surfaced by the core services. Callers match with
// errors.Is; the typed errors below carry the detail.
var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a store uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock indicates a decrement exceeding available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrValidation indicates caller input a service rejected before touching
	// the store.
	ErrValidation = errors.New("invalid input")
)

// NotFoundError names the entity and identifier that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFound builds a NotFoundError for the given entity.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError lists the fields whose uniqueness constraint was violated.
type ConflictError struct {
	Fields []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate value for %s", strings.Join(e.Fields, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InsufficientStockError names the product whose stock cannot cover the
// requested decrement.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID.String()
	}
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
