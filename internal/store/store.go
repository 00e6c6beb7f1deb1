// ABOUTME: Store interface and record types for airway-api resources
// ABOUTME: Defines the generic CRUD contract shared by the todo and milestone stores

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Resource names, used in errors and log attributes
const (
	ResourceTodo      = "todo"
	ResourceMilestone = "milestone"
)

// NotFoundError reports which record of which resource was missing.
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Record is one stored item. ID and CreatedAt are owned by the store;
// Fields is the mutable, resource-specific portion.
type Record[F any] struct {
	ID        int64
	CreatedAt time.Time
	Fields    F
}

// TodoFields are the mutable fields of a todo
type TodoFields struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
}

// MilestoneFields are the mutable fields of a milestone
type MilestoneFields struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	DueDate     Date    `json:"due_date"`
}

// Todo and Milestone are the stored record types
type (
	Todo      = Record[TodoFields]
	Milestone = Record[MilestoneFields]
)

// Store is the CRUD contract for one resource kind.
//
// Update replaces the whole mutable portion of a record: anything the caller
// leaves at its zero value in fields is stored as the zero value. ID and
// CreatedAt are never changed by Update.
type Store[F any] interface {
	// Create assigns the next identifier and the creation time, then appends the record.
	Create(ctx context.Context, fields F) (*Record[F], error)

	// List returns every record in insertion order.
	List(ctx context.Context) ([]*Record[F], error)

	// Get returns the record with the given identifier.
	Get(ctx context.Context, id int64) (*Record[F], error)

	// Update replaces the fields of an existing record.
	Update(ctx context.Context, id int64, fields F) (*Record[F], error)

	// Delete removes a record.
	Delete(ctx context.Context, id int64) error

	// Reset empties the store and restarts identifiers at 1.
	Reset(ctx context.Context) error

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)
}
