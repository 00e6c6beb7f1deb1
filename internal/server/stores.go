// ABOUTME: Builds the todo and milestone stores from database configuration
// ABOUTME: Memory by default, SQLite tables in one shared database otherwise

package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/2389/airway-api/internal/config"
	"github.com/2389/airway-api/internal/store"
)

// Stores groups the record stores the server needs.
type Stores struct {
	Todos      store.Store[store.TodoFields]
	Milestones store.Store[store.MilestoneFields]

	db *sql.DB // nil for the memory backend
}

// NewMemoryStores returns empty in-memory stores.
func NewMemoryStores() *Stores {
	return &Stores{
		Todos:      store.NewMemoryStore[store.TodoFields](store.ResourceTodo),
		Milestones: store.NewMemoryStore[store.MilestoneFields](store.ResourceMilestone),
	}
}

// OpenStores creates the stores selected by cfg.
func OpenStores(cfg config.DatabaseConfig) (*Stores, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return NewMemoryStores(), nil
	case config.BackendSQLite:
		db, err := store.OpenSQLite(cfg.Driver, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		todos, err := store.NewSQLiteStore[store.TodoFields](db, store.ResourceTodo, "todos")
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initializing todo store: %w", err)
		}
		milestones, err := store.NewSQLiteStore[store.MilestoneFields](db, store.ResourceMilestone, "milestones")
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initializing milestone store: %w", err)
		}
		return &Stores{Todos: todos, Milestones: milestones, db: db}, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

// Close releases the database, if any.
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reset empties both stores and restarts their identifiers at 1.
func (s *Stores) Reset(ctx context.Context) error {
	if err := s.Todos.Reset(ctx); err != nil {
		return fmt.Errorf("resetting todos: %w", err)
	}
	if err := s.Milestones.Reset(ctx); err != nil {
		return fmt.Errorf("resetting milestones: %w", err)
	}
	return nil
}
