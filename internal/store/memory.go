// ABOUTME: In-memory Store implementation backed by an ordered B-tree
// ABOUTME: Default backend; state lives for the process lifetime only

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/tidwall/btree"
)

// Ensure MemoryStore implements Store.
var (
	_ Store[TodoFields]      = (*MemoryStore[TodoFields])(nil)
	_ Store[MilestoneFields] = (*MemoryStore[MilestoneFields])(nil)
)

// MemoryStore is an in-memory Store. Records are indexed by identifier in a
// B-tree; identifiers are assigned in insertion order, so ascending the tree
// yields insertion order.
type MemoryStore[F any] struct {
	mu       sync.RWMutex
	resource string
	records  *btree.BTree // *Record[F] ordered by ID
	nextID   int64
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore for the named resource.
func NewMemoryStore[F any](resource string) *MemoryStore[F] {
	return &MemoryStore[F]{
		resource: resource,
		records:  btree.NewNonConcurrent(byID[F]),
		nextID:   1,
		now:      time.Now,
	}
}

// byID orders records by identifier.
func byID[F any](a, b interface{}) bool {
	return a.(*Record[F]).ID < b.(*Record[F]).ID
}

// lookup returns the stored record for id, or nil. Must be called with mu held.
func (m *MemoryStore[F]) lookup(id int64) *Record[F] {
	item := m.records.Get(&Record[F]{ID: id})
	if item == nil {
		return nil
	}
	return item.(*Record[F])
}

// cloneFields deep-copies fields so no pointer is shared between the store
// and its callers.
func (m *MemoryStore[F]) cloneFields(fields F) (F, error) {
	var out F
	if err := copier.CopyWithOption(&out, &fields, copier.Option{DeepCopy: true}); err != nil {
		return out, fmt.Errorf("copying %s fields: %w", m.resource, err)
	}
	return out, nil
}

// cloneRecord returns a deep copy of rec.
func (m *MemoryStore[F]) cloneRecord(rec *Record[F]) (*Record[F], error) {
	fields, err := m.cloneFields(rec.Fields)
	if err != nil {
		return nil, err
	}
	return &Record[F]{ID: rec.ID, CreatedAt: rec.CreatedAt, Fields: fields}, nil
}

// Create stores a new record.
func (m *MemoryStore[F]) Create(ctx context.Context, fields F) (*Record[F], error) {
	stored, err := m.cloneFields(fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &Record[F]{
		ID:        m.nextID,
		CreatedAt: m.now(),
		Fields:    stored,
	}
	m.nextID++
	m.records.Set(rec)

	return m.cloneRecord(rec)
}

// List returns all records in insertion order.
func (m *MemoryStore[F]) List(ctx context.Context) ([]*Record[F], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Record[F], 0, m.records.Len())
	var err error
	m.records.Ascend(nil, func(item interface{}) bool {
		var recCopy *Record[F]
		if recCopy, err = m.cloneRecord(item.(*Record[F])); err != nil {
			return false
		}
		result = append(result, recCopy)
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get retrieves a record by identifier.
func (m *MemoryStore[F]) Get(ctx context.Context, id int64) (*Record[F], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec := m.lookup(id)
	if rec == nil {
		return nil, &NotFoundError{Resource: m.resource, ID: id}
	}
	return m.cloneRecord(rec)
}

// Update replaces the fields of an existing record, keeping ID and CreatedAt.
func (m *MemoryStore[F]) Update(ctx context.Context, id int64, fields F) (*Record[F], error) {
	stored, err := m.cloneFields(fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.lookup(id)
	if existing == nil {
		return nil, &NotFoundError{Resource: m.resource, ID: id}
	}

	rec := &Record[F]{
		ID:        existing.ID,
		CreatedAt: existing.CreatedAt,
		Fields:    stored,
	}
	m.records.Set(rec)

	return m.cloneRecord(rec)
}

// Delete removes a record by identifier.
func (m *MemoryStore[F]) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.records.Delete(&Record[F]{ID: id}) == nil {
		return &NotFoundError{Resource: m.resource, ID: id}
	}
	return nil
}

// Reset drops every record and restarts identifiers at 1.
func (m *MemoryStore[F]) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = btree.NewNonConcurrent(byID[F])
	m.nextID = 1
	return nil
}

// Count returns the number of stored records.
func (m *MemoryStore[F]) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.Len(), nil
}
