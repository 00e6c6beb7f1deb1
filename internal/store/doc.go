// Package store holds the todo and milestone records behind the Airway API.
//
// # Architecture
//
// Store[F] is a generic CRUD interface over records whose mutable part is the
// field set F. Two field sets exist:
//
//   - TodoFields: title, description, completed
//   - MilestoneFields: the todo fields plus a calendar due date
//
// Every record also carries a store-assigned ID and CreatedAt. IDs start at 1,
// increase strictly and are never reused until Reset. Update replaces the
// whole field set; callers that want partial updates merge before calling.
//
// Two backends implement Store:
//
//   - MemoryStore: a B-tree keyed by ID, the default. State is lost on exit.
//   - SQLiteStore: one AUTOINCREMENT table per resource, fields kept as JSON.
//     Either the pure-Go modernc driver ("sqlite") or mattn's cgo driver
//     ("sqlite3") may be used.
//
// # Error Handling
//
// Missing records are reported as *NotFoundError, which matches ErrNotFound
// under errors.Is:
//
//	if errors.Is(err, store.ErrNotFound) { ... }
//
// # Testing
//
// NewMemoryStore needs no setup. For SQLite, open an in-memory database:
//
//	db, _ := store.OpenSQLite(store.DriverSQLite, store.MemoryDSN)
//	todos, _ := store.NewSQLiteStore[store.TodoFields](db, store.ResourceTodo, "todos")
package store
