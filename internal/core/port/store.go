package port

// DocumentStore is the server-synchronized document tree the dashboard
// reads from and writes to. Documents live at two well-known depths:
// devices/{id} and history/{id}/{childId}; paths one segment deeper
// address a single field inside a document.
//
// Multi-path updates are atomic: either every path lands or none does.
// Watch subscriptions deliver a fresh snapshot of the watched subtree
// after every committed change, starting with one initial snapshot.
type DocumentStore interface {
	// Get returns the field map of one document, or nil if absent.
	Get(path string) (map[string]any, error)

	// GetChildren returns all documents directly under path, keyed by
	// child ID.
	GetChildren(path string) (map[string]map[string]any, error)

	// Update merge-writes fields into one document, creating it if
	// needed. Present fields are overwritten, absent ones untouched.
	Update(path string, fields map[string]any) error

	// UpdateMulti applies several paths in one transaction. A value may
	// be a field map (merged into the document at path) or a scalar
	// (written to the field addressed by path).
	UpdateMulti(updates map[string]any) error

	// Push appends a new child document with a generated, time-ordered
	// ID and returns that ID.
	Push(path string, fields map[string]any) (string, error)

	// Delete removes a document or a whole subtree.
	Delete(path string) error

	// QueryLast returns the last n children of path in key order,
	// oldest to newest.
	QueryLast(path string, n int) ([]Document, error)

	// Watch subscribes to a subtree. The returned cancel func stops
	// delivery. Snapshots may be delivered from the writer's goroutine;
	// handlers must not block.
	Watch(path string, fn WatchFunc) (cancel func())

	Close() error
}

// Document is one child returned by QueryLast.
type Document struct {
	Key    string
	Fields map[string]any
}

// WatchFunc receives the current set of documents under the watched
// path. The map is nil when the subtree is empty.
type WatchFunc func(children map[string]map[string]any)
