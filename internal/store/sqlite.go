package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"roomsense/internal/core/port"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the document tree in a single sqlite table, one row
// per document, fields as a JSON object. Multi-path updates run in one
// transaction; watchers get a fresh subtree snapshot after each commit,
// which gives subscribers the same live-read semantics the dashboard
// expects from a server-synchronized store.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu          sync.Mutex
	watchers    map[int64]watchEntry
	nextWatchID int64
	lastPushID  uint64
}

type watchEntry struct {
	path string
	fn   port.WatchFunc
}

func Open(path string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := path
	if path == ":memory:" {
		// shared cache so concurrent connections of the pool see the
		// same in-memory tree
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		path   TEXT PRIMARY KEY,
		fields TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{
		db:       db,
		logger:   logger.With(zap.String("component", "store")),
		watchers: map[int64]watchEntry{},
	}, nil
}

func (s *SQLiteStore) Get(path string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRow(`SELECT fields FROM documents WHERE path = ?`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeFields(raw)
}

func (s *SQLiteStore) GetChildren(path string) (map[string]map[string]any, error) {
	rows, err := s.db.Query(`SELECT path, fields FROM documents WHERE path LIKE ? || '/%'`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	children := map[string]map[string]any{}
	prefix := path + "/"
	for rows.Next() {
		var p, raw string
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, err
		}
		key := strings.TrimPrefix(p, prefix)
		if strings.Contains(key, "/") {
			// grandchild of path, not a direct child
			continue
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		children[key] = fields
	}
	if len(children) == 0 {
		return nil, rows.Err()
	}
	return children, rows.Err()
}

func (s *SQLiteStore) Update(path string, fields map[string]any) error {
	return s.UpdateMulti(map[string]any{path: fields})
}

func (s *SQLiteStore) UpdateMulti(updates map[string]any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	changed := map[string]struct{}{}
	for path, value := range updates {
		doc, field := splitDocPath(path)
		var patch map[string]any
		if field == "" {
			m, ok := value.(map[string]any)
			if !ok {
				tx.Rollback()
				return fmt.Errorf("store: value at %s must be a field map", path)
			}
			patch = m
		} else {
			patch = map[string]any{field: value}
		}
		if err := mergeDoc(tx, doc, patch); err != nil {
			tx.Rollback()
			return err
		}
		changed[doc] = struct{}{}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notify(changed)
	return nil
}

func (s *SQLiteStore) Push(path string, fields map[string]any) (string, error) {
	id := s.nextPushID()
	doc := path + "/" + id
	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	if err := mergeDoc(tx, doc, fields); err != nil {
		tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	s.notify(map[string]struct{}{doc: {}})
	return id, nil
}

func (s *SQLiteStore) Delete(path string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE path = ? OR path LIKE ? || '/%'`, path, path)
	if err != nil {
		return err
	}
	s.notify(map[string]struct{}{path: {}})
	return nil
}

func (s *SQLiteStore) QueryLast(path string, n int) ([]port.Document, error) {
	rows, err := s.db.Query(
		`SELECT path, fields FROM documents WHERE path LIKE ? || '/%' ORDER BY path DESC LIMIT ?`,
		path, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefix := path + "/"
	var docs []port.Document
	for rows.Next() {
		var p, raw string
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, port.Document{Key: strings.TrimPrefix(p, prefix), Fields: fields})
	}
	// query walks newest first; callers want oldest to newest
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, rows.Err()
}

func (s *SQLiteStore) Watch(path string, fn port.WatchFunc) func() {
	s.mu.Lock()
	s.nextWatchID++
	id := s.nextWatchID
	s.watchers[id] = watchEntry{path: path, fn: fn}
	s.mu.Unlock()

	// initial snapshot, like a live read
	if snap, err := s.GetChildren(path); err == nil {
		fn(snap)
	} else {
		s.logger.Error("initial watch snapshot failed", zap.String("path", path), zap.Error(err))
	}

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// notify delivers fresh snapshots to every watcher whose subtree
// overlaps one of the changed document paths.
func (s *SQLiteStore) notify(changed map[string]struct{}) {
	s.mu.Lock()
	targets := make([]watchEntry, 0, len(s.watchers))
	for _, w := range s.watchers {
		for doc := range changed {
			if strings.HasPrefix(doc, w.path+"/") || doc == w.path {
				targets = append(targets, w)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, w := range targets {
		snap, err := s.GetChildren(w.path)
		if err != nil {
			s.logger.Error("watch snapshot failed", zap.String("path", w.path), zap.Error(err))
			continue
		}
		w.fn(snap)
	}
}

// nextPushID returns a strictly increasing, lexicographically sortable
// child ID, so key order is insertion order.
func (s *SQLiteStore) nextPushID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint64(time.Now().UnixMilli()) * 10000
	if id <= s.lastPushID {
		id = s.lastPushID + 1
	}
	s.lastPushID = id
	return fmt.Sprintf("%017d", id)
}

func mergeDoc(tx *sql.Tx, doc string, patch map[string]any) error {
	var raw string
	fields := map[string]any{}
	err := tx.QueryRow(`SELECT fields FROM documents WHERE path = ?`, doc).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil {
		if fields, err = decodeFields(raw); err != nil {
			return err
		}
	}
	for k, v := range patch {
		fields[k] = v
	}
	enc, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO documents (path, fields) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET fields = excluded.fields`, doc, string(enc))
	return err
}

// splitDocPath resolves a logical path to (document, field). Documents
// live at devices/{id} and history/{id}/{childId}; anything deeper
// addresses a field inside the document.
func splitDocPath(path string) (doc string, field string) {
	parts := strings.Split(path, "/")
	docDepth := 2
	if parts[0] == "history" {
		docDepth = 3
	}
	if len(parts) <= docDepth {
		return path, ""
	}
	return strings.Join(parts[:docDepth], "/"), strings.Join(parts[docDepth:], "/")
}

func decodeFields(raw string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// ensure interface compliance
var _ port.DocumentStore = (*SQLiteStore)(nil)
