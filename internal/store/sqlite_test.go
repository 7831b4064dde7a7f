package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "docs.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreUpdateMerges(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update("devices/ROOM1", map[string]any{"name": "Living room", "active": true}))
	require.NoError(t, s.Update("devices/ROOM1", map[string]any{"temp": 22.5}))

	doc, err := s.Get("devices/ROOM1")
	require.NoError(t, err)
	assert.Equal(t, "Living room", doc["name"])
	assert.Equal(t, true, doc["active"])
	assert.Equal(t, 22.5, doc["temp"])
}

func TestStoreGetAbsent(t *testing.T) {
	s := openTestStore(t)

	doc, err := s.Get("devices/NOPE")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestStoreGetChildrenDirectOnly(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update("devices/ROOM1", map[string]any{"name": "a"}))
	require.NoError(t, s.Update("devices/ROOM2", map[string]any{"name": "b"}))
	_, err := s.Push("history/ROOM1", map[string]any{"temp": 20.0})
	require.NoError(t, err)

	children, err := s.GetChildren("devices")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a", children["ROOM1"]["name"])

	// history children are one level deeper, not devices children
	history, err := s.GetChildren("history")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStoreUpdateMultiScalarLeaf(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update("devices/ROOM1", map[string]any{"active": true, "name": "a"}))
	require.NoError(t, s.Update("devices/ROOM2", map[string]any{"active": true}))

	err := s.UpdateMulti(map[string]any{
		"devices/ROOM1/active": false,
		"devices/ROOM2/active": false,
	})
	require.NoError(t, err)

	doc1, _ := s.Get("devices/ROOM1")
	doc2, _ := s.Get("devices/ROOM2")
	assert.Equal(t, false, doc1["active"])
	assert.Equal(t, "a", doc1["name"])
	assert.Equal(t, false, doc2["active"])
}

func TestStoreUpdateMultiAtomic(t *testing.T) {
	s := openTestStore(t)

	// a non-map value at document depth is invalid; nothing from the
	// same batch may land
	err := s.UpdateMulti(map[string]any{
		"devices/ROOM1": map[string]any{"active": true},
		"devices/ROOM2": "not a field map",
	})
	require.Error(t, err)

	doc, err := s.Get("devices/ROOM1")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestStorePushOrderingAndQueryLast(t *testing.T) {
	s := openTestStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.Push("history/ROOM1", map[string]any{"temp": 20.0 + float64(i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// generated IDs sort in insertion order
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}

	docs, err := s.QueryLast("history/ROOM1", 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	// last three, oldest to newest
	assert.Equal(t, 22.0, docs[0].Fields["temp"])
	assert.Equal(t, 24.0, docs[2].Fields["temp"])
}

func TestStoreQueryLastFewerThanLimit(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Push("history/ROOM1", map[string]any{"temp": 20.0})
	require.NoError(t, err)

	docs, err := s.QueryLast("history/ROOM1", 20)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestStoreDeleteSubtree(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Update("devices/ROOM1", map[string]any{"name": "a"}))
	_, err := s.Push("history/ROOM1", map[string]any{"temp": 20.0})
	require.NoError(t, err)
	_, err = s.Push("history/ROOM1", map[string]any{"temp": 21.0})
	require.NoError(t, err)

	require.NoError(t, s.Delete("history/ROOM1"))

	docs, err := s.QueryLast("history/ROOM1", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)

	// unrelated documents survive
	doc, err := s.Get("devices/ROOM1")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestStoreWatchDeliversSnapshots(t *testing.T) {
	s := openTestStore(t)

	var snapshots []map[string]map[string]any
	cancel := s.Watch("devices", func(children map[string]map[string]any) {
		snapshots = append(snapshots, children)
	})
	defer cancel()

	// initial snapshot of the empty subtree
	require.Len(t, snapshots, 1)
	assert.Nil(t, snapshots[0])

	require.NoError(t, s.Update("devices/ROOM1", map[string]any{"name": "a"}))
	require.Len(t, snapshots, 2)
	assert.Equal(t, "a", snapshots[1]["ROOM1"]["name"])

	// a history write must not wake a devices watcher
	_, err := s.Push("history/ROOM1", map[string]any{"temp": 20.0})
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)

	require.NoError(t, s.Delete("devices/ROOM1"))
	require.Len(t, snapshots, 3)
	assert.Nil(t, snapshots[2])
}

func TestStoreWatchCancel(t *testing.T) {
	s := openTestStore(t)

	count := 0
	cancel := s.Watch("devices", func(map[string]map[string]any) { count++ })
	require.Equal(t, 1, count)

	cancel()
	require.NoError(t, s.Update("devices/ROOM1", map[string]any{"name": "a"}))
	assert.Equal(t, 1, count)
}
