package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, maxEntries int) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	e, err := New(Dir(dir), MaxEntries(maxEntries))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, dir
}

// S1: a plain insert is immediately visible.
func TestInsertThenGet(t *testing.T) {
	e, _ := newEngine(t, 100)

	require.NoError(t, e.Insert("k", "v"))

	v, found, err := e.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", v)
}

// S2: deleting a key that already survived a flush to disk must still
// hide the on-disk value, not just whatever is in the memtable.
func TestDeleteAcrossGenerationsHidesOlderValue(t *testing.T) {
	e, _ := newEngine(t, 1)

	require.NoError(t, e.Insert("k", "v1")) // flushes immediately at maxEntries=1
	require.NoError(t, e.Delete("k"))

	_, found, err := e.Get("k")
	require.NoError(t, err)
	require.False(t, found)
}

// S3: overwriting a key within the memtable keeps only the latest value.
func TestOverwriteBeforeFlushKeepsLatest(t *testing.T) {
	e, _ := newEngine(t, 10)

	require.NoError(t, e.Insert("k", "v1"))
	require.NoError(t, e.Insert("k", "v2"))

	v, found, err := e.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", v)
}

// S4: a flush crosses keys from the memtable to a new disk generation
// without losing any of them.
func TestFlushPreservesAllEntries(t *testing.T) {
	e, _ := newEngine(t, 2)

	require.NoError(t, e.Insert("a", "1"))
	require.NoError(t, e.Insert("b", "2")) // triggers the flush

	for k, want := range map[string]string{"a": "1", "b": "2"} {
		v, found, err := e.Get(k)
		require.NoError(t, err)
		require.True(t, found, "key %q", k)
		require.Equal(t, want, v)
	}
}

// S5: reopening the engine after a clean close replays the WAL and/or
// reads back on-disk generations, reconstructing the same state.
func TestReopenAfterCloseRestoresState(t *testing.T) {
	dir := t.TempDir()

	e1, err := New(Dir(dir), MaxEntries(1))
	require.NoError(t, err)
	require.NoError(t, e1.Insert("a", "1")) // flushes to generation 1
	require.NoError(t, e1.Insert("b", "2")) // flushes to generation 2
	require.NoError(t, e1.Close())

	e2, err := New(Dir(dir), MaxEntries(1))
	require.NoError(t, err)
	defer e2.Close()

	v, found, err := e2.Get("a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", v)

	v, found, err = e2.Get("b")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2", v)
}

// S6: Clear wipes both the disk generations and the memtable/WAL state.
func TestClearWipesEverything(t *testing.T) {
	e, dir := newEngine(t, 1)

	require.NoError(t, e.Insert("a", "1")) // flushes
	require.NoError(t, e.Insert("b", "2")) // flushes again

	require.NoError(t, e.Clear())

	for _, k := range []string{"a", "b"} {
		_, found, err := e.Get(k)
		require.NoError(t, err)
		require.False(t, found, "key %q", k)
	}

	// A subsequent reopen against the same directory starts cold.
	e2, err := New(Dir(dir), MaxEntries(1))
	require.NoError(t, err)
	defer e2.Close()
	require.Equal(t, 0, e2.disktable.Generation())
}

func TestGetUnknownKeyIsNotFound(t *testing.T) {
	e, _ := newEngine(t, 10)

	_, found, err := e.Get("ghost")
	require.NoError(t, err)
	require.False(t, found)
}
