// Package memtable implements the in-memory, WAL-backed write buffer: a
// map of live entries plus a tombstone set, bounded by a capacity
// threshold that triggers a flush-ready snapshot. The maps are unordered;
// keys are put in order only when a snapshot is read out (SortedKeys) or
// written to disk (datafile.Create).
package memtable

import (
	"sort"

	"github.com/petitviolet/rsstable/internal/sstable/errs"
	"github.com/petitviolet/rsstable/internal/sstable/wal"
)

// GetResult distinguishes "known deleted" from "never seen" so the engine
// can avoid falling through to disk on a key it knows is gone.
type GetResult int

const (
	NotFound GetResult = iota
	Found
	Deleted
)

// Snapshot is the frozen (entries, tombstones) pair extracted from a
// memtable at flush time. Within a snapshot no key appears in both sets.
type Snapshot struct {
	Entries    map[string]string
	Tombstones map[string]struct{}
}

// SortedKeys returns the snapshot's live keys in ascending order.
func (s Snapshot) SortedKeys() []string {
	keys := make([]string, 0, len(s.Entries))
	for k := range s.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Memtable is the bounded, single-writer in-memory buffer described in
// spec §4.7. It is not safe for concurrent use.
type Memtable struct {
	dir        string
	maxEntries int
	entries    map[string]string
	tombstones map[string]struct{}
	wal        *wal.Writer
}

// New replays any existing WAL into a fresh memtable, then opens a WAL
// writer that appends after whatever was just replayed rather than
// truncating it: the replayed mutations stay durable on disk until this
// memtable's own next flush, so a second restart with no intervening
// write can't lose them. Replay is a deterministic function of WAL
// content, so this is safe to call against an empty directory too.
func New(dir string, maxEntries int) (*Memtable, error) {
	entries := make(map[string]string)
	tombstones := make(map[string]struct{})

	for e, err := range wal.Restore(dir) {
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case wal.OpInsert:
			entries[e.Key] = e.Value
			delete(tombstones, e.Key)
		case wal.OpDelete:
			delete(entries, e.Key)
			tombstones[e.Key] = struct{}{}
		default:
			return nil, errs.Invariant("unknown WAL op during replay")
		}
	}

	w, err := wal.NewWriter(dir)
	if err != nil {
		return nil, err
	}

	return &Memtable{
		dir:        dir,
		maxEntries: maxEntries,
		entries:    entries,
		tombstones: tombstones,
		wal:        w,
	}, nil
}

// Get reports whether key is live, known-deleted, or never seen by this
// memtable.
func (m *Memtable) Get(key string) (string, GetResult) {
	if _, ok := m.tombstones[key]; ok {
		return "", Deleted
	}
	if v, ok := m.entries[key]; ok {
		return v, Found
	}
	return "", NotFound
}

// Set upserts key/value, logging to the WAL first. When the memtable has
// reached its capacity threshold, the live entries and tombstones are
// moved out into a Snapshot (replaced in place with empty containers) and
// returned for the caller to flush.
func (m *Memtable) Set(key, value string) (*Snapshot, error) {
	if err := m.wal.Insert(key, value); err != nil {
		return nil, err
	}

	delete(m.tombstones, key)
	m.entries[key] = value

	if len(m.entries) < m.maxEntries {
		return nil, nil
	}

	snap := &Snapshot{Entries: m.entries, Tombstones: m.tombstones}
	m.entries = make(map[string]string)
	m.tombstones = make(map[string]struct{})
	return snap, nil
}

// Delete logs the deletion to the WAL, removes any live entry for key,
// and records the tombstone.
func (m *Memtable) Delete(key string) error {
	if err := m.wal.Delete(key); err != nil {
		return err
	}
	delete(m.entries, key)
	m.tombstones[key] = struct{}{}
	return nil
}

// AfterFlush truncates the WAL once the caller's disktable flush of a
// snapshot returned by Set has durably succeeded. This must never be
// called before the flush completes: truncating first would lose the
// only durable record of the flushed mutations if the flush then failed.
func (m *Memtable) AfterFlush() error {
	return m.wal.Clear()
}

// Clear empties the WAL, the live entries, and the tombstone set.
func (m *Memtable) Clear() error {
	if err := m.wal.Clear(); err != nil {
		return err
	}
	m.entries = make(map[string]string)
	m.tombstones = make(map[string]struct{})
	return nil
}

// Close releases the underlying WAL file handle.
func (m *Memtable) Close() error {
	return m.wal.Close()
}

// Len reports the number of live entries currently buffered.
func (m *Memtable) Len() int {
	return len(m.entries)
}
