// Package engine exposes the public, single-writer key-value façade: get,
// insert, delete, and clear, composed from a memtable and a disktable.
package engine

import (
	"go.uber.org/zap"

	"github.com/petitviolet/rsstable/internal/sstable/disktable"
	"github.com/petitviolet/rsstable/internal/sstable/errs"
	"github.com/petitviolet/rsstable/internal/sstable/memtable"
)

// Engine is the top-level store. It is not safe for concurrent use: the
// caller must serialize access to a single Engine, matching the
// single-writer model the whole storage stack assumes.
type Engine struct {
	dir       string
	memtable  *memtable.Memtable
	disktable *disktable.Disktable
	log       *zap.SugaredLogger
}

// New opens (or creates) an engine rooted at the configured directory.
// The disktable is opened before the memtable so that, on a crash between
// a flush's generation publish and its WAL truncation, the memtable's WAL
// replay harmlessly re-applies mutations already durable on disk.
func New(opts ...Option) (*Engine, error) {
	c := newConfig(opts...)
	if c.dir == "" {
		return nil, errs.Invariant("engine.Dir must be set")
	}

	log := c.logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	dt, err := disktable.Open(c.dir, log)
	if err != nil {
		return nil, err
	}

	mt, err := memtable.New(c.dir, c.maxEntries)
	if err != nil {
		return nil, err
	}

	return &Engine{dir: c.dir, memtable: mt, disktable: dt, log: log}, nil
}

// Get returns the current value for key and whether it was found. A
// Deleted verdict from the memtable is authoritative and short-circuits
// the disktable walk: a key the memtable knows is gone cannot be
// resurrected by an older on-disk generation.
func (e *Engine) Get(key string) (string, bool, error) {
	if v, res := e.memtable.Get(key); res != memtable.NotFound {
		return v, res == memtable.Found, nil
	}
	return e.disktable.Find(key)
}

// Insert upserts key/value. If the write pushes the memtable to its
// capacity threshold, the extracted snapshot is flushed to a fresh disk
// generation and the memtable's WAL is only then truncated — so a crash
// between these two steps loses no data, it just replays it again.
func (e *Engine) Insert(key, value string) error {
	snap, err := e.memtable.Set(key, value)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	return e.flush(snap)
}

// Delete records key as deleted.
func (e *Engine) Delete(key string) error {
	return e.memtable.Delete(key)
}

func (e *Engine) flush(snap *memtable.Snapshot) error {
	if err := e.disktable.Flush(snap); err != nil {
		return err
	}
	return e.memtable.AfterFlush()
}

// Clear removes every generation on disk and empties the memtable's WAL
// and in-memory state, in that order: the disktable must be known-empty
// before the memtable's own durable record of pending writes is dropped.
func (e *Engine) Clear() error {
	if err := e.disktable.Clear(); err != nil {
		return err
	}
	return e.memtable.Clear()
}

// Close releases the memtable's WAL file handle.
func (e *Engine) Close() error {
	return e.memtable.Close()
}
