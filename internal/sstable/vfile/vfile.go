// Package vfile opens files underneath an engine directory in one of the
// three modes the storage layer needs, and provides the atomic
// rename-into-place primitive every flush relies on.
package vfile

import (
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/petitviolet/rsstable/internal/sstable/errs"
)

// Mode selects how a handle is opened relative to an existing file.
type Mode int

const (
	// TruncateCreate opens for read+write, truncating to zero, creating
	// the file if it doesn't exist. Used for tmp_* files and to truncate
	// the WAL in wal.Writer.Clear.
	TruncateCreate Mode = iota

	// AppendCreate opens for read+append, creating the file if it
	// doesn't exist, never truncating. Used to open a published
	// generation's data_G/index_G/index_G_skip files for reading, and
	// for the WAL writer.
	AppendCreate

	// ReadOnly creates an empty file if missing, then reopens read-only.
	// Used to load a generation's bloom filter and to replay the WAL on
	// startup.
	ReadOnly
)

// Handle carries the underlying *os.File plus enough to recompute its
// path, e.g. for a rename into place.
type Handle struct {
	*os.File
	Dir  string
	Name string
}

// Path returns the directory-joined path of the handle.
func (h *Handle) Path() string {
	return filepath.Join(h.Dir, h.Name)
}

// Open opens name under dir in the given mode, creating dir (and any
// missing parents) first.
func Open(dir, name string, mode Mode) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.IO(err, "failed to create engine directory")
	}

	path := filepath.Join(dir, name)

	var f *os.File
	var err error

	switch mode {
	case TruncateCreate:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	case AppendCreate:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	case ReadOnly:
		f, err = os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
		if err == nil {
			if cerr := f.Close(); cerr != nil {
				return nil, errs.IO(cerr, "failed to close after create-if-missing")
			}
			f, err = os.Open(path)
		}
	default:
		return nil, errs.Invariant("unknown vfile mode")
	}

	if err != nil {
		return nil, errs.IO(err, "failed to open "+path)
	}

	return &Handle{File: f, Dir: dir, Name: name}, nil
}

// Remove deletes name under dir, treating "already gone" as success.
func Remove(dir, name string) error {
	err := os.Remove(filepath.Join(dir, name))
	if err != nil && !os.IsNotExist(err) {
		return errs.IO(err, "failed to remove "+name)
	}
	return nil
}

// RenameInto atomically publishes the file at tmpPath as finalPath,
// appearing atomic to any reader on the same filesystem. tmpPath must
// already be flushed to disk by the caller before calling this.
func RenameInto(tmpPath, finalPath string) error {
	if err := atomic.ReplaceFile(tmpPath, finalPath); err != nil {
		return errs.IO(err, "failed to atomically publish "+finalPath)
	}
	return nil
}
