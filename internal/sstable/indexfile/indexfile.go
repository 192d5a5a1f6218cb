// Package indexfile implements the per-generation index file — a sorted
// key → data-file-offset mapping — plus its sparse skip-index, used to
// narrow a point lookup before a short linear scan.
package indexfile

import (
	"bufio"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/petitviolet/rsstable/internal/sstable/codec"
	"github.com/petitviolet/rsstable/internal/sstable/errs"
	"github.com/petitviolet/rsstable/internal/sstable/vfile"
)

// Skip is the sparsity of the skip index: one entry is emitted for every
// Skip-th key written (0-based positions Skip-1, 2*Skip-1, ...).
const Skip = 30

func indexName(gen int) string { return "index_" + strconv.Itoa(gen) }
func skipName(gen int) string  { return "index_" + strconv.Itoa(gen) + "_skip" }

// Entry is one resolved (key, data-file offset) pair.
type Entry struct {
	Key    string
	Offset uint64
}

// File binds handles to generation gen's index and skip-index files.
type File struct {
	dir   string
	gen   int
	index *vfile.Handle
	skip  *vfile.Handle
}

func Open(dir string, gen int) (*File, error) {
	index, err := vfile.Open(dir, indexName(gen), vfile.AppendCreate)
	if err != nil {
		return nil, err
	}
	skip, err := vfile.Open(dir, skipName(gen), vfile.AppendCreate)
	if err != nil {
		index.Close()
		return nil, err
	}
	return &File{dir: dir, gen: gen, index: index, skip: skip}, nil
}

func (f *File) Close() error {
	err1 := f.index.Close()
	err2 := f.skip.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// FindIndex narrows the search using the skip index, then linearly scans
// the primary index from the resulting anchor. It returns (nil, nil) when
// the key isn't present in this generation.
func (f *File) FindIndex(key string) (*Entry, error) {
	startOffset, err := f.findSkipAnchor(key)
	if err != nil {
		return nil, err
	}

	offset := startOffset
	for {
		header := make([]byte, codec.Uint32Len)
		n, err := f.index.ReadAt(header, int64(offset))
		if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			return nil, nil
		}
		if n < len(header) {
			// A truncated tail is not reported as corruption here, unlike
			// a short data file record. Spec §4.4 treats a short read
			// mid-record as "not found", not an error.
			return nil, nil
		}

		keyLen, err := codec.Uint32(header)
		if err != nil {
			return nil, err
		}
		if keyLen == 0 {
			return nil, nil
		}

		rest := make([]byte, keyLen+codec.Uint64Len+1)
		n, err = f.index.ReadAt(rest, int64(offset)+int64(len(header)))
		if n < len(rest) {
			return nil, nil
		}

		candidate, err := codec.UTF8String(rest[:keyLen])
		if err != nil {
			return nil, err
		}

		recordLen := uint64(len(header) + len(rest))
		if candidate == key {
			dataOffset, err := codec.Uint64(rest[keyLen : keyLen+codec.Uint64Len])
			if err != nil {
				return nil, err
			}
			return &Entry{Key: candidate, Offset: dataOffset}, nil
		}

		offset += recordLen
	}
}

// findSkipAnchor reads the skip file and returns the byte offset into the
// primary index file from which the linear scan should begin: the offset
// of the last skip entry whose key is strictly less than the search key,
// or 0 if the skip file is empty or every skip key is already >= the
// search key. The scan that follows must still walk forward from there,
// so this is purely an acceleration — never semantics.
func (f *File) findSkipAnchor(key string) (uint64, error) {
	if _, err := f.skip.Seek(0, io.SeekStart); err != nil {
		return 0, errs.IO(err, "failed to seek skip index to start")
	}

	scanner := bufio.NewScanner(f.skip.File)
	var lastOffset uint64

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			return 0, errs.Corrupt("malformed skip index line: missing delimiter")
		}

		skipKey := line[:tab]
		offsetStr := line[tab+1:]

		offset, err := strconv.ParseUint(offsetStr, 10, 64)
		if err != nil {
			return 0, errs.CorruptWrap(err, "malformed skip index offset")
		}

		if skipKey >= key {
			return lastOffset, nil
		}
		lastOffset = offset
	}
	if err := scanner.Err(); err != nil {
		return 0, errs.IO(err, "failed to read skip index")
	}

	return lastOffset, nil
}

// CreateIndex writes a fresh index + skip index for generation gen from a
// pre-sorted-by-key offset mapping, then atomically publishes both files.
func CreateIndex(dir string, gen int, offsets map[string]uint64) error {
	keys := make([]string, 0, len(offsets))
	for k := range offsets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tmpIndex, err := vfile.Open(dir, "tmp_index_"+strconv.Itoa(gen), vfile.TruncateCreate)
	if err != nil {
		return err
	}
	tmpSkip, err := vfile.Open(dir, "tmp_skip_index", vfile.TruncateCreate)
	if err != nil {
		tmpIndex.Close()
		return err
	}

	var idxOffset uint64
	for i, key := range keys {
		dataOffset := offsets[key]

		recordStart := idxOffset

		keyLen, err := codec.PutUint32(len(key))
		if err != nil {
			tmpIndex.Close()
			tmpSkip.Close()
			return err
		}

		if _, err := tmpIndex.Write(keyLen); err != nil {
			tmpIndex.Close()
			tmpSkip.Close()
			return errs.IO(err, "failed to write index key length")
		}
		if _, err := tmpIndex.WriteString(key); err != nil {
			tmpIndex.Close()
			tmpSkip.Close()
			return errs.IO(err, "failed to write index key")
		}
		if _, err := tmpIndex.Write(codec.PutUint64(dataOffset)); err != nil {
			tmpIndex.Close()
			tmpSkip.Close()
			return errs.IO(err, "failed to write index offset")
		}
		if _, err := tmpIndex.Write([]byte{0x00}); err != nil {
			tmpIndex.Close()
			tmpSkip.Close()
			return errs.IO(err, "failed to write index sentinel")
		}

		if i%Skip == Skip-1 {
			line := key + "\t" + strconv.FormatUint(recordStart, 10) + "\n"
			if _, err := tmpSkip.WriteString(line); err != nil {
				tmpIndex.Close()
				tmpSkip.Close()
				return errs.IO(err, "failed to write skip index line")
			}
		}

		idxOffset += uint64(len(keyLen) + len(key) + codec.Uint64Len + 1)
	}

	if err := tmpIndex.Sync(); err != nil {
		tmpIndex.Close()
		tmpSkip.Close()
		return errs.IO(err, "failed to sync tmp_index before publish")
	}
	if err := tmpSkip.Sync(); err != nil {
		tmpIndex.Close()
		tmpSkip.Close()
		return errs.IO(err, "failed to sync tmp_skip_index before publish")
	}

	tmpIndexPath := tmpIndex.Path()
	tmpSkipPath := tmpSkip.Path()

	if err := tmpIndex.Close(); err != nil {
		tmpSkip.Close()
		return errs.IO(err, "failed to close tmp_index before publish")
	}
	if err := tmpSkip.Close(); err != nil {
		return errs.IO(err, "failed to close tmp_skip_index before publish")
	}

	if err := vfile.RenameInto(tmpIndexPath, filepath.Join(dir, indexName(gen))); err != nil {
		return err
	}
	return vfile.RenameInto(tmpSkipPath, filepath.Join(dir, skipName(gen)))
}

// Clear removes generation gen's index and skip-index files.
func Clear(dir string, gen int) error {
	if err := vfile.Remove(dir, indexName(gen)); err != nil {
		return err
	}
	return vfile.Remove(dir, skipName(gen))
}
