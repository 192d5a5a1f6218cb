// Package datafile implements the per-generation data file: a sequence of
// length-prefixed (key, value) records sorted ascending by key, with
// random-access reads by byte offset.
package datafile

import (
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/petitviolet/rsstable/internal/sstable/codec"
	"github.com/petitviolet/rsstable/internal/sstable/errs"
	"github.com/petitviolet/rsstable/internal/sstable/vfile"
)

// Name returns the data file name for generation gen.
func Name(gen int) string {
	return "data_" + strconv.Itoa(gen)
}

// TombstoneSentinel is the value written for a key that was deleted in the
// memtable but must still be persisted at flush time, so an older
// generation's live entry for the same key stays shadowed. It embeds a
// literal NUL byte, the WAL's field separator, so a value equal to it
// cannot be replayed from the WAL; Insert itself does not reject such a
// value.
const TombstoneSentinel = "\x00tombstone"

// Record is one decoded (key, value) pair read back from a data file.
type Record struct {
	Key   string
	Value string
}

// IsTombstone reports whether this record is a persisted deletion marker.
func (r Record) IsTombstone() bool {
	return r.Value == TombstoneSentinel
}

// File binds a handle to generation gen's data file, opened append-create
// (creating an empty file if none exists). It is only read through;
// Create writes a generation's data via tmp_data and a rename.
type File struct {
	dir    string
	gen    int
	handle *vfile.Handle
}

func Open(dir string, gen int) (*File, error) {
	h, err := vfile.Open(dir, Name(gen), vfile.AppendCreate)
	if err != nil {
		return nil, err
	}
	return &File{dir: dir, gen: gen, handle: h}, nil
}

func (f *File) Close() error {
	return f.handle.Close()
}

// ReadEntry reads the record starting at offset. It returns (nil, nil)
// when offset is past the end of the file or the record's lengths are
// the zero-length end-of-records sentinel. It returns a CodeCorrupt error
// when a length advertises more bytes than the file actually holds.
func (f *File) ReadEntry(offset uint64) (*Record, error) {
	header := make([]byte, 2*codec.Uint32Len)
	n, err := f.handle.ReadAt(header, int64(offset))
	if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
		return nil, nil
	}
	if n < len(header) {
		return nil, errs.CorruptWrap(err, "short read of data record header")
	}

	keyLen, err := codec.Uint32(header[:codec.Uint32Len])
	if err != nil {
		return nil, err
	}
	valLen, err := codec.Uint32(header[codec.Uint32Len:])
	if err != nil {
		return nil, err
	}

	if keyLen == 0 || valLen == 0 {
		return nil, nil
	}

	payload := make([]byte, keyLen+valLen+1)
	n, err = f.handle.ReadAt(payload, int64(offset)+int64(len(header)))
	if n < len(payload) {
		return nil, errs.CorruptWrap(err, "data record advertises more bytes than the file holds")
	}

	if payload[len(payload)-1] != 0x00 {
		return nil, errs.Corrupt("data record missing trailing sentinel byte")
	}

	key, err := codec.UTF8String(payload[:keyLen])
	if err != nil {
		return nil, err
	}
	value, err := codec.UTF8String(payload[keyLen : keyLen+valLen])
	if err != nil {
		return nil, err
	}

	return &Record{Key: key, Value: value}, nil
}

// Create serializes records (already the union of live entries and any
// tombstone sentinels that must survive the flush) into a fresh
// generation file, in ascending key order, and atomically publishes it.
// It returns the byte offset, within the published file, of each key's
// record — the mapping the index builder needs next.
func Create(dir string, gen int, records map[string]string) (map[string]uint64, error) {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tmp, err := vfile.Open(dir, "tmp_data", vfile.TruncateCreate)
	if err != nil {
		return nil, err
	}

	offsets := make(map[string]uint64, len(keys))
	var offset uint64

	for _, key := range keys {
		value := records[key]

		keyLen, err := codec.PutUint32(len(key))
		if err != nil {
			tmp.Close()
			return nil, err
		}
		valLen, err := codec.PutUint32(len(value))
		if err != nil {
			tmp.Close()
			return nil, err
		}

		if _, err := tmp.Write(keyLen); err != nil {
			tmp.Close()
			return nil, errs.IO(err, "failed to write data record key length")
		}
		if _, err := tmp.Write(valLen); err != nil {
			tmp.Close()
			return nil, errs.IO(err, "failed to write data record value length")
		}
		if _, err := tmp.WriteString(key); err != nil {
			tmp.Close()
			return nil, errs.IO(err, "failed to write data record key")
		}
		if _, err := tmp.WriteString(value); err != nil {
			tmp.Close()
			return nil, errs.IO(err, "failed to write data record value")
		}
		if _, err := tmp.Write([]byte{0x00}); err != nil {
			tmp.Close()
			return nil, errs.IO(err, "failed to write data record sentinel")
		}

		offsets[key] = offset
		offset += uint64(2*codec.Uint32Len + len(key) + len(value) + 1)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, errs.IO(err, "failed to sync tmp_data before publish")
	}
	tmpPath := tmp.Path()
	if err := tmp.Close(); err != nil {
		return nil, errs.IO(err, "failed to close tmp_data before publish")
	}

	finalPath := filepath.Join(dir, Name(gen))
	if err := vfile.RenameInto(tmpPath, finalPath); err != nil {
		return nil, err
	}

	return offsets, nil
}

// Clear removes generation gen's data file.
func Clear(dir string, gen int) error {
	return vfile.Remove(dir, Name(gen))
}
