// Package bloomfile persists an optional per-generation bloom filter so
// disktable.Find can skip a generation's index/data I/O entirely when the
// filter reports a key as definitely absent.
package bloomfile

import (
	"path/filepath"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/petitviolet/rsstable/internal/sstable/errs"
	"github.com/petitviolet/rsstable/internal/sstable/vfile"
)

// falsePositiveRate is conservative enough that a "maybe present" verdict
// rarely wastes an index/data read, while keeping the on-disk filter small.
const falsePositiveRate = 0.01

func name(gen int) string { return "index_" + strconv.Itoa(gen) + "_bloom" }

// Build constructs a filter sized for the given keys and adds all of them.
func Build(keys []string) *bloom.BloomFilter {
	n := uint(len(keys))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, falsePositiveRate)
	for _, k := range keys {
		filter.Add([]byte(k))
	}
	return filter
}

// Save atomically publishes filter as generation gen's bloom file.
func Save(dir string, gen int, filter *bloom.BloomFilter) error {
	tmp, err := vfile.Open(dir, "tmp_bloom_"+strconv.Itoa(gen), vfile.TruncateCreate)
	if err != nil {
		return err
	}

	if _, err := filter.WriteTo(tmp); err != nil {
		tmp.Close()
		return errs.IO(err, "failed to write bloom filter")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.IO(err, "failed to sync bloom filter")
	}

	tmpPath := tmp.Path()
	if err := tmp.Close(); err != nil {
		return errs.IO(err, "failed to close bloom filter before publish")
	}

	finalPath := filepath.Join(dir, name(gen))
	return vfile.RenameInto(tmpPath, finalPath)
}

// Load reads back generation gen's bloom filter. It returns (nil, nil) if
// no bloom file exists for this generation — the caller should then fall
// back to a direct index lookup, since the filter is an acceleration, not
// part of the format's required contents.
func Load(dir string, gen int) (*bloom.BloomFilter, error) {
	h, err := vfile.Open(dir, name(gen), vfile.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	info, err := h.Stat()
	if err != nil {
		return nil, errs.IO(err, "failed to stat bloom filter")
	}
	if info.Size() == 0 {
		return nil, nil
	}

	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(h); err != nil {
		return nil, errs.CorruptWrap(err, "failed to decode bloom filter")
	}
	return filter, nil
}

// MayContain reports whether key could be present according to filter. A
// false result means the key is definitely absent from this generation.
func MayContain(filter *bloom.BloomFilter, key string) bool {
	if filter == nil {
		return true
	}
	return filter.Test([]byte(key))
}

// Clear removes generation gen's bloom file, if any.
func Clear(dir string, gen int) error {
	return vfile.Remove(dir, name(gen))
}
