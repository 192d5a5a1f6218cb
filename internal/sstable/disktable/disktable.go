// Package disktable owns the set of immutable generations on disk: it
// routes a read through the newest applicable generation and atomically
// promotes a memtable snapshot into a fresh generation at flush time.
package disktable

import (
	"os"
	"regexp"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/petitviolet/rsstable/internal/sstable/bloomfile"
	"github.com/petitviolet/rsstable/internal/sstable/datafile"
	"github.com/petitviolet/rsstable/internal/sstable/errs"
	"github.com/petitviolet/rsstable/internal/sstable/indexfile"
	"github.com/petitviolet/rsstable/internal/sstable/memtable"
)

var dataFileNamePattern = regexp.MustCompile(`^data_(\d+)$`)

// Disktable is the generation-owning half of the engine. It is not safe
// for concurrent use; the engine serializes access to it.
type Disktable struct {
	dir      string
	dataGen  int
	flushing *memtable.Snapshot
	log      *zap.SugaredLogger
}

// Open scans dir for existing data_G files and resumes from the highest
// generation found. Corrupt file names are ignored rather than rejected,
// matching spec §4.5's directory-scan initialization.
func Open(dir string, log *zap.SugaredLogger) (*Disktable, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.IO(err, "failed to create engine directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.IO(err, "failed to scan engine directory")
	}

	maxGen := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := dataFileNamePattern.FindStringSubmatch(e.Name())
		if len(matches) != 2 {
			continue
		}
		gen, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if gen > maxGen {
			maxGen = gen
		}
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Disktable{dir: dir, dataGen: maxGen, log: log}, nil
}

// Find looks up key, newest generation first. It consults the in-flight
// flushing snapshot (if any) before touching disk, so a key that has
// moved out of the memtable but isn't yet durable on disk stays visible.
func (d *Disktable) Find(key string) (string, bool, error) {
	if d.flushing != nil {
		if _, ok := d.flushing.Tombstones[key]; ok {
			return "", false, nil
		}
		if v, ok := d.flushing.Entries[key]; ok {
			return v, true, nil
		}
	}

	for gen := d.dataGen; gen >= 1; gen-- {
		value, hit, shouldStop, err := d.findInGeneration(gen, key)
		if err != nil {
			return "", false, err
		}
		if shouldStop {
			return value, hit, nil
		}
	}

	return "", false, nil
}

// findInGeneration reports (value, hit, shouldStop, err) for one
// generation: shouldStop is true once this generation has conclusively
// answered the query (a live hit or a persisted tombstone), so the caller
// must not keep walking into older, shadowed generations.
func (d *Disktable) findInGeneration(gen int, key string) (string, bool, bool, error) {
	filter, err := bloomfile.Load(d.dir, gen)
	if err != nil {
		return "", false, false, err
	}
	if filter != nil && !bloomfile.MayContain(filter, key) {
		return "", false, false, nil
	}

	idx, err := indexfile.Open(d.dir, gen)
	if err != nil {
		return "", false, false, err
	}
	entry, err := idx.FindIndex(key)
	closeErr := idx.Close()
	if err != nil {
		return "", false, false, err
	}
	if closeErr != nil {
		return "", false, false, closeErr
	}
	if entry == nil {
		return "", false, false, nil
	}

	data, err := datafile.Open(d.dir, gen)
	if err != nil {
		return "", false, false, err
	}
	rec, err := data.ReadEntry(entry.Offset)
	closeErr = data.Close()
	if err != nil {
		return "", false, false, err
	}
	if closeErr != nil {
		return "", false, false, closeErr
	}
	if rec == nil {
		return "", false, false, nil
	}
	if rec.Key != key {
		// The index pointed into this generation but the stored record
		// disagrees; treat as "not in this generation" rather than
		// aborting the whole read, per spec §4.5 step 2.
		return "", false, false, nil
	}

	if rec.IsTombstone() {
		return "", false, true, nil
	}
	return rec.Value, true, true, nil
}

// Flush atomically promotes snapshot into a fresh generation: live
// entries and any tombstones that must still shadow older generations
// are both persisted (tombstones as a reserved sentinel value, per
// SPEC_FULL §2), then the index and an accelerating bloom filter are
// built from the result.
func (d *Disktable) Flush(snapshot *memtable.Snapshot) error {
	d.flushing = snapshot
	defer func() { d.flushing = nil }()

	next := d.dataGen + 1

	records := make(map[string]string, len(snapshot.Entries)+len(snapshot.Tombstones))
	for k, v := range snapshot.Entries {
		records[k] = v
	}
	for k := range snapshot.Tombstones {
		records[k] = datafile.TombstoneSentinel
	}

	offsets, err := datafile.Create(d.dir, next, records)
	if err != nil {
		return err
	}

	if err := indexfile.CreateIndex(d.dir, next, offsets); err != nil {
		return err
	}

	keys := make([]string, 0, len(offsets))
	for k := range offsets {
		keys = append(keys, k)
	}
	filter := bloomfile.Build(keys)
	if err := bloomfile.Save(d.dir, next, filter); err != nil {
		return err
	}

	d.dataGen = next
	d.log.Infow("flushed memtable snapshot to new generation",
		"generation", next, "entries", len(records))
	return nil
}

// Clear removes every generation's files and resets the generation
// counter to 0. Every generation is attempted even if an earlier one
// fails; all failures are combined into a single returned error.
func (d *Disktable) Clear() error {
	var err error
	for gen := 1; gen <= d.dataGen; gen++ {
		err = multierr.Append(err, datafile.Clear(d.dir, gen))
		err = multierr.Append(err, indexfile.Clear(d.dir, gen))
		err = multierr.Append(err, bloomfile.Clear(d.dir, gen))
	}
	d.dataGen = 0
	return err
}

// Generation reports the highest generation currently on disk (0 if
// none).
func (d *Disktable) Generation() int {
	return d.dataGen
}
