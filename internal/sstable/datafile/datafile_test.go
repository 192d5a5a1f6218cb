package datafile

import "testing"

func TestCreateThenReadEntryRoundTrip(t *testing.T) {
	dir := t.TempDir()

	records := map[string]string{
		"a": "1",
		"b": "2",
		"c": "3",
	}

	offsets, err := Create(dir, 1, records)
	if err != nil {
		t.Fatal(err)
	}
	if len(offsets) != 3 {
		t.Fatalf("expected 3 offsets, got %d", len(offsets))
	}

	f, err := Open(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for key, want := range records {
		rec, err := f.ReadEntry(offsets[key])
		if err != nil {
			t.Fatalf("ReadEntry(%q): %v", key, err)
		}
		if rec == nil {
			t.Fatalf("ReadEntry(%q): expected a record, got nil", key)
		}
		if rec.Key != key || rec.Value != want {
			t.Fatalf("want (%q,%q) got (%q,%q)", key, want, rec.Key, rec.Value)
		}
	}
}

func TestReadEntryPastEndReturnsNil(t *testing.T) {
	dir := t.TempDir()

	if _, err := Create(dir, 1, map[string]string{"a": "1"}); err != nil {
		t.Fatal(err)
	}

	f, err := Open(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rec, err := f.ReadEntry(10_000)
	if err != nil {
		t.Fatalf("expected no error reading past EOF, got %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record past EOF, got %+v", rec)
	}
}

func TestCreateOrdersRecordsByKey(t *testing.T) {
	dir := t.TempDir()

	records := map[string]string{
		"zebra": "z",
		"apple": "a",
		"mango": "m",
	}

	offsets, err := Create(dir, 1, records)
	if err != nil {
		t.Fatal(err)
	}

	if !(offsets["apple"] < offsets["mango"] && offsets["mango"] < offsets["zebra"]) {
		t.Fatalf("expected ascending key order in offsets, got %+v", offsets)
	}
}

func TestTombstoneSentinelRoundTrips(t *testing.T) {
	dir := t.TempDir()

	offsets, err := Create(dir, 1, map[string]string{"k": TombstoneSentinel})
	if err != nil {
		t.Fatal(err)
	}

	f, err := Open(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rec, err := f.ReadEntry(offsets["k"])
	if err != nil {
		t.Fatal(err)
	}
	if !rec.IsTombstone() {
		t.Fatal("expected record to be recognized as a tombstone sentinel")
	}
}

func TestClearRemovesDataFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := Create(dir, 1, map[string]string{"a": "1"}); err != nil {
		t.Fatal(err)
	}
	if err := Clear(dir, 1); err != nil {
		t.Fatal(err)
	}

	f, err := Open(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rec, err := f.ReadEntry(0)
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatal("expected no records after Clear")
	}
}
