package wal

import (
	"testing"

	"github.com/petitviolet/rsstable/internal/sstable/vfile"
)

func collect(dir string) ([]Entry, error) {
	var entries []Entry
	for e, err := range Restore(dir) {
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func TestWriterThenRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Insert("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := w.Insert("b", "2"); err != nil {
		t.Fatal(err)
	}
	if err := w.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := collect(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []Entry{
		{Op: OpInsert, Key: "a", Value: "1"},
		{Op: OpInsert, Key: "b", Value: "2"},
		{Op: OpDelete, Key: "a"},
	}
	if len(entries) != len(want) {
		t.Fatalf("want %d entries got %d: %+v", len(want), len(entries), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entry %d: want %+v got %+v", i, want[i], entries[i])
		}
	}
}

func TestRestoreOnMissingWALIsEmpty(t *testing.T) {
	dir := t.TempDir()

	entries, err := collect(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestClearTruncatesWAL(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Insert("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := w.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := w.Insert("b", "2"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := collect(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{{Op: OpInsert, Key: "b", Value: "2"}}
	if len(entries) != 1 || entries[0] != want[0] {
		t.Fatalf("want %+v got %+v", want, entries)
	}
}

func TestRestoreSilentlyDropsTornTrailingLine(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Insert("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash mid-write: an insertion line with no trailing
	// newline.
	h, err := vfile.Open(dir, FileName, vfile.AppendCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.WriteString("I\x00b\x002"); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := collect(dir)
	if err != nil {
		t.Fatalf("expected a torn trailing line to be silently dropped, got error: %v", err)
	}
	want := []Entry{{Op: OpInsert, Key: "a", Value: "1"}}
	if len(entries) != 1 || entries[0] != want[0] {
		t.Fatalf("want %+v got %+v", want, entries)
	}
}

func TestRestoreStopsAtFirstCorruptLine(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Insert("a", "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.handle.WriteString("X\x00garbage\n"); err != nil {
		t.Fatal(err)
	}
	if err := w.Insert("b", "2"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var entries []Entry
	var sawErr error
	for e, err := range Restore(dir) {
		if err != nil {
			sawErr = err
			break
		}
		entries = append(entries, e)
	}

	if sawErr == nil {
		t.Fatal("expected to observe a corruption error")
	}
	if len(entries) != 1 || entries[0].Key != "a" {
		t.Fatalf("expected replay to stop after the first good entry, got %+v", entries)
	}
}
