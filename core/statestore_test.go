package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.json")

	in := SummaryBundle{
		VideoID:   "abc123",
		Summaries: []SummaryRecord{{ChunkID: 1, Summary: "hero wins a big pot"}},
	}
	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("WriteJSON() failed: %v", err)
	}

	var out SummaryBundle
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	if out.VideoID != in.VideoID || len(out.Summaries) != 1 || out.Summaries[0].Summary != in.Summaries[0].Summary {
		t.Errorf("roundtrip mismatch: %+v", out)
	}
}

func TestReadMissingFile(t *testing.T) {
	var v SummaryBundle
	err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &v)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestReadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	var v SummaryBundle
	err := ReadJSON(path, &v)
	if !errors.Is(err, ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}
}

func TestFailedWriteLeavesDestinationIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	original := []byte(`{"video_id": "keep-me"}`)
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatal(err)
	}

	// channels are not serializable, so the write fails before any file
	// is touched
	if err := WriteJSON(path, make(chan int)); err == nil {
		t.Fatal("expected marshal failure")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(original) {
		t.Errorf("destination changed after failed write: %q", after)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestCrashedTempFileDoesNotAffectDestination(t *testing.T) {
	// a temp file abandoned before rename (simulated crash) must leave the
	// destination byte-identical and a later write must still succeed
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	original := []byte(`{"video_id": "old"}`)
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".tmp1234", []byte(`{"video_id": "half-wr`), 0644); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(original) {
		t.Errorf("destination changed: %q", after)
	}

	var v SummaryBundle
	if err := ReadJSON(path, &v); err != nil {
		t.Fatalf("ReadJSON() failed: %v", err)
	}
	if v.VideoID != "old" {
		t.Errorf("expected the pre-crash content, got %q", v.VideoID)
	}

	if err := WriteJSON(path, SummaryBundle{VideoID: "new", Summaries: []SummaryRecord{}}); err != nil {
		t.Fatalf("WriteJSON() after simulated crash failed: %v", err)
	}
	if err := ReadJSON(path, &v); err != nil {
		t.Fatal(err)
	}
	if v.VideoID != "new" {
		t.Errorf("expected the new content after recovery write, got %q", v.VideoID)
	}
}
