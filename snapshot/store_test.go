package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// writeRecord creates the on-disk files for one snapshot directly, laid
// out the way rescan expects to find them.
func writeRecord(t *testing.T, dir string, ts time.Time, caption string, conf float32, imageSize int) {
	t.Helper()
	base := filepath.Join(dir, ts.Format(FileTimeLayout))

	if err := os.WriteFile(base+ExtImage, make([]byte, imageSize), 0644); err != nil {
		t.Fatalf("writing image: %v", err)
	}

	mb, err := json.Marshal(&Meta{
		Caption:    caption,
		Confidence: conf,
		Timestamp:  ts.Unix(),
	})
	if err != nil {
		t.Fatalf("marshaling meta: %v", err)
	}
	if err := os.WriteFile(base+ExtMeta, mb, 0644); err != nil {
		t.Fatalf("writing meta: %v", err)
	}
}

func TestRescan(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	writeRecord(t, dir, base, "a dog", 0.8, 100)
	writeRecord(t, dir, base.Add(10*time.Second), "a person", 0.9, 100)

	// Unparseable names are ignored.
	if err := os.WriteFile(filepath.Join(dir, "not-a-snapshot.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(dir, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	records := s.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Caption != "a person" {
		t.Errorf("expected newest first, got %q", records[0].Caption)
	}
	if records[1].Caption != "a dog" || records[1].Confidence != 0.8 {
		t.Errorf("sidecar not loaded: %+v", records[1])
	}
	if records[0].Size == 0 {
		t.Error("expected non-zero record size")
	}

	if got := s.GetRecordByID(records[1].ID); got == nil || got.Caption != "a dog" {
		t.Errorf("GetRecordByID failed for %v", records[1].ID)
	}
	if got := s.GetRecordByID("bogus"); got != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestGCOldestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i := 0; i < 3; i++ {
		writeRecord(t, dir, base.Add(time.Duration(i)*time.Second), "a cat", 0.9, 1000)
	}

	s, err := NewStore(dir, 1500)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.gc()

	records := s.Records()
	if len(records) != 1 {
		t.Fatalf("expected gc to keep 1 record, got %d", len(records))
	}
	if !records[0].Time.Equal(base.Add(2 * time.Second)) {
		t.Errorf("expected newest record to survive, got %v", records[0].Time)
	}

	oldest := filepath.Join(dir, base.Format(FileTimeLayout)) + ExtImage
	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Errorf("expected oldest image removed from disk, stat err: %v", err)
	}
}

func TestSubSecondRecordsDistinct(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	writeRecord(t, dir, base, "a dog", 0.8, 100)
	writeRecord(t, dir, base.Add(100*time.Millisecond), "a cat", 0.9, 100)

	s, err := NewStore(dir, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	records := s.Records()
	if len(records) != 2 {
		t.Fatalf("expected records 100ms apart to stay distinct, got %d", len(records))
	}
	if records[0].ID == records[1].ID {
		t.Errorf("expected distinct IDs, both %v", records[0].ID)
	}
	if records[0].Caption != "a cat" {
		t.Errorf("expected newest first, got %q", records[0].Caption)
	}
}

func TestSaveSkipsDuplicateTimestamp(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	mat := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer mat.Close()

	ts := time.Now()
	r1, err := s.Save(mat, ts, "a dog", 0.8)
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	r2, err := s.Save(mat, ts, "a cat", 0.9)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}

	if r2 != r1 {
		t.Errorf("expected same-instant save to return the existing record, got %+v", r2)
	}
	if r2.Caption != "a dog" {
		t.Errorf("expected the first caption kept, got %q", r2.Caption)
	}
	if got := len(s.Records()); got != 1 {
		t.Errorf("expected 1 record after duplicate save, got %d", got)
	}
}

func TestGCDisabled(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeRecord(t, dir, base, "a cow", 0.7, 4096)

	s, err := NewStore(dir, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.gc()

	if len(s.Records()) != 1 {
		t.Error("gc with zero cap must not evict")
	}
}
