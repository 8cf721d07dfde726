package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/sounder/iox"
	"github.com/justapithecus/sounder/types"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(iox.CloseFunc(s))
	return s
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	rec := &Record{
		CollectionID: "vault_notes",
		Snapshot: &types.ProgressSnapshot{
			Status:             types.StatusIndexing,
			ProgressPercentage: 42.5,
			FilesProcessed:     85,
			TotalFiles:         200,
		},
		SavedAt: 1700000000000,
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil record")
	}
	if got.CollectionID != "vault_notes" {
		t.Errorf("CollectionID = %q, want vault_notes", got.CollectionID)
	}
	if got.Snapshot.ProgressPercentage != 42.5 {
		t.Errorf("ProgressPercentage = %v, want 42.5", got.Snapshot.ProgressPercentage)
	}
	if got.Snapshot.FilesProcessed != 85 {
		t.Errorf("FilesProcessed = %d, want 85", got.Snapshot.FilesProcessed)
	}
}

func TestFileStore_LoadAbsent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("Load = %+v, want nil for absent record", got)
	}
}

func TestFileStore_LoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	path := filepath.Join(dir, DefaultKeyPrefix+"-data")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupted record: %v", err)
	}

	_, err = s.Load()
	if !errors.Is(err, ErrCorrupted) {
		t.Errorf("Load error = %v, want ErrCorrupted", err)
	}
}

func TestFileStore_LoadMissingFields(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// Valid JSON but not a usable record
	path := filepath.Join(dir, DefaultKeyPrefix+"-data")
	if err := os.WriteFile(path, []byte(`{"savedAt": 1}`), 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}

	_, err = s.Load()
	if !errors.Is(err, ErrCorrupted) {
		t.Errorf("Load error = %v, want ErrCorrupted", err)
	}
}

func TestFileStore_DeleteRemovesBothKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	rec := &Record{
		CollectionID: "vault_notes",
		Snapshot:     types.NewSnapshot(),
	}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, suffix := range []string{"-collection", "-data"} {
		if _, err := os.Stat(filepath.Join(dir, DefaultKeyPrefix+suffix)); !os.IsNotExist(err) {
			t.Errorf("key %s still present after Delete", suffix)
		}
	}

	// Idempotent
	if err := s.Delete(); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileStore_SaveRejectsEmptyCollection(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(&Record{Snapshot: types.NewSnapshot()}); err == nil {
		t.Error("Save accepted record without collection id")
	}
}

func TestFileStore_LastWriterWins(t *testing.T) {
	s := newTestStore(t)

	for i, pct := range []float64{10, 50, 90} {
		rec := &Record{
			CollectionID: "vault_notes",
			Snapshot:     &types.ProgressSnapshot{Status: types.StatusIndexing, ProgressPercentage: pct},
			SavedAt:      int64(i),
		}
		if err := s.Save(rec); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Snapshot.ProgressPercentage != 90 {
		t.Errorf("ProgressPercentage = %v, want 90 (last write)", got.Snapshot.ProgressPercentage)
	}
}
