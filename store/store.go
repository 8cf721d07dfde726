// Package store provides durable local persistence for the monitor record.
//
// The record survives process restarts so an interrupted monitor can
// resume watching an active indexing run. Persistence is a best-effort
// durability aid, not a correctness requirement: write failures are
// reported but never fatal, and corrupted records are discarded.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justapithecus/sounder/types"
)

// DefaultKeyPrefix is the fixed prefix for the persisted storage keys.
// The active collection id lands at <prefix>-collection and the
// JSON-encoded snapshot at <prefix>-data.
const DefaultKeyPrefix = "sounder-monitor"

// Key suffixes under the prefix.
const (
	collectionSuffix = "-collection"
	dataSuffix       = "-data"
)

// ErrCorrupted is returned by Load when a persisted record exists but
// cannot be decoded. Callers discard the record rather than propagate.
var ErrCorrupted = errors.New("persisted record corrupted")

// Record is the durable mirror of an active monitor.
type Record struct {
	// CollectionID is the collection the snapshot belongs to.
	CollectionID string `json:"collectionId"`
	// Snapshot is the last accepted progress snapshot.
	Snapshot *types.ProgressSnapshot `json:"snapshot"`
	// SavedAt is the write time in Unix milliseconds.
	SavedAt int64 `json:"savedAt"`
}

// Store abstracts durable persistence of the monitor record.
// Implementations must tolerate concurrent-process last-writer-wins:
// two monitors of the same collection race on the same keys with no
// coordination.
type Store interface {
	// Save overwrites the persisted record.
	Save(rec *Record) error

	// Load reads the persisted record. Returns (nil, nil) when no
	// record exists and ErrCorrupted when one exists but is unreadable.
	Load() (*Record, error)

	// Delete removes the persisted record. Deleting an absent record
	// is a no-op.
	Delete() error

	// Close releases store resources.
	Close() error
}

// FileStore persists the record as two files under a directory,
// mirroring the key scheme of the original storage layer.
type FileStore struct {
	dir    string
	prefix string
}

// NewFileStore creates a file-backed store rooted at dir.
// An empty prefix selects DefaultKeyPrefix. The directory is created
// on first use.
func NewFileStore(dir, prefix string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %q: %w", dir, err)
	}
	return &FileStore{dir: dir, prefix: prefix}, nil
}

func (s *FileStore) collectionPath() string {
	return filepath.Join(s.dir, s.prefix+collectionSuffix)
}

func (s *FileStore) dataPath() string {
	return filepath.Join(s.dir, s.prefix+dataSuffix)
}

// Save implements Store. Both keys are written via write-tmp-rename so
// a crash mid-write never leaves a half-written record behind.
func (s *FileStore) Save(rec *Record) error {
	if rec == nil || rec.CollectionID == "" {
		return errors.New("record requires a collection id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if err := writeAtomic(s.collectionPath(), []byte(rec.CollectionID)); err != nil {
		return fmt.Errorf("write collection key: %w", err)
	}
	if err := writeAtomic(s.dataPath(), data); err != nil {
		return fmt.Errorf("write data key: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.dataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data key: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if rec.CollectionID == "" || rec.Snapshot == nil {
		return nil, fmt.Errorf("%w: missing collection id or snapshot", ErrCorrupted)
	}
	return &rec, nil
}

// Delete implements Store.
func (s *FileStore) Delete() error {
	for _, path := range []string{s.collectionPath(), s.dataPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %q: %w", path, err)
		}
	}
	return nil
}

// Close implements Store. FileStore holds no open resources.
func (s *FileStore) Close() error { return nil }

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Verify FileStore implements Store.
var _ Store = (*FileStore)(nil)
