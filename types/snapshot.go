//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// IndexStatus represents the lifecycle status of an indexing run.
type IndexStatus string

// Index status constants per PROTOCOL.md.
const (
	StatusCreated   IndexStatus = "created"
	StatusIndexing  IndexStatus = "indexing"
	StatusPaused    IndexStatus = "paused"
	StatusCompleted IndexStatus = "completed"
	StatusError     IndexStatus = "error"
	StatusCancelled IndexStatus = "cancelled"
)

// IsTerminal returns true if no further progress frames are expected.
func (s IndexStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// IsActive returns true if the run is still producing progress frames.
// Active runs found in a persisted record trigger reconnection on restore.
func (s IndexStatus) IsActive() bool {
	return s == StatusIndexing || s == StatusPaused
}

// ProgressSnapshot is the single coherent view of an indexing run.
// Owned by the reconciler; replaced wholesale on each accepted
// progress frame. The server is the source of truth for every field,
// including ProcessingRate and EtaSeconds, which are opaque
// server-computed values and never recomputed client-side.
type ProgressSnapshot struct {
	Status             IndexStatus `json:"status"`
	ProgressPercentage float64     `json:"progressPercentage"`
	CurrentFile        *string     `json:"currentFile"`
	FilesProcessed     int64       `json:"filesProcessed"`
	TotalFiles         int64       `json:"totalFiles"`
	DocumentsCreated   int64       `json:"documentsCreated"`
	ChunksCreated      int64       `json:"chunksCreated"`
	ProcessingRate     *float64    `json:"processingRate"`
	EtaSeconds         *float64    `json:"etaSeconds"`
	ErrorsCount        int64       `json:"errorsCount"`
	LastError          *string     `json:"lastError"`
}

// NewSnapshot returns an empty snapshot in the created state.
func NewSnapshot() *ProgressSnapshot {
	return &ProgressSnapshot{Status: StatusCreated}
}

// Validate checks snapshot invariants.
func (s *ProgressSnapshot) Validate() error {
	if s.ProgressPercentage < 0 || s.ProgressPercentage > 100 {
		return fmt.Errorf("progress percentage %.2f out of range [0,100]", s.ProgressPercentage)
	}
	if s.FilesProcessed < 0 || s.TotalFiles < 0 || s.DocumentsCreated < 0 ||
		s.ChunksCreated < 0 || s.ErrorsCount < 0 {
		return fmt.Errorf("negative counter in snapshot")
	}
	if s.TotalFiles > 0 && s.FilesProcessed > s.TotalFiles {
		return fmt.Errorf("files processed %d exceeds total %d", s.FilesProcessed, s.TotalFiles)
	}
	return nil
}

// Clone returns a deep copy. Consumers receive clones so the
// reconciler's in-memory snapshot is never aliased.
func (s *ProgressSnapshot) Clone() *ProgressSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.CurrentFile = clonePtr(s.CurrentFile)
	out.ProcessingRate = clonePtr(s.ProcessingRate)
	out.EtaSeconds = clonePtr(s.EtaSeconds)
	out.LastError = clonePtr(s.LastError)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
