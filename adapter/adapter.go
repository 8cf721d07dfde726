// Package adapter defines the event-bus adapter boundary per INTEGRATION.md.
//
// Adapters notify downstream systems when a monitored indexing run
// reaches a terminal status. The monitor owns adapter lifecycle; users
// provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/sounder/types"
)

// SchemaVersion is the published event schema version.
const SchemaVersion = "1"

// IndexingFinishedEvent is the payload published when an indexing run
// reaches a terminal status. Shape is defined in docs/INTEGRATION.md.
type IndexingFinishedEvent struct {
	SchemaVersion      string  `json:"schema_version"`
	EventType          string  `json:"event_type"` // always "indexing_finished"
	CollectionID       string  `json:"collection_id"`
	ClientID           string  `json:"client_id"`
	Status             string  `json:"status"` // completed, error, cancelled
	ProgressPercentage float64 `json:"progress_percentage"`
	FilesProcessed     int64   `json:"files_processed"`
	TotalFiles         int64   `json:"total_files"`
	DocumentsCreated   int64   `json:"documents_created"`
	ChunksCreated      int64   `json:"chunks_created"`
	ErrorsCount        int64   `json:"errors_count"`
	LastError          string  `json:"last_error,omitempty"`
	Timestamp          string  `json:"timestamp"` // ISO 8601
}

// NewIndexingFinishedEvent builds an event from the final snapshot.
func NewIndexingFinishedEvent(collectionID, clientID string, snap *types.ProgressSnapshot, at time.Time) *IndexingFinishedEvent {
	ev := &IndexingFinishedEvent{
		SchemaVersion:      SchemaVersion,
		EventType:          "indexing_finished",
		CollectionID:       collectionID,
		ClientID:           clientID,
		Status:             string(snap.Status),
		ProgressPercentage: snap.ProgressPercentage,
		FilesProcessed:     snap.FilesProcessed,
		TotalFiles:         snap.TotalFiles,
		DocumentsCreated:   snap.DocumentsCreated,
		ChunksCreated:      snap.ChunksCreated,
		ErrorsCount:        snap.ErrorsCount,
		Timestamp:          at.UTC().Format(time.RFC3339),
	}
	if snap.LastError != nil {
		ev.LastError = *snap.LastError
	}
	return ev
}

// Adapter publishes indexing completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends an indexing completion event to the downstream
	// system. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *IndexingFinishedEvent) error

	// Close releases adapter resources.
	Close() error
}

// RetryBackoff runs fn up to 1+retries times with exponential backoff
// between attempts, starting from base. permanent, when non-nil,
// short-circuits retries for errors that will not heal. Returns the
// last error when all attempts fail.
func RetryBackoff(ctx context.Context, retries int, base time.Duration, permanent func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		// Backoff before retries, not before the first attempt.
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
