// Package reconcile merges accepted frames into a single coherent
// progress snapshot and mirrors it to durable storage.
//
// The server is the single source of truth: an accepted progress frame
// replaces the snapshot wholesale, with absent optional fields keeping
// their previous value. Terminal statuses finalize the run, keeping the
// in-memory snapshot visible while the persisted record is deleted
// after a short grace window.
package reconcile

import (
	"sync"
	"time"

	"github.com/justapithecus/sounder/log"
	"github.com/justapithecus/sounder/metrics"
	"github.com/justapithecus/sounder/store"
	"github.com/justapithecus/sounder/types"
)

// DefaultGraceWindow is the delay between a terminal status and the
// persisted record going away. Long enough for a consumer to render
// the final state once.
const DefaultGraceWindow = 3 * time.Second

// Config configures a Reconciler.
type Config struct {
	// Store is the durable mirror. Required.
	Store store.Store

	// GraceWindow overrides DefaultGraceWindow when positive.
	GraceWindow time.Duration

	// Logger defaults to a nop logger.
	Logger *log.Logger

	// Metrics is optional.
	Metrics *metrics.Collector

	// OnUpdate, when set, is invoked with a clone of the snapshot after
	// every accepted mutation. Called outside the reconciler lock.
	OnUpdate func(collectionID string, snap *types.ProgressSnapshot)
}

// Reconciler owns the progress snapshot for at most one collection.
type Reconciler struct {
	mu           sync.Mutex
	collectionID string
	snapshot     *types.ProgressSnapshot
	lastUpdated  time.Time

	st          store.Store
	graceWindow time.Duration
	logger      *log.Logger
	metrics     *metrics.Collector
	onUpdate    func(collectionID string, snap *types.ProgressSnapshot)

	finalizeTimer *time.Timer
	now           func() time.Time
}

// NewReconciler creates a Reconciler with an empty snapshot.
func NewReconciler(cfg Config) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	grace := cfg.GraceWindow
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Reconciler{
		st:          cfg.Store,
		graceWindow: grace,
		logger:      logger,
		metrics:     cfg.Metrics,
		onUpdate:    cfg.OnUpdate,
		now:         time.Now,
	}
}

// Reset clears the in-memory snapshot and binds the reconciler to a new
// collection. Any pending finalize cleanup is cancelled; the monotone
// progress guarantee starts over.
func (r *Reconciler) Reset(collectionID string) {
	r.mu.Lock()
	r.cancelFinalizeLocked()
	r.collectionID = collectionID
	r.snapshot = types.NewSnapshot()
	r.lastUpdated = r.now()
	r.mu.Unlock()
}

// Apply merges an accepted progress payload into the snapshot and
// writes through to the store. Fields the server omitted keep their
// previous value. Payloads that violate snapshot invariants are dropped.
func (r *Reconciler) Apply(data *types.ProgressData) {
	if data == nil {
		return
	}

	r.mu.Lock()
	if r.snapshot == nil {
		r.snapshot = types.NewSnapshot()
	}
	prev := r.snapshot

	next := prev.Clone()
	if data.Status != nil {
		if s := types.IndexStatus(*data.Status); knownStatus(s) {
			next.Status = s
		}
	}
	if data.ProgressPercentage != nil {
		next.ProgressPercentage = *data.ProgressPercentage
	}
	if data.CurrentFile != nil {
		next.CurrentFile = data.CurrentFile
	}
	if data.FilesProcessed != nil {
		next.FilesProcessed = *data.FilesProcessed
	}
	if data.TotalFiles != nil {
		next.TotalFiles = *data.TotalFiles
	}
	if data.DocumentsCreated != nil {
		next.DocumentsCreated = *data.DocumentsCreated
	}
	if data.ChunksCreated != nil {
		next.ChunksCreated = *data.ChunksCreated
	}
	if data.ProcessingRate != nil {
		next.ProcessingRate = data.ProcessingRate
	}
	if data.EtaSeconds != nil {
		next.EtaSeconds = data.EtaSeconds
	}
	if data.ErrorsCount != nil {
		next.ErrorsCount = *data.ErrorsCount
	}
	if data.LastError != nil {
		next.LastError = data.LastError
	}

	// Progress never moves backwards mid-run. A lower percentage on a
	// still-indexing run is a reordered leftover, not a regression.
	if prev.Status == types.StatusIndexing && next.Status == types.StatusIndexing &&
		next.ProgressPercentage < prev.ProgressPercentage {
		next.ProgressPercentage = prev.ProgressPercentage
	}

	if err := next.Validate(); err != nil {
		r.metrics.IncFrameDropped(metrics.DropCauseInvalid)
		r.logger.Warn("progress payload violates snapshot invariants", map[string]any{
			"collection_id": r.collectionID,
			"error":         err.Error(),
		})
		r.mu.Unlock()
		return
	}

	r.snapshot = next
	r.lastUpdated = r.now()
	r.persistLocked()
	if next.Status.IsTerminal() {
		r.scheduleFinalizeLocked()
	}
	collectionID, notify := r.collectionID, r.onUpdate
	clone := next.Clone()
	r.mu.Unlock()

	if notify != nil {
		notify(collectionID, clone)
	}
}

// ApplyStatus updates only the status field. Terminal statuses trigger
// the delayed persistence cleanup; the in-memory snapshot stays visible
// until the next Reset.
func (r *Reconciler) ApplyStatus(status types.IndexStatus) {
	r.mu.Lock()
	if r.snapshot == nil {
		r.snapshot = types.NewSnapshot()
	}
	next := r.snapshot.Clone()
	next.Status = status
	r.snapshot = next
	r.lastUpdated = r.now()

	if status.IsTerminal() {
		r.persistLocked()
		r.scheduleFinalizeLocked()
	} else {
		r.persistLocked()
	}
	collectionID, notify := r.collectionID, r.onUpdate
	clone := next.Clone()
	r.mu.Unlock()

	if notify != nil {
		notify(collectionID, clone)
	}
}

// SetLastError records a server-reported error on the snapshot without
// touching progress fields.
func (r *Reconciler) SetLastError(message string) {
	r.mu.Lock()
	if r.snapshot == nil {
		r.snapshot = types.NewSnapshot()
	}
	next := r.snapshot.Clone()
	next.LastError = &message
	r.snapshot = next
	r.lastUpdated = r.now()
	r.persistLocked()
	collectionID, notify := r.collectionID, r.onUpdate
	clone := next.Clone()
	r.mu.Unlock()

	if notify != nil {
		notify(collectionID, clone)
	}
}

// Restore reads a previously persisted record. When the recorded run is
// still active the snapshot is re-established and the caller should
// reconnect to the returned collection. A terminal record is restored
// for visibility with its delayed cleanup rescheduled, but never asks
// for reconnection. Corrupted records are discarded, not propagated.
func (r *Reconciler) Restore() (collectionID string, reconnect bool) {
	rec, err := r.st.Load()
	if err != nil {
		r.logger.Warn("discarding unreadable persisted record", map[string]any{"error": err.Error()})
		if derr := r.st.Delete(); derr != nil {
			r.logger.Warn("failed to remove unreadable record", map[string]any{"error": derr.Error()})
		}
		return "", false
	}
	if rec == nil {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.collectionID = rec.CollectionID
	r.snapshot = rec.Snapshot.Clone()
	r.lastUpdated = time.UnixMilli(rec.SavedAt)

	if rec.Snapshot.Status.IsActive() {
		return rec.CollectionID, true
	}
	if rec.Snapshot.Status.IsTerminal() {
		// The grace window never ran if the previous process died
		// inside it. Run it now.
		r.scheduleFinalizeLocked()
	}
	return rec.CollectionID, false
}

// Clear deletes the persisted record immediately and drops the
// in-memory snapshot. Used by explicit stop.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	r.cancelFinalizeLocked()
	r.collectionID = ""
	r.snapshot = nil
	r.mu.Unlock()

	if err := r.st.Delete(); err != nil {
		r.logger.Warn("failed to delete persisted record", map[string]any{"error": err.Error()})
	}
}

// Snapshot returns a clone of the current snapshot, or nil when no
// collection is being reconciled.
func (r *Reconciler) Snapshot() *types.ProgressSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot.Clone()
}

// CollectionID returns the collection the reconciler is bound to.
func (r *Reconciler) CollectionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectionID
}

// LastUpdated returns the time of the last accepted mutation.
func (r *Reconciler) LastUpdated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdated
}

// persistLocked mirrors the snapshot to the store. Write failures are
// swallowed with a warning: persistence is a durability aid, not a
// correctness requirement.
func (r *Reconciler) persistLocked() {
	if r.collectionID == "" || r.snapshot == nil {
		return
	}
	rec := &store.Record{
		CollectionID: r.collectionID,
		Snapshot:     r.snapshot.Clone(),
		SavedAt:      r.now().UnixMilli(),
	}
	if err := r.st.Save(rec); err != nil {
		r.metrics.IncStoreWriteFailure()
		r.logger.Warn("persisted record write failed", map[string]any{
			"collection_id": r.collectionID,
			"error":         err.Error(),
		})
		return
	}
	r.metrics.IncStoreWriteSuccess()
}

// scheduleFinalizeLocked arms the grace-window cleanup of the persisted
// record. Re-arming replaces any pending timer.
func (r *Reconciler) scheduleFinalizeLocked() {
	r.cancelFinalizeLocked()
	r.finalizeTimer = time.AfterFunc(r.graceWindow, func() {
		if err := r.st.Delete(); err != nil {
			r.logger.Warn("grace-window cleanup failed", map[string]any{"error": err.Error()})
		}
	})
}

func (r *Reconciler) cancelFinalizeLocked() {
	if r.finalizeTimer != nil {
		r.finalizeTimer.Stop()
		r.finalizeTimer = nil
	}
}

func knownStatus(s types.IndexStatus) bool {
	switch s {
	case types.StatusCreated, types.StatusIndexing, types.StatusPaused,
		types.StatusCompleted, types.StatusError, types.StatusCancelled:
		return true
	}
	return false
}
