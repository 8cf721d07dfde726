// Package monitor is the consumer-facing facade of the progress
// monitoring subsystem.
//
// A Monitor wires the connection manager, frame interpreter, progress
// reconciler, and visibility coordinator together and exposes a small
// read-only state surface plus the five mutators consumers are allowed
// to call. Consumers never reach into the socket or persisted storage
// directly.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/sounder/adapter"
	"github.com/justapithecus/sounder/archive"
	"github.com/justapithecus/sounder/conn"
	"github.com/justapithecus/sounder/journal"
	"github.com/justapithecus/sounder/log"
	"github.com/justapithecus/sounder/metrics"
	"github.com/justapithecus/sounder/protocol"
	"github.com/justapithecus/sounder/reconcile"
	"github.com/justapithecus/sounder/store"
	"github.com/justapithecus/sounder/types"
	"github.com/justapithecus/sounder/visibility"
)

// publishTimeout bounds downstream event publishing per adapter.
const publishTimeout = 30 * time.Second

// State is the read-only view consumers observe.
type State struct {
	// IsActive reports whether a collection is being monitored.
	IsActive bool
	// IsConnected reports whether the socket is currently connected.
	IsConnected bool
	// CollectionID is the monitored collection, empty when inactive.
	CollectionID string
	// ConnectionState is the detailed connection state.
	ConnectionState types.ConnectionState
	// Progress is a clone of the current snapshot, nil before the
	// first accepted frame of a fresh run.
	Progress *types.ProgressSnapshot
	// Err is the most recent error surfaced by the server or the
	// connection, nil when healthy.
	Err error
	// LastUpdated is the time of the last accepted state mutation.
	LastUpdated time.Time
}

// Config configures a Monitor.
type Config struct {
	// Endpoint is the base WebSocket URL (required).
	Endpoint string
	// ClientID identifies this monitor instance. Empty generates one.
	ClientID string
	// Policy is the reconnection policy. Zero value selects the default.
	Policy types.ReconnectPolicy

	// Store is the durable persistence backend (required).
	Store store.Store
	// GraceWindow overrides the terminal-status cleanup delay.
	GraceWindow time.Duration
	// JournalDir enables frame journaling when non-empty.
	JournalDir string

	// Logger is optional; nil discards log output.
	Logger *log.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
	// Dialer overrides the socket dialer. Nil selects gorilla/websocket.
	Dialer conn.Dialer

	// Adapters receive an event when a run reaches a terminal status.
	Adapters []adapter.Adapter
	// Archiver uploads the final snapshot and journal when set.
	Archiver *archive.Archiver

	// VisibilitySource enables foreground-recovery when set.
	VisibilitySource visibility.Source

	// OnUpdate, when set, observes every state change.
	OnUpdate func(State)
}

// Monitor owns one monitored collection at a time.
type Monitor struct {
	clientID string
	logger   *log.Logger
	metrics  *metrics.Collector

	manager     *conn.Manager
	reconciler  *reconcile.Reconciler
	interpreter *protocol.Interpreter
	coordinator *visibility.Coordinator

	adapters []adapter.Adapter
	archiver *archive.Archiver

	journalDir string

	mu       sync.Mutex
	active   bool
	lastErr  error
	finished bool
	journal  *journal.Journal

	onUpdate func(State)
}

// New creates a Monitor and restores any persisted record. A restored
// record with an active status immediately reconnects to its
// collection; a terminal one is kept visible without reconnecting.
func New(cfg Config) (*Monitor, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}

	m := &Monitor{
		clientID:   cfg.ClientID,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		adapters:   cfg.Adapters,
		archiver:   cfg.Archiver,
		journalDir: cfg.JournalDir,
		onUpdate:   cfg.OnUpdate,
	}

	m.reconciler = reconcile.NewReconciler(reconcile.Config{
		Store:       cfg.Store,
		GraceWindow: cfg.GraceWindow,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
		OnUpdate: func(string, *types.ProgressSnapshot) {
			m.notify()
		},
	})

	m.interpreter = protocol.New(m, cfg.Logger, cfg.Metrics, m)

	manager, err := conn.NewManager(conn.Config{
		Endpoint:      cfg.Endpoint,
		ClientID:      cfg.ClientID,
		Policy:        cfg.Policy,
		Dialer:        cfg.Dialer,
		Logger:        cfg.Logger,
		Metrics:       cfg.Metrics,
		OnFrame:       m.onFrame,
		OnStateChange: m.onStateChange,
	})
	if err != nil {
		return nil, err
	}
	m.manager = manager

	if cfg.VisibilitySource != nil {
		m.coordinator = visibility.NewCoordinator(cfg.VisibilitySource, m, cfg.Logger)
		go m.coordinator.Run()
	}

	m.restore()
	return m, nil
}

// restore resumes a previously persisted run.
func (m *Monitor) restore() {
	collectionID, reconnect := m.reconciler.Restore()
	if collectionID == "" {
		return
	}

	m.mu.Lock()
	m.active = reconnect
	if snap := m.reconciler.Snapshot(); snap != nil && snap.Status.IsTerminal() {
		// Terminal side effects already ran in the previous process.
		m.finished = true
	}
	m.mu.Unlock()

	if !reconnect {
		return
	}

	m.logger.Info("resuming interrupted monitor", map[string]any{"collection_id": collectionID})
	m.openJournal(collectionID)
	_ = m.manager.Connect(context.Background(), collectionID)
}

// StartMonitoring begins monitoring a collection. Starting the
// already-monitored collection is a no-op; starting a different one
// resets the snapshot and switches the connection.
func (m *Monitor) StartMonitoring(ctx context.Context, collectionID string) error {
	if collectionID == "" {
		return errors.New("collection id is required")
	}

	m.mu.Lock()
	if m.active && m.reconciler.CollectionID() == collectionID {
		m.mu.Unlock()
		return m.manager.Connect(ctx, collectionID)
	}
	m.active = true
	m.lastErr = nil
	m.finished = false
	m.mu.Unlock()

	m.reconciler.Reset(collectionID)
	m.openJournal(collectionID)

	if err := m.manager.Connect(ctx, collectionID); err != nil {
		return err
	}
	m.notify()
	return nil
}

// StopMonitoring tears the monitor down: the connection closes with the
// normal code, the persisted record is deleted immediately, and the
// in-memory snapshot is dropped. Idempotent.
func (m *Monitor) StopMonitoring() {
	m.manager.Disconnect()
	m.reconciler.Clear()

	m.mu.Lock()
	m.active = false
	m.lastErr = nil
	if m.journal != nil {
		_ = m.journal.Close()
		m.journal = nil
	}
	m.mu.Unlock()

	m.notify()
}

// Close releases monitor resources. The persisted record is left in
// place so a later process can resume.
func (m *Monitor) Close() {
	if m.coordinator != nil {
		m.coordinator.Stop()
	}
	m.manager.Disconnect()

	m.mu.Lock()
	if m.journal != nil {
		_ = m.journal.Close()
		m.journal = nil
	}
	m.mu.Unlock()

	for _, a := range m.adapters {
		_ = a.Close()
	}
}

// PauseIndexing asks the server to pause the run.
func (m *Monitor) PauseIndexing() error {
	return m.manager.Send(types.Command{Type: types.CommandPause})
}

// ResumeIndexing asks the server to resume a paused run.
func (m *Monitor) ResumeIndexing() error {
	return m.manager.Send(types.Command{Type: types.CommandResume})
}

// CancelIndexing asks the server to cancel the run.
func (m *Monitor) CancelIndexing() error {
	return m.manager.Send(types.Command{Type: types.CommandCancel})
}

// RequestStatus asks the server for a fresh status frame.
func (m *Monitor) RequestStatus() error {
	return m.manager.Send(types.Command{Type: types.CommandGetStatus})
}

// State assembles the current read-only view.
func (m *Monitor) State() State {
	m.mu.Lock()
	active := m.active
	lastErr := m.lastErr
	m.mu.Unlock()

	return State{
		IsActive:        active,
		IsConnected:     m.manager.Connected(),
		CollectionID:    m.reconciler.CollectionID(),
		ConnectionState: m.manager.State(),
		Progress:        m.reconciler.Snapshot(),
		Err:             lastErr,
		LastUpdated:     m.reconciler.LastUpdated(),
	}
}

// --- conn.Manager callbacks ---

func (m *Monitor) onFrame(_ string, raw []byte) {
	m.interpreter.Interpret(m.reconciler.CollectionID(), raw)
}

func (m *Monitor) onStateChange(_ types.ConnectionState, err error) {
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
	}
	m.notify()
}

// --- protocol.Sink ---

// Progress implements protocol.Sink.
func (m *Monitor) Progress(_ string, data *types.ProgressData) {
	m.reconciler.Apply(data)
	if snap := m.reconciler.Snapshot(); snap != nil && snap.Status.IsTerminal() {
		m.finishRun(snap)
	}
}

// StatusChange implements protocol.Sink.
func (m *Monitor) StatusChange(_ string, status types.IndexStatus) {
	m.reconciler.ApplyStatus(status)
	if status.IsTerminal() {
		if snap := m.reconciler.Snapshot(); snap != nil {
			m.finishRun(snap)
		}
	}
}

// ServerError implements protocol.Sink.
func (m *Monitor) ServerError(message string) {
	m.mu.Lock()
	m.lastErr = errors.New(message)
	m.mu.Unlock()
	m.reconciler.SetLastError(message)
}

// --- journal (protocol.Appender) ---

// Append implements protocol.Appender by forwarding to the journal of
// the current run, if any.
func (m *Monitor) Append(e *journal.Entry) error {
	m.mu.Lock()
	jnl := m.journal
	m.mu.Unlock()
	if jnl == nil {
		return nil
	}
	return jnl.Append(e)
}

func (m *Monitor) openJournal(collectionID string) {
	if m.journalDir == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal != nil {
		_ = m.journal.Close()
		m.journal = nil
	}
	jnl, err := journal.Open(m.journalDir, collectionID)
	if err != nil {
		m.logger.Warn("journal disabled for this run", map[string]any{
			"collection_id": collectionID,
			"error":         err.Error(),
		})
		return
	}
	m.journal = jnl
}

// --- visibility.Target ---

// ActiveCollection implements visibility.Target.
func (m *Monitor) ActiveCollection() string {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if !active {
		return ""
	}
	return m.reconciler.CollectionID()
}

// IsConnected implements visibility.Target.
func (m *Monitor) IsConnected() bool {
	return m.manager.Connected()
}

// Reconnect implements visibility.Target.
func (m *Monitor) Reconnect(collectionID string) error {
	return m.manager.Connect(context.Background(), collectionID)
}

// finishRun runs the terminal side effects exactly once per run:
// downstream adapters are notified and the final artifacts archived.
func (m *Monitor) finishRun(snap *types.ProgressSnapshot) {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	m.finished = true
	m.mu.Unlock()

	collectionID := m.reconciler.CollectionID()
	m.logger.Info("indexing run finished", map[string]any{
		"collection_id": collectionID,
		"status":        string(snap.Status),
	})

	if len(m.adapters) > 0 {
		event := adapter.NewIndexingFinishedEvent(collectionID, m.clientID, snap, time.Now())
		go m.publish(event)
	}
	if m.archiver != nil {
		go m.archive(collectionID, snap)
	}
}

func (m *Monitor) publish(event *adapter.IndexingFinishedEvent) {
	for _, a := range m.adapters {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.Publish(ctx, event); err != nil {
			m.logger.Warn("adapter publish failed", map[string]any{
				"collection_id": event.CollectionID,
				"error":         err.Error(),
			})
		}
		cancel()
	}
}

func (m *Monitor) archive(collectionID string, snap *types.ProgressSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := m.archiver.ArchiveSnapshot(ctx, collectionID, m.clientID, snap); err != nil {
		m.logger.Warn("snapshot archive failed", map[string]any{
			"collection_id": collectionID,
			"error":         err.Error(),
		})
	}
	if m.journalDir != "" {
		path := journal.Path(m.journalDir, collectionID)
		if err := m.archiver.ArchiveJournal(ctx, collectionID, path); err != nil {
			m.logger.Warn("journal archive failed", map[string]any{
				"collection_id": collectionID,
				"error":         err.Error(),
			})
		}
	}
}

func (m *Monitor) notify() {
	if m.onUpdate == nil {
		return
	}
	m.onUpdate(m.State())
}

// Verify interface wiring.
var (
	_ protocol.Sink     = (*Monitor)(nil)
	_ protocol.Appender = (*Monitor)(nil)
	_ visibility.Target = (*Monitor)(nil)
)
