// Package metrics provides monitor-session metrics collection.
//
// The Collector accumulates counters for a single monitor instance.
// It is a leaf package with no internal dependencies. Counters cover
// the connection lifecycle, frame ingestion, persistence, and outbound
// commands, and back the `sounder status --json` diagnostics output.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Connection lifecycle
	ConnectsOpened       int64
	AbnormalCloses       int64
	ReconnectsScheduled  int64
	ReconnectsExhausted  int64

	// Frame ingestion
	FramesReceived int64
	FramesByType   map[string]int64
	FramesDropped  int64
	DroppedByCause map[string]int64
	DecodeErrors   int64

	// Persistence
	StoreWriteSuccess int64
	StoreWriteFailure int64
	JournalFailure    int64

	// Commands
	CommandsSent     int64
	CommandsRejected int64

	// Dimensions (informational, set at construction)
	ClientID string
}

// Drop cause labels recorded via IncFrameDropped.
const (
	DropCauseStale   = "stale_collection"
	DropCauseUnknown = "unknown_type"
	DropCauseInvalid = "invalid_payload"
)

// Collector accumulates metrics for a single monitor instance.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	connectsOpened      int64
	abnormalCloses      int64
	reconnectsScheduled int64
	reconnectsExhausted int64

	framesReceived int64
	framesByType   map[string]int64
	framesDropped  int64
	droppedByCause map[string]int64
	decodeErrors   int64

	storeWriteSuccess int64
	storeWriteFailure int64
	journalFailure    int64

	commandsSent     int64
	commandsRejected int64

	clientID string
}

// NewCollector creates a Collector bound to a client identity.
func NewCollector(clientID string) *Collector {
	return &Collector{
		framesByType:   make(map[string]int64),
		droppedByCause: make(map[string]int64),
		clientID:       clientID,
	}
}

// --- Connection lifecycle ---

// IncConnectOpened records a successful socket open.
func (c *Collector) IncConnectOpened() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.connectsOpened++
	c.mu.Unlock()
}

// IncAbnormalClose records a close with a non-normal closure code.
func (c *Collector) IncAbnormalClose() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.abnormalCloses++
	c.mu.Unlock()
}

// IncReconnectScheduled records a scheduled reconnect attempt.
func (c *Collector) IncReconnectScheduled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reconnectsScheduled++
	c.mu.Unlock()
}

// IncReconnectExhausted records reconnection giving up after the
// attempt budget is spent.
func (c *Collector) IncReconnectExhausted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reconnectsExhausted++
	c.mu.Unlock()
}

// --- Frame ingestion ---

// IncFrameReceived records an accepted inbound frame of the given type.
func (c *Collector) IncFrameReceived(frameType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesReceived++
	c.framesByType[frameType]++
	c.mu.Unlock()
}

// IncFrameDropped records a dropped frame with a cause label.
func (c *Collector) IncFrameDropped(cause string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDropped++
	c.droppedByCause[cause]++
	c.mu.Unlock()
}

// IncDecodeError records an unparseable inbound payload.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// --- Persistence ---

// IncStoreWriteSuccess records a successful persisted-record write.
func (c *Collector) IncStoreWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeWriteSuccess++
	c.mu.Unlock()
}

// IncStoreWriteFailure records a failed persisted-record write.
func (c *Collector) IncStoreWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeWriteFailure++
	c.mu.Unlock()
}

// IncJournalFailure records a failed journal append.
func (c *Collector) IncJournalFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.journalFailure++
	c.mu.Unlock()
}

// --- Commands ---

// IncCommandSent records an outbound control command.
func (c *Collector) IncCommandSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsSent++
	c.mu.Unlock()
}

// IncCommandRejected records a command refused because no connection
// was open.
func (c *Collector) IncCommandRejected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsRejected++
	c.mu.Unlock()
}

// Snapshot returns an atomic copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.framesByType))
	for k, v := range c.framesByType {
		byType[k] = v
	}
	byCause := make(map[string]int64, len(c.droppedByCause))
	for k, v := range c.droppedByCause {
		byCause[k] = v
	}

	return Snapshot{
		ConnectsOpened:      c.connectsOpened,
		AbnormalCloses:      c.abnormalCloses,
		ReconnectsScheduled: c.reconnectsScheduled,
		ReconnectsExhausted: c.reconnectsExhausted,
		FramesReceived:      c.framesReceived,
		FramesByType:        byType,
		FramesDropped:       c.framesDropped,
		DroppedByCause:      byCause,
		DecodeErrors:        c.decodeErrors,
		StoreWriteSuccess:   c.storeWriteSuccess,
		StoreWriteFailure:   c.storeWriteFailure,
		JournalFailure:      c.journalFailure,
		CommandsSent:        c.commandsSent,
		CommandsRejected:    c.commandsRejected,
		ClientID:            c.clientID,
	}
}
