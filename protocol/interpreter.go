// Package protocol implements the inbound frame interpreter.
//
// Raw socket text is parsed into typed frames (see types.Frame),
// classified on the type discriminator, and routed to a Sink. The
// interpreter never mutates state itself and never fails the
// connection: malformed payloads are counted and dropped, frames for
// a superseded collection are discarded, and unknown types are
// observable but ignored.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/justapithecus/sounder/journal"
	"github.com/justapithecus/sounder/log"
	"github.com/justapithecus/sounder/metrics"
	"github.com/justapithecus/sounder/types"
)

// Sink receives classified frames. The monitor implements this to feed
// the reconciler; tests implement it to record routing decisions.
type Sink interface {
	// Progress delivers an accepted progress_update payload.
	Progress(collectionID string, data *types.ProgressData)

	// StatusChange delivers an accepted status_change transition.
	StatusChange(collectionID string, status types.IndexStatus)

	// ServerError surfaces an error reported by the server, either an
	// error frame or a failed operation_response.
	ServerError(message string)
}

// Appender is the journal surface the interpreter writes to.
// Satisfied by *journal.Journal; nil disables journaling.
type Appender interface {
	Append(e *journal.Entry) error
}

// Interpreter parses and routes inbound frames.
type Interpreter struct {
	sink    Sink
	logger  *log.Logger
	metrics *metrics.Collector
	journal Appender
	now     func() time.Time
}

// New creates an interpreter routing to sink. Logger, metrics, and
// journal are optional.
func New(sink Sink, logger *log.Logger, collector *metrics.Collector, jnl Appender) *Interpreter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Interpreter{
		sink:    sink,
		logger:  logger,
		metrics: collector,
		journal: jnl,
		now:     time.Now,
	}
}

// Interpret parses raw frame text and routes it. current is the
// collection being monitored right now; frames carrying a different
// collection id are stale leftovers from a superseded socket and are
// silently dropped, since transport ordering says nothing across a
// resource switch.
func (i *Interpreter) Interpret(current string, raw []byte) {
	var f types.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		i.metrics.IncDecodeError()
		i.logger.Warn("unparseable frame dropped", map[string]any{
			"error": err.Error(),
			"bytes": len(raw),
		})
		return
	}

	i.appendJournal(&f, raw)

	if !f.Type.Known() {
		i.metrics.IncFrameDropped(metrics.DropCauseUnknown)
		i.logger.Debug("unknown frame type ignored", map[string]any{"type": string(f.Type)})
		return
	}

	switch f.Type {
	case types.FrameProgressUpdate:
		i.routeProgress(current, &f)

	case types.FrameStatusChange:
		i.routeStatusChange(current, &f)

	case types.FrameError:
		i.metrics.IncFrameReceived(string(f.Type))
		if f.Error != "" {
			i.sink.ServerError(f.Error)
		}

	case types.FrameConnectionEstablished:
		// Informational only.
		i.metrics.IncFrameReceived(string(f.Type))
		i.logger.Info("connection established", map[string]any{"collection_id": f.CollectionID})

	case types.FrameOperationResponse:
		i.metrics.IncFrameReceived(string(f.Type))
		if f.Success != nil && !*f.Success {
			msg := f.Error
			if msg == "" {
				msg = "operation failed"
			}
			i.sink.ServerError(msg)
			return
		}
		i.logger.Debug("operation acknowledged", map[string]any{"collection_id": f.CollectionID})

	case types.FrameHeartbeat:
		// Arrival is the liveness signal; no state mutation.
		i.metrics.IncFrameReceived(string(f.Type))
	}
}

func (i *Interpreter) routeProgress(current string, f *types.Frame) {
	if f.CollectionID != current {
		i.metrics.IncFrameDropped(metrics.DropCauseStale)
		i.logger.Debug("stale progress frame dropped", map[string]any{
			"frame_collection":   f.CollectionID,
			"current_collection": current,
		})
		return
	}
	if f.Data == nil {
		i.metrics.IncFrameDropped(metrics.DropCauseInvalid)
		i.logger.Warn("progress frame without data payload", nil)
		return
	}

	i.metrics.IncFrameReceived(string(f.Type))
	i.sink.Progress(f.CollectionID, f.Data)
}

func (i *Interpreter) routeStatusChange(current string, f *types.Frame) {
	// status_change frames carry the collection id when scoped; an
	// empty id applies to the current collection.
	if f.CollectionID != "" && f.CollectionID != current {
		i.metrics.IncFrameDropped(metrics.DropCauseStale)
		return
	}

	status := types.IndexStatus(f.Status)
	switch status {
	case types.StatusCreated, types.StatusIndexing, types.StatusPaused,
		types.StatusCompleted, types.StatusError, types.StatusCancelled:
	default:
		i.metrics.IncFrameDropped(metrics.DropCauseInvalid)
		i.logger.Warn("status change with unknown status", map[string]any{"status": f.Status})
		return
	}

	i.metrics.IncFrameReceived(string(f.Type))
	i.sink.StatusChange(current, status)
}

func (i *Interpreter) appendJournal(f *types.Frame, raw []byte) {
	if i.journal == nil {
		return
	}
	err := i.journal.Append(&journal.Entry{
		ReceivedAt:   i.now().UnixMilli(),
		FrameType:    string(f.Type),
		CollectionID: f.CollectionID,
		Raw:          raw,
	})
	if err != nil {
		i.metrics.IncJournalFailure()
		i.logger.Warn("journal append failed", map[string]any{"error": err.Error()})
	}
}
