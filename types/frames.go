package types

// FrameType represents the type of an inbound frame per PROTOCOL.md.
type FrameType string

// Frame type constants per PROTOCOL.md.
const (
	FrameProgressUpdate        FrameType = "progress_update"
	FrameStatusChange          FrameType = "status_change"
	FrameError                 FrameType = "error"
	FrameHeartbeat             FrameType = "heartbeat"
	FrameConnectionEstablished FrameType = "connection_established"
	FrameOperationResponse     FrameType = "operation_response"
)

// Known returns true if the frame type is part of the protocol.
// Unknown types are dropped by the interpreter but counted for diagnostics.
func (f FrameType) Known() bool {
	switch f {
	case FrameProgressUpdate, FrameStatusChange, FrameError,
		FrameHeartbeat, FrameConnectionEstablished, FrameOperationResponse:
		return true
	}
	return false
}

// Frame is the envelope for all inbound frames per PROTOCOL.md.
// JSON field names match the server wire format; the server calls the
// monitored collection a "resource" on the wire.
type Frame struct {
	// Type is the frame type discriminator.
	Type FrameType `json:"type"`
	// CollectionID identifies the collection the frame belongs to.
	// Empty for frames with no collection affinity (e.g. heartbeat).
	CollectionID string `json:"resourceId,omitempty"`
	// Timestamp is the server-side emit time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
	// Data is the progress payload, present on progress_update frames.
	Data *ProgressData `json:"data,omitempty"`
	// Status is the new status, present on status_change frames.
	Status string `json:"status,omitempty"`
	// Error is the error message, present on error frames.
	Error string `json:"error,omitempty"`
	// Success reports command outcome on operation_response frames.
	Success *bool `json:"success,omitempty"`
}

// ProgressData is the payload of a progress_update frame.
// All fields are pointers: the server omits fields it has no new value
// for, and absent fields keep their previous snapshot value.
type ProgressData struct {
	Status             *string  `json:"status,omitempty"`
	ProgressPercentage *float64 `json:"progressPercentage,omitempty"`
	CurrentFile        *string  `json:"currentFile,omitempty"`
	FilesProcessed     *int64   `json:"filesProcessed,omitempty"`
	TotalFiles         *int64   `json:"totalFiles,omitempty"`
	DocumentsCreated   *int64   `json:"documentsCreated,omitempty"`
	ChunksCreated      *int64   `json:"chunksCreated,omitempty"`
	ProcessingRate     *float64 `json:"processingRate,omitempty"`
	EtaSeconds         *float64 `json:"etaSeconds,omitempty"`
	ErrorsCount        *int64   `json:"errorsCount,omitempty"`
	LastError          *string  `json:"lastError,omitempty"`
}

// CommandType represents an outbound control command per PROTOCOL.md.
type CommandType string

// Command type constants per PROTOCOL.md.
const (
	CommandPause     CommandType = "pause_indexing"
	CommandResume    CommandType = "resume_indexing"
	CommandCancel    CommandType = "cancel_indexing"
	CommandGetStatus CommandType = "get_status"
)

// Command is the envelope for outbound control commands.
type Command struct {
	Type CommandType `json:"type"`
}
