// Package journal implements a diagnostic frame journal.
//
// Every inbound frame accepted by the interpreter may be appended to a
// per-collection journal file as a length-prefixed msgpack record. The
// journal is an append-only diagnostic aid for replaying a monitoring
// session after the fact; losing it never affects monitor correctness.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Record size constants.
const (
	// MaxRecordSize is the maximum journal record size (1 MiB),
	// including the length prefix. Progress frames are tiny; anything
	// near this limit indicates a corrupted stream.
	MaxRecordSize = 1 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxRecordSize - 4 bytes).
	MaxPayloadSize = MaxRecordSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// RecordErrorKind classifies record decoding errors.
type RecordErrorKind int

const (
	// RecordErrorPartial indicates a truncated or incomplete record.
	RecordErrorPartial RecordErrorKind = iota
	// RecordErrorTooLarge indicates a record exceeding MaxRecordSize.
	RecordErrorTooLarge
	// RecordErrorDecode indicates a msgpack decoding error.
	RecordErrorDecode
)

// RecordError represents a record decoding error.
type RecordError struct {
	Kind RecordErrorKind
	Msg  string
	Err  error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Entry is one journaled frame.
// Raw preserves the exact wire text; the discriminator fields are
// duplicated so a reader can filter without re-parsing JSON.
type Entry struct {
	// ReceivedAt is the client receive time in Unix milliseconds.
	ReceivedAt int64 `msgpack:"received_at"`
	// FrameType is the frame's type discriminator.
	FrameType string `msgpack:"frame_type"`
	// CollectionID is the collection the frame belongs to, if any.
	CollectionID string `msgpack:"collection_id,omitempty"`
	// Raw is the frame exactly as received from the socket.
	Raw []byte `msgpack:"raw"`
}

// Journal appends entries to a single journal file.
// Safe for concurrent use.
type Journal struct {
	mu   sync.Mutex
	file *os.File
}

// Path returns the journal file path for a collection under dir.
func Path(dir, collectionID string) string {
	return filepath.Join(dir, collectionID+".frames")
}

// Open opens (or creates) the journal file for the given collection
// under dir. Journal files are named <collection>.frames.
func Open(dir, collectionID string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory is required")
	}
	if collectionID == "" {
		return nil, errors.New("journal requires a collection id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory %q: %w", dir, err)
	}

	path := Path(dir, collectionID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	return &Journal{file: f}, nil
}

// Append encodes the entry and writes it with a 4-byte big-endian
// length prefix.
func (j *Journal) Append(e *Entry) error {
	payload, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return &RecordError{
			Kind: RecordErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := j.file.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Reader decodes length-prefixed journal entries from a stream.
type Reader struct {
	reader io.Reader
}

// NewReader creates a journal reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: r}
}

// OpenReader opens the journal file for a collection and returns a
// reader plus the underlying closer.
func OpenReader(dir, collectionID string) (*Reader, io.Closer, error) {
	path := Path(dir, collectionID)
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	return NewReader(f), f, nil
}

// Next reads a single entry from the stream.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more entries)
//   - *RecordError with Kind=RecordErrorPartial: truncated record
//   - *RecordError with Kind=RecordErrorTooLarge: record exceeds limit
//   - *RecordError with Kind=RecordErrorDecode: msgpack decode failure
func (r *Reader) Next() (*Entry, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(r.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &RecordError{
			Kind: RecordErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &RecordError{
			Kind: RecordErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		return nil, &RecordError{
			Kind: RecordErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	var e Entry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		return nil, &RecordError{
			Kind: RecordErrorDecode,
			Msg:  "failed to decode journal entry",
			Err:  err,
		}
	}
	return &e, nil
}
