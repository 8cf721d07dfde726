package conn

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type readResult struct {
	data []byte
	err  error
}

// StubSocket is a scripted Socket for tests. Reads block until the
// test pushes a frame or a failure.
type StubSocket struct {
	mu    sync.Mutex
	reads chan readResult

	// Writes records every WriteJSON payload.
	Writes []any
	// WriteErr injects a WriteJSON failure.
	WriteErr error
	// Closed is true once Close was called; CloseCodeSent records the
	// code it was called with.
	Closed        bool
	CloseCodeSent int
}

// NewStubSocket creates a stub socket.
func NewStubSocket() *StubSocket {
	return &StubSocket{reads: make(chan readResult, 32)}
}

// PushText queues an inbound text frame.
func (s *StubSocket) PushText(data []byte) {
	s.reads <- readResult{data: data}
}

// FailRead queues a read failure. Use a *websocket.CloseError to
// simulate a peer close with a specific code.
func (s *StubSocket) FailRead(err error) {
	s.reads <- readResult{err: err}
}

// ReadText implements Socket.
func (s *StubSocket) ReadText() ([]byte, error) {
	r := <-s.reads
	return r.data, r.err
}

// WriteJSON implements Socket.
func (s *StubSocket) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.Writes = append(s.Writes, v)
	return nil
}

// Close implements Socket. Unblocks a pending read with the close code
// so the read pump drains, matching real socket behavior.
func (s *StubSocket) Close(code int, reason string) error {
	s.mu.Lock()
	alreadyClosed := s.Closed
	s.Closed = true
	s.CloseCodeSent = code
	s.mu.Unlock()

	if !alreadyClosed {
		select {
		case s.reads <- readResult{err: &websocket.CloseError{Code: code, Text: reason}}:
		default:
		}
	}
	return nil
}

// WriteCount returns the number of recorded writes under lock.
func (s *StubSocket) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes)
}

// WasClosed reports whether Close was called, and with which code.
func (s *StubSocket) WasClosed() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Closed, s.CloseCodeSent
}

// StubDialer is a scripted Dialer for tests. Each Dial consumes one
// entry from Errs (nil meaning success) and, on success, hands out a
// fresh StubSocket. An empty Errs script always succeeds.
type StubDialer struct {
	mu sync.Mutex

	// Errs scripts per-dial failures in order.
	Errs []error
	// AlwaysErr fails every dial once the Errs script is consumed.
	AlwaysErr error
	// Sockets are the successfully dialed sockets in order.
	Sockets []*StubSocket
	// URLs and Headers record every dial target.
	URLs    []string
	Headers []http.Header
}

// NewStubDialer creates a stub dialer that always succeeds.
func NewStubDialer() *StubDialer {
	return &StubDialer{}
}

// Dial implements Dialer.
func (d *StubDialer) Dial(_ context.Context, url string, header http.Header) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.URLs = append(d.URLs, url)
	d.Headers = append(d.Headers, header)

	if len(d.Errs) > 0 {
		err := d.Errs[0]
		d.Errs = d.Errs[1:]
		if err != nil {
			return nil, err
		}
	} else if d.AlwaysErr != nil {
		return nil, d.AlwaysErr
	}

	s := NewStubSocket()
	d.Sockets = append(d.Sockets, s)
	return s, nil
}

// DialCount returns the number of Dial calls.
func (d *StubDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.URLs)
}

// LastSocket returns the most recently dialed socket, or nil.
func (d *StubDialer) LastSocket() *StubSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Sockets) == 0 {
		return nil
	}
	return d.Sockets[len(d.Sockets)-1]
}

// Verify stubs implement their interfaces.
var (
	_ Socket = (*StubSocket)(nil)
	_ Dialer = (*StubDialer)(nil)
)
