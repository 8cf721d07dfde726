// Package conn implements the connection manager for the progress
// monitor: a single persistent WebSocket per monitored collection with
// reconnection, exponential backoff, and additive jitter.
//
// The manager owns the entire socket lifecycle. Nothing else in the
// repository dials, closes, or retries connections; consumers observe
// state transitions and inbound frames through callbacks.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// CloseNormal is the closure code reserved for user-initiated shutdown
// per PROTOCOL.md. It suppresses auto-reconnect; any other code is an
// abnormal close and eligible for reconnection.
const CloseNormal = websocket.CloseNormalClosure

// Socket abstracts one open connection. The production implementation
// wraps a gorilla/websocket connection; tests inject stubs.
type Socket interface {
	// ReadText blocks until the next text frame arrives. The returned
	// error carries the close code when the peer closed the connection.
	ReadText() ([]byte, error)

	// WriteJSON writes v as a JSON text frame.
	WriteJSON(v any) error

	// Close sends a close frame with the given code and tears the
	// connection down.
	Close(code int, reason string) error
}

// Dialer opens sockets. Tests inject a stub to drive lifecycle
// scenarios without a network.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Socket, error)
}

// WebsocketDialer is the production Dialer backed by gorilla/websocket.
type WebsocketDialer struct{}

// Dial implements Dialer.
func (WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Socket, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsSocket{conn: ws}, nil
}

// wsSocket adapts *websocket.Conn to the Socket interface.
type wsSocket struct {
	conn *websocket.Conn
}

// ReadText implements Socket. Binary frames are skipped; the protocol
// is text-only.
func (s *wsSocket) ReadText() ([]byte, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

// WriteJSON implements Socket.
func (s *wsSocket) WriteJSON(v any) error {
	return s.conn.WriteJSON(v)
}

// Close implements Socket. The close frame is best-effort; the
// underlying connection is torn down regardless.
func (s *wsSocket) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
	return s.conn.Close()
}

// CloseCode extracts the close code from a read error.
// Returns CloseAbnormalClosure (1006) when the error carries no code,
// which covers connections dropped without a close handshake.
func CloseCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return websocket.CloseAbnormalClosure
}

// Verify WebsocketDialer implements Dialer.
var _ Dialer = (*WebsocketDialer)(nil)
