package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/justapithecus/sounder/log"
	"github.com/justapithecus/sounder/metrics"
	"github.com/justapithecus/sounder/types"
)

// ErrNotConnected is returned by Send when no connection is open.
// Commands are never queued: the caller decides whether to retry
// after the connection recovers.
var ErrNotConnected = errors.New("not connected")

// Config configures a Manager.
type Config struct {
	// Endpoint is the base WebSocket URL, e.g. "ws://127.0.0.1:8191".
	// The per-collection socket path is derived from it.
	Endpoint string
	// ClientID is stamped into the X-Client-ID dial header.
	ClientID string
	// Policy is the reconnection policy. Zero value selects the default.
	Policy types.ReconnectPolicy
	// Dialer opens sockets. Nil selects the gorilla/websocket dialer.
	Dialer Dialer
	// Logger is optional; nil discards log output.
	Logger *log.Logger
	// Metrics is optional; a nil collector is safe.
	Metrics *metrics.Collector

	// OnFrame receives every inbound text frame together with the
	// collection the socket was opened for.
	OnFrame func(collectionID string, raw []byte)
	// OnStateChange observes state transitions. err is non-nil only
	// for transitions into the error state.
	OnStateChange func(state types.ConnectionState, err error)
}

// Manager owns a single persistent socket to one monitored collection.
//
// State is mutated only here, in response to lifecycle events. The
// reconnect counter resets on every successful open and on every
// user-initiated disconnect, and increments on every scheduled retry.
// Once the attempt budget is exhausted the manager stays disconnected
// and does not error: callers observe State() to detect permanent
// failure.
type Manager struct {
	endpoint string
	clientID string
	policy   types.ReconnectPolicy
	dialer   Dialer
	logger   *log.Logger
	metrics  *metrics.Collector
	jitter   func() float64

	onFrame       func(collectionID string, raw []byte)
	onStateChange func(state types.ConnectionState, err error)

	mu             sync.Mutex
	state          types.ConnectionState
	collectionID   string
	socket         Socket
	attempts       int
	reconnectTimer *time.Timer
	allowReconnect bool
	// gen guards against stale callbacks: every Connect/Disconnect
	// bumps it, and events carrying an older generation are ignored.
	gen int
}

// NewManager creates a connection manager. The manager starts idle;
// nothing happens until Connect.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Policy == (types.ReconnectPolicy{}) {
		cfg.Policy = types.DefaultReconnectPolicy()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("reconnect policy: %w", err)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}

	return &Manager{
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		clientID:      cfg.ClientID,
		policy:        cfg.Policy,
		dialer:        cfg.Dialer,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		jitter:        defaultJitter,
		onFrame:       cfg.OnFrame,
		onStateChange: cfg.OnStateChange,
		state:         types.ConnIdle,
	}, nil
}

// State returns the current connection state.
func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the socket is open.
func (m *Manager) Connected() bool {
	return m.State() == types.ConnConnected
}

// Collection returns the currently monitored collection id.
func (m *Manager) Collection() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectionID
}

// Attempts returns the reconnect counter value.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens a socket to the given collection.
//
// Idempotent no-op when already connected (or connecting) to the same
// collection. When connected to a different one, the old socket is
// closed with the normal closure code before the new one opens.
// Dial failures do not surface here; they flow through the state
// machine and the reconnection policy.
func (m *Manager) Connect(ctx context.Context, collectionID string) error {
	if collectionID == "" {
		return errors.New("collection id is required")
	}

	m.mu.Lock()
	sameTarget := m.collectionID == collectionID &&
		(m.state == types.ConnConnected || m.state == types.ConnConnecting)
	if sameTarget {
		m.mu.Unlock()
		return nil
	}

	m.cancelReconnectLocked()
	old := m.socket
	m.socket = nil
	m.collectionID = collectionID
	m.allowReconnect = true
	m.gen++
	gen := m.gen
	m.state = types.ConnConnecting
	cb := m.onStateChange
	m.mu.Unlock()

	if old != nil {
		_ = old.Close(CloseNormal, "switching collections")
	}
	if cb != nil {
		cb(types.ConnConnecting, nil)
	}

	m.dial(ctx, gen, collectionID)
	return nil
}

// Disconnect closes the connection on user request: the pending
// reconnect timer (if any) is cancelled first so no retry fires
// against a collection the caller no longer wants, the socket is
// closed with the normal closure code, and the reconnect counter
// resets. Auto-reconnection stays suppressed until the next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.allowReconnect = false
	m.attempts = 0
	m.gen++
	sock := m.socket
	m.socket = nil
	changed := m.state != types.ConnDisconnected
	m.state = types.ConnDisconnected
	cb := m.onStateChange
	m.mu.Unlock()

	if sock != nil {
		_ = sock.Close(CloseNormal, "user disconnect")
	}
	if changed && cb != nil {
		cb(types.ConnDisconnected, nil)
	}
}

// Send writes a control command to the open socket. Fails loudly with
// ErrNotConnected when no connection is open; commands are never
// queued or silently dropped.
func (m *Manager) Send(cmd types.Command) error {
	m.mu.Lock()
	sock := m.socket
	connected := m.state == types.ConnConnected
	m.mu.Unlock()

	if !connected || sock == nil {
		m.metrics.IncCommandRejected()
		return fmt.Errorf("%w: cannot send %s", ErrNotConnected, cmd.Type)
	}
	if err := sock.WriteJSON(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	m.metrics.IncCommandSent()
	return nil
}

// collectionURL derives the per-collection socket target.
func (m *Manager) collectionURL(collectionID string) string {
	return m.endpoint + "/ws/" + url.PathEscape(collectionID)
}

func (m *Manager) dialHeader() http.Header {
	h := http.Header{}
	if m.clientID != "" {
		h.Set("X-Client-ID", m.clientID)
	}
	return h
}

// dial opens the socket and commits it if the generation is still
// current. A Connect or Disconnect issued while the dial was in
// flight supersedes the result.
func (m *Manager) dial(ctx context.Context, gen int, collectionID string) {
	sock, err := m.dialer.Dial(ctx, m.collectionURL(collectionID), m.dialHeader())

	m.mu.Lock()
	if gen != m.gen || !m.allowReconnect {
		m.mu.Unlock()
		if err == nil {
			_ = sock.Close(CloseNormal, "superseded")
		}
		return
	}

	if err != nil {
		m.logger.Warn("dial failed", map[string]any{
			"collection_id": collectionID,
			"error":         err.Error(),
			"attempt":       m.attempts,
		})
		m.state = types.ConnDisconnected
		cb := m.onStateChange
		m.metrics.IncAbnormalClose()
		m.scheduleReconnectLocked()
		m.mu.Unlock()

		if cb != nil {
			cb(types.ConnError, err)
			cb(types.ConnDisconnected, nil)
		}
		return
	}

	m.socket = sock
	m.attempts = 0
	m.state = types.ConnConnected
	cb := m.onStateChange
	m.metrics.IncConnectOpened()
	m.mu.Unlock()

	m.logger.Info("connected", map[string]any{"collection_id": collectionID})
	if cb != nil {
		cb(types.ConnConnected, nil)
	}

	go m.readPump(gen, sock, collectionID)
}

// readPump delivers inbound frames until the socket fails or closes.
func (m *Manager) readPump(gen int, sock Socket, collectionID string) {
	for {
		data, err := sock.ReadText()
		if err != nil {
			m.handleReadError(gen, collectionID, err)
			return
		}

		m.mu.Lock()
		stale := gen != m.gen
		onFrame := m.onFrame
		m.mu.Unlock()
		if stale {
			return
		}
		if onFrame != nil {
			onFrame(collectionID, data)
		}
	}
}

// handleReadError processes socket failure or closure. The close code
// decides reconnection: CloseNormal suppresses it, anything else is an
// abnormal close and schedules a retry while the budget lasts.
func (m *Manager) handleReadError(gen int, collectionID string, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.socket = nil

	code := CloseCode(err)
	var closeErr *websocket.CloseError
	cleanClose := errors.As(err, &closeErr)

	m.state = types.ConnDisconnected
	cb := m.onStateChange

	if code != CloseNormal && m.allowReconnect {
		m.metrics.IncAbnormalClose()
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()

	m.logger.Info("connection closed", map[string]any{
		"collection_id": collectionID,
		"close_code":    code,
	})

	if cb != nil {
		// Transport failures without a close handshake surface as an
		// error transition before the disconnect, mirroring separate
		// error and close events on the wire.
		if !cleanClose {
			cb(types.ConnError, err)
		}
		cb(types.ConnDisconnected, nil)
	}
}

// scheduleReconnectLocked arms the reconnect timer for the next
// attempt, or gives up when the budget is exhausted. Caller holds mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.policy.MaxAttempts {
		m.metrics.IncReconnectExhausted()
		m.logger.Warn("reconnect attempts exhausted", map[string]any{
			"collection_id": m.collectionID,
			"max_attempts":  m.policy.MaxAttempts,
		})
		return
	}

	m.attempts++
	attempt := m.attempts
	delay := BackoffDelay(m.policy, attempt, m.jitter)
	gen := m.gen
	collectionID := m.collectionID
	m.metrics.IncReconnectScheduled()

	m.logger.Info("reconnect scheduled", map[string]any{
		"collection_id": collectionID,
		"attempt":       attempt,
		"delay_ms":      delay.Milliseconds(),
	})

	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if gen != m.gen || !m.allowReconnect {
			m.mu.Unlock()
			return
		}
		m.reconnectTimer = nil
		m.state = types.ConnConnecting
		cb := m.onStateChange
		m.mu.Unlock()

		if cb != nil {
			cb(types.ConnConnecting, nil)
		}
		m.dial(context.Background(), gen, collectionID)
	})
}

// cancelReconnectLocked stops a pending reconnect timer. Caller holds mu.
func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}
