package conn

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/justapithecus/sounder/metrics"
	"github.com/justapithecus/sounder/types"
)

// fastPolicy keeps reconnect delays tiny so lifecycle tests run quickly.
func fastPolicy(maxAttempts int) types.ReconnectPolicy {
	return types.ReconnectPolicy{
		MaxAttempts:       maxAttempts,
		BaseDelay:         2 * time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

type managerHarness struct {
	manager *Manager
	dialer  *StubDialer
	metrics *metrics.Collector

	mu     sync.Mutex
	frames []string
	states []types.ConnectionState
}

func newHarness(t *testing.T, dialer *StubDialer, maxAttempts int) *managerHarness {
	t.Helper()

	h := &managerHarness{dialer: dialer, metrics: metrics.NewCollector("test-client")}
	m, err := NewManager(Config{
		Endpoint: "ws://127.0.0.1:8191",
		ClientID: "test-client",
		Policy:   fastPolicy(maxAttempts),
		Dialer:   dialer,
		Metrics:  h.metrics,
		OnFrame: func(_ string, raw []byte) {
			h.mu.Lock()
			h.frames = append(h.frames, string(raw))
			h.mu.Unlock()
		},
		OnStateChange: func(s types.ConnectionState, _ error) {
			h.mu.Lock()
			h.states = append(h.states, s)
			h.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.jitter = func() float64 { return 0 }
	h.manager = m
	t.Cleanup(m.Disconnect)
	return h
}

func (h *managerHarness) frameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestManager_ConnectOpensSocket(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	if err := h.manager.Connect(context.Background(), "vault_notes"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, "connected", h.manager.Connected)

	if got := h.dialer.DialCount(); got != 1 {
		t.Errorf("DialCount = %d, want 1", got)
	}
	if url := h.dialer.URLs[0]; !strings.HasSuffix(url, "/ws/vault_notes") {
		t.Errorf("dial URL = %q, want /ws/vault_notes suffix", url)
	}
	if got := h.dialer.Headers[0].Get("X-Client-ID"); got != "test-client" {
		t.Errorf("X-Client-ID header = %q, want test-client", got)
	}
	if got := h.manager.Attempts(); got != 0 {
		t.Errorf("Attempts = %d, want 0 after open", got)
	}
}

func TestManager_ConnectIdempotentForSameCollection(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	_ = h.manager.Connect(context.Background(), "vault_notes")
	waitFor(t, "connected", h.manager.Connected)
	_ = h.manager.Connect(context.Background(), "vault_notes")

	if got := h.dialer.DialCount(); got != 1 {
		t.Errorf("DialCount = %d, want 1 (idempotent)", got)
	}
}

func TestManager_SwitchingCollectionsClosesOldSocket(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	_ = h.manager.Connect(context.Background(), "vault_a")
	waitFor(t, "connected to vault_a", h.manager.Connected)
	first := h.dialer.LastSocket()

	_ = h.manager.Connect(context.Background(), "vault_b")
	waitFor(t, "connected to vault_b", func() bool {
		return h.manager.Connected() && h.manager.Collection() == "vault_b"
	})

	closed, code := first.WasClosed()
	if !closed {
		t.Fatal("old socket was not closed on collection switch")
	}
	if code != CloseNormal {
		t.Errorf("old socket close code = %d, want %d", code, CloseNormal)
	}
	if got := h.dialer.DialCount(); got != 2 {
		t.Errorf("DialCount = %d, want 2", got)
	}
}

func TestManager_FramesRouteToCallback(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	_ = h.manager.Connect(context.Background(), "vault_notes")
	waitFor(t, "connected", h.manager.Connected)

	sock := h.dialer.LastSocket()
	sock.PushText([]byte(`{"type":"heartbeat"}`))
	sock.PushText([]byte(`{"type":"progress_update"}`))

	waitFor(t, "two frames delivered", func() bool { return h.frameCount() == 2 })
}

func TestManager_AbnormalCloseTriggersReconnect(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	_ = h.manager.Connect(context.Background(), "vault_notes")
	waitFor(t, "connected", h.manager.Connected)

	h.dialer.LastSocket().FailRead(&websocket.CloseError{Code: websocket.CloseInternalServerErr})

	waitFor(t, "redial", func() bool { return h.dialer.DialCount() == 2 })
	waitFor(t, "reconnected", h.manager.Connected)

	if got := h.manager.Attempts(); got != 0 {
		t.Errorf("Attempts = %d, want 0 after successful reopen", got)
	}
	s := h.metrics.Snapshot()
	if s.AbnormalCloses != 1 {
		t.Errorf("AbnormalCloses = %d, want 1", s.AbnormalCloses)
	}
	if s.ReconnectsScheduled != 1 {
		t.Errorf("ReconnectsScheduled = %d, want 1", s.ReconnectsScheduled)
	}
}

func TestManager_NormalCloseDoesNotReconnect(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	_ = h.manager.Connect(context.Background(), "vault_notes")
	waitFor(t, "connected", h.manager.Connected)

	h.dialer.LastSocket().FailRead(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	waitFor(t, "disconnected", func() bool {
		return h.manager.State() == types.ConnDisconnected
	})

	time.Sleep(30 * time.Millisecond)
	if got := h.dialer.DialCount(); got != 1 {
		t.Errorf("DialCount = %d, want 1 (no reconnect after normal close)", got)
	}
}

func TestManager_DisconnectCancelsPendingReconnect(t *testing.T) {
	dialer := NewStubDialer()
	h := newHarness(t, dialer, 3)

	_ = h.manager.Connect(context.Background(), "vault_notes")
	waitFor(t, "connected", h.manager.Connected)

	// Force an abnormal close with all further dials failing, so a
	// reconnect timer is guaranteed to be pending.
	dialer.AlwaysErr = errors.New("endpoint unreachable")
	h.dialer.LastSocket().FailRead(io.ErrUnexpectedEOF)
	waitFor(t, "reconnect scheduled", func() bool {
		return h.metrics.Snapshot().ReconnectsScheduled >= 1
	})

	h.manager.Disconnect()
	before := dialer.DialCount()

	time.Sleep(50 * time.Millisecond)
	if got := dialer.DialCount(); got != before {
		t.Errorf("DialCount grew from %d to %d after Disconnect", before, got)
	}
	if got := h.manager.Attempts(); got != 0 {
		t.Errorf("Attempts = %d, want 0 after Disconnect", got)
	}
	if got := h.manager.State(); got != types.ConnDisconnected {
		t.Errorf("State = %s, want disconnected", got)
	}
}

func TestManager_ReconnectBudgetExhausts(t *testing.T) {
	dialer := NewStubDialer()
	dialer.AlwaysErr = errors.New("endpoint unreachable")
	h := newHarness(t, dialer, 2)

	_ = h.manager.Connect(context.Background(), "vault_notes")

	waitFor(t, "budget exhausted", func() bool {
		return h.metrics.Snapshot().ReconnectsExhausted == 1
	})

	// Initial dial plus exactly MaxAttempts scheduled retries.
	if got := dialer.DialCount(); got != 3 {
		t.Errorf("DialCount = %d, want 3 (1 initial + 2 retries)", got)
	}
	if got := h.manager.State(); got != types.ConnDisconnected {
		t.Errorf("State = %s, want disconnected after exhaustion", got)
	}
}

func TestManager_SendRequiresConnection(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	err := h.manager.Send(types.Command{Type: types.CommandPause})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send while idle = %v, want ErrNotConnected", err)
	}
	if got := h.metrics.Snapshot().CommandsRejected; got != 1 {
		t.Errorf("CommandsRejected = %d, want 1", got)
	}

	_ = h.manager.Connect(context.Background(), "vault_notes")
	waitFor(t, "connected", h.manager.Connected)

	if err := h.manager.Send(types.Command{Type: types.CommandPause}); err != nil {
		t.Fatalf("Send while connected: %v", err)
	}

	sock := h.dialer.LastSocket()
	if got := sock.WriteCount(); got != 1 {
		t.Fatalf("WriteCount = %d, want 1", got)
	}
	cmd, ok := sock.Writes[0].(types.Command)
	if !ok || cmd.Type != types.CommandPause {
		t.Errorf("written command = %#v, want pause_indexing", sock.Writes[0])
	}
}

func TestManager_StaleFramesDroppedAfterSwitch(t *testing.T) {
	h := newHarness(t, NewStubDialer(), 3)

	_ = h.manager.Connect(context.Background(), "vault_a")
	waitFor(t, "connected to vault_a", h.manager.Connected)
	first := h.dialer.LastSocket()

	_ = h.manager.Connect(context.Background(), "vault_b")
	waitFor(t, "connected to vault_b", func() bool {
		return h.manager.Connected() && h.manager.Collection() == "vault_b"
	})

	// A frame still buffered on the superseded socket must not route.
	first.PushText([]byte(`{"type":"progress_update","resourceId":"vault_a"}`))
	time.Sleep(20 * time.Millisecond)

	if got := h.frameCount(); got != 0 {
		t.Errorf("frames delivered = %d, want 0 from superseded socket", got)
	}
}

func TestNewManager_RequiresEndpoint(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Error("NewManager accepted empty endpoint")
	}
}
