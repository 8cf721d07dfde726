// Package visibility recovers connections dropped while the process
// was suspended.
//
// A suspended process does not service its read pump, so a peer or
// proxy closing the socket during suspension goes unnoticed until the
// next read. The coordinator watches resume transitions and, when a
// collection is being monitored but the socket is no longer connected,
// immediately asks for a reconnect. Backgrounding itself is left alone;
// the connection may stay open or lapse naturally.
package visibility

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/justapithecus/sounder/log"
)

// Source delivers foreground transitions. Next blocks until the
// process regains the foreground or the source is closed, in which
// case it returns false.
type Source interface {
	Next() bool
	Close() error
}

// SignalSource treats SIGCONT as the foreground signal: the process
// was stopped (ctrl-z, job control, cgroup freeze) and has resumed.
type SignalSource struct {
	ch   chan os.Signal
	done chan struct{}
}

// NewSignalSource subscribes to SIGCONT.
func NewSignalSource() *SignalSource {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCONT)
	return &SignalSource{ch: ch, done: make(chan struct{})}
}

// Next implements Source.
func (s *SignalSource) Next() bool {
	select {
	case <-s.ch:
		return true
	case <-s.done:
		return false
	}
}

// Close implements Source.
func (s *SignalSource) Close() error {
	signal.Stop(s.ch)
	close(s.done)
	return nil
}

// Target is the monitor surface the coordinator drives.
type Target interface {
	// ActiveCollection returns the monitored collection id, empty when
	// nothing is being monitored.
	ActiveCollection() string

	// IsConnected reports whether the socket is currently connected.
	IsConnected() bool

	// Reconnect re-establishes the connection to the collection.
	Reconnect(collectionID string) error
}

// Coordinator forces reconnection on foreground transitions.
type Coordinator struct {
	source Source
	target Target
	logger *log.Logger
	done   chan struct{}
}

// NewCoordinator creates a coordinator. Call Run to start watching.
func NewCoordinator(source Source, target Target, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Coordinator{
		source: source,
		target: target,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run consumes foreground transitions until the source closes.
// Intended to run on its own goroutine.
func (c *Coordinator) Run() {
	defer close(c.done)
	for c.source.Next() {
		c.onForeground()
	}
}

// Stop closes the source and waits for Run to drain.
func (c *Coordinator) Stop() {
	_ = c.source.Close()
	<-c.done
}

func (c *Coordinator) onForeground() {
	collectionID := c.target.ActiveCollection()
	if collectionID == "" {
		return
	}
	if c.target.IsConnected() {
		return
	}

	c.logger.Info("foreground regained with dropped connection, reconnecting", map[string]any{
		"collection_id": collectionID,
	})
	if err := c.target.Reconnect(collectionID); err != nil {
		c.logger.Warn("foreground reconnect failed", map[string]any{
			"collection_id": collectionID,
			"error":         err.Error(),
		})
	}
}

// ChanSource is a Source fed manually. Used in tests and by embedders
// with their own foreground signal.
type ChanSource struct {
	C    chan struct{}
	done chan struct{}
}

// NewChanSource creates a ChanSource with a small buffer.
func NewChanSource() *ChanSource {
	return &ChanSource{C: make(chan struct{}, 4), done: make(chan struct{})}
}

// Foreground queues a foreground transition.
func (s *ChanSource) Foreground() {
	select {
	case s.C <- struct{}{}:
	default:
	}
}

// Next implements Source.
func (s *ChanSource) Next() bool {
	select {
	case <-s.C:
		return true
	case <-s.done:
		return false
	}
}

// Close implements Source.
func (s *ChanSource) Close() error {
	close(s.done)
	return nil
}
