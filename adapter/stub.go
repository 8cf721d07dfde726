package adapter

import (
	"context"
	"sync"
)

// StubAdapter records published events for testing.
// Err injects a publish failure.
type StubAdapter struct {
	mu     sync.Mutex
	Events []*IndexingFinishedEvent
	Err    error
}

// Publish implements Adapter by recording the event.
func (s *StubAdapter) Publish(_ context.Context, event *IndexingFinishedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Events = append(s.Events, event)
	return nil
}

// Close implements Adapter.
func (s *StubAdapter) Close() error { return nil }

// Published returns the recorded events under lock.
func (s *StubAdapter) Published() []*IndexingFinishedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*IndexingFinishedEvent, len(s.Events))
	copy(out, s.Events)
	return out
}

// Verify StubAdapter implements Adapter.
var _ Adapter = (*StubAdapter)(nil)
