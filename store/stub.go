package store

import "sync"

// StubStore records store calls for testing.
// Error fields inject failures for the corresponding operation.
type StubStore struct {
	mu sync.Mutex

	// Rec is the current persisted record, nil when absent.
	Rec *Record

	// Saves counts Save calls; Deletes counts Delete calls.
	Saves   int
	Deletes int

	// SaveErr, LoadErr, DeleteErr inject operation failures.
	SaveErr   error
	LoadErr   error
	DeleteErr error
}

// NewStubStore creates an empty stub store.
func NewStubStore() *StubStore {
	return &StubStore{}
}

// Save implements Store by recording the call.
func (s *StubStore) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	cp := *rec
	s.Rec = &cp
	return nil
}

// Load implements Store.
func (s *StubStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	if s.Rec == nil {
		return nil, nil
	}
	cp := *s.Rec
	return &cp, nil
}

// Delete implements Store.
func (s *StubStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.Rec = nil
	return nil
}

// Close implements Store.
func (s *StubStore) Close() error { return nil }

// Current returns the current record under lock.
func (s *StubStore) Current() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Rec
}

// Verify StubStore implements Store.
var _ Store = (*StubStore)(nil)
