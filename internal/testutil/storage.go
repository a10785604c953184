package testutil

import (
	"sync"

	"studylink/internal/studylink"
)

// MemoryStorage is a map-backed LocalStorage. Safe for concurrent use.
type MemoryStorage struct {
	mu       sync.Mutex
	items    map[string]string
	writeErr error
	readErr  error
	holds    []chan struct{}
	started  chan struct{}
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items:   make(map[string]string),
		started: make(chan struct{}, 16),
	}
}

func (s *MemoryStorage) GetItem(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", false, s.readErr
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStorage) SetItem(key, value string) error {
	s.mu.Lock()
	var hold chan struct{}
	if len(s.holds) > 0 {
		hold = s.holds[0]
		s.holds = s.holds[1:]
	}
	s.mu.Unlock()

	if hold != nil {
		s.started <- struct{}{}
		<-hold
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.items[key] = value
	return nil
}

func (s *MemoryStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	delete(s.items, key)
	return nil
}

// FailWrites makes SetItem and RemoveItem return err. Pass nil to heal.
func (s *MemoryStorage) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// HoldNextWrite blocks the next SetItem until release is called. The value is
// stored only after release, so writes made in the meantime land first.
func (s *MemoryStorage) HoldNextWrite() (release func()) {
	hold := make(chan struct{})
	s.mu.Lock()
	s.holds = append(s.holds, hold)
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(hold) }) }
}

// WriteStarted receives once per held SetItem call as it begins waiting.
func (s *MemoryStorage) WriteStarted() <-chan struct{} {
	return s.started
}

// FailReads makes GetItem return err. Pass nil to heal.
func (s *MemoryStorage) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

var _ studylink.LocalStorage = (*MemoryStorage)(nil)
