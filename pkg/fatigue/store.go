package fatigue

import (
	"sync"
	"time"
)

// CalibrationStore persists the "calibration completed in this session" flag.
type CalibrationStore interface {
	// HasCalibrated reports whether calibration completed for session.
	HasCalibrated(session string) bool

	// MarkCalibrationCompleted records completion for session.
	MarkCalibrationCompleted(session string) error
}

// MemoryStore is a process-local CalibrationStore.
type MemoryStore struct {
	mu        sync.RWMutex
	completed map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{completed: make(map[string]time.Time)}
}

// HasCalibrated implements CalibrationStore.
func (s *MemoryStore) HasCalibrated(session string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completed[session]
	return ok
}

// MarkCalibrationCompleted implements CalibrationStore.
func (s *MemoryStore) MarkCalibrationCompleted(session string) error {
	s.mu.Lock()
	s.completed[session] = time.Now()
	s.mu.Unlock()
	return nil
}

// Reset forgets the flag for session.
func (s *MemoryStore) Reset(session string) {
	s.mu.Lock()
	delete(s.completed, session)
	s.mu.Unlock()
}
