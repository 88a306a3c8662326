// Package calibstore persists the per-session "calibration completed" flag
// in a versioned JSON file.
package calibstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/drowsy/pkg/fatigue"
)

// ErrNotFound is returned when a session has no calibration record.
var ErrNotFound = errors.New("calibration record not found")

// Record marks one session as calibrated.
type Record struct {
	ID          string    `json:"id"`
	Session     string    `json:"session"`
	CompletedAt time.Time `json:"completed_at"`
}

// JSONStore implements fatigue.CalibrationStore on top of a JSON file.
type JSONStore struct {
	path    string
	records map[string]*Record // by session
	mu      sync.RWMutex
	now     func() time.Time
}

var _ fatigue.CalibrationStore = (*JSONStore)(nil)

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int       `json:"version"`
	UpdatedAt string    `json:"updated_at"`
	Records   []*Record `json:"records"`
}

const currentVersion = 1

// NewJSONStore opens the store at path. The file is created on first write.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:    path,
		records: make(map[string]*Record),
		now:     time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}

	return store, nil
}

// NewDefaultStore opens the store at ~/.drowsy/calibration.json.
func NewDefaultStore() (*JSONStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewJSONStore(filepath.Join(homeDir, ".drowsy", "calibration.json"))
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	if stored.Version > currentVersion {
		return fmt.Errorf("unsupported store version %d", stored.Version)
	}

	s.records = make(map[string]*Record, len(stored.Records))
	for _, r := range stored.Records {
		s.records[r.Session] = r
	}
	return nil
}

// save writes the store to disk. Callers hold the write lock.
func (s *JSONStore) save() error {
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: s.now().Format(time.RFC3339),
		Records:   s.sorted(),
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// sorted returns records newest first.
func (s *JSONStore) sorted() []*Record {
	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].Session < out[j].Session
		}
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out
}

// HasCalibrated implements fatigue.CalibrationStore.
func (s *JSONStore) HasCalibrated(session string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[session]
	return ok
}

// MarkCalibrationCompleted implements fatigue.CalibrationStore. Marking an
// already calibrated session refreshes its timestamp.
func (s *JSONStore) MarkCalibrationCompleted(session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[session]
	if !ok {
		r = &Record{ID: uuid.New().String(), Session: session}
		s.records[session] = r
	}
	r.CompletedAt = s.now()
	return s.save()
}

// Get returns the record for session.
func (s *JSONStore) Get(session string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[session]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, session)
	}
	cp := *r
	return &cp, nil
}

// List returns all records, newest first.
func (s *JSONStore) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sorted()
	out := make([]Record, len(sorted))
	for i, r := range sorted {
		out[i] = *r
	}
	return out
}

// Reset forgets the record for session.
func (s *JSONStore) Reset(session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[session]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, session)
	}
	delete(s.records, session)
	return s.save()
}

// Count returns the number of calibrated sessions.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Path returns the file path of the store.
func (s *JSONStore) Path() string {
	return s.path
}
