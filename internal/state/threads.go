// internal/state/threads.go

// Package state provides filesystem-backed storage implementations.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/aide/internal/types"
)

// Compile-time interface compliance check.
var _ types.ThreadStore = (*ThreadStore)(nil)

// threadEntry is one persisted user→thread mapping.
type threadEntry struct {
	UserID    types.UserID   `json:"user_id"`
	ThreadID  types.ThreadID `json:"thread_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// ThreadStore is a JSON-file-backed store for the per-user thread mapping,
// so conversations pick up where they left off across restarts.
type ThreadStore struct {
	path string
	mu   sync.RWMutex
}

// NewThreadStore creates a file-backed ThreadStore at the given file path.
func NewThreadStore(path string) *ThreadStore {
	return &ThreadStore{path: path}
}

// Get returns the thread id mapped to the user, if any.
func (s *ThreadStore) Get(userID types.UserID) (types.ThreadID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.load()
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.UserID == userID {
			return e.ThreadID, true, nil
		}
	}
	return "", false, nil
}

// Put maps the user to the thread id, replacing any existing mapping.
func (s *ThreadStore) Put(userID types.UserID, threadID types.ThreadID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].UserID == userID {
			entries[i].ThreadID = threadID
			entries[i].CreatedAt = time.Now()
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, threadEntry{
			UserID:    userID,
			ThreadID:  threadID,
			CreatedAt: time.Now(),
		})
	}
	return s.save(entries)
}

// load reads the JSON file. Returns nil if the file doesn't exist.
func (s *ThreadStore) load() ([]threadEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read threads file: %w", err)
	}

	var entries []threadEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal threads: %w", err)
	}
	return entries, nil
}

// save writes the mapping to disk using atomic write (temp file + rename).
func (s *ThreadStore) save(entries []threadEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal threads: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create threads dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp threads file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp threads file: %w", err)
	}
	return nil
}
