package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps every client's session in one JSON document and rewrites
// it on each mutation.
type FileStore struct {
	path string

	mu      sync.RWMutex
	records map[string]record
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("session state file path is required")
	}

	s := &FileStore{
		path:    path,
		records: make(map[string]record),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Load(_ context.Context, clientID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[clientID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return fromRecord(r), nil
}

func (s *FileStore) Save(_ context.Context, clientID string, sess Session) error {
	if !sess.Authenticated() {
		return ErrIncompleteSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[clientID]
	s.records[clientID] = sess.record()
	if err := s.persistLocked(); err != nil {
		if existed {
			s.records[clientID] = prev
		} else {
			delete(s.records, clientID)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[clientID]; !ok {
		return nil
	}
	delete(s.records, clientID)
	return s.persistLocked()
}

func (s *FileStore) All(_ context.Context) (map[string]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Session, len(s.records))
	for id, r := range s.records {
		out[id] = fromRecord(r)
	}
	return out, nil
}

func (s *FileStore) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read session state file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	var decoded map[string]record
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode session state file: %w", err)
	}
	for id, r := range decoded {
		if strings.TrimSpace(id) == "" {
			continue
		}
		s.records[id] = r
	}
	return nil
}

func (s *FileStore) persistLocked() error {
	b, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir session state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session state file: %w", err)
	}
	return nil
}
