package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/parleylabs/parley/pkg/logger"
)

// record is the on-disk shape of the durable entry
type record struct {
	ConversationID string `json:"conversation_id"`
}

// Store owns the conversation identity: a single optional string assigned by
// whichever of the stream or the submission response arrives first. Once set
// it is immutable until an explicit Reset. The identity is the only state
// that survives a restart; it lives in one JSON file next to the config.
type Store struct {
	mu       sync.RWMutex
	id       string
	filePath string
}

// NewStore loads the durable entry if one exists. An absent file means a new
// conversation, not an error.
func NewStore(filePath string) (*Store, error) {
	s := &Store{filePath: filePath}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt entry degrades to a new conversation rather than
		// blocking startup.
		logger.WithComponent("identity").Warn("Discarding unreadable identity file", "path", filePath, "error", err)
		return s, nil
	}

	s.id = rec.ConversationID
	return s, nil
}

// Get returns the current identity, empty meaning "new conversation".
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Assign sets the identity if it is not already set. First writer wins: the
// stream and the submission response race fairly, and the later arrival is a
// no-op. Returns true when this call established the identity.
func (s *Store) Assign(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != "" {
		return false
	}
	s.id = id

	if err := s.persist(id); err != nil {
		logger.WithComponent("identity").Error("Failed to persist conversation identity", "error", err)
	}
	return true
}

// Reset clears the identity and removes the durable entry.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = ""
	if err := os.Remove(s.filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove identity file: %w", err)
	}
	return nil
}

func (s *Store) persist(id string) error {
	data, err := json.MarshalIndent(record{ConversationID: id}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}
