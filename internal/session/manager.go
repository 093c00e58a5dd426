package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxTurns caps conversation length unless the caller overrides it.
const DefaultMaxTurns = 100

var (
	ErrNotFound    = errors.New("session not found")
	ErrSessionFull = errors.New("session turn limit reached")
	ErrClosed      = errors.New("session is closed")
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides cached access to session files. Reads hit an
// in-memory copy when one exists; every mutation is written through
// to disk before the cache is updated.
type Manager struct {
	dir      string
	maxTurns int
	clock    Clock

	mu     sync.RWMutex
	cached map[string]*Session
}

// NewManager creates a Manager over dir with the default turn limit.
func NewManager(dir string) *Manager {
	return NewManagerWithClock(dir, realClock{}, DefaultMaxTurns)
}

// NewManagerWithClock creates a Manager with a custom clock and turn
// limit (for testing).
func NewManagerWithClock(dir string, clock Clock, maxTurns int) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Manager{
		dir:      dir,
		maxTurns: maxTurns,
		clock:    clock,
		cached:   make(map[string]*Session),
	}
}

// Start creates a new session for userID and persists it.
func (m *Manager) Start(userID string) (Session, error) {
	if strings.TrimSpace(userID) == "" {
		return Session{}, errors.New("user id is empty")
	}

	s := &Session{
		SessionID:         uuid.NewString(),
		UserID:            userID,
		ConversationTurns: []Turn{},
		SessionMetadata: Metadata{
			StartTime:       m.timestamp(),
			TopicsDiscussed: []string{},
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(s); err != nil {
		return Session{}, err
	}
	return cloneSession(s), nil
}

// Get returns a copy of the session.
func (m *Manager) Get(id string) (Session, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if s, ok := m.cached[id]; ok {
		out := cloneSession(s)
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(id)
	if err != nil {
		return Session{}, err
	}
	return cloneSession(s), nil
}

// Append adds a conversation turn. Closed sessions refuse new turns,
// and the configured turn limit is enforced.
func (m *Manager) Append(id, role, content string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load(id)
	if err != nil {
		return Session{}, err
	}
	if s.SessionMetadata.EndTime != "" {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrClosed)
	}
	if len(s.ConversationTurns) >= m.maxTurns {
		return Session{}, fmt.Errorf("session %s at %d turns: %w", id, m.maxTurns, ErrSessionFull)
	}

	s.ConversationTurns = append(s.ConversationTurns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: m.timestamp(),
	})
	s.SessionMetadata.TotalTurns = len(s.ConversationTurns)
	if err := m.save(s); err != nil {
		return Session{}, err
	}
	return cloneSession(s), nil
}

// AddTopic records a discussion topic, ignoring duplicates.
func (m *Manager) AddTopic(id, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("topic is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load(id)
	if err != nil {
		return err
	}
	for _, t := range s.SessionMetadata.TopicsDiscussed {
		if t == topic {
			return nil
		}
	}
	s.SessionMetadata.TopicsDiscussed = append(s.SessionMetadata.TopicsDiscussed, topic)
	return m.save(s)
}

// Close marks the session finished by stamping end_time. Closing an
// already closed session is a no-op.
func (m *Manager) Close(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load(id)
	if err != nil {
		return Session{}, err
	}
	if s.SessionMetadata.EndTime == "" {
		s.SessionMetadata.EndTime = m.timestamp()
		if err := m.save(s); err != nil {
			return Session{}, err
		}
	}
	return cloneSession(s), nil
}

// Archive moves the session file into the archive/ subdirectory and
// drops it from the active set.
func (m *Manager) Archive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.load(id); err != nil {
		return err
	}
	archiveDir := filepath.Join(m.dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	if err := os.Rename(m.path(id), filepath.Join(archiveDir, id+".json")); err != nil {
		return fmt.Errorf("archiving session %s: %w", id, err)
	}
	delete(m.cached, id)
	return nil
}

// Delete removes the session file.
func (m *Manager) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	delete(m.cached, id)
	return nil
}

// List returns the IDs of all active sessions, sorted.
func (m *Manager) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// load returns the cached session or reads it from disk. Callers hold
// the write lock.
func (m *Manager) load(id string) (*Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if s, ok := m.cached[id]; ok {
		return s, nil
	}

	data, err := os.ReadFile(m.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	m.cached[id] = &s
	return &s, nil
}

// save writes the session to disk via temp file and rename, then
// refreshes the cache. Callers hold the write lock.
func (m *Manager) save(s *Session) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	path := m.path(s.SessionID)
	tmp, err := os.CreateTemp(m.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}

	snap := cloneSession(s)
	m.cached[s.SessionID] = &snap
	return nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}

func (m *Manager) timestamp() string {
	return m.clock.Now().UTC().Format(time.RFC3339)
}

func validateID(id string) error {
	if id == "" {
		return errors.New("session id is empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
