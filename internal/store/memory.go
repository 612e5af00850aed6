package store

import (
	"fmt"
	"sync"

	"github.com/calvinwijaya/minigames-be/internal/session"
)

// MemoryStore is an in-memory implementation of session storage
type MemoryStore struct {
	sessions map[string]*session.Session
	owners   map[string]string
	players  map[string][]*session.Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*session.Session),
		owners:   make(map[string]string),
		players:  make(map[string][]*session.Session),
	}
}

// SaveSession saves a session to the store
func (s *MemoryStore) SaveSession(sess *session.Session, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID()]; exists {
		return nil
	}
	s.sessions[sess.ID()] = sess
	s.owners[sess.ID()] = owner
	s.players[owner] = append(s.players[owner], sess)

	return nil
}

// GetSession retrieves a session by ID
func (s *MemoryStore) GetSession(id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}

	return sess, nil
}

// GetPlayerSessions retrieves all sessions opened with a token
func (s *MemoryStore) GetPlayerSessions(owner string) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*session.Session, len(s.players[owner]))
	copy(sessions, s.players[owner])
	return sessions, nil
}

// DeleteSession removes a session from the store
func (s *MemoryStore) DeleteSession(id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	owner := s.owners[id]
	delete(s.sessions, id)
	delete(s.owners, id)

	owned := s.players[owner]
	for i, other := range owned {
		if other.ID() == id {
			s.players[owner] = append(owned[:i], owned[i+1:]...)
			break
		}
	}
	if len(s.players[owner]) == 0 {
		delete(s.players, owner)
	}

	return sess, nil
}

// GetAllSessions returns all sessions in the store
func (s *MemoryStore) GetAllSessions() ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}

	return sessions, nil
}
