package store

import (
	"errors"

	"github.com/calvinwijaya/minigames-be/internal/session"
)

var ErrNotFound = errors.New("session not found")

// Store defines the interface for live session storage
type Store interface {
	// SaveSession saves a session to the store
	SaveSession(s *session.Session, owner string) error

	// GetSession retrieves a session by ID
	GetSession(id string) (*session.Session, error)

	// GetPlayerSessions retrieves all sessions opened with a token
	GetPlayerSessions(owner string) ([]*session.Session, error)

	// DeleteSession removes a session from the store and returns it
	DeleteSession(id string) (*session.Session, error)

	// GetAllSessions returns all sessions in the store
	GetAllSessions() ([]*session.Session, error)
}
