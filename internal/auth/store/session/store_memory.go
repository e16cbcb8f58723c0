// Package session persists login sessions. The memory store backs unit tests
// and single-node deployments; the Redis store backs everything else.
package session

import (
	"context"
	"sync"
	"time"

	"registrar/internal/auth/models"
	"registrar/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in a map.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *InMemorySessionStore) Revoke(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &at
	}
	return nil
}

func (s *InMemorySessionStore) RevokeAllForUser(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			revokedAt := at
			session.RevokedAt = &revokedAt
		}
	}
	return nil
}

// IsActive reports whether the session exists, is unexpired, and has not been
// revoked. Unknown sessions are inactive, not errors.
func (s *InMemorySessionStore) IsActive(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	return session.Active(time.Now()), nil
}
