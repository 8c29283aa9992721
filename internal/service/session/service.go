package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/webskill/backend/internal/model/session"
)

var (
	ErrSessionExists   = errors.New("session already connected")
	ErrSessionNotFound = errors.New("session not found")
)

// Service tracks companion pages connected over the message channel.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]session.Session),
	}
}

// Open registers a connected page. An empty sessionID gets a generated one
// and an empty userID is derived from the session.
func (s *Service) Open(_ context.Context, sessionID, userID string) (session.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if userID == "" {
		userID = "companion." + sessionID
	}

	now := time.Now().UTC()
	sess := session.Session{
		ID:          sessionID,
		UserID:      userID,
		ConnectedAt: now,
		LastSeenAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return session.Session{}, ErrSessionExists
	}
	s.sessions[sessionID] = sess
	return sess, nil
}

// Touch records one inbound message for the session.
func (s *Service) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Messages++
	sess.LastSeenAt = time.Now().UTC()
	s.sessions[sessionID] = sess
	return nil
}

// Close forgets the session.
func (s *Service) Close(_ context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Get retrieves a session by identifier.
func (s *Service) Get(_ context.Context, sessionID string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// List returns connected sessions, oldest first.
func (s *Service) List(_ context.Context) []session.Session {
	s.mu.RLock()
	out := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
