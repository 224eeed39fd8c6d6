package memory

import (
	"context"
	"sync"

	"github.com/wattlebot/wattle/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use.
type SessionStore struct {
	data map[string]*domain.Session
	mu   sync.RWMutex
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*domain.Session),
	}
}

// Save persists a deep copy of the session, so later caller mutations do not
// leak into the store.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	cp := sess.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.SubscriberID] = cp
	return nil
}

// Load returns an isolated snapshot of the stored session.
func (s *SessionStore) Load(ctx context.Context, subscriberID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[subscriberID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, subscriberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, subscriberID)
	return nil
}

// List returns the subscriber IDs with a stored session.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
