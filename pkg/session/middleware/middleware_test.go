package middleware_test

import (
	"context"

	"github.com/wattlebot/wattle/pkg/domain"
)

// MockStore keeps sessions in a plain map with no snapshot isolation, so
// the encryption and redaction tests can inspect exactly what was written.
type MockStore struct {
	sessions map[string]*domain.Session
}

func NewMockStore() *MockStore {
	return &MockStore{sessions: make(map[string]*domain.Session)}
}

func (s *MockStore) Save(ctx context.Context, sess *domain.Session) error {
	s.sessions[sess.SubscriberID] = sess
	return nil
}

func (s *MockStore) Load(ctx context.Context, subscriberID string) (*domain.Session, error) {
	sess, ok := s.sessions[subscriberID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *MockStore) Delete(ctx context.Context, subscriberID string) error {
	delete(s.sessions, subscriberID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}
