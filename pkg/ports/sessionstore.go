package ports

import (
	"context"

	"github.com/wattlebot/wattle/pkg/domain"
)

// SessionStore defines the interface for persisting subscriber sessions.
// Implementations must hand out isolated snapshots: mutating a loaded
// session must not affect the stored one until Save is called.
type SessionStore interface {
	// Save persists the session keyed by its subscriber ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for a subscriber.
	// Returns domain.ErrSessionNotFound if none exists.
	Load(ctx context.Context, subscriberID string) (*domain.Session, error)

	// Delete removes the session for a subscriber.
	Delete(ctx context.Context, subscriberID string) error

	// List returns the subscriber IDs with an active session.
	List(ctx context.Context) ([]string, error)
}
