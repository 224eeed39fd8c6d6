package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/wattlebot/wattle/internal/logging"
	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to subscriber sessions. Turns for different
// subscribers run fully concurrently; turns for the same subscriber are
// strictly serial, enforced by a per-subscriber mutex (garbage collected by
// reference counting) and, optionally, a distributed lock for multi-replica
// deployments.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active per-subscriber locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking for multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL (the upper bound on one turn).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session Manager over a persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock entry.mu and later call release(subscriberID) after
// unlocking it.
func (m *Manager) acquire(subscriberID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[subscriberID]
	if !exists {
		entry = &lockEntry{}
		m.locks[subscriberID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(subscriberID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[subscriberID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, subscriberID)
	}
}

// Load retrieves an existing session from the store under the subscriber lock.
func (m *Manager) Load(ctx context.Context, subscriberID string) (*domain.Session, error) {
	var sess *domain.Session
	err := m.WithLock(ctx, subscriberID, func(ctx context.Context) error {
		var err error
		sess, err = m.store.Load(ctx, subscriberID)
		return err
	})
	return sess, err
}

// LoadOrCreate tries to load a session; if none exists it initializes an idle
// one and persists it immediately. Callers already holding the subscriber
// lock must use LoadOrCreateLocked instead.
func (m *Manager) LoadOrCreate(ctx context.Context, subscriberID string) (*domain.Session, error) {
	var sess *domain.Session
	err := m.WithLock(ctx, subscriberID, func(ctx context.Context) error {
		var err error
		sess, err = m.LoadOrCreateLocked(ctx, subscriberID)
		return err
	})
	return sess, err
}

// LoadOrCreateLocked is LoadOrCreate without lock acquisition, for callers
// already inside WithLock.
func (m *Manager) LoadOrCreateLocked(ctx context.Context, subscriberID string) (*domain.Session, error) {
	sess, err := m.store.Load(ctx, subscriberID)
	if err == nil {
		return sess, nil
	}
	if err != domain.ErrSessionNotFound {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}

	sess = domain.NewSession(subscriberID)
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	return sess, nil
}

// Save persists the session state under the subscriber lock.
func (m *Manager) Save(ctx context.Context, sess *domain.Session) error {
	return m.WithLock(ctx, sess.SubscriberID, func(ctx context.Context) error {
		return m.store.Save(ctx, sess)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, subscriberID string) error {
	return m.WithLock(ctx, subscriberID, func(ctx context.Context) error {
		return m.store.Delete(ctx, subscriberID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store, for callers operating inside
// WithLock.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes fn while holding the subscriber's lock. The coordinator
// wraps one full turn (including chained blocks) in a single WithLock call,
// so a subscriber can never have two turns in flight.
//
// Per-subscriber locks are not reentrant: nesting WithLock for the same
// subscriber deadlocks.
func (m *Manager) WithLock(ctx context.Context, subscriberID string, fn func(context.Context) error) error {
	entry := m.acquire(subscriberID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(subscriberID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, subscriberID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"subscriber_id", subscriberID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
