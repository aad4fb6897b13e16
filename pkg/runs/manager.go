package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// ErrRunExists is returned when a run ID is already taken by a stored record.
var ErrRunExists = errors.New("run already exists")

// DefaultLockTTL bounds how long a distributed run lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates access to run IDs, ensuring that one ID never backs
// two executions. It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.RunStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry. It should exceed the longest run.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a run Manager on top of the given record store.
func NewManager(store ports.RunStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(runID) after unlocking.
func (m *Manager) acquire(runID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		entry = &lockEntry{}
		m.locks[runID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[runID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, runID)
	}
}

// Execute runs fn while holding the lock for runID and saves the record it
// returns. It fails with ErrRunExists if a record for runID is already stored,
// so a second caller with the same ID never starts another execution.
// If fn fails, nothing is saved and the ID stays free.
func (m *Manager) Execute(ctx context.Context, runID string, fn func(context.Context) (*domain.RunRecord, error)) (*domain.RunRecord, error) {
	var rec *domain.RunRecord
	err := m.WithLock(ctx, runID, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, runID)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrRunExists, runID)
		}
		if !errors.Is(err, domain.ErrRunNotFound) {
			return fmt.Errorf("failed to check run existence: %w", err)
		}

		rec, err = fn(ctx)
		if err != nil {
			return err
		}
		if err := m.store.Save(ctx, rec); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Load retrieves a finished run from the store.
func (m *Manager) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.store.Load(ctx, runID)
}

// Delete removes the run from the store.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	return m.WithLock(ctx, runID, func(ctx context.Context) error {
		return m.store.Delete(ctx, runID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying run store.
func (m *Manager) Store() ports.RunStore {
	return m.store
}

// activeLocks reports how many run IDs currently hold a local lock entry.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes a function while holding the lock for the run.
func (m *Manager) WithLock(ctx context.Context, runID string, fn func(context.Context) error) error {
	entry := m.acquire(runID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(runID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, runID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The run context may be done by now; release with a fresh one.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"run_id", runID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
