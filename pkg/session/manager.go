package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/persistence"
	"github.com/aretw0/tapestry/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed editor can hold a document lock.
const DefaultLockTTL = 30 * time.Second

// Source tells where a restored session came from.
type Source string

const (
	SourceSaved    Source = "saved"
	SourceAutosave Source = "autosave"
	SourceEmpty    Source = "empty"
)

// Session is a document opened for editing.
type Session struct {
	Key      string
	Document *document.Document
	Layout   layout.Snapshot
	Source   Source
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates document access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	persist *persistence.Manager

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	docOpts []document.Option
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

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithDocumentOptions sets the options every restored document is created with.
func WithDocumentOptions(opts ...document.Option) Option {
	return func(m *Manager) {
		m.docOpts = append(m.docOpts, opts...)
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

// NewManager creates a new session Manager over a persistence manager.
func NewManager(persist *persistence.Manager, opts ...Option) *Manager {
	m := &Manager{
		persist: persist,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Persistence returns the underlying persistence manager.
func (m *Manager) Persistence() *persistence.Manager { return m.persist }

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Restore opens the document saved under key. Save drops the autosave copy,
// so one that still exists holds edits newer than the saved document and is
// preferred. Load failures are logged and resolved by falling back to the
// saved document, then to an empty one.
// The returned document has no undo history. Only lock or context failures
// are returned as errors.
func (m *Manager) Restore(ctx context.Context, key string) (*Session, error) {
	var s *Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		s = &Session{Key: key, Document: document.New(m.docOpts...), Layout: layout.Default(), Source: SourceEmpty}

		for _, slot := range []struct {
			key    string
			source Source
		}{
			{persistence.AutosaveKey(key), SourceAutosave},
			{key, SourceSaved},
		} {
			snap, lay, err := m.persist.LoadDocument(ctx, slot.key)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.logLoadFailure(slot.key, err)
				continue
			}
			// Load re-validates against the document registry.
			if err := s.Document.Load(snap); err != nil {
				m.logLoadFailure(slot.key, err)
				continue
			}
			s.Layout = lay
			s.Source = slot.source
			break
		}

		s.Document.ResetHistory()
		if s.Source == SourceEmpty {
			m.logger.Info("starting with an empty document", "key", key)
		} else {
			m.logger.Info("document restored", "key", key, "source", s.Source, "nodes", len(s.Document.Snapshot().Nodes))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) logLoadFailure(key string, err error) {
	if errors.Is(err, domain.ErrDocumentNotFound) {
		m.logger.Debug("no saved document", "key", key)
		return
	}
	m.logger.Warn("saved document unusable", "key", key, "error", err)
}

// Save persists the session document and layout, then drops its autosave
// recovery copy.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	return m.WithLock(ctx, s.Key, func(ctx context.Context) error {
		if err := m.persist.SaveDocument(ctx, s.Key, s.Document.Snapshot(), s.Layout); err != nil {
			return err
		}
		if err := m.persist.Delete(ctx, persistence.AutosaveKey(s.Key)); err != nil {
			m.logger.Warn("failed to remove autosave copy", "key", s.Key, "error", err)
		}
		return nil
	})
}

// Delete removes the saved document and its autosave copy.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		if err := m.persist.Delete(ctx, key); err != nil {
			return err
		}
		return m.persist.Delete(ctx, persistence.AutosaveKey(key))
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.persist.List(ctx)
}

// WithLock executes a function while holding the lock for the document key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
