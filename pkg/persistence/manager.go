package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/registry"
)

// Manager reads and writes documents through a DocumentStore.
type Manager struct {
	store    ports.DocumentStore
	registry *registry.Registry
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry sets the node-type registry used to validate loaded graphs.
func WithRegistry(reg *registry.Registry) Option {
	return func(m *Manager) {
		m.registry = reg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.DocumentStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = registry.Default()
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() ports.DocumentStore { return m.store }

// Registry returns the registry used for validation.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// SaveDocument writes the graph and the layout of a document. The graph is
// written first; a failure leaves the layout section untouched.
func (m *Manager) SaveDocument(ctx context.Context, key string, snap graph.Snapshot, lay layout.Snapshot) error {
	if err := m.SaveGraph(ctx, key, snap); err != nil {
		return err
	}
	return m.SaveLayout(ctx, key, lay)
}

// SaveGraph writes only the graph section.
func (m *Manager) SaveGraph(ctx context.Context, key string, snap graph.Snapshot) error {
	data, err := EncodeGraph(snap)
	if err != nil {
		return err
	}
	if err := m.store.Write(ctx, key, ports.SectionGraph, data); err != nil {
		return fmt.Errorf("failed to save graph %q: %w", key, err)
	}
	m.logger.Debug("graph saved", "key", key, "nodes", len(snap.Nodes), "connections", len(snap.Connections))
	return nil
}

// SaveLayout writes only the layout section.
func (m *Manager) SaveLayout(ctx context.Context, key string, lay layout.Snapshot) error {
	data, err := layout.Encode(lay)
	if err != nil {
		return err
	}
	if err := m.store.Write(ctx, key, ports.SectionLayout, data); err != nil {
		return fmt.Errorf("failed to save layout %q: %w", key, err)
	}
	return nil
}

// LoadDocument reads a document. The graph must be present and valid. A
// missing or unreadable layout is replaced by layout.Default and logged; it
// never fails the load.
func (m *Manager) LoadDocument(ctx context.Context, key string) (graph.Snapshot, layout.Snapshot, error) {
	snap, err := m.LoadGraph(ctx, key)
	if err != nil {
		return graph.Snapshot{}, layout.Default(), err
	}
	lay, err := m.LoadLayout(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			m.logger.Debug("no layout saved, using defaults", "key", key)
		} else {
			m.logger.Warn("layout unreadable, using defaults", "key", key, "error", err)
		}
		lay = layout.Default()
	}
	return snap, lay, nil
}

// LoadGraph reads and validates the graph section.
func (m *Manager) LoadGraph(ctx context.Context, key string) (graph.Snapshot, error) {
	data, err := m.store.Read(ctx, key, ports.SectionGraph)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("failed to load graph %q: %w", key, err)
	}
	snap, err := DecodeGraph(data, m.registry)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("failed to load graph %q: %w", key, err)
	}
	return snap, nil
}

// LoadLayout reads the layout section. On error the returned snapshot is
// layout.Default.
func (m *Manager) LoadLayout(ctx context.Context, key string) (layout.Snapshot, error) {
	data, err := m.store.Read(ctx, key, ports.SectionLayout)
	if err != nil {
		return layout.Default(), fmt.Errorf("failed to load layout %q: %w", key, err)
	}
	lay, err := layout.Decode(data)
	if err != nil {
		return layout.Default(), fmt.Errorf("failed to load layout %q: %w", key, err)
	}
	return lay, nil
}

// Delete removes both sections of a document.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

// List returns the keys of saved documents.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}
