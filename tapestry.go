package tapestry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/clipboard"
	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/layout"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/persistence"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/session"
)

// Version is set at build time.
var Version = "dev"

// ErrAlreadyOpen is returned when a key is opened twice in one Editor.
var ErrAlreadyOpen = errors.New("document already open")

// Editor is the high-level entry point. It opens documents for editing and
// keeps their autosavers running until they are closed.
type Editor struct {
	store        ports.DocumentStore
	registry     *registry.Registry
	locker       ports.DistributedLocker
	metrics      *observability.Metrics
	logger       *slog.Logger
	historyLimit int
	autosave     bool
	interval     time.Duration
	every        int

	persist  *persistence.Manager
	sessions *session.Manager
	board    *clipboard.Board

	mu   sync.Mutex
	open map[string]*Workspace
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithStore sets where documents are kept. Defaults to an in-memory store.
func WithStore(store ports.DocumentStore) Option {
	return func(e *Editor) { e.store = store }
}

// WithRegistry sets the node types documents are validated against.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Editor) { e.registry = reg }
}

// WithLocker guards saves with a lock shared between editor processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Editor) { e.locker = locker }
}

// WithMetrics feeds every open document into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Editor) { e.metrics = m }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) { e.logger = logger }
}

// WithHistoryLimit bounds the undo history of each document. Zero keeps
// everything.
func WithHistoryLimit(n int) Option {
	return func(e *Editor) { e.historyLimit = n }
}

// WithAutosave enables recovery copies written every interval or once every
// batches changes are pending, whichever comes first. Zero disables a trigger.
func WithAutosave(interval time.Duration, every int) Option {
	return func(e *Editor) {
		e.autosave = interval > 0 || every > 0
		e.interval = interval
		e.every = every
	}
}

// New creates an Editor.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{
		logger: logging.NewNop(),
		open:   make(map[string]*Workspace),
		board:  &clipboard.Board{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.historyLimit < 0 {
		return nil, fmt.Errorf("history limit must not be negative, got %d", e.historyLimit)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.registry == nil {
		e.registry = registry.Default()
	}

	e.persist = persistence.NewManager(e.store,
		persistence.WithRegistry(e.registry),
		persistence.WithLogger(e.logger),
	)
	sessionOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithDocumentOptions(
			document.WithRegistry(e.registry),
			document.WithLogger(e.logger),
			document.WithHistoryLimit(e.historyLimit),
			document.WithClipboard(e.board),
		),
	}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.persist, sessionOpts...)
	return e, nil
}

// Registry returns the node type registry.
func (e *Editor) Registry() *registry.Registry { return e.registry }

// Persistence returns the manager documents are saved through.
func (e *Editor) Persistence() *persistence.Manager { return e.persist }

// Sessions returns the session manager.
func (e *Editor) Sessions() *session.Manager { return e.sessions }

// Open restores the document saved under key and starts its autosaver.
// Documents opened from the same Editor share one clipboard.
func (e *Editor) Open(ctx context.Context, key string) (*Workspace, error) {
	e.mu.Lock()
	if _, ok := e.open[key]; ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, key)
	}
	// Reserve the key so a concurrent Open fails fast.
	e.open[key] = nil
	e.mu.Unlock()

	s, err := e.sessions.Restore(ctx, key)
	if err != nil {
		e.mu.Lock()
		delete(e.open, key)
		e.mu.Unlock()
		return nil, err
	}

	ws := &Workspace{editor: e, session: s, logger: e.logger.With("document", key)}
	doc := s.Document
	if e.metrics != nil {
		ws.detach = append(ws.detach, e.metrics.Attach(doc.Bus()))
	}
	if e.autosave {
		autoOpts := []persistence.AutosaveOption{
			persistence.WithInterval(e.interval),
			persistence.WithEvery(e.every),
			persistence.WithLayoutSource(func() layout.Snapshot { return ws.session.Layout }),
			persistence.WithAutosaveLogger(ws.logger),
		}
		if e.metrics != nil {
			autoOpts = append(autoOpts, persistence.WithResultHook(e.metrics.AutosaveResult))
		}
		ws.autosaver = persistence.NewAutosaver(e.persist, persistence.AutosaveKey(key), doc.Snapshot, autoOpts...)
		ws.detach = append(ws.detach, ws.autosaver.Attach(doc.Bus()))
		ws.autosaver.Start(context.WithoutCancel(ctx))
	}

	e.mu.Lock()
	e.open[key] = ws
	e.mu.Unlock()
	ws.logger.Info("document opened", "source", s.Source)
	return ws, nil
}

// Workspace returns the open document for key.
func (e *Editor) Workspace(key string) (*Workspace, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ws, ok := e.open[key]
	return ws, ok && ws != nil
}

// Close closes every open document. Unsaved changes stay in their autosave
// copies.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	open := make([]*Workspace, 0, len(e.open))
	for _, ws := range e.open {
		if ws != nil {
			open = append(open, ws)
		}
	}
	e.mu.Unlock()

	var errs []error
	for _, ws := range open {
		if err := ws.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Editor) forget(key string) {
	e.mu.Lock()
	delete(e.open, key)
	e.mu.Unlock()
}
