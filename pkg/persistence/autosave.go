package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/layout"
)

// AutosaveSuffix is appended to a document key to form its recovery slot.
const AutosaveSuffix = ".autosave"

// AutosaveKey returns the recovery slot of a document key.
func AutosaveKey(key string) string { return key + AutosaveSuffix }

// Autosaver writes recovery copies of a live document.
//
// Observe must be called from the editing context: it captures a snapshot
// there. Writes happen on the worker started by Start, either on every
// interval tick or once N batches are pending. Failures are logged and
// reported to the result hook but never stop the worker.
type Autosaver struct {
	manager      *Manager
	key          string
	source       func() graph.Snapshot
	layoutSource func() layout.Snapshot
	interval     time.Duration
	every        int
	logger       *slog.Logger
	onResult     func(error)

	mu      sync.Mutex
	version uint64
	saved   uint64
	pending int
	snap    graph.Snapshot
	lay     *layout.Snapshot
	lastErr error
	saves   int

	flushMu sync.Mutex
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// AutosaveOption configures an Autosaver.
type AutosaveOption func(*Autosaver)

// WithInterval flushes pending changes on every tick. Zero disables ticking.
func WithInterval(d time.Duration) AutosaveOption {
	return func(a *Autosaver) {
		a.interval = d
	}
}

// WithEvery flushes as soon as n batches are pending. Zero disables it.
func WithEvery(n int) AutosaveOption {
	return func(a *Autosaver) {
		a.every = n
	}
}

// WithLayoutSource also saves the layout returned by fn.
func WithLayoutSource(fn func() layout.Snapshot) AutosaveOption {
	return func(a *Autosaver) {
		a.layoutSource = fn
	}
}

// WithResultHook calls fn after every write attempt with its outcome.
func WithResultHook(fn func(error)) AutosaveOption {
	return func(a *Autosaver) {
		a.onResult = fn
	}
}

// WithAutosaveLogger sets the logger.
func WithAutosaveLogger(logger *slog.Logger) AutosaveOption {
	return func(a *Autosaver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAutosaver creates an Autosaver that writes source snapshots to key.
func NewAutosaver(m *Manager, key string, source func() graph.Snapshot, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		manager: m,
		key:     key,
		source:  source,
		logger:  logging.NewNop(),
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the key the autosaver writes to.
func (a *Autosaver) Key() string { return a.key }

// Observe records that the document changed. Selection-only batches are
// ignored since they are not persisted.
func (a *Autosaver) Observe(b event.Batch) {
	if b.Origin == event.OriginSelection {
		return
	}
	snap := a.source()
	var lay *layout.Snapshot
	if a.layoutSource != nil {
		l := a.layoutSource()
		lay = &l
	}

	a.mu.Lock()
	a.version++
	a.snap = snap
	a.lay = lay
	a.pending++
	full := a.every > 0 && a.pending >= a.every
	a.mu.Unlock()

	if full {
		select {
		case a.trigger <- struct{}{}:
		default:
		}
	}
}

// Attach subscribes Observe to bus and returns the detach function.
func (a *Autosaver) Attach(bus *event.Bus) func() {
	return bus.Subscribe(a.Observe)
}

// Start runs the worker until ctx is done or Stop is called.
func (a *Autosaver) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		var tick <-chan time.Time
		if a.interval > 0 {
			ticker := time.NewTicker(a.interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				_ = a.Flush(ctx)
			case <-a.trigger:
				_ = a.Flush(ctx)
			}
		}
	}()
}

// Stop halts the worker and writes whatever is still pending.
func (a *Autosaver) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
	}
	return a.Flush(ctx)
}

// Flush writes the latest observed snapshot if it has not been saved yet.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	if a.version == a.saved {
		a.mu.Unlock()
		return nil
	}
	version, snap, lay := a.version, a.snap, a.lay
	a.mu.Unlock()

	var err error
	if lay != nil {
		err = a.manager.SaveDocument(ctx, a.key, snap, *lay)
	} else {
		err = a.manager.SaveGraph(ctx, a.key, snap)
	}

	a.mu.Lock()
	a.lastErr = err
	if err == nil {
		a.saved = version
		a.pending = int(a.version - version)
		a.saves++
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("autosave failed", "key", a.key, "error", err)
	} else {
		a.logger.Debug("autosaved", "key", a.key, "version", version)
	}
	if a.onResult != nil {
		a.onResult(err)
	}
	return err
}

// Checkpoint runs save, which writes the document through another path,
// while autosave writes are held off. When save succeeds the changes observed
// before the call stop being pending. When it fails they stay pending so the
// next flush still writes the recovery copy.
func (a *Autosaver) Checkpoint(save func() error) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	version := a.version
	a.mu.Unlock()

	if err := save(); err != nil {
		return err
	}

	a.mu.Lock()
	if version > a.saved {
		a.saved = version
		a.pending = int(a.version - version)
	}
	a.mu.Unlock()
	return nil
}

// Pending returns the number of observed batches not yet saved.
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Saves returns the number of successful writes.
func (a *Autosaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

// LastError returns the outcome of the latest write attempt.
func (a *Autosaver) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
