// Package document bundles the graph, command engine, selection, clipboard
// and notification bus of one open document behind the intents views issue.
//
// A Document is not safe for concurrent use. Views call it from the editing
// context; adapters serving several clients serialize their calls.
package document

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/clipboard"
	"github.com/aretw0/tapestry/pkg/command"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/selection"
)

var (
	// ErrClosed is returned by every intent after Close.
	ErrClosed = errors.New("document closed")

	// ErrEmptyClipboard is returned by Paste when nothing was copied.
	ErrEmptyClipboard = errors.New("clipboard is empty")

	// ErrInvalidGrid is returned by AlignToGrid for a non-positive grid size.
	ErrInvalidGrid = errors.New("grid size must be positive")
)

// Document is one open document.
type Document struct {
	registry *registry.Registry
	graph    *graph.Graph
	engine   *command.Engine
	sel      *selection.Manager
	board    *clipboard.Board
	bus      *event.Bus
	logger   *slog.Logger

	idGen        graph.IDGenerator
	historyLimit int
	closed       bool
}

// Option configures a Document.
type Option func(*Document)

// WithRegistry sets the node type registry. Defaults to registry.Default().
func WithRegistry(reg *registry.Registry) Option {
	return func(d *Document) { d.registry = reg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithIDGenerator overrides the identifier source.
func WithIDGenerator(gen graph.IDGenerator) Option {
	return func(d *Document) { d.idGen = gen }
}

// WithBus shares a bus, e.g. one observed by metrics before the document exists.
func WithBus(bus *event.Bus) Option {
	return func(d *Document) { d.bus = bus }
}

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(d *Document) { d.historyLimit = n }
}

// WithClipboard shares a clipboard between documents.
func WithClipboard(b *clipboard.Board) Option {
	return func(d *Document) { d.board = b }
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = registry.Default()
	}
	if d.bus == nil {
		d.bus = event.NewBus(event.WithLogger(d.logger))
	}
	if d.board == nil {
		d.board = &clipboard.Board{}
	}

	d.graph = graph.New(d.registry, graph.WithIDGenerator(d.idGen))
	d.sel = selection.New(d.graph, d.bus)
	d.engine = command.NewEngine(d.graph,
		command.WithBus(d.bus),
		command.WithSelection(d.sel),
		command.WithLogger(d.logger),
		command.WithHistoryLimit(d.historyLimit),
	)
	return d
}

// Graph returns the read-only view of the model.
func (d *Document) Graph() graph.Reader { return d.graph }

// Registry returns the node type registry.
func (d *Document) Registry() *registry.Registry { return d.registry }

// Bus returns the notification bus views subscribe to.
func (d *Document) Bus() *event.Bus { return d.bus }

// Engine exposes the command engine for callers composing their own commands.
func (d *Document) Engine() *command.Engine { return d.engine }

// Selection returns the current selection.
func (d *Document) Selection() selection.State { return d.sel.State() }

// Snapshot returns a deep copy of the graph taken in the caller's context.
func (d *Document) Snapshot() graph.Snapshot { return d.graph.Snapshot() }

// Close ends the document lifecycle. Later intents fail with ErrClosed.
func (d *Document) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	if d.engine.InGroup() {
		if err := d.engine.AbortGroup(); err != nil {
			return fmt.Errorf("failed to close document: %w", err)
		}
	}
	d.engine.ClearHistory()
	return nil
}

// Closed reports whether Close was called.
func (d *Document) Closed() bool { return d.closed }

func (d *Document) execute(cmd command.Command) error {
	if d.closed {
		return ErrClosed
	}
	return d.engine.Execute(cmd)
}

func (d *Document) run(label string, fn func() error) error {
	if d.closed {
		return ErrClosed
	}
	return d.engine.Run(label, fn)
}

// --- Edits ---

// CreateNode adds a node of type tag.
func (d *Document) CreateNode(tag domain.TypeTag, pos domain.Position, props map[string]any) (domain.NodeID, error) {
	cmd := &command.CreateNode{Type: tag, Position: pos, Properties: props}
	if err := d.execute(cmd); err != nil {
		return "", err
	}
	return cmd.ID(), nil
}

// DeleteNodes removes nodes and their connections as one step.
func (d *Document) DeleteNodes(ids ...domain.NodeID) error {
	if len(ids) == 0 {
		return nil
	}
	return d.execute(&command.DeleteSubgraph{Nodes: ids})
}

// DeleteSelection removes the selected nodes and connections as one step.
func (d *Document) DeleteSelection() error {
	st := d.sel.State()
	if st.Empty() {
		return nil
	}
	return d.execute(&command.DeleteSubgraph{Nodes: st.Nodes, Connections: st.Connections})
}

// Connect joins an output port to an input port.
func (d *Document) Connect(source, target domain.PortRef) (domain.ConnectionID, error) {
	cmd := &command.Connect{Source: source, Target: target}
	if err := d.execute(cmd); err != nil {
		return "", err
	}
	return cmd.ID(), nil
}

// Disconnect removes a connection.
func (d *Document) Disconnect(id domain.ConnectionID) error {
	return d.execute(&command.Disconnect{ID: id})
}

// SetProperty changes one property of a node.
func (d *Document) SetProperty(id domain.NodeID, key string, value any) error {
	return d.execute(&command.SetProperty{Node: id, Key: key, Value: value})
}

// Move places a node at pos.
func (d *Document) Move(id domain.NodeID, pos domain.Position) error {
	return d.execute(&command.Move{Node: id, To: pos})
}

// MoveNodes translates every given node by offset as one step.
func (d *Document) MoveNodes(offset domain.Position, ids ...domain.NodeID) error {
	return d.run("move", func() error {
		for _, id := range ids {
			n, ok := d.graph.Node(id)
			if !ok {
				return domain.NodeNotFound(id)
			}
			if err := d.engine.Execute(&command.Move{Node: id, To: n.Position.Add(offset)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Batch runs fn as one undo step labelled label. Intents called from fn join it.
func (d *Document) Batch(label string, fn func() error) error {
	return d.run(label, fn)
}

// AlignToGrid snaps the selected nodes, or every node when nothing is
// selected, to the nearest multiple of size. Only nodes that move get a
// command, so aligning twice leaves no second history entry.
func (d *Document) AlignToGrid(size float64) error {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidGrid, size)
	}
	ids := d.sel.NodeIDs()
	if len(ids) == 0 {
		for _, n := range d.graph.Nodes() {
			ids = append(ids, n.ID)
		}
	}

	return d.run("align to grid", func() error {
		for _, id := range ids {
			n, ok := d.graph.Node(id)
			if !ok {
				continue
			}
			snapped := domain.Position{X: snap(n.Position.X, size), Y: snap(n.Position.Y, size)}
			if snapped == n.Position {
				continue
			}
			if err := d.engine.Execute(&command.Move{Node: id, To: snapped}); err != nil {
				return err
			}
		}
		return nil
	})
}

func snap(v, size float64) float64 {
	return math.Round(v/size) * size
}

// --- Selection ---

// Select changes the selection and notifies views.
func (d *Document) Select(ids selection.State, mode selection.Mode) error {
	if d.closed {
		return ErrClosed
	}
	d.sel.Select(ids, mode)
	return nil
}

// SelectNodes is Select over nodes.
func (d *Document) SelectNodes(mode selection.Mode, ids ...domain.NodeID) error {
	return d.Select(selection.State{Nodes: ids}, mode)
}

// SelectAll selects every node and connection.
func (d *Document) SelectAll() error {
	if d.closed {
		return ErrClosed
	}
	d.sel.SelectAll()
	return nil
}

// ClearSelection empties the selection.
func (d *Document) ClearSelection() error {
	if d.closed {
		return ErrClosed
	}
	d.sel.Clear()
	return nil
}

// --- Clipboard ---

// Copy places the induced subgraph of the selected nodes on the clipboard.
func (d *Document) Copy() error {
	if d.closed {
		return ErrClosed
	}
	p := clipboard.Extract(d.graph, d.sel.NodeIDs())
	if p.Empty() {
		return nil
	}
	data, err := p.Encode()
	if err != nil {
		return err
	}
	d.board.Set(data)
	d.logger.Debug("copied to clipboard", "nodes", len(p.Nodes), "connections", len(p.Connections))
	return nil
}

// Cut copies the selection and deletes it as one step. Selected connections
// are deleted even when no node is selected.
func (d *Document) Cut() error {
	if err := d.Copy(); err != nil {
		return err
	}
	st := d.sel.State()
	if st.Empty() {
		return nil
	}
	return d.run("cut", func() error {
		return d.engine.Execute(&command.DeleteSubgraph{Nodes: st.Nodes, Connections: st.Connections})
	})
}

// Paste rebuilds the clipboard content with fresh ids, its top-left corner
// at anchor, and selects the pasted nodes.
func (d *Document) Paste(anchor domain.Position) ([]domain.NodeID, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.board.Empty() {
		return nil, ErrEmptyClipboard
	}
	return d.PastePayload(d.board.Bytes(), anchor)
}

// PastePayload pastes an encoded payload, e.g. one from the system clipboard.
func (d *Document) PastePayload(data []byte, anchor domain.Position) ([]domain.NodeID, error) {
	if d.closed {
		return nil, ErrClosed
	}
	p, err := clipboard.Decode(data, d.registry)
	if err != nil {
		return nil, err
	}
	var ids []domain.NodeID
	err = d.run("paste", func() error {
		pasted, err := clipboard.Paste(d.engine, p, anchor)
		if err != nil {
			return err
		}
		// Selecting inside the group lets redo restore it with the nodes.
		d.sel.SelectNodes(selection.Replace, pasted...)
		ids = pasted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- History ---

// Undo reverts the last step. It reports false when there was nothing to undo.
func (d *Document) Undo() (bool, error) {
	if d.closed {
		return false, ErrClosed
	}
	return d.engine.Undo()
}

// Redo reapplies the last undone step.
func (d *Document) Redo() (bool, error) {
	if d.closed {
		return false, ErrClosed
	}
	return d.engine.Redo()
}

// CanUndo reports whether Undo would do something.
func (d *Document) CanUndo() bool { return !d.closed && d.engine.CanUndo() }

// CanRedo reports whether Redo would do something.
func (d *Document) CanRedo() bool { return !d.closed && d.engine.CanRedo() }

// Load replaces the graph with snap as one undoable step and clears the selection.
func (d *Document) Load(snap graph.Snapshot) error {
	if err := d.execute(&command.Replace{Snapshot: snap}); err != nil {
		return err
	}
	d.sel.Clear()
	return nil
}

// ResetHistory drops undo and redo, as done after a session restore.
func (d *Document) ResetHistory() {
	d.engine.ClearHistory()
}
