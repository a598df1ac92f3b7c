package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/selection"
)

var (
	// ErrGroupOpen is returned when a group is already open, or when undo/redo
	// is requested while one is.
	ErrGroupOpen = errors.New("command group already open")

	// ErrNoGroupOpen is returned by EndGroup and AbortGroup without BeginGroup.
	ErrNoGroupOpen = errors.New("no command group open")
)

// Selection is the part of the selection manager the engine drives so that
// undo and redo restore the selection of the time.
type Selection interface {
	State() selection.State
	Restore(selection.State) bool
	Prune() bool
}

// holder is implemented by selections that can hold their notifications
// while a group is open.
type holder interface {
	Hold(on bool)
}

// entry is one undo unit.
type entry struct {
	cmd       Command
	label     string
	selBefore selection.State
	selAfter  selection.State
}

type openGroup struct {
	label     string
	cmds      []Command
	deltas    []event.Delta
	selBefore selection.State
}

// Engine executes commands against a graph and keeps a linear undo history.
// It is not safe for concurrent use; all calls come from one editing context.
type Engine struct {
	graph  *graph.Graph
	bus    *event.Bus
	sel    Selection
	logger *slog.Logger
	limit  int

	undo  []entry
	redo  []entry
	group *openGroup

	executed uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus publishes a batch after every execute, undo and redo.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithSelection lets undo and redo restore and prune the selection.
func WithSelection(sel Selection) Option {
	return func(e *Engine) { e.sel = sel }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHistoryLimit keeps at most n undo units; n <= 0 means unlimited.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// NewEngine creates an engine over g.
func NewEngine(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{graph: g, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the engine mutates.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Execute applies cmd. Outside a group it becomes one undo unit and its batch
// is published before Execute returns. Inside a group it is recorded in the
// group and published by EndGroup.
//
// A failing command leaves the graph unchanged. Inside a group the failure
// also rolls back the whole group.
func (e *Engine) Execute(cmd Command) error {
	if e.group != nil {
		return e.executeInGroup(cmd)
	}

	before := e.selectionState()
	deltas, err := cmd.Apply(e.graph)
	if err != nil {
		e.logger.Debug("command rejected", "command", cmd.Name(), "error", err)
		return err
	}
	e.commit(entry{cmd: cmd, label: cmd.Name(), selBefore: before}, deltas)
	return nil
}

func (e *Engine) executeInGroup(cmd Command) error {
	deltas, err := cmd.Apply(e.graph)
	if err != nil {
		label := e.group.label
		if abortErr := e.AbortGroup(); abortErr != nil {
			return errors.Join(err, abortErr)
		}
		e.logger.Debug("group aborted", "group", label, "command", cmd.Name(), "error", err)
		return err
	}
	e.group.cmds = append(e.group.cmds, cmd)
	e.group.deltas = append(e.group.deltas, deltas...)
	return nil
}

func (e *Engine) commit(en entry, deltas []event.Delta) {
	if e.sel != nil {
		e.sel.Prune()
	}
	en.selAfter = e.selectionState()
	if !en.selAfter.Equal(en.selBefore) {
		deltas = append(deltas, en.selAfter.Delta())
	}

	e.undo = append(e.undo, en)
	if e.limit > 0 && len(e.undo) > e.limit {
		e.undo = append(e.undo[:0:0], e.undo[len(e.undo)-e.limit:]...)
	}
	e.redo = nil
	e.executed++

	e.publish(event.OriginExecute, en.label, deltas)
}

// BeginGroup opens a group; commands executed until EndGroup form one undo unit.
func (e *Engine) BeginGroup(label string) error {
	if e.group != nil {
		return fmt.Errorf("%w: %s", ErrGroupOpen, e.group.label)
	}
	e.group = &openGroup{label: label, selBefore: e.selectionState()}
	e.holdSelection(true)
	return nil
}

// EndGroup closes the open group and publishes its deltas, including the net
// selection change, as one batch. An empty group leaves no history entry.
func (e *Engine) EndGroup() error {
	if e.group == nil {
		return ErrNoGroupOpen
	}
	g := e.group
	e.group = nil
	e.holdSelection(false)
	if len(g.cmds) == 0 {
		if st := e.selectionState(); !st.Equal(g.selBefore) {
			e.publish(event.OriginSelection, g.label, []event.Delta{st.Delta()})
		}
		return nil
	}
	e.commit(entry{
		cmd:       &Group{Label: g.label, Commands: g.cmds},
		label:     g.label,
		selBefore: g.selBefore,
	}, g.deltas)
	return nil
}

// AbortGroup reverts every command applied in the open group, restores the
// selection it started with and closes it. Nothing is published: views never
// saw the group.
func (e *Engine) AbortGroup() error {
	if e.group == nil {
		return ErrNoGroupOpen
	}
	g := e.group
	e.group = nil

	errs := revertAll(e.graph, g.cmds)
	if e.sel != nil {
		e.sel.Restore(g.selBefore)
	}
	e.holdSelection(false)
	if len(errs) > 0 {
		err := errors.Join(errs...)
		e.logger.Error("group rollback incomplete", "group", g.label, "error", err)
		return fmt.Errorf("failed to roll back group %q: %w", g.label, err)
	}
	return nil
}

// InGroup reports whether a group is open.
func (e *Engine) InGroup() bool { return e.group != nil }

// Run executes fn inside a group labelled label. The group is committed when
// fn returns nil and rolled back when it returns an error or panics.
//
// Called while a group is open, Run joins that group instead of opening a
// new one; an error from fn then rolls back the enclosing group.
func (e *Engine) Run(label string, fn func() error) error {
	return e.RunContext(context.Background(), label, func(context.Context) error { return fn() })
}

// RunContext is Run with cancellation: a context cancelled before the group
// is committed rolls the group back.
func (e *Engine) RunContext(ctx context.Context, label string, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.group != nil {
		if err := fn(ctx); err != nil {
			if e.group != nil {
				if abortErr := e.AbortGroup(); abortErr != nil {
					return errors.Join(err, abortErr)
				}
			}
			return err
		}
		return nil
	}
	if err := e.BeginGroup(label); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if e.group != nil {
				_ = e.AbortGroup()
			}
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if e.group != nil {
			if abortErr := e.AbortGroup(); abortErr != nil {
				return errors.Join(err, abortErr)
			}
		}
		return err
	}
	if e.group == nil {
		// A command failed inside fn and already rolled the group back.
		return fmt.Errorf("group %q was aborted", label)
	}
	if err := ctx.Err(); err != nil {
		if abortErr := e.AbortGroup(); abortErr != nil {
			return errors.Join(err, abortErr)
		}
		return err
	}
	return e.EndGroup()
}

// Undo reverts the last unit. It reports false when there is nothing to undo.
func (e *Engine) Undo() (bool, error) {
	if e.group != nil {
		return false, ErrGroupOpen
	}
	if len(e.undo) == 0 {
		return false, nil
	}
	en := e.undo[len(e.undo)-1]

	deltas, err := en.cmd.Revert(e.graph)
	if err != nil {
		e.logger.Error("undo failed", "command", en.label, "error", err)
		return false, fmt.Errorf("failed to undo %q: %w", en.label, err)
	}
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = append(e.redo, en)

	if sel := e.restoreSelection(en.selBefore); sel != nil {
		deltas = append(deltas, *sel)
	}
	e.publish(event.OriginUndo, en.label, deltas)
	return true, nil
}

// Redo reapplies the last undone unit. It reports false when there is nothing to redo.
func (e *Engine) Redo() (bool, error) {
	if e.group != nil {
		return false, ErrGroupOpen
	}
	if len(e.redo) == 0 {
		return false, nil
	}
	en := e.redo[len(e.redo)-1]

	deltas, err := en.cmd.Apply(e.graph)
	if err != nil {
		e.logger.Error("redo failed", "command", en.label, "error", err)
		return false, fmt.Errorf("failed to redo %q: %w", en.label, err)
	}
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = append(e.undo, en)

	if sel := e.restoreSelection(en.selAfter); sel != nil {
		deltas = append(deltas, *sel)
	}
	e.publish(event.OriginRedo, en.label, deltas)
	return true, nil
}

// CanUndo reports whether Undo would do something.
func (e *Engine) CanUndo() bool { return e.group == nil && len(e.undo) > 0 }

// CanRedo reports whether Redo would do something.
func (e *Engine) CanRedo() bool { return e.group == nil && len(e.redo) > 0 }

// UndoLabel names the unit Undo would revert.
func (e *Engine) UndoLabel() string {
	if len(e.undo) == 0 {
		return ""
	}
	return e.undo[len(e.undo)-1].label
}

// RedoLabel names the unit Redo would reapply.
func (e *Engine) RedoLabel() string {
	if len(e.redo) == 0 {
		return ""
	}
	return e.redo[len(e.redo)-1].label
}

// History lists the labels of the undo stack, oldest first, and of the redo
// stack, next redo first.
func (e *Engine) History() (undo, redo []string) {
	for _, en := range e.undo {
		undo = append(undo, en.label)
	}
	for i := len(e.redo) - 1; i >= 0; i-- {
		redo = append(redo, e.redo[i].label)
	}
	return undo, redo
}

// ClearHistory drops both stacks.
func (e *Engine) ClearHistory() {
	e.undo, e.redo = nil, nil
}

// Executed counts the units committed since the engine was created.
func (e *Engine) Executed() uint64 { return e.executed }

func (e *Engine) selectionState() selection.State {
	if e.sel == nil {
		return selection.State{}
	}
	return e.sel.State()
}

func (e *Engine) holdSelection(on bool) {
	if h, ok := e.sel.(holder); ok {
		h.Hold(on)
	}
}

func (e *Engine) restoreSelection(st selection.State) *event.Delta {
	if e.sel == nil || !e.sel.Restore(st) {
		return nil
	}
	d := e.sel.State().Delta()
	return &d
}

func (e *Engine) publish(origin event.Origin, label string, deltas []event.Delta) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(origin, label, deltas)
}
