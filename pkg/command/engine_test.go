package command

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	g       *graph.Graph
	bus     *event.Bus
	sel     *selection.Manager
	engine  *Engine
	batches []event.Batch
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		g:   graph.New(registry.Default(), graph.WithIDGenerator(graph.SequentialIDs("id"))),
		bus: event.NewBus(),
	}
	f.sel = selection.New(f.g, nil)
	f.bus.Subscribe(func(b event.Batch) { f.batches = append(f.batches, b) })
	f.engine = NewEngine(f.g, append([]Option{WithBus(f.bus), WithSelection(f.sel)}, opts...)...)
	return f
}

func (f *fixture) create(t *testing.T, tag domain.TypeTag, x float64) domain.NodeID {
	t.Helper()
	cmd := &CreateNode{Type: tag, Position: domain.Position{X: x}}
	require.NoError(t, f.engine.Execute(cmd))
	return cmd.ID()
}

func port(n domain.NodeID, p domain.PortID) domain.PortRef {
	return domain.PortRef{Node: n, Port: p}
}

func TestScenario_ConnectUndoRedo(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, registry.TypeClick, 0)
	b := f.create(t, registry.TypeLog, 100)
	conn := &Connect{Source: port(a, registry.PortOut), Target: port(b, registry.PortIn)}
	require.NoError(t, f.engine.Execute(conn))
	full := f.g.Snapshot()

	ok, err := f.engine.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, f.g.HasConnection(conn.ID()))
	assert.True(t, f.g.HasNode(a))
	assert.True(t, f.g.HasNode(b))

	_, _ = f.engine.Undo()
	assert.False(t, f.g.HasNode(b))
	assert.True(t, f.g.HasNode(a))

	_, _ = f.engine.Undo()
	assert.False(t, f.g.HasNode(a))

	ok, err = f.engine.Undo()
	require.NoError(t, err)
	assert.False(t, ok, "nothing to undo")

	for i := 0; i < 3; i++ {
		ok, err := f.engine.Redo()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.True(t, full.Equal(f.g.Snapshot()), "redo restores ids and connection")
}

func TestExecute_ClearsRedo(t *testing.T) {
	f := newFixture(t)
	f.create(t, registry.TypeLog, 0)
	_, _ = f.engine.Undo()
	require.True(t, f.engine.CanRedo())

	f.create(t, registry.TypeLog, 0)
	assert.False(t, f.engine.CanRedo())

	ok, err := f.engine.Redo()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUndoAll_RestoresInitialState(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))

	a := f.create(t, registry.TypeTask, 0)
	b := f.create(t, registry.TypeTask, 10)
	initial := f.g.Snapshot()
	f.sel.SelectNodes(selection.Replace, a, b)
	initialSel := f.sel.State()

	ids := []domain.NodeID{a, b}
	steps := 0
	for i := 0; i < 40; i++ {
		var cmd Command
		switch rng.Intn(5) {
		case 0:
			c := &CreateNode{Type: registry.TypeTask, Position: domain.Position{X: float64(i)}}
			cmd = c
		case 1:
			cmd = &Move{Node: ids[rng.Intn(len(ids))], To: domain.Position{X: rng.Float64(), Y: rng.Float64()}}
		case 2:
			cmd = &SetProperty{Node: ids[rng.Intn(len(ids))], Key: "threshold", Value: rng.Float64()}
		case 3:
			cmd = &Connect{Source: port(ids[rng.Intn(len(ids))], registry.PortNext), Target: port(ids[rng.Intn(len(ids))], registry.PortIn)}
		case 4:
			if len(ids) > 2 {
				victim := ids[len(ids)-1]
				cmd = &DeleteSubgraph{Nodes: []domain.NodeID{victim}}
			} else {
				cmd = &Move{Node: a, To: domain.Position{X: float64(i)}}
			}
		}

		if err := f.engine.Execute(cmd); err != nil {
			continue
		}
		steps++
		switch c := cmd.(type) {
		case *CreateNode:
			ids = append(ids, c.ID())
		case *DeleteSubgraph:
			ids = ids[:len(ids)-1]
		}
	}

	for i := 0; i < steps; i++ {
		ok, err := f.engine.Undo()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.True(t, initial.Equal(f.g.Snapshot()))
	assert.True(t, initialSel.Equal(f.sel.State()))
}

func TestDeleteSubgraph_UndoRestoresConnections(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeTask, 0)
	b := f.create(t, registry.TypeTask, 0)
	c := f.create(t, registry.TypeTask, 0)
	for _, pair := range [][2]domain.NodeID{{a, b}, {b, c}, {a, c}} {
		require.NoError(t, f.engine.Execute(&Connect{Source: port(pair[0], registry.PortNext), Target: port(pair[1], registry.PortIn)}))
	}
	before := f.g.Snapshot()

	require.NoError(t, f.engine.Execute(&DeleteSubgraph{Nodes: []domain.NodeID{b}}))
	_, conns := f.g.Len()
	assert.Equal(t, 1, conns, "only a->c survives")

	_, err := f.engine.Undo()
	require.NoError(t, err)
	assert.True(t, before.Equal(f.g.Snapshot()))
}

func TestDeleteSubgraph_AtomicOnMissingNode(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeLog, 0)
	before := f.g.Snapshot()
	published := len(f.batches)

	err := f.engine.Execute(&DeleteSubgraph{Nodes: []domain.NodeID{a, "ghost"}})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, before.Equal(f.g.Snapshot()))
	assert.Len(t, f.batches, published)
}

func TestSetProperty_UndoRemovesNewKey(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeTask, 0)

	require.NoError(t, f.engine.Execute(&SetProperty{Node: a, Key: "input_text", Value: "hi"}))
	_, _ = f.engine.Undo()

	n, _ := f.g.Node(a)
	_, ok := n.Properties["input_text"]
	assert.False(t, ok)

	err := f.engine.Execute(&SetProperty{Node: a, Key: "timeout", Value: "later"})
	assert.True(t, errors.Is(err, domain.ErrTypeMismatch))
}

func TestGroup_SingleUndoUnitAndOneBatch(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeTask, 0)
	f.batches = nil

	require.NoError(t, f.engine.Run("drag", func() error {
		for i := 1; i <= 3; i++ {
			if err := f.engine.Execute(&Move{Node: a, To: domain.Position{X: float64(i)}}); err != nil {
				return err
			}
			if err := f.engine.Execute(&SetProperty{Node: a, Key: "threshold", Value: float64(i) / 10}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.Len(t, f.batches, 1, "nothing is published mid-group")
	assert.Equal(t, "drag", f.batches[0].Label)
	assert.Equal(t, "drag", f.engine.UndoLabel())

	_, _ = f.engine.Undo()
	n, _ := f.g.Node(a)
	assert.Equal(t, 0.0, n.Position.X)
	assert.Equal(t, 0.7, n.Properties["threshold"])
	assert.Equal(t, "create node", f.engine.UndoLabel())
}

func TestGroup_FailureRollsBack(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeClick, 0)
	b := f.create(t, registry.TypeLog, 0)
	before := f.g.Snapshot()
	published := len(f.batches)

	err := f.engine.Run("bad", func() error {
		if err := f.engine.Execute(&Move{Node: a, To: domain.Position{X: 50}}); err != nil {
			return err
		}
		if err := f.engine.Execute(&Connect{Source: port(a, registry.PortOut), Target: port(b, registry.PortIn)}); err != nil {
			return err
		}
		return f.engine.Execute(&Connect{Source: port(b, registry.PortOut), Target: port(b, registry.PortIn)})
	})
	assert.True(t, errors.Is(err, domain.ErrSelfLoop))
	assert.True(t, before.Equal(f.g.Snapshot()))
	assert.False(t, f.engine.InGroup())
	assert.Len(t, f.batches, published)
	assert.Equal(t, "create node", f.engine.UndoLabel())
}

func TestGroup_Brackets(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.BeginGroup("one"))
	assert.True(t, errors.Is(f.engine.BeginGroup("two"), ErrGroupOpen))

	_, err := f.engine.Undo()
	assert.True(t, errors.Is(err, ErrGroupOpen))

	require.NoError(t, f.engine.EndGroup())
	assert.False(t, f.engine.CanUndo(), "empty group leaves no entry")
	assert.True(t, errors.Is(f.engine.EndGroup(), ErrNoGroupOpen))
	assert.True(t, errors.Is(f.engine.AbortGroup(), ErrNoGroupOpen))
}

func TestAbortGroup_RestoresSelection(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeLog, 0)
	f.sel.SelectNodes(selection.Replace, a)

	require.NoError(t, f.engine.BeginGroup("cut"))
	require.NoError(t, f.engine.Execute(&DeleteSubgraph{Nodes: []domain.NodeID{a}}))
	require.NoError(t, f.engine.AbortGroup())

	assert.True(t, f.g.HasNode(a))
	assert.Equal(t, []domain.NodeID{a}, f.sel.NodeIDs())
}

func TestGroup_HoldsSelectionNotifications(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeLog, 0)
	sel := selection.New(f.g, f.bus)
	e := NewEngine(f.g, WithBus(f.bus), WithSelection(sel))
	f.batches = nil

	require.NoError(t, e.BeginGroup("pick"))
	sel.SelectNodes(selection.Replace, a)
	assert.Empty(t, f.batches, "selection waits for the group")
	require.NoError(t, e.AbortGroup())
	assert.Empty(t, f.batches)
	assert.Empty(t, sel.NodeIDs())

	require.NoError(t, e.BeginGroup("pick and move"))
	sel.SelectNodes(selection.Replace, a)
	require.NoError(t, e.Execute(&Move{Node: a, To: domain.Position{X: 5}}))
	require.NoError(t, e.EndGroup())
	require.Len(t, f.batches, 1)
	assert.True(t, f.batches[0].Has(event.Moved))
	assert.True(t, f.batches[0].Has(event.SelectionChanged))

	sel.Clear()
	assert.Len(t, f.batches, 2, "outside a group selection publishes at once")
}

// stuck is a command whose revert always fails.
type stuck struct{}

func (stuck) Name() string { return "stuck" }
func (stuck) Apply(*graph.Graph) ([]event.Delta, error) { return nil, nil }
func (stuck) Revert(*graph.Graph) ([]event.Delta, error) { return nil, errors.New("stuck") }

func TestGroup_FailedRevertLeavesGroupApplied(t *testing.T) {
	f := newFixture(t)
	group := &Group{Label: "pair", Commands: []Command{
		&CreateNode{Type: registry.TypeLog},
		stuck{},
		&CreateNode{Type: registry.TypeClick, Position: domain.Position{X: 100}},
	}}
	require.NoError(t, f.engine.Execute(group))
	applied := f.g.Snapshot()

	ok, err := f.engine.Undo()
	assert.Error(t, err)
	assert.False(t, ok)
	assert.True(t, applied.Equal(f.g.Snapshot()), "reverted commands are reapplied")
	assert.True(t, f.engine.CanUndo())
}

func TestRunContext_CancelledRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := f.engine.RunContext(ctx, "paste", func(ctx context.Context) error {
		if err := f.engine.Execute(&CreateNode{Type: registry.TypeLog}); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled))
	nodes, _ := f.g.Len()
	assert.Zero(t, nodes)
	assert.False(t, f.engine.CanUndo())
}

func TestRun_NestedJoinsGroup(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Run("outer", func() error {
		if err := f.engine.Execute(&CreateNode{Type: registry.TypeLog}); err != nil {
			return err
		}
		return f.engine.Run("inner", func() error {
			return f.engine.Execute(&CreateNode{Type: registry.TypeLog})
		})
	}))

	undo, _ := f.engine.History()
	assert.Equal(t, []string{"outer"}, undo)
}

func TestRun_PanicRollsBack(t *testing.T) {
	f := newFixture(t)

	assert.Panics(t, func() {
		_ = f.engine.Run("boom", func() error {
			_ = f.engine.Execute(&CreateNode{Type: registry.TypeLog})
			panic("boom")
		})
	})
	nodes, _ := f.g.Len()
	assert.Zero(t, nodes)
	assert.False(t, f.engine.InGroup())
}

func TestUndo_PrunesAndRestoresSelection(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, registry.TypeLog, 0)
	f.sel.SelectNodes(selection.Replace, a)
	f.batches = nil

	require.NoError(t, f.engine.Execute(&DeleteSubgraph{Nodes: []domain.NodeID{a}}))
	assert.Empty(t, f.sel.NodeIDs())
	require.Len(t, f.batches, 1)
	assert.True(t, f.batches[0].Has(event.SelectionChanged))

	_, _ = f.engine.Undo()
	assert.Equal(t, []domain.NodeID{a}, f.sel.NodeIDs())
	assert.Equal(t, event.OriginUndo, f.batches[1].Origin)
	assert.True(t, f.batches[1].Has(event.SelectionChanged))
}

func TestHistoryLimit(t *testing.T) {
	f := newFixture(t, WithHistoryLimit(2))
	for i := 0; i < 5; i++ {
		f.create(t, registry.TypeLog, float64(i))
	}

	undo, _ := f.engine.History()
	assert.Len(t, undo, 2)
	assert.Equal(t, uint64(5), f.engine.Executed())

	f.engine.ClearHistory()
	assert.False(t, f.engine.CanUndo())
}

func TestReplace_UndoRestoresPrevious(t *testing.T) {
	f := newFixture(t)
	f.create(t, registry.TypeLog, 0)
	before := f.g.Snapshot()

	loaded := graph.Snapshot{Nodes: []domain.Node{{ID: "x", Type: registry.TypeTask}}}
	require.NoError(t, f.engine.Execute(&Replace{Snapshot: loaded}))
	assert.True(t, f.g.HasNode("x"))

	_, _ = f.engine.Undo()
	assert.True(t, before.Equal(f.g.Snapshot()))

	err := f.engine.Execute(&Replace{Snapshot: graph.Snapshot{Nodes: []domain.Node{{ID: "y", Type: "Nope"}}}})
	assert.True(t, errors.Is(err, domain.ErrInvalidType))
	assert.True(t, before.Equal(f.g.Snapshot()))
}
