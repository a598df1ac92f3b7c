package document

import (
	"errors"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(t *testing.T) *Document {
	t.Helper()
	return New(WithIDGenerator(graph.SequentialIDs("n")))
}

func clickLog(t *testing.T, d *Document) (domain.NodeID, domain.NodeID, domain.ConnectionID) {
	t.Helper()
	a, err := d.CreateNode(registry.TypeClick, domain.Position{X: 0, Y: 0}, nil)
	require.NoError(t, err)
	b, err := d.CreateNode(registry.TypeLog, domain.Position{X: 100, Y: 0}, nil)
	require.NoError(t, err)
	c, err := d.Connect(domain.PortRef{Node: a, Port: registry.PortOut}, domain.PortRef{Node: b, Port: registry.PortIn})
	require.NoError(t, err)
	return a, b, c
}

func TestScenario_CutPaste(t *testing.T) {
	d := newDoc(t)
	a, b, _ := clickLog(t, d)

	require.NoError(t, d.SelectNodes(selection.Replace, a, b))
	require.NoError(t, d.Cut())
	assert.False(t, d.Graph().HasNode(a))
	assert.False(t, d.Graph().HasNode(b))

	ids, err := d.Paste(domain.Position{X: 50, Y: 50})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	first, _ := d.Graph().Node(ids[0])
	second, _ := d.Graph().Node(ids[1])
	assert.Equal(t, domain.Position{X: 50, Y: 50}, first.Position)
	assert.Equal(t, domain.Position{X: 150, Y: 50}, second.Position)

	conns := d.Graph().ConnectionsOf(ids[0])
	require.Len(t, conns, 1)
	assert.Equal(t, ids[1], conns[0].Target.Node)
	assert.Equal(t, ids, d.Selection().Nodes, "pasted nodes become the selection")

	// Undo the paste, then the cut in one step.
	_, err = d.Undo()
	require.NoError(t, err)
	ok, err := d.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, d.Graph().HasNode(a))
	assert.True(t, d.Graph().HasNode(b))
	_, conns2 := d.graph.Len()
	assert.Equal(t, 1, conns2)
	assert.Equal(t, []domain.NodeID{a, b}, d.Selection().Nodes)
}

func TestCopyPasteTwice_Disjoint(t *testing.T) {
	d := newDoc(t)
	a, b, _ := clickLog(t, d)
	require.NoError(t, d.SelectNodes(selection.Replace, a, b))
	require.NoError(t, d.Copy())

	p1, err := d.Paste(domain.Position{X: 0, Y: 300})
	require.NoError(t, err)
	p2, err := d.Paste(domain.Position{X: 0, Y: 600})
	require.NoError(t, err)

	for _, id := range p1 {
		assert.NotContains(t, p2, id)
	}
	nodes, conns := d.graph.Len()
	assert.Equal(t, 6, nodes)
	assert.Equal(t, 3, conns)
}

func TestPaste_Errors(t *testing.T) {
	d := newDoc(t)

	_, err := d.Paste(domain.Position{})
	assert.True(t, errors.Is(err, ErrEmptyClipboard))

	_, err = d.PastePayload([]byte(`{"format":"tapestry/clipboard","version":1,"nodes":[{"id":"x","type":"Nope"}]}`), domain.Position{})
	assert.True(t, errors.Is(err, domain.ErrClipboardFormat))
	assert.False(t, d.CanUndo())
}

func TestDeleteSelection_IncludesConnections(t *testing.T) {
	d := newDoc(t)
	a, b, c := clickLog(t, d)

	require.NoError(t, d.Select(selection.State{Connections: []domain.ConnectionID{c}}, selection.Replace))
	require.NoError(t, d.DeleteSelection())
	assert.False(t, d.Graph().HasConnection(c))
	assert.True(t, d.Graph().HasNode(a))
	assert.True(t, d.Graph().HasNode(b))
	assert.True(t, d.Selection().Empty(), "deleted ids are pruned")
}

func TestCut_ConnectionsOnly(t *testing.T) {
	d := newDoc(t)
	a, b, c := clickLog(t, d)

	require.NoError(t, d.Select(selection.State{Connections: []domain.ConnectionID{c}}, selection.Replace))
	require.NoError(t, d.Cut())
	assert.False(t, d.Graph().HasConnection(c))
	assert.True(t, d.Graph().HasNode(a))
	assert.True(t, d.Graph().HasNode(b))

	ok, err := d.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, d.Graph().HasConnection(c))
}

func TestPaste_RedoRestoresSelection(t *testing.T) {
	d := newDoc(t)
	a, b, _ := clickLog(t, d)
	require.NoError(t, d.SelectNodes(selection.Replace, a, b))
	require.NoError(t, d.Copy())
	require.NoError(t, d.ClearSelection())

	ids, err := d.Paste(domain.Position{X: 0, Y: 300})
	require.NoError(t, err)
	assert.Equal(t, ids, d.Selection().Nodes)

	_, err = d.Undo()
	require.NoError(t, err)
	assert.True(t, d.Selection().Empty())

	ok, err := d.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids, d.Selection().Nodes, "redo selects the pasted nodes again")
}

func TestBatch_SelectionPublishedWithGroup(t *testing.T) {
	d := newDoc(t)
	a, _, _ := clickLog(t, d)
	var batches []event.Batch
	d.Bus().Subscribe(func(b event.Batch) { batches = append(batches, b) })

	boom := errors.New("boom")
	err := d.Batch("select then fail", func() error {
		if err := d.SelectNodes(selection.Replace, a); err != nil {
			return err
		}
		assert.Empty(t, batches, "no selection change escapes an open group")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, batches)
	assert.True(t, d.Selection().Empty())

	err = d.Batch("select and move", func() error {
		if err := d.SelectNodes(selection.Replace, a); err != nil {
			return err
		}
		return d.Move(a, domain.Position{X: 10})
	})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Has(event.Moved))
	assert.True(t, batches[0].Has(event.SelectionChanged))
	assert.Equal(t, []domain.NodeID{a}, d.Selection().Nodes)

	require.NoError(t, d.Batch("select only", func() error {
		return d.SelectNodes(selection.Replace)
	}))
	require.Len(t, batches, 2)
	assert.Equal(t, event.OriginSelection, batches[1].Origin)
	assert.True(t, d.Selection().Empty())
}

func TestAlignToGrid_Idempotent(t *testing.T) {
	d := newDoc(t)
	a, _ := d.CreateNode(registry.TypeLog, domain.Position{X: 13, Y: 27}, nil)
	b, _ := d.CreateNode(registry.TypeLog, domain.Position{X: 44, Y: -6}, nil)

	require.NoError(t, d.AlignToGrid(20))
	na, _ := d.Graph().Node(a)
	nb, _ := d.Graph().Node(b)
	assert.Equal(t, domain.Position{X: 20, Y: 20}, na.Position)
	assert.Equal(t, domain.Position{X: 40, Y: 0}, nb.Position)

	once := d.Snapshot()
	undo, _ := d.engine.History()

	require.NoError(t, d.AlignToGrid(20))
	assert.True(t, once.Equal(d.Snapshot()))
	again, _ := d.engine.History()
	assert.Equal(t, undo, again, "second align adds no step")

	_, _ = d.Undo()
	na, _ = d.Graph().Node(a)
	assert.Equal(t, domain.Position{X: 13, Y: 27}, na.Position, "align is one step")

	assert.True(t, errors.Is(d.AlignToGrid(0), ErrInvalidGrid))
}

func TestAlignToGrid_SelectionOnly(t *testing.T) {
	d := newDoc(t)
	a, _ := d.CreateNode(registry.TypeLog, domain.Position{X: 13}, nil)
	b, _ := d.CreateNode(registry.TypeLog, domain.Position{X: 13}, nil)
	require.NoError(t, d.SelectNodes(selection.Replace, a))

	require.NoError(t, d.AlignToGrid(10))
	nb, _ := d.Graph().Node(b)
	assert.Equal(t, 13.0, nb.Position.X)
}

func TestMoveNodes_OneStep(t *testing.T) {
	d := newDoc(t)
	a, b, _ := clickLog(t, d)

	require.NoError(t, d.MoveNodes(domain.Position{X: 5, Y: 5}, a, b))
	nb, _ := d.Graph().Node(b)
	assert.Equal(t, domain.Position{X: 105, Y: 5}, nb.Position)

	_, _ = d.Undo()
	nb, _ = d.Graph().Node(b)
	assert.Equal(t, domain.Position{X: 100, Y: 0}, nb.Position)

	err := d.MoveNodes(domain.Position{X: 1}, a, "ghost")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	na, _ := d.Graph().Node(a)
	assert.Equal(t, domain.Position{}, na.Position, "partial move rolled back")
}

func TestBatch_GroupsIntents(t *testing.T) {
	d := newDoc(t)
	err := d.Batch("template", func() error {
		a, err := d.CreateNode(registry.TypeTask, domain.Position{}, nil)
		if err != nil {
			return err
		}
		return d.SetProperty(a, "name", "Start")
	})
	require.NoError(t, err)

	_, _ = d.Undo()
	nodes, _ := d.graph.Len()
	assert.Zero(t, nodes)
}

func TestViewsSeeWholeBatches(t *testing.T) {
	d := newDoc(t)
	var kinds [][]event.Kind
	d.Bus().Subscribe(func(b event.Batch) {
		var ks []event.Kind
		for _, delta := range b.Deltas {
			ks = append(ks, delta.Kind)
		}
		kinds = append(kinds, ks)
	}, event.Created, event.Connected, event.Deleted, event.Disconnected)

	a, b, _ := clickLog(t, d)
	require.NoError(t, d.DeleteNodes(a))
	_ = b

	require.Len(t, kinds, 4)
	assert.Equal(t, []event.Kind{event.Disconnected, event.Deleted}, kinds[3], "cascade arrives with the delete")
}

func TestLoad_UndoableAndResettable(t *testing.T) {
	d := newDoc(t)
	clickLog(t, d)
	before := d.Snapshot()

	require.NoError(t, d.Load(graph.Snapshot{Nodes: []domain.Node{{ID: "t1", Type: registry.TypeTask}}}))
	assert.True(t, d.Graph().HasNode("t1"))

	_, _ = d.Undo()
	assert.True(t, before.Equal(d.Snapshot()))

	_, _ = d.Redo()
	d.ResetHistory()
	assert.False(t, d.CanUndo())
	assert.False(t, d.CanRedo())
}

func TestClose(t *testing.T) {
	d := newDoc(t)
	require.NoError(t, d.Close())
	assert.True(t, d.Closed())

	_, err := d.CreateNode(registry.TypeLog, domain.Position{}, nil)
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = d.Undo()
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(d.Close(), ErrClosed))
}
