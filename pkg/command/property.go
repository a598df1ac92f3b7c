package command

import (
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
)

// SetProperty changes one property value.
type SetProperty struct {
	Node  domain.NodeID
	Key   string
	Value any

	old     any
	existed bool
}

func (c *SetProperty) Name() string { return "set property" }

func (c *SetProperty) Apply(g *graph.Graph) ([]event.Delta, error) {
	old, existed, err := g.SetProperty(c.Node, c.Key, c.Value)
	if err != nil {
		return nil, err
	}
	c.old, c.existed = old, existed
	return []event.Delta{c.delta(g, old)}, nil
}

func (c *SetProperty) Revert(g *graph.Graph) ([]event.Delta, error) {
	current := currentValue(g, c.Node, c.Key)
	if c.existed {
		if _, _, err := g.SetProperty(c.Node, c.Key, c.old); err != nil {
			return nil, err
		}
	} else if err := g.UnsetProperty(c.Node, c.Key); err != nil {
		return nil, err
	}
	return []event.Delta{{
		Kind:     event.PropertyChanged,
		Node:     c.Node,
		Key:      c.Key,
		Value:    domain.CloneValue(c.old),
		Previous: current,
	}}, nil
}

func (c *SetProperty) delta(g *graph.Graph, previous any) event.Delta {
	return event.Delta{
		Kind:     event.PropertyChanged,
		Node:     c.Node,
		Key:      c.Key,
		Value:    currentValue(g, c.Node, c.Key),
		Previous: domain.CloneValue(previous),
	}
}

func currentValue(g *graph.Graph, id domain.NodeID, key string) any {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	return n.Properties[key]
}

// Move changes a node position.
type Move struct {
	Node domain.NodeID
	To   domain.Position

	from domain.Position
}

func (c *Move) Name() string { return "move" }

func (c *Move) Apply(g *graph.Graph) ([]event.Delta, error) {
	from, err := g.SetPosition(c.Node, c.To)
	if err != nil {
		return nil, err
	}
	c.from = from
	return []event.Delta{{Kind: event.Moved, Node: c.Node, Value: c.To, Previous: from}}, nil
}

func (c *Move) Revert(g *graph.Graph) ([]event.Delta, error) {
	if _, err := g.SetPosition(c.Node, c.from); err != nil {
		return nil, err
	}
	return []event.Delta{{Kind: event.Moved, Node: c.Node, Value: c.from, Previous: c.To}}, nil
}

// Replace swaps the whole graph content, as done when a document is loaded.
type Replace struct {
	Snapshot graph.Snapshot

	previous graph.Snapshot
}

func (c *Replace) Name() string { return "load" }

func (c *Replace) Apply(g *graph.Graph) ([]event.Delta, error) {
	previous := g.Snapshot()
	if err := g.Reset(c.Snapshot); err != nil {
		return nil, err
	}
	c.previous = previous
	return swapDeltas(previous, g.Snapshot()), nil
}

func (c *Replace) Revert(g *graph.Graph) ([]event.Delta, error) {
	current := g.Snapshot()
	if err := g.Reset(c.previous); err != nil {
		return nil, err
	}
	return swapDeltas(current, c.previous), nil
}

func swapDeltas(from, to graph.Snapshot) []event.Delta {
	deltas := make([]event.Delta, 0, 2*(len(from.Nodes)+len(to.Nodes)))
	for _, conn := range from.Connections {
		deltas = append(deltas, event.Delta{Kind: event.Disconnected, Connection: conn.ID, Value: conn})
	}
	for _, n := range from.Nodes {
		deltas = append(deltas, event.Delta{Kind: event.Deleted, Node: n.ID, Value: n})
	}
	for _, n := range to.Nodes {
		deltas = append(deltas, event.Delta{Kind: event.Created, Node: n.ID, Value: n.Clone()})
	}
	for _, conn := range to.Connections {
		deltas = append(deltas, event.Delta{Kind: event.Connected, Connection: conn.ID, Value: conn})
	}
	return deltas
}
