package command

import (
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
)

// CreateNode adds a node. The id is allocated on first Apply and kept for redo.
type CreateNode struct {
	Type       domain.TypeTag
	Position   domain.Position
	Properties map[string]any

	node    domain.Node
	index   int
	created bool
}

func (c *CreateNode) Name() string { return "create node" }

// ID returns the allocated node id, empty before the first Apply.
func (c *CreateNode) ID() domain.NodeID { return c.node.ID }

func (c *CreateNode) Apply(g *graph.Graph) ([]event.Delta, error) {
	if !c.created {
		id, err := g.CreateNode(c.Type, c.Position, c.Properties)
		if err != nil {
			return nil, err
		}
		c.node, _ = g.Node(id)
		c.index = g.NodeIndex(id)
		c.created = true
	} else if err := g.InsertNode(c.node, c.index); err != nil {
		return nil, err
	}
	return []event.Delta{{Kind: event.Created, Node: c.node.ID, Value: c.node.Clone()}}, nil
}

func (c *CreateNode) Revert(g *graph.Graph) ([]event.Delta, error) {
	removed, err := g.DeleteNode(c.node.ID)
	if err != nil {
		return nil, err
	}
	return append(disconnected(removed), event.Delta{Kind: event.Deleted, Node: c.node.ID, Value: removed.Node}), nil
}

// DeleteSubgraph removes connections and nodes; connections touching a
// removed node go with it.
type DeleteSubgraph struct {
	Nodes       []domain.NodeID
	Connections []domain.ConnectionID

	conns   []removedConn
	removed []graph.Removed
}

type removedConn struct {
	conn  domain.Connection
	index int
}

func (c *DeleteSubgraph) Name() string { return "delete" }

func (c *DeleteSubgraph) Apply(g *graph.Graph) ([]event.Delta, error) {
	c.conns, c.removed = nil, nil

	var deltas []event.Delta
	for _, id := range dedupe(c.Connections) {
		conn, index, err := g.RemoveConnection(id)
		if err != nil {
			c.rollback(g)
			return nil, err
		}
		c.conns = append(c.conns, removedConn{conn: conn, index: index})
		deltas = append(deltas, event.Delta{Kind: event.Disconnected, Connection: id, Value: conn})
	}
	for _, id := range dedupe(c.Nodes) {
		r, err := g.DeleteNode(id)
		if err != nil {
			c.rollback(g)
			return nil, err
		}
		c.removed = append(c.removed, r)
		deltas = append(deltas, disconnected(r)...)
		deltas = append(deltas, event.Delta{Kind: event.Deleted, Node: id, Value: r.Node})
	}
	return deltas, nil
}

func (c *DeleteSubgraph) Revert(g *graph.Graph) ([]event.Delta, error) {
	var deltas []event.Delta
	for i := len(c.removed) - 1; i >= 0; i-- {
		r := c.removed[i]
		if err := g.Restore(r); err != nil {
			return deltas, err
		}
		deltas = append(deltas, event.Delta{Kind: event.Created, Node: r.Node.ID, Value: r.Node.Clone()})
		for j := len(r.Connections) - 1; j >= 0; j-- {
			rc := r.Connections[j].Connection
			deltas = append(deltas, event.Delta{Kind: event.Connected, Connection: rc.ID, Value: rc})
		}
	}
	for i := len(c.conns) - 1; i >= 0; i-- {
		rc := c.conns[i]
		if err := g.InsertConnection(rc.conn, rc.index); err != nil {
			return deltas, err
		}
		deltas = append(deltas, event.Delta{Kind: event.Connected, Connection: rc.conn.ID, Value: rc.conn})
	}
	return deltas, nil
}

func (c *DeleteSubgraph) rollback(g *graph.Graph) {
	for i := len(c.removed) - 1; i >= 0; i-- {
		_ = g.Restore(c.removed[i])
	}
	for i := len(c.conns) - 1; i >= 0; i-- {
		_ = g.InsertConnection(c.conns[i].conn, c.conns[i].index)
	}
	c.conns, c.removed = nil, nil
}

func disconnected(r graph.Removed) []event.Delta {
	out := make([]event.Delta, 0, len(r.Connections))
	for _, rc := range r.Connections {
		out = append(out, event.Delta{Kind: event.Disconnected, Connection: rc.Connection.ID, Value: rc.Connection})
	}
	return out
}

func dedupe[T comparable](ids []T) []T {
	seen := make(map[T]struct{}, len(ids))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
