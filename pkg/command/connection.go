package command

import (
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
)

// Connect joins Source to Target. The id is allocated on first Apply.
type Connect struct {
	Source domain.PortRef
	Target domain.PortRef

	conn  domain.Connection
	index int
}

func (c *Connect) Name() string { return "connect" }

// ID returns the allocated connection id, empty before the first Apply.
func (c *Connect) ID() domain.ConnectionID { return c.conn.ID }

func (c *Connect) Apply(g *graph.Graph) ([]event.Delta, error) {
	if c.conn.ID == "" {
		id, err := g.AddConnection(c.Source, c.Target)
		if err != nil {
			return nil, err
		}
		c.conn, _ = g.Connection(id)
	} else if err := g.InsertConnection(c.conn, c.index); err != nil {
		return nil, err
	}
	return []event.Delta{{Kind: event.Connected, Connection: c.conn.ID, Value: c.conn}}, nil
}

func (c *Connect) Revert(g *graph.Graph) ([]event.Delta, error) {
	conn, index, err := g.RemoveConnection(c.conn.ID)
	if err != nil {
		return nil, err
	}
	c.index = index
	return []event.Delta{{Kind: event.Disconnected, Connection: conn.ID, Value: conn}}, nil
}

// Disconnect removes one connection.
type Disconnect struct {
	ID domain.ConnectionID

	conn  domain.Connection
	index int
}

func (c *Disconnect) Name() string { return "disconnect" }

func (c *Disconnect) Apply(g *graph.Graph) ([]event.Delta, error) {
	conn, index, err := g.RemoveConnection(c.ID)
	if err != nil {
		return nil, err
	}
	c.conn, c.index = conn, index
	return []event.Delta{{Kind: event.Disconnected, Connection: c.ID, Value: conn}}, nil
}

func (c *Disconnect) Revert(g *graph.Graph) ([]event.Delta, error) {
	if err := g.InsertConnection(c.conn, c.index); err != nil {
		return nil, err
	}
	return []event.Delta{{Kind: event.Connected, Connection: c.ID, Value: c.conn}}, nil
}
