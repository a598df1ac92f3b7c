package command

import (
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
)

// Command is one reversible semantic edit.
//
// Apply must leave the graph unchanged when it fails. After a successful
// Apply, Revert restores the exact prior state; after Revert, Apply
// reproduces the exact post state, identifiers included.
type Command interface {
	Name() string
	Apply(g *graph.Graph) ([]event.Delta, error)
	Revert(g *graph.Graph) ([]event.Delta, error)
}

// Group applies its commands in order and reverts them in reverse, as one unit.
type Group struct {
	Label    string
	Commands []Command
}

func (c *Group) Name() string {
	if c.Label == "" {
		return "group"
	}
	return c.Label
}

// Apply rolls back the commands already applied when one fails.
func (c *Group) Apply(g *graph.Graph) ([]event.Delta, error) {
	var deltas []event.Delta
	for i, cmd := range c.Commands {
		d, err := cmd.Apply(g)
		if err != nil {
			revertAll(g, c.Commands[:i])
			return nil, err
		}
		deltas = append(deltas, d...)
	}
	return deltas, nil
}

// Revert reapplies the commands already reverted when one fails, leaving the
// group applied.
func (c *Group) Revert(g *graph.Graph) ([]event.Delta, error) {
	var deltas []event.Delta
	for i := len(c.Commands) - 1; i >= 0; i-- {
		d, err := c.Commands[i].Revert(g)
		if err != nil {
			applyAll(g, c.Commands[i+1:])
			return nil, err
		}
		deltas = append(deltas, d...)
	}
	return deltas, nil
}

// revertAll undoes applied commands in reverse order, ignoring deltas.
func revertAll(g *graph.Graph, applied []Command) []error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		if _, err := applied[i].Revert(g); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// applyAll reapplies reverted commands in order, ignoring deltas.
func applyAll(g *graph.Graph, reverted []Command) {
	for _, cmd := range reverted {
		_, _ = cmd.Apply(g)
	}
}
