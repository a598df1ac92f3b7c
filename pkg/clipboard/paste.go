package clipboard

import (
	"github.com/aretw0/tapestry/pkg/command"
	"github.com/aretw0/tapestry/pkg/domain"
)

// Paste rebuilds p through e as one group: every node gets a fresh id,
// positions are moved so that the payload origin lands on anchor, and
// connections are remapped to the new ids. It returns the new node ids in
// payload order. Validate p first; an invalid payload is rejected before
// the graph is touched.
func Paste(e *command.Engine, p Payload, anchor domain.Position) ([]domain.NodeID, error) {
	if err := p.Validate(e.Graph().Registry()); err != nil {
		return nil, err
	}

	var created []domain.NodeID
	err := e.Run("paste", func() error {
		ids := make(map[domain.NodeID]domain.NodeID, len(p.Nodes))
		for _, n := range p.Nodes {
			cmd := &command.CreateNode{
				Type:       n.Type,
				Position:   anchor.Add(n.Position.Sub(p.Origin)),
				Properties: domain.CloneProperties(n.Properties),
			}
			if err := e.Execute(cmd); err != nil {
				return err
			}
			ids[n.ID] = cmd.ID()
			created = append(created, cmd.ID())
		}
		for _, c := range p.Connections {
			cmd := &command.Connect{
				Source: domain.PortRef{Node: ids[c.Source.Node], Port: c.Source.Port},
				Target: domain.PortRef{Node: ids[c.Target.Node], Port: c.Target.Port},
			}
			if err := e.Execute(cmd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
