package pipeline

import (
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// Export builds the pipeline of every Task node in g, in graph order.
// Unknown placeholders are not exported but may be referenced by name.
// Other node kinds are editor-only and are skipped.
func Export(g graph.Reader) (*Pipeline, error) {
	names := make(map[domain.NodeID]string)
	owner := make(map[string]domain.NodeID)
	var tasks []domain.Node
	for _, n := range g.Nodes() {
		if n.Type != registry.TypeTask && n.Type != registry.TypeUnknown {
			continue
		}
		name := TaskName(n)
		names[n.ID] = name
		if n.Type != registry.TypeTask {
			continue
		}
		if other, dup := owner[name]; dup {
			return nil, fmt.Errorf("%w: %q used by nodes %s and %s", ErrDuplicateTask, name, other, n.ID)
		}
		owner[name] = n.ID
		tasks = append(tasks, n)
	}

	p := &Pipeline{Ignored: map[string][]string{}}
	for _, n := range tasks {
		var t Task
		if err := mapstructure.Decode(n.Properties, &t); err != nil {
			return nil, fmt.Errorf("task %q: %w", names[n.ID], err)
		}
		t.Name = names[n.ID]
		t.Template, t.ROI, t.Expected = nilIfEmpty(t.Template), nilIfEmpty(t.ROI), nilIfEmpty(t.Expected)
		for _, c := range g.ConnectionsOf(n.ID) {
			if c.Source.Node != n.ID {
				continue
			}
			target, ok := names[c.Target.Node]
			if !ok {
				continue
			}
			switch c.Source.Port {
			case registry.PortNext:
				t.Next = append(t.Next, target)
			case registry.PortOnError:
				t.OnError = append(t.OnError, target)
			case registry.PortInterrupt:
				t.Interrupt = append(t.Interrupt, target)
			}
		}
		p.Tasks = append(p.Tasks, t)
	}
	return p, nil
}

// TaskName returns the pipeline name of a node: its name property, or its
// id when the property is empty.
func TaskName(n domain.Node) string {
	if s, ok := n.Property("name"); ok {
		if name, ok := s.(string); ok && name != "" {
			return name
		}
	}
	return string(n.ID)
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
