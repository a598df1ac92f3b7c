package pipeline

import (
	"fmt"
	"slices"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
)

// Grid spacing of imported tasks: columns by distance from a root task, rows
// by discovery order within a column.
const (
	ColumnWidth = 300
	RowHeight   = 150
)

// ImportResult is the graph built from a pipeline.
type ImportResult struct {
	Snapshot graph.Snapshot
	// Placeholders are the referenced task names that had no definition.
	Placeholders []string
}

// Import lays out p as a graph of Task nodes. Every name referenced by a
// next, on_error or interrupt list becomes a connection from the matching
// output port; names without a definition become Unknown placeholder nodes.
// A nil gen uses UUIDs.
func Import(p *Pipeline, reg *registry.Registry, gen graph.IDGenerator) (*ImportResult, error) {
	var opts []graph.Option
	if gen != nil {
		opts = append(opts, graph.WithIDGenerator(gen))
	}
	g := graph.New(reg, opts...)
	res := &ImportResult{}

	positions := layoutTasks(p)
	ids := make(map[string]domain.NodeID)
	for _, t := range p.Tasks {
		id, err := g.CreateNode(registry.TypeTask, positions[t.Name], t.properties())
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", t.Name, err)
		}
		ids[t.Name] = id
	}

	for _, t := range p.Tasks {
		for _, edge := range t.edges() {
			target, ok := ids[edge.target]
			if !ok {
				id, err := g.CreateNode(registry.TypeUnknown, positions[edge.target], map[string]any{"name": edge.target})
				if err != nil {
					return nil, fmt.Errorf("placeholder %q: %w", edge.target, err)
				}
				ids[edge.target] = id
				target = id
				res.Placeholders = append(res.Placeholders, edge.target)
			}
			source := domain.PortRef{Node: ids[t.Name], Port: edge.port}
			dest := domain.PortRef{Node: target, Port: registry.PortIn}
			if connected(g, source, dest) {
				continue
			}
			if _, err := g.AddConnection(source, dest); err != nil {
				return nil, fmt.Errorf("task %q: %s -> %s: %w", t.Name, edge.port, edge.target, err)
			}
		}
	}

	res.Snapshot = g.Snapshot()
	return res, nil
}

type edge struct {
	port   domain.PortID
	target string
}

func (t Task) edges() []edge {
	var out []edge
	for _, list := range []struct {
		port  domain.PortID
		names []string
	}{
		{registry.PortNext, t.Next},
		{registry.PortOnError, t.OnError},
		{registry.PortInterrupt, t.Interrupt},
	} {
		for _, name := range list.names {
			out = append(out, edge{port: list.port, target: name})
		}
	}
	return out
}

func connected(g *graph.Graph, source, target domain.PortRef) bool {
	for _, c := range g.ConnectionsOf(source.Node) {
		if c.Source == source && c.Target == target {
			return true
		}
	}
	return false
}

// layoutTasks assigns every task and referenced name a grid position by
// breadth-first search from the tasks nobody references. Tasks only
// reachable through a cycle start a new search in declaration order.
func layoutTasks(p *Pipeline) map[string]domain.Position {
	referenced := make(map[string]bool)
	for _, t := range p.Tasks {
		for _, e := range t.edges() {
			if e.target != t.Name {
				referenced[e.target] = true
			}
		}
	}

	depth := make(map[string]int)
	var order []string
	visit := func(root string) {
		if _, ok := depth[root]; ok {
			return
		}
		depth[root] = 0
		order = append(order, root)
		queue := []string{root}
		for len(queue) > 0 {
			name := queue[0]
			queue = queue[1:]
			t, _ := p.Task(name)
			for _, e := range t.edges() {
				if _, seen := depth[e.target]; seen {
					continue
				}
				depth[e.target] = depth[name] + 1
				order = append(order, e.target)
				queue = append(queue, e.target)
			}
		}
	}

	for _, t := range p.Tasks {
		if !referenced[t.Name] {
			visit(t.Name)
		}
	}
	for _, t := range p.Tasks {
		visit(t.Name)
	}

	rows := make(map[int]int)
	out := make(map[string]domain.Position, len(order))
	for _, name := range order {
		d := depth[name]
		out[name] = domain.Position{X: float64(d * ColumnWidth), Y: float64(rows[d] * RowHeight)}
		rows[d]++
	}
	return out
}

// properties converts the set fields into Task node properties.
func (t Task) properties() map[string]any {
	props := map[string]any{"name": t.Name}
	setString := func(key string, v *string) {
		if v != nil {
			props[key] = *v
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			props[key] = *v
		}
	}
	setInt := func(key string, v *int64) {
		if v != nil {
			props[key] = *v
		}
	}

	setString("recognition", t.Recognition)
	setString("action", t.Action)
	setString("input_text", t.InputText)
	setString("package", t.Package)
	setBool("is_sub", t.IsSub)
	setBool("inverse", t.Inverse)
	setBool("enabled", t.Enabled)
	setBool("focus", t.Focus)
	setInt("rate_limit", t.RateLimit)
	setInt("timeout", t.Timeout)
	setInt("pre_delay", t.PreDelay)
	setInt("post_delay", t.PostDelay)
	if t.Template != nil {
		props["template"] = slices.Clone(t.Template)
	}
	if t.Threshold != nil {
		props["threshold"] = *t.Threshold
	}
	if t.ROI != nil {
		props["roi"] = slices.Clone(t.ROI)
	}
	if t.Expected != nil {
		props["expected"] = slices.Clone(t.Expected)
	}
	if t.Target != nil {
		props["target"] = t.Target
	}
	return props
}
