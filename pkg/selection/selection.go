// Package selection tracks the ordered set of selected nodes and connections
// of a document. The set is always a subset of the graph content.
package selection

import (
	"slices"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/aretw0/tapestry/pkg/graph"
)

// Mode controls how Select combines new ids with the current selection.
type Mode int

const (
	Replace Mode = iota
	Add
	Toggle
)

func (m Mode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Add:
		return "add"
	case Toggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// ParseMode maps replace, add and toggle to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "replace":
		return Replace, true
	case "add":
		return Add, true
	case "toggle":
		return Toggle, true
	default:
		return Replace, false
	}
}

// State is an ordered selection value.
type State struct {
	Nodes       []domain.NodeID       `json:"nodes,omitempty"`
	Connections []domain.ConnectionID `json:"connections,omitempty"`
}

// Empty reports whether nothing is selected.
func (s State) Empty() bool {
	return len(s.Nodes) == 0 && len(s.Connections) == 0
}

// Equal compares order and content.
func (s State) Equal(o State) bool {
	return slices.Equal(s.Nodes, o.Nodes) && slices.Equal(s.Connections, o.Connections)
}

// Clone returns an independent copy.
func (s State) Clone() State {
	return State{
		Nodes:       slices.Clone(s.Nodes),
		Connections: slices.Clone(s.Connections),
	}
}

// Delta describes the state as a selection-changed delta.
func (s State) Delta() event.Delta {
	c := s.Clone()
	return event.Delta{Kind: event.SelectionChanged, Nodes: c.Nodes, Connections: c.Connections}
}

// Manager holds the current selection of one document.
type Manager struct {
	graph graph.Reader
	bus   *event.Bus
	state State
	held  bool
}

// New creates an empty selection over g. Changes made through Select,
// SelectAll and Clear are published on bus when it is not nil.
func New(g graph.Reader, bus *event.Bus) *Manager {
	return &Manager{graph: g, bus: bus}
}

// State returns a copy of the current selection.
func (m *Manager) State() State { return m.state.Clone() }

// NodeIDs returns the selected nodes in selection order.
func (m *Manager) NodeIDs() []domain.NodeID { return slices.Clone(m.state.Nodes) }

// ConnectionIDs returns the selected connections in selection order.
func (m *Manager) ConnectionIDs() []domain.ConnectionID { return slices.Clone(m.state.Connections) }

// Contains reports whether the node is selected.
func (m *Manager) Contains(id domain.NodeID) bool {
	return slices.Contains(m.state.Nodes, id)
}

// Select combines ids with the selection according to mode. Ids absent from
// the graph are ignored. It reports whether the selection changed.
func (m *Manager) Select(ids State, mode Mode) bool {
	nodes := filter(ids.Nodes, m.graph.HasNode)
	conns := filter(ids.Connections, m.graph.HasConnection)

	next := m.state.Clone()
	switch mode {
	case Add:
		next.Nodes = union(next.Nodes, nodes)
		next.Connections = union(next.Connections, conns)
	case Toggle:
		next.Nodes = toggle(next.Nodes, nodes)
		next.Connections = toggle(next.Connections, conns)
	default:
		next = State{Nodes: nodes, Connections: conns}
	}
	return m.set(next)
}

// SelectNodes is Select over nodes only.
func (m *Manager) SelectNodes(mode Mode, ids ...domain.NodeID) bool {
	return m.Select(State{Nodes: ids}, mode)
}

// SelectAll selects every node and connection in graph order.
func (m *Manager) SelectAll() bool {
	var next State
	for _, n := range m.graph.Nodes() {
		next.Nodes = append(next.Nodes, n.ID)
	}
	for _, c := range m.graph.Connections() {
		next.Connections = append(next.Connections, c.ID)
	}
	return m.set(next)
}

// Clear empties the selection.
func (m *Manager) Clear() bool {
	return m.set(State{})
}

// Restore sets the selection to st without publishing, dropping ids no
// longer in the graph. Used by undo and redo, which publish the change
// inside their own batch.
func (m *Manager) Restore(st State) bool {
	next := State{
		Nodes:       filter(st.Nodes, m.graph.HasNode),
		Connections: filter(st.Connections, m.graph.HasConnection),
	}
	return m.replace(next)
}

// Prune drops ids no longer in the graph without publishing.
func (m *Manager) Prune() bool {
	return m.Restore(m.state)
}

// Hold stops publishing changes until Hold(false). The command engine holds
// the selection while a group is open and publishes the net change with the
// group's batch.
func (m *Manager) Hold(on bool) { m.held = on }

func (m *Manager) set(next State) bool {
	if !m.replace(next) {
		return false
	}
	if m.bus != nil && !m.held {
		m.bus.Publish(event.OriginSelection, "select", []event.Delta{m.state.Delta()})
	}
	return true
}

func (m *Manager) replace(next State) bool {
	if next.Equal(m.state) {
		return false
	}
	m.state = next
	return true
}

func filter[T comparable](ids []T, exists func(T) bool) []T {
	var out []T
	for _, id := range ids {
		if exists(id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func union[T comparable](cur, add []T) []T {
	for _, id := range add {
		if !slices.Contains(cur, id) {
			cur = append(cur, id)
		}
	}
	return cur
}

func toggle[T comparable](cur, ids []T) []T {
	for _, id := range ids {
		if i := slices.Index(cur, id); i >= 0 {
			cur = slices.Delete(cur, i, i+1)
		} else {
			cur = append(cur, id)
		}
	}
	return cur
}
