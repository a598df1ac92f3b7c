package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/schema"
)

// PortSpec declares one port of a node type.
type PortSpec struct {
	ID             domain.PortID
	Direction      domain.PortDirection
	MaxConnections int
}

// NodeType describes the ports and properties every node of a type shares.
type NodeType struct {
	Tag         domain.TypeTag
	DisplayName string
	Category    string
	Description string
	Ports       []PortSpec
	Properties  schema.Fields
	// AllowSelfLoop permits a connection from an output of a node to an input of the same node.
	AllowSelfLoop bool
}

// Port returns the port declared under id.
func (t *NodeType) Port(id domain.PortID) (PortSpec, bool) {
	for _, p := range t.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return PortSpec{}, false
}

// InstantiatePorts returns the port list every new node of this type carries.
func (t *NodeType) InstantiatePorts() []domain.Port {
	out := make([]domain.Port, len(t.Ports))
	for i, p := range t.Ports {
		out[i] = domain.Port{ID: p.ID, Direction: p.Direction, MaxConnections: p.MaxConnections}
	}
	return out
}

// Registry manages the available node types.
type Registry struct {
	mu    sync.RWMutex
	types map[domain.TypeTag]*NodeType
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[domain.TypeTag]*NodeType),
	}
}

// Register adds a node type to the registry.
// If a type with the same tag exists, it is overwritten.
func (r *Registry) Register(t NodeType) error {
	if t.Tag == "" {
		return fmt.Errorf("node type without tag")
	}
	seen := make(map[domain.PortID]struct{}, len(t.Ports))
	for _, p := range t.Ports {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("node type %s: duplicate port %q", t.Tag, p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Direction != domain.PortInput && p.Direction != domain.PortOutput {
			return fmt.Errorf("node type %s: port %q has invalid direction %q", t.Tag, p.ID, p.Direction)
		}
		if p.MaxConnections == 0 || p.MaxConnections < domain.Unbounded {
			return fmt.Errorf("node type %s: port %q has invalid capacity %d", t.Tag, p.ID, p.MaxConnections)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Tag] = &t
	return nil
}

// MustRegister is Register for static declarations; it panics on error.
func (r *Registry) MustRegister(t NodeType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the node type for tag, or an InvalidTypeError.
func (r *Registry) Lookup(tag domain.TypeTag) (*NodeType, error) {
	r.mu.RLock()
	t, ok := r.types[tag]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.InvalidTypeError{Type: tag}
	}
	return t, nil
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag domain.TypeTag) bool {
	_, err := r.Lookup(tag)
	return err == nil
}

// Types returns all registered types ordered by tag.
func (r *Registry) Types() []*NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*NodeType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}
