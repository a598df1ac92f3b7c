package graph

import (
	"errors"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/aretw0/tapestry/pkg/schema"
)

// Reader is the read-only view of a graph handed to views and renderers.
type Reader interface {
	Node(id domain.NodeID) (domain.Node, bool)
	Nodes() []domain.Node
	Connection(id domain.ConnectionID) (domain.Connection, bool)
	Connections() []domain.Connection
	ConnectionsOf(id domain.NodeID) []domain.Connection
	HasNode(id domain.NodeID) bool
	HasConnection(id domain.ConnectionID) bool
	Snapshot() Snapshot
}

// Graph is the identifier-indexed set of nodes and connections with an
// explicit order used for serialization and z-order.
type Graph struct {
	registry *registry.Registry
	newID    IDGenerator

	nodes     map[domain.NodeID]*domain.Node
	nodeOrder []domain.NodeID

	conns     map[domain.ConnectionID]*domain.Connection
	connOrder []domain.ConnectionID
}

// Option configures a Graph.
type Option func(*Graph)

// WithIDGenerator overrides the identifier source.
func WithIDGenerator(gen IDGenerator) Option {
	return func(g *Graph) {
		if gen != nil {
			g.newID = gen
		}
	}
}

// New creates an empty graph validated against reg.
func New(reg *registry.Registry, opts ...Option) *Graph {
	if reg == nil {
		reg = registry.Default()
	}
	g := &Graph{
		registry: reg,
		newID:    UUIDs(),
		nodes:    make(map[domain.NodeID]*domain.Node),
		conns:    make(map[domain.ConnectionID]*domain.Connection),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the type registry the graph validates against.
func (g *Graph) Registry() *registry.Registry { return g.registry }

// NewID allocates an identifier unused by any node or connection.
func (g *Graph) NewID() string {
	for {
		id := g.newID()
		if _, ok := g.nodes[domain.NodeID(id)]; ok {
			continue
		}
		if _, ok := g.conns[domain.ConnectionID(id)]; ok {
			continue
		}
		return id
	}
}

// --- Nodes ---

// CreateNode allocates a fresh id and appends a node of type tag.
// Properties are coerced against the type schema and overlaid on its defaults.
func (g *Graph) CreateNode(tag domain.TypeTag, pos domain.Position, props map[string]any) (domain.NodeID, error) {
	t, err := g.registry.Lookup(tag)
	if err != nil {
		return "", err
	}
	id := domain.NodeID(g.NewID())
	canonical, err := schema.Coerce(t.Properties, props)
	if err != nil {
		return "", mismatch(id, err)
	}

	g.insert(&domain.Node{
		ID:         id,
		Type:       tag,
		Position:   pos,
		Properties: canonical,
		Ports:      t.InstantiatePorts(),
	}, len(g.nodeOrder))
	return id, nil
}

// InsertNode places an existing node at index in the ordering.
// It is the restore primitive behind undo of a delete and redo of a create.
func (g *Graph) InsertNode(node domain.Node, index int) error {
	if node.ID == "" {
		return errors.New("node without id")
	}
	if _, exists := g.nodes[node.ID]; exists {
		return &DuplicateIDError{Kind: "node", ID: string(node.ID)}
	}
	t, err := g.registry.Lookup(node.Type)
	if err != nil {
		return err
	}
	props, err := schema.Coerce(t.Properties, node.Properties)
	if err != nil {
		return mismatch(node.ID, err)
	}

	n := node.Clone()
	n.Properties = props
	n.Ports = t.InstantiatePorts()
	g.insert(&n, index)
	return nil
}

func (g *Graph) insert(n *domain.Node, index int) {
	g.nodes[n.ID] = n
	g.nodeOrder = insertAt(g.nodeOrder, n.ID, index)
}

// Removed records a deleted node and the connections cascaded with it.
type Removed struct {
	Node  domain.Node
	Index int
	// Connections are listed in removal order; restore them in reverse.
	Connections []RemovedConnection
}

// RemovedConnection is a connection with its former position in the ordering.
type RemovedConnection struct {
	Connection domain.Connection
	Index      int
}

// DeleteNode removes the node and every connection touching its ports.
func (g *Graph) DeleteNode(id domain.NodeID) (Removed, error) {
	n, ok := g.nodes[id]
	if !ok {
		return Removed{}, domain.NodeNotFound(id)
	}

	var removed Removed
	// Highest index first so each recorded index stays valid for the reverse replay.
	for i := len(g.connOrder) - 1; i >= 0; i-- {
		c := g.conns[g.connOrder[i]]
		if !c.Touches(id) {
			continue
		}
		removed.Connections = append(removed.Connections, RemovedConnection{Connection: *c, Index: i})
		delete(g.conns, c.ID)
		g.connOrder = removeAt(g.connOrder, i)
	}

	removed.Index = indexOf(g.nodeOrder, id)
	removed.Node = n.Clone()
	delete(g.nodes, id)
	g.nodeOrder = removeAt(g.nodeOrder, removed.Index)
	return removed, nil
}

// Restore reinserts a node removed by DeleteNode together with its connections.
func (g *Graph) Restore(r Removed) error {
	if err := g.InsertNode(r.Node, r.Index); err != nil {
		return err
	}
	for i := len(r.Connections) - 1; i >= 0; i-- {
		rc := r.Connections[i]
		if err := g.InsertConnection(rc.Connection, rc.Index); err != nil {
			return err
		}
	}
	return nil
}

// SetProperty stores value under key and returns the previous value.
// existed is false when the key had no value before.
func (g *Graph) SetProperty(id domain.NodeID, key string, value any) (old any, existed bool, err error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false, domain.NodeNotFound(id)
	}
	t, err := g.registry.Lookup(n.Type)
	if err != nil {
		return nil, false, err
	}
	v, err := schema.CoerceField(t.Properties, key, value)
	if err != nil {
		return nil, false, mismatch(id, err)
	}

	old, existed = n.Properties[key]
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = v
	return old, existed, nil
}

// UnsetProperty removes key. It reverses SetProperty on a key that had no value.
func (g *Graph) UnsetProperty(id domain.NodeID, key string) error {
	n, ok := g.nodes[id]
	if !ok {
		return domain.NodeNotFound(id)
	}
	delete(n.Properties, key)
	return nil
}

// SetPosition moves the node and returns its previous position.
func (g *Graph) SetPosition(id domain.NodeID, pos domain.Position) (domain.Position, error) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.Position{}, domain.NodeNotFound(id)
	}
	old := n.Position
	n.Position = pos
	return old, nil
}

// --- Connections ---

// AddConnection joins an output port to an input port.
func (g *Graph) AddConnection(source, target domain.PortRef) (domain.ConnectionID, error) {
	if err := g.checkConnection(source, target); err != nil {
		return "", err
	}
	id := domain.ConnectionID(g.NewID())
	g.conns[id] = &domain.Connection{ID: id, Source: source, Target: target}
	g.connOrder = append(g.connOrder, id)
	return id, nil
}

// InsertConnection places an existing connection at index in the ordering.
func (g *Graph) InsertConnection(c domain.Connection, index int) error {
	if c.ID == "" {
		return errors.New("connection without id")
	}
	if _, exists := g.conns[c.ID]; exists {
		return &DuplicateIDError{Kind: "connection", ID: string(c.ID)}
	}
	if err := g.checkConnection(c.Source, c.Target); err != nil {
		return err
	}
	cc := c
	g.conns[c.ID] = &cc
	g.connOrder = insertAt(g.connOrder, c.ID, index)
	return nil
}

// RemoveConnection deletes the connection and returns it with its former index.
func (g *Graph) RemoveConnection(id domain.ConnectionID) (domain.Connection, int, error) {
	c, ok := g.conns[id]
	if !ok {
		return domain.Connection{}, -1, domain.ConnectionNotFound(id)
	}
	i := indexOf(g.connOrder, id)
	delete(g.conns, id)
	g.connOrder = removeAt(g.connOrder, i)
	return *c, i, nil
}

func (g *Graph) checkConnection(source, target domain.PortRef) error {
	src, err := g.port(source)
	if err != nil {
		return err
	}
	dst, err := g.port(target)
	if err != nil {
		return err
	}
	if src.Direction != domain.PortOutput {
		return &domain.PortCapacityError{Port: source, Reason: "not an output port"}
	}
	if dst.Direction != domain.PortInput {
		return &domain.PortCapacityError{Port: target, Reason: "not an input port"}
	}

	if source.Node == target.Node {
		n := g.nodes[source.Node]
		t, err := g.registry.Lookup(n.Type)
		if err != nil {
			return err
		}
		if !t.AllowSelfLoop {
			return &domain.SelfLoopError{Node: n.ID, Type: n.Type}
		}
	}

	var outgoing, incoming int
	for _, id := range g.connOrder {
		c := g.conns[id]
		if c.Source == source && c.Target == target {
			return &domain.PortCapacityError{Port: target, Reason: "already connected to " + string(source.Node) + "." + string(source.Port)}
		}
		if c.Source == source {
			outgoing++
		}
		if c.Target == target {
			incoming++
		}
	}
	if !src.Accepts(outgoing) {
		return &domain.PortCapacityError{Port: source, Limit: src.MaxConnections}
	}
	if !dst.Accepts(incoming) {
		return &domain.PortCapacityError{Port: target, Limit: dst.MaxConnections}
	}
	return nil
}

func (g *Graph) port(ref domain.PortRef) (domain.Port, error) {
	n, ok := g.nodes[ref.Node]
	if !ok {
		return domain.Port{}, domain.NodeNotFound(ref.Node)
	}
	p, ok := n.Port(ref.Port)
	if !ok {
		return domain.Port{}, domain.PortNotFound(ref)
	}
	return p, nil
}

// --- Accessors ---

// Node returns a copy of the node.
func (g *Graph) Node(id domain.NodeID) (domain.Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return n.Clone(), true
}

// HasNode reports whether id is present.
func (g *Graph) HasNode(id domain.NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns copies of all nodes in order.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id].Clone())
	}
	return out
}

// NodeIDs returns the node ids in order.
func (g *Graph) NodeIDs() []domain.NodeID {
	return append([]domain.NodeID(nil), g.nodeOrder...)
}

// NodeIndex returns the position of id in the ordering, or -1.
func (g *Graph) NodeIndex(id domain.NodeID) int {
	return indexOf(g.nodeOrder, id)
}

// Connection returns the connection.
func (g *Graph) Connection(id domain.ConnectionID) (domain.Connection, bool) {
	c, ok := g.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	return *c, true
}

// HasConnection reports whether id is present.
func (g *Graph) HasConnection(id domain.ConnectionID) bool {
	_, ok := g.conns[id]
	return ok
}

// Connections returns all connections in order.
func (g *Graph) Connections() []domain.Connection {
	out := make([]domain.Connection, 0, len(g.connOrder))
	for _, id := range g.connOrder {
		out = append(out, *g.conns[id])
	}
	return out
}

// ConnectionsOf returns the connections touching the node, in order.
func (g *Graph) ConnectionsOf(id domain.NodeID) []domain.Connection {
	var out []domain.Connection
	for _, cid := range g.connOrder {
		if c := g.conns[cid]; c.Touches(id) {
			out = append(out, *c)
		}
	}
	return out
}

// Len returns the number of nodes and connections.
func (g *Graph) Len() (nodes, connections int) {
	return len(g.nodeOrder), len(g.connOrder)
}

// Equal reports whether both graphs hold the same ordered nodes and connections.
func (g *Graph) Equal(other *Graph) bool {
	return g.Snapshot().Equal(other.Snapshot())
}

func mismatch(id domain.NodeID, err error) error {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return &domain.TypeMismatchError{Node: id, Key: ve.Key, Reason: ve.Reason}
	}
	return &domain.TypeMismatchError{Node: id, Reason: err.Error()}
}

func insertAt[T any](s []T, v T, index int) []T {
	if index < 0 || index > len(s) {
		index = len(s)
	}
	s = append(s, v)
	copy(s[index+1:], s[index:])
	s[index] = v
	return s
}

func removeAt[T any](s []T, index int) []T {
	return append(s[:index], s[index+1:]...)
}

func indexOf[T comparable](s []T, v T) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}
