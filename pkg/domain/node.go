package domain

// NodeID identifies a node. It is assigned at creation and never reused.
type NodeID string

// ConnectionID identifies a connection.
type ConnectionID string

// PortID names a connection point on a node (e.g. "in", "next", "on_error").
type PortID string

// TypeTag names a node kind registered in the type registry.
type TypeTag string

// PortDirection tells whether a port receives or emits connections.
type PortDirection string

const (
	PortInput  PortDirection = "input"
	PortOutput PortDirection = "output"
)

// Unbounded is the MaxConnections value of a port without a connection limit.
const Unbounded = -1

// Position is a point on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by o.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the offset from o to p.
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y}
}

// Port is a connection point instantiated on a node from its type.
type Port struct {
	ID        PortID        `json:"id"`
	Direction PortDirection `json:"direction"`
	// MaxConnections limits how many connections may touch the port.
	// Unbounded (-1) means no limit.
	MaxConnections int `json:"max_connections"`
}

// Accepts reports whether a port that already has n connections can take another.
func (p Port) Accepts(n int) bool {
	return p.MaxConnections == Unbounded || n < p.MaxConnections
}

// PortRef addresses a port on a specific node.
type PortRef struct {
	Node NodeID `json:"node" yaml:"node"`
	Port PortID `json:"port" yaml:"port"`
}

// Node represents a task step in the graph.
type Node struct {
	ID       NodeID   `json:"id" yaml:"id"`
	Type     TypeTag  `json:"type" yaml:"type"`
	Position Position `json:"position" yaml:"position"`

	// Properties holds the typed values declared by the node's type schema.
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Ports are derived from the type tag; they are not persisted.
	Ports []Port `json:"-" yaml:"-"`
}

// Port returns the port with the given id.
func (n Node) Port(id PortID) (Port, bool) {
	for _, p := range n.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Property returns the value stored under key.
func (n Node) Property(key string) (any, bool) {
	v, ok := n.Properties[key]
	return v, ok
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Properties = CloneProperties(n.Properties)
	if n.Ports != nil {
		out.Ports = append([]Port(nil), n.Ports...)
	}
	return out
}

// Connection is a directed edge between two ports.
type Connection struct {
	ID     ConnectionID `json:"id" yaml:"id"`
	Source PortRef      `json:"source" yaml:"source"`
	Target PortRef      `json:"target" yaml:"target"`
}

// Touches reports whether either endpoint belongs to the node.
func (c Connection) Touches(id NodeID) bool {
	return c.Source.Node == id || c.Target.Node == id
}
