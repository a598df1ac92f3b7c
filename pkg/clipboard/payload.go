// Package clipboard serializes subgraphs into a portable payload and
// rebuilds them with fresh identifiers.
package clipboard

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
)

const (
	// Format identifies a clipboard payload.
	Format = "tapestry/clipboard"
	// Version is the payload version this build writes and reads.
	Version = 1
)

// Payload is the induced subgraph of a selection.
// Origin is the top-left corner of the copied nodes; paste offsets
// positions from it.
type Payload struct {
	Format      string              `json:"format"`
	Version     int                 `json:"version"`
	Origin      domain.Position     `json:"origin"`
	Nodes       []domain.Node       `json:"nodes"`
	Connections []domain.Connection `json:"connections"`
}

// Extract builds the payload for the given nodes. Connections with an
// endpoint outside the set are dropped.
func Extract(g *graph.Graph, ids []domain.NodeID) Payload {
	sub := g.InducedSubgraph(ids)
	p := Payload{
		Format:      Format,
		Version:     Version,
		Nodes:       sub.Nodes,
		Connections: sub.Connections,
	}
	for i, n := range sub.Nodes {
		p.Nodes[i].Ports = nil
		if i == 0 {
			p.Origin = n.Position
			continue
		}
		if n.Position.X < p.Origin.X {
			p.Origin.X = n.Position.X
		}
		if n.Position.Y < p.Origin.Y {
			p.Origin.Y = n.Position.Y
		}
	}
	return p
}

// Empty reports whether the payload carries no nodes.
func (p Payload) Empty() bool { return len(p.Nodes) == 0 }

// Encode serializes the payload.
func (p Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode clipboard payload: %w", err)
	}
	return data, nil
}

// Decode parses and validates a payload. Every failure wraps ErrClipboardFormat.
func Decode(data []byte, reg *registry.Registry) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, domain.WrapFormat(domain.ErrClipboardFormat, "decode", err)
	}
	if err := p.Validate(reg); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Validate checks the header and that the payload forms a valid graph on
// its own: unique ids, known types, valid properties, internal connections only.
func (p Payload) Validate(reg *registry.Registry) error {
	if p.Format != Format {
		return domain.Formatf(domain.ErrClipboardFormat, "unexpected format %q", p.Format)
	}
	if p.Version != Version {
		return domain.Formatf(domain.ErrClipboardFormat, "unsupported version %d", p.Version)
	}
	if err := graph.ValidateSnapshot(reg, graph.Snapshot{Nodes: p.Nodes, Connections: p.Connections}); err != nil {
		return domain.WrapFormat(domain.ErrClipboardFormat, "invalid subgraph", err)
	}
	return nil
}

// Board holds the encoded payload of the last copy or cut.
type Board struct {
	data []byte
}

// Set stores an encoded payload.
func (b *Board) Set(data []byte) { b.data = append([]byte(nil), data...) }

// Bytes returns the stored payload, nil when empty.
func (b *Board) Bytes() []byte { return append([]byte(nil), b.data...) }

// Empty reports whether nothing was copied.
func (b *Board) Empty() bool { return len(b.data) == 0 }
