package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
)

const (
	// GraphFormat identifies a graph section.
	GraphFormat = "tapestry/graph"
	// GraphVersion is the newest graph section version this package reads.
	GraphVersion = 1
)

type graphFile struct {
	Format      string              `json:"format"`
	Version     int                 `json:"version"`
	Nodes       []domain.Node       `json:"nodes"`
	Connections []domain.Connection `json:"connections"`
}

type header struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
}

// EncodeGraph serializes a graph snapshot as an indented JSON document.
func EncodeGraph(s graph.Snapshot) ([]byte, error) {
	f := graphFile{
		Format:      GraphFormat,
		Version:     GraphVersion,
		Nodes:       s.Nodes,
		Connections: s.Connections,
	}
	if f.Nodes == nil {
		f.Nodes = []domain.Node{}
	}
	if f.Connections == nil {
		f.Connections = []domain.Connection{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeGraph parses a graph section and verifies every structural rule
// against reg. The returned snapshot has its properties coerced to the
// declared schema types.
func DecodeGraph(data []byte, reg *registry.Registry) (graph.Snapshot, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return graph.Snapshot{}, domain.WrapFormat(domain.ErrCorruptFile, "graph", err)
	}
	if h.Format != GraphFormat {
		return graph.Snapshot{}, domain.Formatf(domain.ErrCorruptFile, "graph: unexpected format %q", h.Format)
	}
	if h.Version > GraphVersion || h.Version < 1 {
		return graph.Snapshot{}, domain.Formatf(domain.ErrUnsupportedVersion, "graph version %d", h.Version)
	}

	var f graphFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return graph.Snapshot{}, domain.WrapFormat(domain.ErrCorruptFile, "graph", err)
	}

	g, err := graph.FromSnapshot(reg, graph.Snapshot{Nodes: f.Nodes, Connections: f.Connections})
	if err != nil {
		return graph.Snapshot{}, domain.WrapFormat(domain.ErrCorruptFile, "graph", err)
	}
	return g.Snapshot(), nil
}
