package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) graph.Snapshot {
	t.Helper()
	g := graph.New(registry.Default(), graph.WithIDGenerator(graph.SequentialIDs("n")))
	start, err := g.CreateNode(registry.TypeTask, domain.Position{X: 0, Y: 0}, map[string]any{"name": "Start|1"})
	require.NoError(t, err)
	tap, err := g.CreateNode(registry.TypeTask, domain.Position{X: 300, Y: 0}, map[string]any{"name": "Tap"})
	require.NoError(t, err)
	_, err = g.AddConnection(
		domain.PortRef{Node: start, Port: registry.PortNext},
		domain.PortRef{Node: tap, Port: registry.PortIn},
	)
	require.NoError(t, err)
	return g.Snapshot()
}

func TestMarkdown(t *testing.T) {
	s := sample(t)
	md := Markdown("flow.json", s, map[domain.NodeID][]string{s.Nodes[1].ID: {"tap.png"}})

	assert.True(t, strings.HasPrefix(md, "# flow.json\n"))
	assert.Contains(t, md, "nodes: 2, connections: 1")
	assert.Contains(t, md, `| Start\|1 | Task | 0, 0 |`)
	assert.Contains(t, md, "| Tap | Task | 300, 0 |")
	assert.Contains(t, md, "- `Start|1` next -> `Tap` in")
	assert.Contains(t, md, "- `Tap`: tap.png")
}

func TestMarkdown_Empty(t *testing.T) {
	md := Markdown("empty", graph.Snapshot{}, nil)
	assert.Equal(t, "# empty\n\nnodes: 0, connections: 0\n\n", md)
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer("notty", 80)
	require.NoError(t, err)
	out, err := render(Markdown("flow.json", sample(t), nil))
	require.NoError(t, err)
	assert.Contains(t, out, "Tap")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|")
	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, 72, Width(&buf, 72))
}
