package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/pkg/domain"
	model "github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
)

func ref(node, port string) domain.PortRef {
	return domain.PortRef{Node: domain.NodeID(node), Port: domain.PortID(port)}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		snap     model.Snapshot
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Node Shapes",
			snap: model.Snapshot{Nodes: []domain.Node{
				{ID: "t1", Type: registry.TypeTask, Properties: map[string]any{"name": "Start"}},
				{ID: "c1", Type: registry.TypeClick},
				{ID: "r1", Type: registry.TypeRecognition},
				{ID: "i1", Type: registry.TypeIf},
				{ID: "u1", Type: registry.TypeUnknown, Properties: map[string]any{"name": "Missing"}},
				{ID: "l1", Type: registry.TypeLog, Properties: map[string]any{"message": "hi"}},
			}},
			contains: []string{
				"t1[\"Start\"]",
				"c1[[\"Click c1\"]]",
				"r1((\"Recognition r1\"))",
				"i1{\"If i1\"}",
				"u1[/\"Missing\"/]",
				"l1(\"Log: hi\")",
			},
		},
		{
			name: "ID Sanitization",
			snap: model.Snapshot{Nodes: []domain.Node{
				{ID: "path/to/file.md", Type: registry.TypeTask},
				{ID: "hyphen-ated", Type: registry.TypeTask},
			}},
			contains: []string{
				"path_to_file_md[\"Task path/to/file.md\"]",
				"hyphen_ated[\"Task hyphen-ated\"]",
			},
		},
		{
			name: "Edge Styles",
			snap: model.Snapshot{Connections: []domain.Connection{
				{ID: "e1", Source: ref("a", "next"), Target: ref("b", "in")},
				{ID: "e2", Source: ref("a", "on_error"), Target: ref("c", "in")},
				{ID: "e3", Source: ref("a", "interrupt"), Target: ref("d", "in")},
				{ID: "e4", Source: ref("i", "true"), Target: ref("b", "in")},
			}},
			contains: []string{
				"a --> b",
				"a -. \"on_error\" .-> c",
				"a == \"interrupt\" ==> d",
				"i -- \"true\" --> b",
			},
		},
		{
			name: "Label Escaping",
			snap: model.Snapshot{Nodes: []domain.Node{
				{ID: "q", Type: registry.TypeTask, Properties: map[string]any{"name": `say "hi"`}},
			}},
			contains: []string{"q[\"say 'hi'\"]"},
		},
		{
			name: "Overlay",
			snap: model.Snapshot{Nodes: []domain.Node{
				{ID: "a", Type: registry.TypeTask},
				{ID: "b", Type: registry.TypeTask},
			}},
			overlay: &graph.Overlay{Selected: []domain.NodeID{"a", "a"}, Missing: []domain.NodeID{"b"}},
			contains: []string{
				"classDef selected",
				"class a selected;",
				"class b missing;",
			},
		},
		{
			name:     "No Overlay",
			snap:     model.Snapshot{Nodes: []domain.Node{{ID: "a", Type: registry.TypeTask}}},
			excludes: []string{"classDef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.snap, tt.overlay)
			if !strings.HasPrefix(got, "graph LR\n") {
				t.Errorf("missing header:\n%s", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("expected output to not contain %q, got:\n%s", bad, got)
				}
			}
			if n := strings.Count(got, "class a selected;"); n > 1 {
				t.Errorf("selected class written %d times", n)
			}
		})
	}
}
