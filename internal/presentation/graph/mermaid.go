package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/registry"
)

// Overlay contains editor state to visualize on the graph.
type Overlay struct {
	Selected []domain.NodeID
	Missing  []domain.NodeID
}

// GenerateMermaid produces a Mermaid flowchart of a document graph.
// It applies semantic styling:
// - Task: [Rectangle]
// - Click/Swipe: [[Subroutine]]
// - Recognition: ((Circle))
// - If: {Rhombus}
// - Unknown: [/Parallelogram/]
// - Default: (Rounded)
// Edges leaving on_error are dotted, interrupt edges are thick and every
// port other than next/out is written on the edge.
func GenerateMermaid(s graph.Snapshot, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range s.Nodes {
		safeID := sanitizeMermaidID(string(node.ID))

		opener, closer := "(", ")"
		switch node.Type {
		case registry.TypeTask:
			opener, closer = "[", "]"
		case registry.TypeClick, registry.TypeSwipe:
			opener, closer = "[[", "]]"
		case registry.TypeRecognition:
			opener, closer = "((", "))"
		case registry.TypeIf:
			opener, closer = "{", "}"
		case registry.TypeUnknown:
			opener, closer = "[/", "/]"
		}

		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label(node)), closer)
	}

	for _, c := range s.Connections {
		from := sanitizeMermaidID(string(c.Source.Node))
		to := sanitizeMermaidID(string(c.Target.Node))

		arrow := "-->"
		switch c.Source.Port {
		case registry.PortNext, registry.PortOut:
		case registry.PortOnError:
			arrow = `-. "on_error" .->`
		case registry.PortInterrupt:
			arrow = `== "interrupt" ==>`
		default:
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(string(c.Source.Port)))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef missing fill:#ffcdd2,stroke:#b71c1c,stroke-dasharray:4,color:#000;\n")
		writeClass(&sb, "selected", overlay.Selected)
		writeClass(&sb, "missing", overlay.Missing)
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, class string, ids []domain.NodeID) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(string(id))
		if safeID != "" && !seen[safeID] {
			seen[safeID] = true
			fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
		}
	}
}

// label is the node name when set, otherwise its type and id.
func label(n domain.Node) string {
	if v, ok := n.Property("name"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if msg, ok := n.Property("message"); ok {
		if s, ok := msg.(string); ok && s != "" {
			return fmt.Sprintf("%s: %s", n.Type, s)
		}
	}
	return fmt.Sprintf("%s %s", n.Type, n.ID)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
