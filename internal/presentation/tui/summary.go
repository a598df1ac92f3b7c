// Package tui renders documents for terminal output.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
)

// Markdown describes a document: a table of nodes, the list of connections
// and the templates missing from the resource library.
func Markdown(title string, s graph.Snapshot, missing map[domain.NodeID][]string) string {
	names := make(map[domain.NodeID]string, len(s.Nodes))
	for _, n := range s.Nodes {
		names[n.ID] = nodeName(n)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "nodes: %d, connections: %d\n\n", len(s.Nodes), len(s.Connections))

	if len(s.Nodes) > 0 {
		sb.WriteString("## Nodes\n\n")
		sb.WriteString("| Name | Type | Position |\n|---|---|---|\n")
		for _, n := range s.Nodes {
			fmt.Fprintf(&sb, "| %s | %s | %g, %g |\n", escapeCell(names[n.ID]), n.Type, n.Position.X, n.Position.Y)
		}
		sb.WriteString("\n")
	}

	if len(s.Connections) > 0 {
		sb.WriteString("## Connections\n\n")
		for _, c := range s.Connections {
			fmt.Fprintf(&sb, "- `%s` %s -> `%s` %s\n", names[c.Source.Node], c.Source.Port, names[c.Target.Node], c.Target.Port)
		}
		sb.WriteString("\n")
	}

	if len(missing) > 0 {
		ids := make([]string, 0, len(missing))
		for id := range missing {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		sb.WriteString("## Missing templates\n\n")
		for _, id := range ids {
			nid := domain.NodeID(id)
			fmt.Fprintf(&sb, "- `%s`: %s\n", names[nid], strings.Join(missing[nid], ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func nodeName(n domain.Node) string {
	if v, ok := n.Property("name"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return string(n.ID)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
