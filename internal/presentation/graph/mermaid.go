package graph

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/flowgraph/pkg/domain"
	graphdef "github.com/aretw0/flowgraph/pkg/graph"
)

// endNodeID is the synthetic sink drawn for terminal edges. No output of
// sanitizeMermaidID has this form.
const endNodeID = "_end"

// RunOverlay contains run data to visualize on the graph.
type RunOverlay struct {
	VisitedNodes []string
	CurrentNode  string
	Failed       bool
}

// OverlayOf builds the overlay of a finished run from its step log.
func OverlayOf(rec *domain.RunRecord) *RunOverlay {
	o := &RunOverlay{
		CurrentNode: rec.CurrentNode,
		Failed:      rec.Status == domain.StatusFailed,
	}
	seen := make(map[string]bool, len(rec.Log))
	for _, entry := range rec.Log {
		if !seen[entry.NodeID] {
			seen[entry.NodeID] = true
			o.VisitedNodes = append(o.VisitedNodes, entry.NodeID)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart from a graph definition.
// It applies semantic styling:
// - Start node: ((Circle))
// - Other nodes: [[Subroutine]] labelled with their tool
// - Terminal edges point to a shared end node.
// Overlay styles (visited/current/failed) are appended when overlay is not nil.
func GenerateMermaid(def *graphdef.Definition, overlay *RunOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	hasEnd := false
	for _, id := range def.NodeIDs() {
		safeID := sanitizeMermaidID(id)
		tool := def.Nodes[id].Tool

		opener, closer := "[[", "]]"
		if id == def.StartNode {
			opener, closer = "((", "))"
		}
		label := quoteSafe(id)
		if tool != "" && tool != id {
			label = fmt.Sprintf("%s <br/> %s", label, quoteSafe(tool))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		to, ok := def.Edges[id]
		if !ok || to == "" {
			hasEnd = true
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, endNodeID))
			continue
		}
		arrow := "-->"
		if !def.Has(to) {
			// Dangling edges fail at run time; draw them dotted.
			arrow = "-. missing .->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(to)))
	}
	if hasEnd {
		sb.WriteString(fmt.Sprintf("    %s([\"end\"])\n", endNodeID))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || visited[safeID] {
				continue
			}
			visited[safeID] = true
			sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
		}

		if overlay.CurrentNode != "" {
			class := "current"
			if overlay.Failed {
				class = "failed"
			}
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", sanitizeMermaidID(overlay.CurrentNode), class))
		}
	}

	return sb.String()
}

func quoteSafe(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// sanitizeMermaidID maps a node id to a Mermaid-safe id, one to one.
// ASCII letters and digits are kept, '_' becomes "__" and any other rune
// becomes "_<hex>_".
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case r == '_':
			sb.WriteString("__")
		default:
			fmt.Fprintf(&sb, "_%x_", r)
		}
	}
	return sb.String()
}
