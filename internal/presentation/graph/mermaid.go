package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// GenerateMermaid draws a chain history as a flowchart. Every entry is an
// edge from the previous step to the step the message left the chain in,
// labelled with the message. Repeated edges are drawn once with a count.
// Shapes:
// - Start: ((Circle))
// - Terminated: ([Stadium])
// - Step: [Rectangle]
// The last step is highlighted when the chain is still alive.
func GenerateMermaid(entries []domain.HistoryEntry) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    start((\"start\"))\n")

	ids := map[string]string{}
	nodeID := func(step string) string {
		if step == "" {
			return "terminated"
		}
		if id, ok := ids[step]; ok {
			return id
		}
		id := fmt.Sprintf("s%d", len(ids))
		ids[step] = id
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, escape(step)))
		return id
	}

	type edge struct{ from, to, label string }
	var order []edge
	counts := map[edge]int{}

	from := "start"
	terminated := false
	for _, h := range entries {
		to := nodeID(h.Step)
		e := edge{from: from, to: to, label: h.Message}
		if counts[e] == 0 {
			order = append(order, e)
		}
		counts[e]++
		if to == "terminated" {
			terminated = true
			from = "start"
			continue
		}
		from = to
	}

	if terminated {
		sb.WriteString("    terminated([\"terminated\"])\n")
	}
	for _, e := range order {
		label := escape(e.label)
		if n := counts[e]; n > 1 {
			label = fmt.Sprintf("%s ×%d", label, n)
		}
		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if e.label == "<lost>" {
			arrow = fmt.Sprintf("-. \"%s\" .->", label)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", e.from, arrow, e.to))
	}

	if len(entries) > 0 {
		if last := entries[len(entries)-1].Step; last != "" {
			sb.WriteString("\n    %% Overlay Styles\n")
			sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
			sb.WriteString(fmt.Sprintf("    class %s current;\n", ids[last]))
		}
	}
	return sb.String()
}

// Quotes end a Mermaid label.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
