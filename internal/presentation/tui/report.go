package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// StatusLine returns a one-line summary of a run, colored by status when
// the terminal supports it.
func StatusLine(rec *domain.RunRecord) string {
	p := termenv.ColorProfile()

	color := "#22c55e"
	if rec.Status == domain.StatusFailed {
		color = "#ef4444"
	}
	status := termenv.String(strings.ToUpper(string(rec.Status))).Foreground(p.Color(color)).Bold()

	line := fmt.Sprintf("%s run=%s steps=%d", status, rec.RunID, rec.StepsTaken)
	if rec.CurrentNode != "" {
		line += " node=" + rec.CurrentNode
	}
	if rec.ErrorKind != "" {
		line += " kind=" + rec.ErrorKind
	}
	return line
}

// RunReport formats a run record as markdown: a summary, the step table
// and the final state.
func RunReport(rec *domain.RunRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run %s\n\n", rec.RunID)
	fmt.Fprintf(&sb, "- **Status:** %s\n", rec.Status)
	if rec.GraphID != "" {
		fmt.Fprintf(&sb, "- **Graph:** %s\n", rec.GraphID)
	}
	fmt.Fprintf(&sb, "- **Steps:** %d\n", rec.StepsTaken)
	if rec.CurrentNode != "" {
		fmt.Fprintf(&sb, "- **Current node:** %s\n", rec.CurrentNode)
	}
	if rec.Error != "" {
		fmt.Fprintf(&sb, "- **Error (%s):** %s\n", rec.ErrorKind, rec.Error)
	}

	if len(rec.Log) > 0 {
		sb.WriteString("\n## Steps\n\n")
		sb.WriteString("| # | Node | Next | Changed keys |\n")
		sb.WriteString("|---|------|------|--------------|\n")
		for _, entry := range rec.Log {
			next := entry.NextNodeID
			switch {
			case next == "":
				next = "(end)"
			case entry.Overridden:
				next += " *"
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n", entry.Step, entry.NodeID, next, strings.Join(changedKeys(entry.Delta), ", "))
		}
	}

	sb.WriteString("\n## Final state\n\n```json\n")
	state, err := json.MarshalIndent(rec.FinalState, "", "  ")
	if err != nil {
		fmt.Fprintf(&sb, "%v", rec.FinalState)
	} else {
		sb.Write(state)
	}
	sb.WriteString("\n```\n")

	return sb.String()
}

// PrintRun writes the status line and the run report to w. The report is
// rendered with glamour when w is a terminal and left as markdown otherwise.
func PrintRun(w io.Writer, rec *domain.RunRecord, verbose bool) error {
	if _, err := fmt.Fprintln(w, StatusLine(rec)); err != nil {
		return err
	}
	if !verbose {
		return nil
	}

	report := RunReport(rec)
	if IsTerminal(w) {
		rendered, err := NewRenderer()(report)
		if err == nil {
			report = rendered
		}
	}
	_, err := io.WriteString(w, report)
	return err
}

func changedKeys(delta map[string]any) []string {
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
