package tui

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/muesli/termenv"
)

// Row is one labelled value of a summary.
type Row struct {
	Label string
	Value string
	Warn  bool
}

// PrintSummary writes a titled two-column table. Rows flagged Warn are
// highlighted when the terminal supports color.
func PrintSummary(w io.Writer, title string, rows []Row) {
	out := termenv.NewOutput(w)

	width := 0
	for _, r := range rows {
		width = max(width, len(r.Label))
	}

	fmt.Fprintln(w, out.String(title).Bold())
	for _, r := range rows {
		value := out.String(r.Value)
		if r.Warn {
			value = value.Foreground(out.Color("#f59e0b"))
		}
		fmt.Fprintf(w, "  %-*s  %s\n", width, r.Label, value)
	}
}

// CountRows turns a label→count map into rows ordered by label.
func CountRows(counts map[string]int64, warn func(label string) bool) []Row {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	rows := make([]Row, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, Row{
			Label: l,
			Value: fmt.Sprintf("%d", counts[l]),
			Warn:  warn != nil && warn(l) && counts[l] > 0,
		})
	}
	return rows
}

// Duration formats d for humans with millisecond precision.
func Duration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
