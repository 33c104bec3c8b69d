package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the weft banner to w using the terminal's color profile.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{"                  __ _   ", "#34d399"},
		{" __      _____   / _| |_ ", "#2dd4bf"},
		{" \\ \\ /\\ / / _ \\ | |_| __|", "#22d3ee"},
		{"  \\ V  V /  __/ |  _| |_ ", "#38bdf8"},
		{"   \\_/\\_/ \\___| |_|  \\__|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("   chain dispatch core "+version).Faint())
	fmt.Fprintln(w)
}
