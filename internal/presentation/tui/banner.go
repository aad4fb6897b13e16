package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the flowgraph ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   __ _                                      _     ", "#818cf8"},
		{"  / _| | _____      ____ _ _ __ __ _ _ __ | |__  ", "#a78bfa"},
		{" | |_| |/ _ \\ \\ /\\ / / _` | '__/ _` | '_ \\| '_ \\ ", "#c084fc"},
		{" |  _| | (_) \\ V  V / (_| | | | (_| | |_) | | | |", "#e879f9"},
		{" |_| |_|\\___/ \\_/\\_/ \\__, |_|  \\__,_| .__/|_| |_|", "#f472b6"},
		{"                     |___/          |_|          ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
