package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the handoff banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  _                     _        __  __ ", "#818cf8"},
		{" | |__   __ _ _ __   __| | ___  / _|/ _|", "#a78bfa"},
		{" | '_ \\ / _` | '_ \\ / _` |/ _ \\| |_| |_ ", "#c084fc"},
		{" | | | | (_| | | | | (_| | (_) |  _|  _|", "#e879f9"},
		{" |_| |_|\\__,_|_| |_|\\__,_|\\___/|_| |_|  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Accent colors a short status string, such as the active agent name.
func Accent(s string) string {
	p := termenv.ColorProfile()
	return termenv.String(s).Foreground(p.Color("#c084fc")).Bold().String()
}
