// Package view renders directory state as plain text for the terminal.
package view

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	defaultWidth = 60
	minWidth     = 40
	maxWidth     = 80
)

// Width returns the rendering width for w. Terminals use their column count,
// clamped to a readable range; anything else gets a fixed width.
func Width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return defaultWidth
	}
	return min(max(cols, minWidth), maxWidth)
}

func rule(width int) string {
	return strings.Repeat("-", width)
}

// plural returns "<n> <word>" with an "s" appended unless n is 1.
func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// wrap splits text into lines of at most width runes, breaking on spaces.
// Words longer than width are kept whole.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len([]rune(line))+1+len([]rune(word)) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
