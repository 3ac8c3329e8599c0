package utils

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Truncate shortens s to at most maxLen display cells, appending "..." when
// anything was cut. Escape sequences are not counted and are never split.
func Truncate(s string, maxLen int) string {
	return ansi.Truncate(s, maxLen, "...")
}

// OneLine collapses newlines and runs of whitespace so multi-line prompts fit
// in a table cell.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
