package cliui

import (
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

// Printer writes model output either to an interactive terminal, where it
// is styled and markdown is rendered, or to a pipe, where it is left as is.
type Printer struct {
	w     io.Writer
	tty   bool
	width int

	prompt lipgloss.Style
	faint  lipgloss.Style
	errs   lipgloss.Style
}

// NewPrinter inspects w and returns a Printer for it.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{w: w, width: 80}

	profile := termenv.Ascii
	if isTerminal(w) {
		f := w.(*os.File)
		p.tty = true
		profile = termenv.NewOutput(f).EnvColorProfile()
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			p.width = width
		}
	}

	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	p.prompt = renderer.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	p.faint = renderer.NewStyle().Foreground(lipgloss.Color("245"))
	p.errs = renderer.NewStyle().Foreground(lipgloss.Color("196"))

	return p
}

// TTY reports whether output goes to an interactive terminal.
func (p *Printer) TTY() bool {
	return p.tty
}

// Write passes raw bytes through, so a Printer can stand in for its writer
// while a response streams.
func (p *Printer) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Markdown prints content, rendered through glamour on a terminal.
func (p *Printer) Markdown(content string) {
	if !p.tty {
		fmt.Fprintln(p.w, content)
		return
	}

	rendered, err := RenderMarkdown(content, p.width)
	if err != nil {
		fmt.Fprintln(p.w, content)
		return
	}
	fmt.Fprint(p.w, rendered)
}

// Prompt returns the REPL prompt for the given model.
func (p *Printer) Prompt(model string) string {
	return p.prompt.Render(model+" ›") + " "
}

// Stats prints a one-line summary of the completion telemetry. Nothing is
// printed when the server reported no counts.
func (p *Printer) Stats(m ollama.Metrics) {
	line := StatsLine(m)
	if line == "" {
		return
	}
	fmt.Fprintln(p.w, p.faint.Render(line))
}

// Errorf prints a styled error line.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.errs.Render(fmt.Sprintf(format, args...)))
}

// StatsLine formats telemetry as e.g. "42 tokens · 31.5 tok/s · 1.4s".
func StatsLine(m ollama.Metrics) string {
	var parts []string
	if m.EvalCount > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", m.EvalCount))
	}
	if tps := m.TokensPerSecond(); tps > 0 {
		parts = append(parts, fmt.Sprintf("%.1f tok/s", tps))
	}
	if total := m.Total(); total > 0 {
		parts = append(parts, FormatDuration(total))
	}
	return strings.Join(parts, " · ")
}

// Echo wraps a stream so every item's text is written to w as it is pulled.
// The items pass through unchanged for the caller to fold.
func Echo[T any](w io.Writer, s *ollama.Stream[T], text func(T) string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range s.All() {
			if err == nil {
				_, _ = io.WriteString(w, text(item))
			}
			if !yield(item, err) {
				return
			}
		}
	}
}
