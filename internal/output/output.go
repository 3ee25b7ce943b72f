// Package output formats CLI output, with color only on terminals.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette used when color is enabled.
const (
	ColorGreen  = "154"
	ColorYellow = "220"
	ColorRed    = "196"
	ColorGray   = "245"
)

type styles struct {
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	dim     lipgloss.Style
	header  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		success: r.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		warning: r.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		err:     r.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		dim:     r.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		header:  r.NewStyle().Bold(true),
	}
}

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   styles
}

// New creates a Writer that colors output when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	w := &Writer{out: out, useColor: isTTY(out) && !noColor()}
	w.styles = newStyles(lipgloss.NewRenderer(out))
	return w
}

// NewPlain creates a Writer that never emits escape sequences.
func NewPlain(out io.Writer) *Writer {
	w := New(out)
	w.useColor = false
	return w
}

// isTTY reports whether w is a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// noColor reports whether NO_COLOR is set.
func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func (w *Writer) paint(s lipgloss.Style, text string) string {
	if !w.useColor {
		return text
	}
	return s.Render(text)
}

// Status prints a message with an icon.
// Write errors are ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.paint(w.styles.success, "✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.paint(w.styles.warning, "!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.paint(w.styles.err, "✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.paint(w.styles.dim, fmt.Sprintf("%-12s", key+":")), value)
}

// Table prints rows under a header in aligned columns.
func (w *Writer) Table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, w.paint(w.styles.header, strings.Join(header, "\t")))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
