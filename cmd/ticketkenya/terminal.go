package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// terminal is the notifier, confirmer and prompt of the CLI. Toasts go to
// stderr so stdout only carries data.
type terminal struct {
	in      io.Reader
	out     io.Writer
	err     io.Writer
	noColor bool
	assume  bool // --yes

	reader *bufio.Reader
}

func newTerminal(in io.Reader, out, errOut io.Writer) *terminal {
	return &terminal{in: in, out: out, err: errOut}
}

func (t *terminal) toast(c *color.Color, title, message string) {
	if t.noColor {
		c.DisableColor()
	}
	c.Fprint(t.err, title)
	if message != "" {
		fmt.Fprintf(t.err, " %s", message)
	}
	fmt.Fprintln(t.err)
}

func (t *terminal) Success(title, message string) {
	t.toast(color.New(color.FgGreen, color.Bold), "✔ "+title, message)
}

func (t *terminal) Error(title, message string) {
	t.toast(color.New(color.FgRed, color.Bold), "✖ "+title, message)
}

func (t *terminal) Info(title, message string) {
	t.toast(color.New(color.FgCyan, color.Bold), "ℹ "+title, message)
}

func (t *terminal) line() (string, error) {
	if t.reader == nil {
		t.reader = bufio.NewReader(t.in)
	}
	s, err := t.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Confirm asks a y/N question. End of input counts as no.
func (t *terminal) Confirm(_ context.Context, title, text string) (bool, error) {
	if t.assume {
		return true, nil
	}
	fmt.Fprintf(t.err, "%s %s [y/N]: ", title, text)
	answer, err := t.line()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(t.err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (t *terminal) prompt(label string) (string, error) {
	fmt.Fprintf(t.err, "%s: ", label)
	return t.line()
}

// password reads without echo when stdin is a terminal and falls back to a
// plain line otherwise (pipes, tests).
func (t *terminal) password(label string) (string, error) {
	if f, ok := t.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(t.err, "%s: ", label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(t.err)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return t.prompt(label)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// table prints rows in aligned columns.
func (t *terminal) table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(t.out, faintStyle.Render("Nothing to show."))
		return
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i := range headers {
			if i < len(r) && lipgloss.Width(r[i]) > widths[i] {
				widths[i] = lipgloss.Width(r[i])
			}
		}
	}

	render := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(headers))
		for i := range headers {
			var c string
			if i < len(cells) {
				c = cells[i]
			}
			cell := lipgloss.NewStyle().Width(widths[i]).Render(c)
			if style != nil {
				cell = style.Render(cell)
			}
			parts[i] = cell
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}
	fmt.Fprintln(t.out, render(headers, &headerStyle))
	for _, r := range rows {
		fmt.Fprintln(t.out, render(r, nil))
	}
}

// fields prints label/value pairs, one per line.
func (t *terminal) fields(title string, pairs ...[2]string) {
	if title != "" {
		fmt.Fprintln(t.out, titleStyle.Render(title))
	}
	width := 0
	for _, p := range pairs {
		if w := lipgloss.Width(p[0]); w > width {
			width = w
		}
	}
	for _, p := range pairs {
		label := headerStyle.Render(lipgloss.NewStyle().Width(width).Render(p[0]))
		fmt.Fprintf(t.out, "%s  %s\n", label, p[1])
	}
}
