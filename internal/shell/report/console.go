package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console prints an aligned "Deployment Summary" block. Styling degrades to
// plain text when w is not a terminal.
type Console struct {
	w     io.Writer
	title lipgloss.Style
	name  lipgloss.Style
	addr  lipgloss.Style
	fail  lipgloss.Style
	muted lipgloss.Style
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:     w,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		name:  r.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		addr:  r.NewStyle().Foreground(lipgloss.Color("#50FA7B")),
		fail:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// Report implements Reporter.
func (c *Console) Report(ctx context.Context, s Summary) error {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(c.title.Render("Deployment Summary:"))
	b.WriteString("\n")

	width := 0
	for _, r := range s.Results {
		width = max(width, len(r.Unit)+1)
	}
	for _, r := range s.Results {
		label := fmt.Sprintf("%-*s", width+1, r.Unit+":")
		b.WriteString(c.name.Render(label))
		b.WriteString(c.addr.Render(r.Address.Hex()))
		b.WriteString("\n")
	}
	if len(s.Results) == 0 {
		b.WriteString(c.muted.Render("(no contracts deployed)"))
		b.WriteString("\n")
	}

	if s.Err != nil {
		b.WriteString(c.fail.Render("FAILED: " + s.Err.Error()))
		b.WriteString("\n")
	}
	if s.RunID != "" {
		b.WriteString(c.muted.Render(fmt.Sprintf("run %s on chain %d", s.RunID, s.ChainID)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(c.w, b.String())
	return err
}
