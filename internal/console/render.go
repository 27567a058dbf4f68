// SPDX-License-Identifier: MPL-2.0

package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/pkg/module"
)

const defaultWidth = 80

// renderer draws replies for one session.
type renderer struct {
	lg       *lipgloss.Renderer
	md       *glamour.TermRenderer
	width    int
	title    lipgloss.Style
	faint    lipgloss.Style
	fieldKey lipgloss.Style
}

// newRenderer builds a renderer writing to w. Without a terminal, markdown
// is rendered with glamour's plain style.
func newRenderer(w io.Writer, width int, tty bool) (*renderer, error) {
	if width <= 0 {
		width = defaultWidth
	}
	style := "notty"
	if tty {
		style = "dark"
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}

	lg := lipgloss.NewRenderer(w)
	return &renderer{
		lg:       lg,
		md:       md,
		width:    width,
		title:    lg.NewStyle().Bold(true),
		faint:    lg.NewStyle().Faint(true),
		fieldKey: lg.NewStyle().Bold(true).Underline(true),
	}, nil
}

// reply renders one reply. Edits are marked so that progress followed by
// the final result reads naturally in a scrolling terminal.
func (r *renderer) reply(rep platform.Reply) string {
	if rep.Kind == platform.ReplySuggested {
		return r.choices(rep.Choices)
	}
	if rep.Message == nil {
		return ""
	}
	out := r.message(*rep.Message)
	if rep.Kind == platform.ReplyEdited {
		out = r.faint.Render("↻ updated") + "\n" + out
	}
	return out
}

func (r *renderer) message(m module.Message) string {
	var sb strings.Builder
	if m.Content != "" {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	var body strings.Builder
	if m.Title != "" {
		body.WriteString(r.title.Foreground(colour(m.Color)).Render(m.Title))
		body.WriteString("\n")
	}
	if m.Description != "" {
		body.WriteString(r.markdown(m.Description))
		body.WriteString("\n")
	}
	for _, f := range m.Fields {
		body.WriteString(r.fieldKey.Render(f.Name))
		body.WriteString("\n")
		body.WriteString(r.markdown(f.Value))
		body.WriteString("\n")
	}
	if foot := footer(m); foot != "" {
		body.WriteString(r.faint.Render(foot))
	}

	if text := strings.TrimRight(body.String(), "\n"); text != "" {
		box := r.lg.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colour(m.Color)).
			Padding(0, 1).
			Width(r.width - 2)
		sb.WriteString(box.Render(text))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *renderer) markdown(s string) string {
	out, err := r.md.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

func (r *renderer) choices(cs []module.Choice) string {
	if len(cs) == 0 {
		return r.faint.Render("no suggestions") + "\n"
	}
	var sb strings.Builder
	for _, c := range cs {
		sb.WriteString("  ")
		sb.WriteString(c.Value)
		if c.Name != c.Value {
			sb.WriteString(r.faint.Render("  " + c.Name))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *renderer) commands(cmds []interaction.CommandInfo) string {
	if len(cmds) == 0 {
		return r.faint.Render("no commands registered") + "\n"
	}
	var sb strings.Builder
	for _, c := range cmds {
		fmt.Fprintf(&sb, "  /%-16s %s\n", c.Name, r.faint.Render(string(c.Owner)))
	}
	return sb.String()
}

func footer(m module.Message) string {
	parts := make([]string, 0, 3)
	if m.Footer != "" {
		parts = append(parts, m.Footer)
	}
	if !m.Timestamp.IsZero() {
		parts = append(parts, m.Timestamp.Format(time.DateTime))
	}
	if m.Ephemeral && m.DeleteAfter > 0 {
		parts = append(parts, "expires in "+m.DeleteAfter.String())
	}
	return strings.Join(parts, " • ")
}

// colour converts a 24-bit RGB value to a lipgloss colour.
func colour(rgb int) lipgloss.TerminalColor {
	if rgb <= 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(fmt.Sprintf("#%06x", rgb&0xFFFFFF))
}
