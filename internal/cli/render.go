package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/domain"
)

var (
	primaryColor = lipgloss.Color("#A78BFA")
	mutedColor   = lipgloss.Color("#9CA3AF")
	errorColor   = lipgloss.Color("#F87171")
	warningColor = lipgloss.Color("#F59E0B")
	userColor    = lipgloss.Color("#60A5FA")
	borderColor  = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	taglineStyle = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	userStyle    = lipgloss.NewStyle().Foreground(userColor)
	failStyle    = lipgloss.NewStyle().Foreground(errorColor)
	limitStyle   = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)
)

// minColumnWidth keeps very narrow terminals readable.
const minColumnWidth = 24

// columnWidth splits total terminal width between n bordered columns.
func columnWidth(total, n int) int {
	if n < 1 {
		n = 1
	}
	// border (2) + padding (2) per column
	w := total/n - 4
	if w < minColumnWidth {
		return minColumnWidth
	}
	return w
}

// renderExchange renders one agent's view of a single exchange.
func renderExchange(p agent.Profile, sent string, o domain.Outcome, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Icon + " " + p.Title))
	b.WriteString("\n")
	b.WriteString(taglineStyle.Render(p.Tagline))
	b.WriteString("\n\n")

	user := domain.Turn{Role: domain.RoleUser, Content: sent}
	b.WriteString(userStyle.Render("You: " + user.Display()))
	b.WriteString("\n\n")

	switch o.Status {
	case domain.OutcomeDelivered:
		reply := domain.Turn{Role: domain.RoleAssistant, Content: o.Text}
		b.WriteString(reply.Display())
	case domain.OutcomeFailed:
		b.WriteString(failStyle.Render(o.Text))
		if msg := o.Error(); msg != "" {
			b.WriteString("\n")
			b.WriteString(mutedStyle.Render(msg))
		}
	case domain.OutcomeLimitReached:
		b.WriteString(limitStyle.Render(agent.LimitNotice))
	}

	return columnStyle.Width(width).Render(b.String())
}

// sideBySide joins rendered columns top-aligned.
func sideBySide(cols ...string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}
