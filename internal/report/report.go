// Package report renders the dashboard overview for a terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"finsight/internal/aggregate"
)

const barWidth = 20

type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Income   lipgloss.Style
	Spent    lipgloss.Style
	Summary  lipgloss.Style
	Section  lipgloss.Style
	Normal   lipgloss.Style
	Warning  lipgloss.Style
	Critical lipgloss.Style
	Muted    lipgloss.Style
}

// DefaultStyles builds the palette on r, so colours follow what the output
// writer supports.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7d56f4")),
		Label:    r.NewStyle().Bold(true),
		Income:   r.NewStyle().Foreground(lipgloss.Color("#00ff00")),
		Spent:    r.NewStyle().Foreground(lipgloss.Color("#ff0000")),
		Summary:  r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2),
		Section:  r.NewStyle().Bold(true).Underline(true).MarginTop(1),
		Normal:   r.NewStyle().Foreground(lipgloss.Color("#00ff00")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("#d29b1d")),
		Critical: r.NewStyle().Foreground(lipgloss.Color("#ff0000")),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("#828282")),
	}
}

// Band returns the style budget lines use for b.
func (s Styles) Band(b aggregate.Band) lipgloss.Style {
	switch b {
	case aggregate.BandCritical:
		return s.Critical
	case aggregate.BandWarning:
		return s.Warning
	default:
		return s.Normal
	}
}

// Write renders ov to w.
func Write(w io.Writer, ov aggregate.Overview) error {
	_, err := io.WriteString(w, Render(ov, DefaultStyles(lipgloss.NewRenderer(w)))+"\n")
	return err
}

// Render lays out the overview with the given styles.
func Render(ov aggregate.Overview, s Styles) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Financial overview"),
		s.Muted.Render(fmt.Sprintf("%d transactions, generated %s", ov.TransactionCount, ov.GeneratedAt.Format("2006-01-02 15:04"))),
		summaryView(ov, s),
		breakdownView(ov, s),
		budgetsView(ov, s),
		goalsView(ov, s),
		monthlyView(ov, s),
	)
}

func summaryView(ov aggregate.Overview, s Styles) string {
	net := s.Income
	if ov.Summary.Net.IsNegative() {
		net = s.Spent
	}
	lines := []string{
		label(s, "Income") + s.Income.Render(ov.Summary.Income.StringFixed(2)),
		label(s, "Expenses") + s.Spent.Render(ov.Summary.Expenses.StringFixed(2)),
		label(s, "Net") + net.Render(ov.Summary.Net.StringFixed(2)),
		label(s, "Savings rate") + fmt.Sprintf("%.1f%%", ov.SavingsRate),
		label(s, "Health score") + scoreStyle(ov.HealthScore, s).Render(fmt.Sprintf("%d/100", ov.HealthScore)),
	}
	return s.Summary.Render(strings.Join(lines, "\n"))
}

func scoreStyle(score int, s Styles) lipgloss.Style {
	switch {
	case score >= 70:
		return s.Normal
	case score >= 40:
		return s.Warning
	default:
		return s.Critical
	}
}

func breakdownView(ov aggregate.Overview, s Styles) string {
	var b strings.Builder
	b.WriteString(s.Section.Render("Spending by category"))
	if len(ov.Breakdown) == 0 {
		b.WriteString("\n" + s.Muted.Render("No expenses yet"))
		return b.String()
	}
	for _, c := range ov.Breakdown {
		fmt.Fprintf(&b, "\n%s %10s  %s %5.1f%%",
			label(s, c.Category), c.Total.StringFixed(2), bar(c.Percentage), c.Percentage)
	}
	return b.String()
}

func budgetsView(ov aggregate.Overview, s Styles) string {
	var b strings.Builder
	b.WriteString(s.Section.Render("Budgets"))
	if len(ov.Budgets) == 0 {
		b.WriteString("\n" + s.Muted.Render("No budgets set"))
		return b.String()
	}
	for _, st := range ov.Budgets {
		line := fmt.Sprintf("%s %10s / %-10s %6.1f%%  %s",
			label(s, st.Category), st.Spent.StringFixed(2), st.Amount.StringFixed(2), st.Percentage, st.Band)
		if st.OverBudget {
			line += fmt.Sprintf("  over by %s", st.Remaining.Neg().StringFixed(2))
		}
		b.WriteString("\n" + s.Band(st.Band).Render(line))
	}
	return b.String()
}

func goalsView(ov aggregate.Overview, s Styles) string {
	var b strings.Builder
	b.WriteString(s.Section.Render("Goals"))
	if len(ov.Goals) == 0 {
		b.WriteString("\n" + s.Muted.Render("No goals set"))
		return b.String()
	}
	for _, g := range ov.Goals {
		var status string
		switch {
		case g.Completed:
			status = s.Normal.Render("completed")
		case g.Overdue:
			status = s.Critical.Render(fmt.Sprintf("overdue by %d days", -g.DaysRemaining))
		default:
			status = fmt.Sprintf("%d days left, %s/month", g.DaysRemaining, g.MonthlyAmountNeeded.StringFixed(2))
		}
		fmt.Fprintf(&b, "\n%s %s %5.1f%%  %s",
			label(s, g.GoalName), bar(g.Progress), g.Progress, status)
	}
	return b.String()
}

func monthlyView(ov aggregate.Overview, s Styles) string {
	if len(ov.Monthly) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.Section.Render("By month"))
	for _, m := range ov.Monthly {
		fmt.Fprintf(&b, "\n%s %s %s",
			label(s, m.Month),
			s.Income.Render(fmt.Sprintf("+%10s", m.Income.StringFixed(2))),
			s.Spent.Render(fmt.Sprintf("-%10s", m.Expenses.StringFixed(2))))
	}
	return b.String()
}

func label(s Styles, text string) string {
	return s.Label.Render(fmt.Sprintf("%-14s", text))
}

// bar draws pct (0-100) as a fixed-width gauge.
func bar(pct float64) string {
	filled := int(pct / 100 * barWidth)
	filled = max(0, min(filled, barWidth))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}
