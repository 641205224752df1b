package aggregate

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"finsight/internal/core"
)

// Band classifies how much of a budget has been used.
type Band string

const (
	BandNormal   Band = "normal"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
)

const (
	warningThreshold  = 75.0
	criticalThreshold = 90.0
)

// Classify maps a usage percentage to its band: above 90 is critical, above
// 75 a warning.
func Classify(percentage float64) Band {
	switch {
	case percentage > criticalThreshold:
		return BandCritical
	case percentage > warningThreshold:
		return BandWarning
	default:
		return BandNormal
	}
}

// BudgetStatus is a budget joined with the transactions charged to it.
type BudgetStatus struct {
	core.Budget
	Spent      core.Amount `json:"spent"`
	Remaining  core.Amount `json:"remaining"`
	Percentage float64     `json:"percentage"`
	Band       Band        `json:"band"`
	OverBudget bool        `json:"overBudget"`
}

// BudgetStatusOf joins one budget with the transactions charged to it.
// Any spending against a zero limit is reported as 100% used, critical and
// over budget.
func BudgetStatusOf(b core.Budget, txs []core.Transaction) BudgetStatus {
	spent := Spent(b.Category, txs)
	pct := percent(spent, b.Amount.Decimal)
	band := Classify(pct)
	if !b.Amount.IsPositive() && spent.IsPositive() {
		pct, band = 100, BandCritical
	}
	return BudgetStatus{
		Budget:     b,
		Spent:      core.NewAmount(spent),
		Remaining:  core.NewAmount(b.Amount.Sub(spent)),
		Percentage: pct,
		Band:       band,
		OverBudget: spent.GreaterThan(b.Amount.Decimal),
	}
}

// BudgetStatuses computes the status of every budget, in input order.
func BudgetStatuses(budgets []core.Budget, txs []core.Transaction) []BudgetStatus {
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, BudgetStatusOf(b, txs))
	}
	return out
}

// GoalStatus is a goal with its derived progress figures.
type GoalStatus struct {
	core.Goal
	Progress            float64     `json:"progress"`
	DaysRemaining       int         `json:"daysRemaining"`
	AmountNeeded        core.Amount `json:"amountNeeded"`
	MonthsRemaining     float64     `json:"monthsRemaining"`
	MonthlyAmountNeeded core.Amount `json:"monthlyAmountNeeded"`
	Completed           bool        `json:"completed"`
	Overdue             bool        `json:"overdue"`
}

// GoalProgress derives a goal's figures as of now.
//
// Days remaining are rounded up, so a deadline later today or tomorrow
// counts as a day left. Months remaining are days/30 rounded to cents
// precision, and the monthly amount divides by at least one month.
func GoalProgress(g core.Goal, now time.Time) GoalStatus {
	target, current := g.TargetAmount.Decimal, g.CurrentAmount.Decimal

	progress := 0.0
	if target.IsPositive() {
		progress = math.Max(0, math.Min(percent(current, target), 100))
	}

	needed := decimal.Max(target.Sub(current), decimal.Zero)

	days := 0
	if !g.Deadline.IsZero() {
		days = int(math.Ceil(g.Deadline.Sub(now).Hours() / 24))
	}

	months := decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(30)).Round(2)
	monthly := needed.Div(decimal.Max(months, decimal.NewFromInt(1))).Round(2)

	return GoalStatus{
		Goal:                g,
		Progress:            progress,
		DaysRemaining:       days,
		AmountNeeded:        core.NewAmount(needed),
		MonthsRemaining:     months.InexactFloat64(),
		MonthlyAmountNeeded: core.NewAmount(monthly),
		Completed:           target.IsPositive() && current.GreaterThanOrEqual(target),
		Overdue:             days < 0 && current.LessThan(target),
	}
}

// GoalStatuses computes every goal's figures, in input order.
func GoalStatuses(goals []core.Goal, now time.Time) []GoalStatus {
	out := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		out = append(out, GoalProgress(g, now))
	}
	return out
}
