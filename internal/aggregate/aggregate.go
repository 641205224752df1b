// Package aggregate derives dashboard figures from transactions, budgets and
// goals. Every function is pure and total: malformed input degrades to zero
// or to the "Other" category instead of failing.
package aggregate

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finsight/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Summary is the income/expense balance of a set of transactions.
type Summary struct {
	Income   core.Amount `json:"income"`
	Expenses core.Amount `json:"expenses"`
	Net      core.Amount `json:"net"`
}

// CategoryTotal is one row of the expense breakdown.
type CategoryTotal struct {
	Category   string      `json:"category"`
	Total      core.Amount `json:"total"`
	Percentage float64     `json:"percentage"`
}

// Summarize sums income and expenses. Transactions of unknown type count
// towards neither.
func Summarize(txs []core.Transaction) Summary {
	income, expenses := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Kind() {
		case core.Income:
			income = income.Add(tx.Amount.Decimal)
		case core.Expense:
			expenses = expenses.Add(tx.Amount.Decimal)
		}
	}
	return Summary{
		Income:   core.NewAmount(income),
		Expenses: core.NewAmount(expenses),
		Net:      core.NewAmount(income.Sub(expenses)),
	}
}

// Breakdown groups expenses by category, largest first. Ties keep the order
// in which categories first appear. Percentages are 0 when nothing was spent.
func Breakdown(txs []core.Transaction) []CategoryTotal {
	var order []string
	totals := make(map[string]decimal.Decimal)
	names := make(map[string]string)
	sum := decimal.Zero

	for _, tx := range txs {
		if tx.Kind() != core.Expense {
			continue
		}
		name := tx.CategoryOrOther()
		key := strings.ToLower(name)
		if _, ok := totals[key]; !ok {
			order = append(order, key)
			names[key] = name
		}
		totals[key] = totals[key].Add(tx.Amount.Decimal)
		sum = sum.Add(tx.Amount.Decimal)
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, key := range order {
		total := totals[key]
		out = append(out, CategoryTotal{
			Category:   names[key],
			Total:      core.NewAmount(total),
			Percentage: percent(total, sum),
		})
	}
	slices.SortStableFunc(out, func(a, b CategoryTotal) int {
		return b.Total.Cmp(a.Total.Decimal)
	})
	return out
}

// Spent sums expense transactions whose category matches, ignoring case.
func Spent(category string, txs []core.Transaction) decimal.Decimal {
	spent := decimal.Zero
	for _, tx := range txs {
		if tx.Kind() == core.Expense && strings.EqualFold(tx.Category, category) {
			spent = spent.Add(tx.Amount.Decimal)
		}
	}
	return spent
}

// percent returns part/whole*100, or 0 when whole is not positive.
func percent(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

// MonthTotal is the balance of one calendar month.
type MonthTotal struct {
	Month    string      `json:"month"`
	Income   core.Amount `json:"income"`
	Expenses core.Amount `json:"expenses"`
	Net      core.Amount `json:"net"`
}

// Monthly buckets transactions by calendar month, oldest first. Undated
// transactions are skipped.
func Monthly(txs []core.Transaction) []MonthTotal {
	byMonth := make(map[string][]core.Transaction)
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		key := tx.Date.Format("2006-01")
		byMonth[key] = append(byMonth[key], tx)
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]MonthTotal, 0, len(keys))
	for _, k := range keys {
		s := Summarize(byMonth[k])
		out = append(out, MonthTotal{Month: k, Income: s.Income, Expenses: s.Expenses, Net: s.Net})
	}
	return out
}

// SavingsRate is (income-expenses)/income as a percentage, 0 without income.
func SavingsRate(s Summary) float64 {
	return percent(s.Net.Decimal, s.Income.Decimal)
}

// HealthScore blends savings rate, budget adherence and goal progress into
// a 0-100 score:
//
//	50
//	+ min(0.5 * savingsRate, 25)
//	+ 15 * share of budgets at or under 100%   (0 without budgets)
//	+ 10 * mean goal progress fraction         (0 without goals)
//
// clamped to [0, 100] and rounded half away from zero.
func HealthScore(txs []core.Transaction, budgets []core.Budget, goals []core.Goal, now time.Time) int {
	score := 50.0
	score += math.Min(0.5*SavingsRate(Summarize(txs)), 25)

	if len(budgets) > 0 {
		within := 0
		for _, st := range BudgetStatuses(budgets, txs) {
			if st.Percentage <= 100 {
				within++
			}
		}
		score += 15 * float64(within) / float64(len(budgets))
	}

	if len(goals) > 0 {
		total := 0.0
		for _, g := range goals {
			total += GoalProgress(g, now).Progress / 100
		}
		score += 10 * total / float64(len(goals))
	}

	return int(math.Round(math.Max(0, math.Min(100, score))))
}

// Overview bundles every dashboard figure.
type Overview struct {
	Summary          Summary         `json:"summary"`
	SavingsRate      float64         `json:"savingsRate"`
	Breakdown        []CategoryTotal `json:"breakdown"`
	Budgets          []BudgetStatus  `json:"budgets"`
	Goals            []GoalStatus    `json:"goals"`
	Monthly          []MonthTotal    `json:"monthly"`
	HealthScore      int             `json:"healthScore"`
	TransactionCount int             `json:"transactionCount"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}

// Compute derives the whole overview from one consistent set of inputs.
func Compute(txs []core.Transaction, budgets []core.Budget, goals []core.Goal, now time.Time) Overview {
	summary := Summarize(txs)
	return Overview{
		Summary:          summary,
		SavingsRate:      SavingsRate(summary),
		Breakdown:        Breakdown(txs),
		Budgets:          BudgetStatuses(budgets, txs),
		Goals:            GoalStatuses(goals, now),
		Monthly:          Monthly(txs),
		HealthScore:      HealthScore(txs, budgets, goals, now),
		TransactionCount: len(txs),
		GeneratedAt:      now,
	}
}
