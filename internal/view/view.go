// Package view filters and sorts transaction lists for display. It never
// modifies its input: every call returns a new slice.
package view

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"finsight/internal/core"
)

// All disables a text filter.
const All = "All"

// SortKey selects the list order.
type SortKey string

const (
	SortDateDesc     SortKey = "date-desc"
	SortDateAsc      SortKey = "date-asc"
	SortAlphabetical SortKey = "alphabetical"
	SortAmountAsc    SortKey = "amount-asc"
	SortAmountDesc   SortKey = "amount-desc"
	SortCategory     SortKey = "category"
	SortCurrency     SortKey = "currency"

	DefaultSort = SortDateDesc
)

var sortKeys = []SortKey{
	SortDateDesc, SortDateAsc, SortAlphabetical, SortAmountAsc,
	SortAmountDesc, SortCategory, SortCurrency,
}

// SortKeys lists the supported keys.
func SortKeys() []SortKey {
	return slices.Clone(sortKeys)
}

// ParseSortKey returns the key named s, or the default for anything unknown.
func ParseSortKey(s string) SortKey {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range sortKeys {
		if string(k) == s {
			return k
		}
	}
	return DefaultSort
}

// Filters narrows a transaction list. Each field is inactive at its zero
// value or, for text fields, at All. Active filters combine with AND.
type Filters struct {
	Type     string
	Category string
	Currency string
	Search   string
	From     time.Time
	To       time.Time
}

func active(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, All)
}

// Normalize trims text fields and widens the date range to whole days: From
// to the start of its day and To to 23:59:59.999 of its day.
func (f Filters) Normalize() Filters {
	f.Type = strings.TrimSpace(f.Type)
	f.Category = strings.TrimSpace(f.Category)
	f.Currency = strings.TrimSpace(f.Currency)
	f.Search = strings.TrimSpace(f.Search)
	if !f.From.IsZero() {
		f.From = core.StartOfDay(f.From)
	}
	if !f.To.IsZero() {
		f.To = core.EndOfDay(f.To)
	}
	return f
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool {
	return !active(f.Type) && !active(f.Category) && !active(f.Currency) &&
		strings.TrimSpace(f.Search) == "" && f.From.IsZero() && f.To.IsZero()
}

// Match reports whether tx passes every active filter. f must be normalized.
func (f Filters) Match(tx core.Transaction) bool {
	if active(f.Type) && !strings.EqualFold(strings.TrimSpace(tx.Type), f.Type) {
		return false
	}
	if active(f.Category) && !strings.EqualFold(tx.CategoryOrOther(), f.Category) {
		return false
	}
	if active(f.Currency) && !strings.EqualFold(strings.TrimSpace(tx.Currency), f.Currency) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(tx.Description), q) &&
			!strings.Contains(strings.ToLower(tx.Category), q) {
			return false
		}
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		if tx.Date.IsZero() {
			return false
		}
		if !f.From.IsZero() && tx.Date.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && tx.Date.After(f.To) {
			return false
		}
	}
	return true
}

// Filter returns the transactions matching f, in input order.
func Filter(txs []core.Transaction, f Filters) []core.Transaction {
	f = f.Normalize()
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Sort returns a stably sorted copy of txs. Text keys compare with English
// collation rules.
func Sort(txs []core.Transaction, key SortKey) []core.Transaction {
	out := slices.Clone(txs)
	if out == nil {
		out = []core.Transaction{}
	}
	// A Collator keeps internal buffers, so each call gets its own.
	col := collate.New(language.English)

	var cmp func(a, b core.Transaction) int
	switch ParseSortKey(string(key)) {
	case SortDateAsc:
		cmp = func(a, b core.Transaction) int { return a.Date.Compare(b.Date.Time) }
	case SortAlphabetical:
		cmp = func(a, b core.Transaction) int { return col.CompareString(a.Description, b.Description) }
	case SortAmountAsc:
		cmp = func(a, b core.Transaction) int { return a.Amount.Cmp(b.Amount.Decimal) }
	case SortAmountDesc:
		cmp = func(a, b core.Transaction) int { return b.Amount.Cmp(a.Amount.Decimal) }
	case SortCategory:
		cmp = func(a, b core.Transaction) int { return col.CompareString(a.Category, b.Category) }
	case SortCurrency:
		cmp = func(a, b core.Transaction) int { return col.CompareString(a.Currency, b.Currency) }
	default:
		cmp = func(a, b core.Transaction) int { return b.Date.Compare(a.Date.Time) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

// Apply filters then sorts.
func Apply(txs []core.Transaction, f Filters, key SortKey) []core.Transaction {
	return Sort(Filter(txs, f), key)
}

// ParseFilters reads filters from query parameters type, category,
// currency, q, from and to. Dates are YYYY-MM-DD or RFC 3339.
func ParseFilters(q url.Values) (Filters, error) {
	f := Filters{
		Type:     q.Get("type"),
		Category: q.Get("category"),
		Currency: q.Get("currency"),
		Search:   q.Get("q"),
	}
	if s := strings.TrimSpace(q.Get("from")); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return Filters{}, fmt.Errorf("parse from: %w", err)
		}
		f.From = d.Time
	}
	if s := strings.TrimSpace(q.Get("to")); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return Filters{}, fmt.Errorf("parse to: %w", err)
		}
		f.To = d.Time
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return Filters{}, fmt.Errorf("from %s is after to %s", f.From.Format(time.DateOnly), f.To.Format(time.DateOnly))
	}
	return f.Normalize(), nil
}

// Categories returns the distinct categories used by txs, collated. Blank
// categories are reported as Other.
func Categories(txs []core.Transaction) []string {
	return distinct(txs, core.Transaction.CategoryOrOther)
}

// Currencies returns the distinct non-blank currencies used by txs, collated.
func Currencies(txs []core.Transaction) []string {
	return distinct(txs, func(tx core.Transaction) string { return strings.TrimSpace(tx.Currency) })
}

func distinct(txs []core.Transaction, field func(core.Transaction) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tx := range txs {
		v := field(tx)
		k := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	col := collate.New(language.English)
	col.SortStrings(out)
	return out
}
