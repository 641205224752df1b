package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
	Unknown TxType = ""
)

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// OtherCategory is the bucket for transactions without a category.
const OtherCategory = "Other"

type (
	TxType string

	Priority string

	Transaction struct {
		ID            string `json:"id"`
		Description   string `json:"description"`
		Amount        Amount `json:"amount"`
		Type          string `json:"type"`
		Category      string `json:"category"`
		PaymentMethod string `json:"paymentMethod"`
		Currency      string `json:"currency"`
		Date          Date   `json:"date"`
	}

	// TransactionPatch carries the fields of an update; nil fields are left
	// unchanged by the backend.
	TransactionPatch struct {
		Description   *string `json:"description,omitempty"`
		Amount        *Amount `json:"amount,omitempty"`
		Type          *string `json:"type,omitempty"`
		Category      *string `json:"category,omitempty"`
		PaymentMethod *string `json:"paymentMethod,omitempty"`
		Currency      *string `json:"currency,omitempty"`
		Date          *Date   `json:"date,omitempty"`
	}

	// Budget is a monthly spending cap for one category. How much of it has
	// been spent is always derived from transactions, never stored here.
	Budget struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Amount   Amount `json:"amount"`
	}

	Goal struct {
		ID            string   `json:"id"`
		GoalName      string   `json:"goalName"`
		Category      string   `json:"category"`
		TargetAmount  Amount   `json:"targetAmount"`
		CurrentAmount Amount   `json:"currentAmount"`
		Deadline      Date     `json:"deadline"`
		Priority      Priority `json:"priority"`
	}

	Session struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Token    string `json:"token"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidType      = errors.New("type must be income or expense")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyGoalName    = errors.New("empty goal name")
	ErrInvalidPriority  = errors.New("priority must be Low, Medium or High")
	ErrEmptyID          = errors.New("empty id")
)

// ParseTxType reads a transaction type case-insensitively.
func ParseTxType(s string) TxType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income
	case "expense":
		return Expense
	default:
		return Unknown
	}
}

// Kind returns the normalised type of the transaction.
func (t Transaction) Kind() TxType {
	return ParseTxType(t.Type)
}

// CategoryOrOther returns the category, or "Other" when it is blank.
func (t Transaction) CategoryOrOther() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	return OtherCategory
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Kind() == Unknown {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks only the fields present in the patch.
func (p TransactionPatch) Validate() error {
	if p.Description != nil {
		if strings.TrimSpace(*p.Description) == "" {
			return ErrEmptyDescription
		}
		if len(*p.Description) > 200 {
			return errors.New("description too long (max 200 characters)")
		}
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Type != nil && ParseTxType(*p.Type) == Unknown {
		return ErrInvalidType
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return ErrEmptyCategory
	}
	if p.Date != nil && p.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil && p.Type == nil &&
		p.Category == nil && p.PaymentMethod == nil && p.Currency == nil && p.Date == nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.GoalName) == "" {
		return ErrEmptyGoalName
	}
	if !g.TargetAmount.IsPositive() {
		return errors.New("target amount must be greater than zero")
	}
	if g.CurrentAmount.IsNegative() {
		return errors.New("current amount cannot be negative")
	}
	if g.Deadline.IsZero() {
		return ErrInvalidDate
	}
	if !g.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// Valid reports whether the session carries a usable credential.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.Token) != ""
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
