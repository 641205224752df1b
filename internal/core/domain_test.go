package core

import (
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		ID:          "t1",
		Description: "Groceries",
		Amount:      MustAmount("42.50"),
		Type:        "Expense",
		Category:    "Food",
		Currency:    "USD",
		Date:        NewDate(2024, time.January, 5),
	}
}

func TestParseTxType(t *testing.T) {
	cases := []struct {
		in   string
		want TxType
	}{
		{"income", Income},
		{"INCOME", Income},
		{" Expense ", Expense},
		{"transfer", Unknown},
		{"", Unknown},
	}
	for _, tc := range cases {
		if got := ParseTxType(tc.in); got != tc.want {
			t.Errorf("ParseTxType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := []func(*Transaction){
		func(tx *Transaction) { tx.Description = "  " },
		func(tx *Transaction) { tx.Amount = MustAmount("0") },
		func(tx *Transaction) { tx.Amount = MustAmount("-3") },
		func(tx *Transaction) { tx.Type = "transfer" },
		func(tx *Transaction) { tx.Category = "" },
		func(tx *Transaction) { tx.Date = Date{} },
	}
	for i, m := range mutate {
		tx := validTransaction()
		m(&tx)
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionPatchValidate(t *testing.T) {
	empty := ""
	bad := "transfer"
	zero := MustAmount("0")
	good := "Rent"

	if err := (TransactionPatch{}).Validate(); err != nil {
		t.Fatalf("empty patch should be valid, got %v", err)
	}
	if !(TransactionPatch{}).IsEmpty() {
		t.Fatal("empty patch should report IsEmpty")
	}
	if err := (TransactionPatch{Description: &good}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []TransactionPatch{
		{Description: &empty},
		{Type: &bad},
		{Amount: &zero},
		{Category: &empty},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCategoryOrOther(t *testing.T) {
	tx := validTransaction()
	tx.Category = "   "
	if got := tx.CategoryOrOther(); got != OtherCategory {
		t.Errorf("CategoryOrOther() = %q, want %q", got, OtherCategory)
	}
}

func TestGoalValidate(t *testing.T) {
	good := Goal{
		GoalName:      "Car",
		TargetAmount:  MustAmount("10000"),
		CurrentAmount: MustAmount("0"),
		Deadline:      NewDate(2026, time.March, 1),
		Priority:      PriorityHigh,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Goal{good, good, good, good}
	bads[0].GoalName = ""
	bads[1].TargetAmount = MustAmount("0")
	bads[2].CurrentAmount = MustAmount("-1")
	bads[3].Priority = "Urgent"
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	if err := (Budget{Category: "Food", Amount: MustAmount("100")}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Budget{Category: "", Amount: MustAmount("100")}).Validate(); err == nil {
		t.Fatal("expected error for empty category")
	}
	if err := (Budget{Category: "Food"}).Validate(); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestEndOfDay(t *testing.T) {
	d := time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)
	got := EndOfDay(d)
	want := time.Date(2024, 1, 10, 23, 59, 59, 999000000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("EndOfDay() = %v, want %v", got, want)
	}
	if !StartOfDay(d).Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfDay() = %v", StartOfDay(d))
	}
}
