package categories

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"finsight/internal/core"
	"finsight/internal/localstate"
)

func newSet(t *testing.T) (*Set, *localstate.Store) {
	t.Helper()
	repo, err := localstate.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("localstate.Open() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return New(repo), repo
}

func TestLoadSeedsDefaults(t *testing.T) {
	s, repo := newSet(t)
	ctx := context.Background()

	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.Names(); strings.Join(got, ",") != strings.Join(Defaults, ",") {
		t.Errorf("Names() = %v, want defaults", got)
	}

	stored, err := repo.ListCategories(ctx)
	if err != nil || len(stored) != len(Defaults) {
		t.Errorf("defaults not persisted: %v, %v", stored, err)
	}

	// A second load must not seed again.
	if err := New(repo).Load(ctx); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if stored, _ := repo.ListCategories(ctx); len(stored) != len(Defaults) {
		t.Errorf("defaults seeded twice: %d rows", len(stored))
	}
}

func TestAdd(t *testing.T) {
	s, _ := newSet(t)
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		in      string
		added   bool
		wantErr error
	}{
		{"new category", "Travel", true, nil},
		{"case-insensitive duplicate", "food", false, nil},
		{"trimmed duplicate", "  Travel ", false, nil},
		{"blank", "   ", false, core.ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, err := s.Add(ctx, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Add(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if added != tt.added {
				t.Errorf("Add(%q) = %v, want %v", tt.in, added, tt.added)
			}
		})
	}
	if !s.Contains("TRAVEL") {
		t.Error("Contains(TRAVEL) = false")
	}
}

func TestDriftAndMerge(t *testing.T) {
	s, repo := newSet(t)
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	txs := []core.Transaction{
		{Category: "Food"},
		{Category: "Pets"},
		{Category: ""},
		{Category: "pets"},
		{Category: "Gifts"},
	}
	if got := s.Drift(txs); strings.Join(got, ",") != "Pets,Gifts" {
		t.Errorf("Drift() = %v, want [Pets Gifts]", got)
	}

	added, err := s.Merge(ctx, txs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(added) != 2 {
		t.Errorf("Merge() added %v", added)
	}
	if len(s.Drift(txs)) != 0 {
		t.Error("drift remains after merge")
	}
	stored, _ := repo.ListCategories(ctx)
	if len(stored) != len(Defaults)+2 {
		t.Errorf("stored %d categories, want %d", len(stored), len(Defaults)+2)
	}
}
