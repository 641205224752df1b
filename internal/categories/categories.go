// Package categories manages the user's category list. It is seeded with
// defaults on first use, grows when the user adds names, and picks up
// categories that only exist on transactions so the list does not drift
// from the data.
package categories

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"finsight/internal/core"
)

// Defaults seeds an empty store.
var Defaults = []string{
	"Food",
	"Transportation",
	"Entertainment",
	"Shopping",
	"Bills",
	"Healthcare",
	"Education",
	"Salary",
	"Investment",
	core.OtherCategory,
}

// Repository persists category names. localstate.Store satisfies it.
type Repository interface {
	ListCategories(ctx context.Context) ([]string, error)
	AddCategory(ctx context.Context, name string) (bool, error)
}

// Set is the in-memory view of the stored categories.
type Set struct {
	repo Repository

	mu    sync.RWMutex
	names []string
}

func New(repo Repository) *Set {
	return &Set{repo: repo}
}

// Load reads the stored list, seeding the defaults when it is empty.
func (s *Set) Load(ctx context.Context) error {
	names, err := s.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	if len(names) == 0 {
		for _, name := range Defaults {
			if _, err := s.repo.AddCategory(ctx, name); err != nil {
				return fmt.Errorf("seed categories: %w", err)
			}
		}
		names = append([]string(nil), Defaults...)
	}

	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	return nil
}

// Add stores name unless a case-insensitive duplicate exists and reports
// whether it was new.
func (s *Set) Add(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, core.ErrEmptyCategory
	}
	if s.Contains(name) {
		return false, nil
	}
	added, err := s.repo.AddCategory(ctx, name)
	if err != nil {
		return false, err
	}
	if added {
		s.mu.Lock()
		s.names = append(s.names, name)
		s.mu.Unlock()
	}
	return added, nil
}

// Names returns a copy of the list in insertion order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Contains reports whether name is known, ignoring case.
func (s *Set) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexFold(s.names, name) >= 0
}

// Drift returns categories used by txs that are not in the set, in order of
// first appearance. Blank categories are ignored.
func (s *Set) Drift(txs []core.Transaction) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	for _, tx := range txs {
		c := strings.TrimSpace(tx.Category)
		if c == "" || indexFold(s.names, c) >= 0 || indexFold(missing, c) >= 0 {
			continue
		}
		missing = append(missing, c)
	}
	return missing
}

// Merge adds every drifted category and returns the names added.
func (s *Set) Merge(ctx context.Context, txs []core.Transaction) ([]string, error) {
	var added []string
	for _, name := range s.Drift(txs) {
		ok, err := s.Add(ctx, name)
		if err != nil {
			return added, fmt.Errorf("merge category %s: %w", name, err)
		}
		if ok {
			added = append(added, name)
		}
	}
	return added, nil
}

func indexFold(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
