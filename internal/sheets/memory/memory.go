package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"finsight/internal/core"
	ports "finsight/internal/sheets"
)

// Store keeps the most recent export in memory. It backs the worker when no
// spreadsheet is configured and stands in for Google Sheets in tests.
type Store struct {
	mu      sync.Mutex
	rows    []core.Transaction
	exports int
	fail    error
}

var _ ports.TransactionExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// ReplaceTransactions stores a copy of txs and returns a synthetic reference.
func (s *Store) ReplaceTransactions(_ context.Context, txs []core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = slices.Clone(txs)
	s.exports++
	return fmt.Sprintf("mem:%d:%d", s.exports, len(txs)), nil
}

// Last returns the rows of the most recent export.
func (s *Store) Last() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows)
}

// Exports counts successful exports.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}

// FailWith makes subsequent exports return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
