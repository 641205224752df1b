// Package store is the single in-memory source of truth for the user's
// transactions.
//
// Every change produces a new immutable Snapshot and is announced to
// subscribers. The cache only ever adopts records returned by the backend:
// Add, Update and Remove change local state after the server confirmed the
// write, and Load replaces the whole collection.
//
// Overlapping loads are sequenced. Each load and each applied mutation takes
// a ticket from one counter; a load whose ticket is older than the last
// applied change is discarded when it returns, so the most recently issued
// request wins regardless of arrival order.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
)

// Source is the remote side of the cache. *api.Client satisfies it.
type Source interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Op names the change carried by an Event.
type Op string

const (
	OpLoad   Op = "load"
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpReset  Op = "reset"
)

// ErrInvalid wraps validation failures detected before any network call.
var ErrInvalid = errors.New("invalid transaction")

// Snapshot is an immutable view of the cache.
type Snapshot struct {
	Version      uint64
	Transactions []core.Transaction
	Loaded       bool
	LoadedAt     time.Time
	// Err is the error of the most recent load, nil after a successful one.
	Err error
}

// Event is delivered to subscribers after every change.
type Event struct {
	Op          Op
	Transaction core.Transaction
	Snapshot    Snapshot
}

// Store caches the transaction collection.
type Store struct {
	src    Source
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	snap    Snapshot
	ticket  uint64
	barrier uint64
	subs    map[int]func(Event)
	nextSub int
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentStore) }
}

// WithClock replaces the clock used for LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(src Source, opts ...Option) *Store {
	s := &Store{
		src:    src,
		logger: log.Discard(),
		now:    time.Now,
		snap:   Snapshot{Transactions: []core.Transaction{}},
		subs:   make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current state. The slice is a private copy.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Transactions is shorthand for Snapshot().Transactions.
func (s *Store) Transactions() []core.Transaction {
	return s.Snapshot().Transactions
}

// Find returns the cached transaction with id.
func (s *Store) Find(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.snap.Transactions, id)
	if i < 0 {
		return core.Transaction{}, false
	}
	return s.snap.Transactions[i], true
}

// Subscribe registers fn for every future change and returns a function
// that removes it. fn runs on the goroutine that made the change, outside
// the store's lock.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Load fetches the whole collection and replaces the cache with it. On
// failure the previous collection is kept and the error is recorded on the
// snapshot. A response overtaken by a newer load or mutation is dropped and
// the current snapshot is returned.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.ticket++
	ticket := s.ticket
	s.mu.Unlock()

	txs, err := s.src.ListTransactions(ctx)

	s.mu.Lock()
	if ticket < s.barrier {
		snap := s.snap.clone()
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Discarding superseded load", "ticket", ticket, "barrier", s.barrierValue())
		if err != nil {
			return snap, fmt.Errorf("load transactions: %w", err)
		}
		return snap, nil
	}

	s.barrier = ticket
	next := Snapshot{
		Version:      s.snap.Version + 1,
		Transactions: s.snap.Transactions,
		Loaded:       s.snap.Loaded,
		LoadedAt:     s.snap.LoadedAt,
		Err:          err,
	}
	if err == nil {
		next.Transactions = slices.Clone(txs)
		if next.Transactions == nil {
			next.Transactions = []core.Transaction{}
		}
		next.Loaded = true
		next.LoadedAt = s.now()
	}
	ev, subs := s.commitLocked(OpLoad, core.Transaction{}, next)
	s.mu.Unlock()

	s.notify(subs, ev)

	if err != nil {
		log.LogError(ctx, s.logger, "Transaction load failed", err, log.OpLoad, nil)
		return ev.Snapshot, fmt.Errorf("load transactions: %w", err)
	}
	s.logger.InfoContext(ctx, "Transactions loaded",
		log.FieldCount, len(next.Transactions),
		log.FieldVersion, next.Version)
	return ev.Snapshot, nil
}

// Add validates tx, sends it and appends the server's record.
func (s *Store) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	created, err := s.src.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.mu.Lock()
	txs := make([]core.Transaction, 0, len(s.snap.Transactions)+1)
	txs = append(txs, s.snap.Transactions...)
	txs = append(txs, created)
	ev, subs := s.mutateLocked(OpAdd, created, txs)
	s.mu.Unlock()

	s.notify(subs, ev)
	s.logger.InfoContext(ctx, "Transaction added",
		log.FieldTransactionID, created.ID,
		log.FieldCategory, created.Category,
		log.FieldAmount, created.Amount.String())
	return created, nil
}

// Update sends patch and replaces the cached record with the server's
// version. A record the cache did not hold yet is appended.
func (s *Store) Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if id == "" {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrInvalid, core.ErrEmptyID)
	}
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	updated, err := s.src.UpdateTransaction(ctx, id, patch)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	if updated.ID == "" {
		updated.ID = id
	}

	s.mu.Lock()
	txs := slices.Clone(s.snap.Transactions)
	if i := indexOf(txs, id); i >= 0 {
		txs[i] = updated
	} else {
		txs = append(txs, updated)
	}
	ev, subs := s.mutateLocked(OpUpdate, updated, txs)
	s.mu.Unlock()

	s.notify(subs, ev)
	s.logger.InfoContext(ctx, "Transaction updated", log.FieldTransactionID, id)
	return updated, nil
}

// Remove deletes id server-side and drops it from the cache once confirmed.
func (s *Store) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrInvalid, core.ErrEmptyID)
	}
	if err := s.src.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("remove transaction %s: %w", id, err)
	}

	s.mu.Lock()
	removed := core.Transaction{ID: id}
	txs := make([]core.Transaction, 0, len(s.snap.Transactions))
	for _, tx := range s.snap.Transactions {
		if tx.ID == id {
			removed = tx
			continue
		}
		txs = append(txs, tx)
	}
	ev, subs := s.mutateLocked(OpRemove, removed, txs)
	s.mu.Unlock()

	s.notify(subs, ev)
	s.logger.InfoContext(ctx, "Transaction removed", log.FieldTransactionID, id)
	return nil
}

// Reset empties the cache, for example on logout. In-flight loads issued
// before the reset are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.ticket++
	s.barrier = s.ticket
	ev, subs := s.commitLocked(OpReset, core.Transaction{}, Snapshot{
		Version:      s.snap.Version + 1,
		Transactions: []core.Transaction{},
	})
	s.mu.Unlock()
	s.notify(subs, ev)
}

// mutateLocked installs txs after a confirmed write and moves the barrier so
// that loads issued before this point cannot overwrite it.
func (s *Store) mutateLocked(op Op, tx core.Transaction, txs []core.Transaction) (Event, []func(Event)) {
	s.ticket++
	s.barrier = s.ticket
	return s.commitLocked(op, tx, Snapshot{
		Version:      s.snap.Version + 1,
		Transactions: txs,
		Loaded:       s.snap.Loaded,
		LoadedAt:     s.snap.LoadedAt,
		Err:          s.snap.Err,
	})
}

func (s *Store) commitLocked(op Op, tx core.Transaction, next Snapshot) (Event, []func(Event)) {
	s.snap = next
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return Event{Op: op, Transaction: tx, Snapshot: next.clone()}, subs
}

func (s *Store) notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(Event{Op: ev.Op, Transaction: ev.Transaction, Snapshot: ev.Snapshot.clone()})
	}
}

func (s *Store) barrierValue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.barrier
}

func (sn Snapshot) clone() Snapshot {
	sn.Transactions = slices.Clone(sn.Transactions)
	if sn.Transactions == nil {
		sn.Transactions = []core.Transaction{}
	}
	return sn
}

func indexOf(txs []core.Transaction, id string) int {
	return slices.IndexFunc(txs, func(tx core.Transaction) bool { return tx.ID == id })
}
