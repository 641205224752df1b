package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/store"
	"finsight/internal/view"
)

// TransactionList is the body of GET /api/transactions.
type TransactionList struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
	Total        int                `json:"total"`
	Version      uint64             `json:"version"`
	LoadedAt     time.Time          `json:"loadedAt"`
	Sort         view.SortKey       `json:"sort"`
	Categories   []string           `json:"categories"`
	Currencies   []string           `json:"currencies"`
}

// loaded returns the cached snapshot, loading it first when the cache has
// never been filled.
func (s *Server) loaded(ctx context.Context) (store.Snapshot, error) {
	snap := s.deps.Store.Snapshot()
	if snap.Loaded {
		return snap, nil
	}
	return s.deps.Store.Load(ctx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := ParseListQuery(r.URL.Query())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	snap, err := s.loaded(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	txs := view.Apply(snap.Transactions, q.Filters, q.Sort)
	NewJSONResponse().Body(TransactionList{
		Transactions: txs,
		Count:        len(txs),
		Total:        len(snap.Transactions),
		Version:      snap.Version,
		LoadedAt:     snap.LoadedAt,
		Sort:         q.Sort,
		Categories:   view.Categories(snap.Transactions),
		Currencies:   view.Currencies(snap.Transactions),
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.Transaction
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	created, err := s.deps.Store.Add(r.Context(), SanitizeTransaction(in))
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+created.ID).
		Body(created).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	var patch core.TransactionPatch
	if err := DecodeJSON(w, r, &patch); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	if patch.IsEmpty() {
		BadRequestError("nothing to update").Write(w)
		return
	}

	updated, err := s.deps.Store.Update(r.Context(), id, SanitizePatch(patch))
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(updated).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	if err := s.deps.Store.Remove(r.Context(), id); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleReloadTransactions forces a full reload. The snapshot stays as it
// was when the backend fails.
func (s *Server) handleReloadTransactions(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Store.Load(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transactions reloaded",
		log.FieldCount, len(snap.Transactions),
		log.FieldVersion, snap.Version)
	NewJSONResponse().Body(map[string]any{
		"count":    len(snap.Transactions),
		"version":  snap.Version,
		"loadedAt": snap.LoadedAt,
	}).Write(w)
}

// configured returns ErrNotConfigured naming what is missing when ok is false.
func configured(ok bool, what string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%s: %w", what, ErrNotConfigured)
}

// isClientGone reports whether err stems from the caller hanging up.
func isClientGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}
