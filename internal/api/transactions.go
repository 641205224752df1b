package api

import (
	"context"
	"errors"
	"net/http"

	"finsight/internal/core"
)

// ListTransactions returns the full transaction collection of the user.
func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var txs []core.Transaction
	if err := c.doJSON(ctx, "list transactions", http.MethodGet, "/transactions", nil, &txs); err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// CreateTransaction validates tx, sends it and returns the stored record.
func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	const op = "create transaction"
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, validationError(op, err)
	}
	tx.ID = ""

	var out core.Transaction
	if err := c.doJSON(ctx, op, http.MethodPost, "/transactions", tx, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

// UpdateTransaction applies patch to the record id and returns the server's
// version of it.
func (c *Client) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	const op = "update transaction"
	id, err := escapeID(op, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if patch.IsEmpty() {
		return core.Transaction{}, validationError(op, errors.New("nothing to update"))
	}
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, validationError(op, err)
	}

	var out core.Transaction
	if err := c.doJSON(ctx, op, http.MethodPut, "/transactions/"+id, patch, &out); err != nil {
		return core.Transaction{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	const op = "delete transaction"
	id, err := escapeID(op, id)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, op, http.MethodDelete, "/transactions/"+id, nil, nil)
}
