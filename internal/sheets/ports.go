// Package sheets declares the spreadsheet export port.
package sheets

import (
	"context"

	"finsight/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter replaces the exported sheet with txs and returns a
	// reference to the written range.
	TransactionExporter interface {
		ReplaceTransactions(ctx context.Context, txs []core.Transaction) (ref string, err error)
	}
)
