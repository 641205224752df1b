// Package export writes transactions as CSV and reads CSV files back into
// validated candidates for an import preview.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"finsight/internal/core"
)

// Header is the column order used for every export.
var Header = []string{"date", "description", "type", "category", "paymentMethod", "currency", "amount"}

var required = []string{"date", "description", "type", "amount"}

var ErrMissingColumn = errors.New("missing required column")

// RowError describes a rejected CSV line. Line is 1-based and counts the
// header.
type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Preview is the result of parsing an import file.
type Preview struct {
	Valid    []core.Transaction `json:"valid"`
	Rejected []RowError         `json:"rejected"`
}

// Record returns tx as one CSV row in Header order.
func Record(tx core.Transaction) []string {
	return []string{
		tx.Date.ISO(),
		tx.Description,
		tx.Type,
		tx.Category,
		tx.PaymentMethod,
		tx.Currency,
		tx.Amount.StringFixed(2),
	}
}

// WriteCSV writes the header and one row per transaction.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		if err := cw.Write(Record(tx)); err != nil {
			return fmt.Errorf("write row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses r into import candidates. Column names are matched
// case-insensitively and may appear in any order; unknown columns are
// ignored. Rows that fail validation are reported, not fatal.
func ReadCSV(r io.Reader) (Preview, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return Preview{}, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return Preview{}, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(head))
	for i, name := range head {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Preview{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		i, ok := cols[strings.ToLower(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	preview := Preview{Valid: []core.Transaction{}, Rejected: []RowError{}}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				preview.Rejected = append(preview.Rejected, RowError{Line: perr.StartLine, Err: perr.Err.Error()})
				continue
			}
			return preview, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(row) {
			continue
		}

		tx, err := parseRow(row, field)
		if err != nil {
			preview.Rejected = append(preview.Rejected, RowError{Line: line, Err: err.Error()})
			continue
		}
		preview.Valid = append(preview.Valid, tx)
	}
	return preview, nil
}

func parseRow(row []string, field func([]string, string) string) (core.Transaction, error) {
	date, err := core.ParseDate(field(row, "date"))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(field(row, "amount"))
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Description:   field(row, "description"),
		Amount:        core.NewAmount(amount),
		Type:          strings.ToLower(field(row, "type")),
		Category:      field(row, "category"),
		PaymentMethod: field(row, "paymentMethod"),
		Currency:      strings.ToUpper(field(row, "currency")),
		Date:          date,
	}
	tx.Category = tx.CategoryOrOther()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
