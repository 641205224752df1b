// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON bodies, list queries and path identifiers.

package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"finsight/internal/core"
	"finsight/internal/view"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 10 << 20
)

// DecodeJSON reads one JSON document from r into v. Unknown fields,
// trailing data and bodies over 1 MiB are rejected with ErrBadRequest.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: body exceeds %d bytes", ErrBadRequest, tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		default:
			return fmt.Errorf("%w: malformed JSON: %v", ErrBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON document", ErrBadRequest)
	}
	return nil
}

// ListQuery is a parsed transaction list request.
type ListQuery struct {
	Filters view.Filters
	Sort    view.SortKey
}

// ParseListQuery reads filters plus the sort key. Unknown sort keys fall
// back to newest first.
func ParseListQuery(q url.Values) (ListQuery, error) {
	f, err := view.ParseFilters(q)
	if err != nil {
		return ListQuery{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	f.Search = sanitizeInput(f.Search)
	return ListQuery{Filters: f, Sort: view.ParseSortKey(q.Get("sort"))}, nil
}

// PathID returns the sanitized {id} path value.
func PathID(r *http.Request) (string, error) {
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		return "", fmt.Errorf("%w: %w", ErrBadRequest, core.ErrEmptyID)
	}
	return id, nil
}

// SanitizeTransaction trims and strips control characters from every
// free-text field.
func SanitizeTransaction(tx core.Transaction) core.Transaction {
	tx.ID = ""
	tx.Description = sanitizeInput(tx.Description)
	tx.Type = strings.ToLower(sanitizeInput(tx.Type))
	tx.Category = sanitizeInput(tx.Category)
	tx.PaymentMethod = sanitizeInput(tx.PaymentMethod)
	tx.Currency = strings.ToUpper(sanitizeInput(tx.Currency))
	return tx
}

// SanitizePatch applies SanitizeTransaction's rules to the fields present.
func SanitizePatch(p core.TransactionPatch) core.TransactionPatch {
	clean := func(s *string, fn func(string) string) *string {
		if s == nil {
			return nil
		}
		v := fn(sanitizeInput(*s))
		return &v
	}
	same := func(s string) string { return s }
	p.Description = clean(p.Description, same)
	p.Type = clean(p.Type, strings.ToLower)
	p.Category = clean(p.Category, same)
	p.PaymentMethod = clean(p.PaymentMethod, same)
	p.Currency = clean(p.Currency, strings.ToUpper)
	return p
}

// ParseBool reads a query flag; 1, true, yes and on are true.
func ParseBool(q url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(q.Get(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
