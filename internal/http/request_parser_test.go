package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/core"
	"finsight/internal/view"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"name":"rent"}`},
		{name: "empty", body: "", wantErr: "-"},
		{name: "unknown field", body: `{"name":"rent","extra":1}`, wantErr: "malformed JSON"},
		{name: "malformed", body: `{"name":`, wantErr: "malformed JSON"},
		{name: "trailing data", body: `{"name":"a"}{"name":"b"}`, wantErr: "unexpected data"},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`, wantErr: "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var got payload
			err := DecodeJSON(httptest.NewRecorder(), r, &got)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "rent", got.Name)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadRequest)
			if tt.wantErr != "-" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseListQuery(t *testing.T) {
	q := url.Values{
		"type":     {"expense"},
		"category": {"Food"},
		"q":        {"  coffee\x07 "},
		"from":     {"2024-03-01"},
		"to":       {"2024-03-31"},
		"sort":     {"amount-asc"},
	}

	got, err := ParseListQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "expense", got.Filters.Type)
	assert.Equal(t, "Food", got.Filters.Category)
	assert.Equal(t, "coffee", got.Filters.Search)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), got.Filters.From)
	assert.Equal(t, view.SortKey("amount-asc"), got.Sort)

	got, err = ParseListQuery(url.Values{"sort": {"sideways"}})
	require.NoError(t, err)
	assert.Equal(t, view.SortKey("date-desc"), got.Sort)

	_, err = ParseListQuery(url.Values{"from": {"yesterday"}})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestPathID(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/api/transactions/x", nil)
	r.SetPathValue("id", " abc-123 ")
	id, err := PathID(r)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	r.SetPathValue("id", "\x00")
	_, err = PathID(r)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.ErrorIs(t, err, core.ErrEmptyID)
}

func TestSanitizeTransaction(t *testing.T) {
	in := core.Transaction{
		ID:            "client-supplied",
		Description:   " Lunch\x1b[31m ",
		Type:          " EXPENSE ",
		Category:      "Food\x00",
		PaymentMethod: " card ",
		Currency:      "eur",
	}

	got := SanitizeTransaction(in)
	assert.Empty(t, got.ID)
	assert.Equal(t, "Lunch[31m", got.Description)
	assert.Equal(t, "expense", got.Type)
	assert.Equal(t, "Food", got.Category)
	assert.Equal(t, "card", got.PaymentMethod)
	assert.Equal(t, "EUR", got.Currency)
}

func TestSanitizePatch(t *testing.T) {
	typ, cur, desc := "Income", " gbp ", "\tBonus "
	got := SanitizePatch(core.TransactionPatch{Type: &typ, Currency: &cur, Description: &desc})

	require.NotNil(t, got.Type)
	assert.Equal(t, "income", *got.Type)
	assert.Equal(t, "GBP", *got.Currency)
	assert.Equal(t, "Bonus", *got.Description)
	assert.Nil(t, got.Category)
	assert.Equal(t, "Income", typ, "input must not be modified")
}

func TestParseBool(t *testing.T) {
	for value, want := range map[string]bool{
		"1": true, "true": true, "YES": true, " on ": true,
		"": false, "0": false, "false": false, "maybe": false,
	} {
		assert.Equal(t, want, ParseBool(url.Values{"f": {value}}, "f"), value)
	}
}

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"march.csv":            "march.csv",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\bank.xls`: "bank.xls",
		"my statement (1).csv": "my_statement_1_.csv",
		"":                     "",
		"..":                   "",
		"/":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeFilename(in), in)
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb\nc", sanitizeInput("  a\tb\nc\x7f\x01 "))
	assert.Empty(t, sanitizeInput(" \x00 "))
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "transactions-2024-01-05.csv", exportFilename(time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC)))
}

func TestConfiguredReportsMissingDependency(t *testing.T) {
	assert.NoError(t, configured(true, "x"))
	err := configured(false, "import")
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.Contains(t, err.Error(), "import")
}
