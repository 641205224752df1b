package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// ImportResult is the backend's answer to an upload.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ExportPDF downloads the server-rendered PDF statement.
func (c *Client) ExportPDF(ctx context.Context) ([]byte, error) {
	return c.download(ctx, "export pdf", "/export/pdf", "application/pdf")
}

// ExportCSV downloads the server-rendered CSV of all transactions.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	return c.download(ctx, "export csv", "/export/csv", "text/csv")
}

func (c *Client) download(ctx context.Context, op, path, accept string) ([]byte, error) {
	raw, err := c.do(ctx, op, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &Error{Kind: KindServer, Op: op, Message: fmt.Sprintf("empty %s body", accept)}
	}
	return raw, nil
}

// Import uploads a CSV or spreadsheet file as multipart form field "file".
func (c *Client) Import(ctx context.Context, filename string, r io.Reader) (ImportResult, error) {
	const op = "import"
	filename = filepath.Base(strings.TrimSpace(filename))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx", ".xls":
	default:
		return ImportResult{}, validationError(op, errors.New("file must be .csv, .xlsx or .xls"))
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return ImportResult{}, &Error{Kind: KindClient, Op: op, Message: "build upload", Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return ImportResult{}, &Error{Kind: KindClient, Op: op, Message: "read upload", Err: err}
	}
	if err := mw.Close(); err != nil {
		return ImportResult{}, &Error{Kind: KindClient, Op: op, Message: "build upload", Err: err}
	}

	raw, err := c.do(ctx, op, http.MethodPost, "/export/import", mw.FormDataContentType(), &buf)
	if err != nil {
		return ImportResult{}, err
	}
	var out ImportResult
	if err := decodeInto(op, raw, &out); err != nil {
		return ImportResult{}, err
	}
	return out, nil
}
