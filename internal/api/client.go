// Package api is the HTTP client for the personal-finance backend.
//
// Every method returns either the canonical server representation of the
// resource or an *Error classifying the failure. Validation of outgoing
// payloads happens before any request is made. There is no retry and no
// token refresh: an auth failure is reported to the caller as is.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"finsight/internal/cache"
	"finsight/internal/log"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10

	// RequestIDHeader is sent on every request and echoed in logs.
	RequestIDHeader = "X-Request-ID"
)

// TokenSource supplies the bearer credential for outgoing requests. An empty
// token means the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client talks to the finance backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *log.Logger
	cache   *cache.LRUCache[[]byte]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPI) }
}

// WithResponseCache enables caching of profile and settings reads.
func WithResponseCache(rc *cache.LRUCache[[]byte]) Option {
	return func(c *Client) { c.cache = rc }
}

// New returns a client for the backend rooted at baseURL
// (for example http://localhost:5000/api).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		tokens:  StaticToken(""),
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// InvalidateCache drops every cached response.
func (c *Client) InvalidateCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// doJSON sends in (if non-nil) as JSON and decodes the response into out (if
// non-nil and the response has a body).
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindClient, Op: op, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	raw, err := c.do(ctx, op, method, path, contentType, body)
	if err != nil {
		return err
	}
	return decodeInto(op, raw, out)
}

func decodeInto(op string, raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	err := json.Unmarshal(raw, out)
	if err != nil {
		// Ids are opaque strings here; some backends send them as numbers.
		rv := reflect.ValueOf(out)
		if quoted, ok := quoteNumericIDs(raw); ok && rv.Kind() == reflect.Pointer && !rv.IsNil() {
			rv.Elem().SetZero()
			err = json.Unmarshal(quoted, out)
		}
	}
	if err != nil {
		return &Error{Kind: KindServer, Op: op, Message: "decode response", Err: err}
	}
	return nil
}

// quoteNumericIDs rewrites every numeric "id" member in raw as a string.
// ok is false when raw is not JSON or holds no numeric ids.
func quoteNumericIDs(raw []byte) ([]byte, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, false
	}
	if !quoteIDs(doc) {
		return nil, false
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, false
	}
	return out, true
}

func quoteIDs(v any) bool {
	changed := false
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			if n, ok := child.(json.Number); ok && k == "id" {
				v[k] = n.String()
				changed = true
				continue
			}
			changed = quoteIDs(child) || changed
		}
	case []any:
		for _, child := range v {
			changed = quoteIDs(child) || changed
		}
	}
	return changed
}

// do performs one request and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Kind: KindClient, Op: op, Message: "build request", Err: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Backend request failed",
			log.FieldOperation, op,
			log.FieldRequestID, requestID,
			log.FieldError, err)
		msg := "request failed"
		if IsTimeout(err) {
			msg = "request timed out"
		}
		return nil, &Error{Kind: KindNetwork, Op: op, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Backend request",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds(),
		log.FieldRequestID, requestID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Kind:    kindForStatus(resp.StatusCode),
			Op:      op,
			Status:  resp.StatusCode,
			Message: serverMessage(b, resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Message: "read response", Err: err}
	}
	return raw, nil
}

// serverMessage pulls a human message out of an error body. The backend
// uses both {"message": ...} and {"error": ...}.
func serverMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}

func escapeID(op, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &Error{Kind: KindValidation, Op: op, Message: "empty id"}
	}
	if strings.ContainsAny(id, "/?#") {
		return "", &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("invalid id %q", id)}
	}
	return id, nil
}
