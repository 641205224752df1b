// Package insights asks the backend's assistant about the user's finances
// over a websocket and collects the streamed answer.
package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"finsight/internal/aggregate"
	"finsight/internal/api"
	"finsight/internal/log"
)

const (
	path         = "/insights/ws"
	topN         = 3
	writeTimeout = 10 * time.Second
)

// ErrAssistant is returned when the backend answers with an error frame.
var ErrAssistant = errors.New("assistant error")

// Request is the first and only frame sent per question.
type Request struct {
	Question string  `json:"question"`
	Context  Context `json:"context"`
}

// Context is the compact financial picture sent along with a question.
type Context struct {
	Income        string                    `json:"income"`
	Expenses      string                    `json:"expenses"`
	Net           string                    `json:"net"`
	SavingsRate   float64                   `json:"savingsRate"`
	HealthScore   int                       `json:"healthScore"`
	TopCategories []aggregate.CategoryTotal `json:"topCategories"`
	OverBudget    []string                  `json:"overBudget,omitempty"`
}

type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Answer is the assembled reply.
type Answer struct {
	Text   string `json:"text"`
	Chunks int    `json:"chunks"`
}

type Client struct {
	url    string
	tokens api.TokenSource
	dialer *websocket.Dialer
	logger *log.Logger
}

// New returns a client for the backend rooted at baseURL. The http(s) scheme
// is swapped for ws(s).
func New(baseURL string, tokens api.TokenSource, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if tokens == nil {
		tokens = api.StaticToken("")
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		url:    u.String() + path,
		tokens: tokens,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger.WithComponent(log.ComponentInsights),
	}, nil
}

// ContextFrom condenses an overview into what the assistant needs.
func ContextFrom(ov aggregate.Overview) Context {
	c := Context{
		Income:        ov.Summary.Income.StringFixed(2),
		Expenses:      ov.Summary.Expenses.StringFixed(2),
		Net:           ov.Summary.Net.StringFixed(2),
		SavingsRate:   ov.SavingsRate,
		HealthScore:   ov.HealthScore,
		TopCategories: ov.Breakdown[:min(topN, len(ov.Breakdown))],
	}
	for _, b := range ov.Budgets {
		if b.OverBudget {
			c.OverBudget = append(c.OverBudget, b.Category)
		}
	}
	return c
}

// Ask sends question with the overview's context and waits for the streamed
// reply to finish.
func (c *Client) Ask(ctx context.Context, question string, ov aggregate.Overview) (Answer, error) {
	const op = "ask insights"
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, &api.Error{Kind: api.KindValidation, Op: op, Message: "empty question"}
	}

	header := http.Header{}
	if token := c.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return Answer{}, &api.Error{Kind: api.KindAuth, Op: op, Status: resp.StatusCode, Message: "insights handshake rejected", Err: err}
		}
		return Answer{}, &api.Error{Kind: api.KindNetwork, Op: op, Message: "dial insights", Err: err}
	}
	defer conn.Close()

	// Unblock reads when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	body, err := json.Marshal(Request{Question: question, Context: ContextFrom(ov)})
	if err != nil {
		return Answer{}, fmt.Errorf("encode question: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return Answer{}, &api.Error{Kind: api.KindNetwork, Op: op, Message: "send question", Err: err}
	}

	var b strings.Builder
	answer := Answer{}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Answer{}, ctxErr
			}
			return Answer{}, &api.Error{Kind: api.KindNetwork, Op: op, Message: "read reply", Err: err}
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.WarnContext(ctx, "Skipping malformed insights frame", log.FieldError, err.Error())
			continue
		}

		switch f.Type {
		case "chunk":
			b.WriteString(f.Content)
			answer.Chunks++
		case "done":
			answer.Text = b.String()
			c.logger.DebugContext(ctx, "Insights answer received", "chunks", answer.Chunks)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return answer, nil
		case "error":
			return Answer{}, fmt.Errorf("%w: %s", ErrAssistant, f.Content)
		default:
			c.logger.DebugContext(ctx, "Ignoring insights frame", "type", f.Type)
		}
	}
}
