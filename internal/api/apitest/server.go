// Package apitest runs an in-memory finance backend for tests. It speaks the
// same JSON shapes as the real service and lets tests inject failures, hold
// responses back to force reordering, and count calls.
package apitest

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"finsight/internal/core"
)

const (
	DefaultToken    = "test-token"
	DefaultEmail    = "ana@example.com"
	DefaultPassword = "secret123"
	DefaultUsername = "ana"
)

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	token    string
	txs      []core.Transaction
	budgets  []core.Budget
	goals    []core.Goal
	profile  core.Profile
	settings core.Settings
	posts    []core.Post
	failures map[string]int
	holds    map[string][]*Hold
	calls    map[string]int
	imports  []string
	reply    []string
	lastAsk  []byte
}

// Hold parks one request until Release is called.
type Hold struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived is closed once the held request reached the server.
func (h *Hold) Arrived() <-chan struct{} { return h.arrived }

// Release lets the held request complete.
func (h *Hold) Release() { h.once.Do(func() { close(h.release) }) }

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		token:    DefaultToken,
		profile:  core.Profile{Username: DefaultUsername, Email: DefaultEmail, Currency: "USD"},
		settings: core.Settings{Currency: "USD", Language: "en", Notifications: true},
		failures: make(map[string]int),
		holds:    make(map[string][]*Hold),
		calls:    make(map[string]int),
		reply:    []string{"You are ", "saving well."},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(func() {
		s.releaseAll()
		s.Close()
	})
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.intercept)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/reset-password", s.handleNoContent)

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)

		r.Post("/auth/logout", s.handleNoContent)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Put("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Get("/budgets", s.handleListBudgets)
		r.Post("/budgets", s.handleSaveBudget)
		r.Put("/budgets/{id}", s.handleSaveBudget)
		r.Delete("/budgets/{id}", s.handleDeleteBudget)

		r.Get("/goals", s.handleListGoals)
		r.Post("/goals", s.handleSaveGoal)
		r.Put("/goals/{id}", s.handleSaveGoal)
		r.Delete("/goals/{id}", s.handleDeleteGoal)

		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handlePutProfile)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Get("/posts", s.handleListPosts)
		r.Post("/posts", s.handleCreatePost)
		r.Delete("/posts/{id}", s.handleDeletePost)
		r.Post("/posts/{id}/comments", s.handleAddComment)
		r.Post("/posts/{id}/like", s.handleLikePost)

		r.Get("/export/csv", s.handleExportCSV)
		r.Get("/export/pdf", s.handleExportPDF)
		r.Post("/export/import", s.handleImport)

		r.Get("/insights/ws", s.handleInsights)
	})
	return r
}

// intercept counts calls, applies injected failures and parks held requests.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.calls[key]++
		status, failing := s.failures[key]
		var hold *Hold
		if q := s.holds[key]; len(q) > 0 {
			hold, s.holds[key] = q[0], q[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			close(hold.arrived)
			select {
			case <-hold.release:
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeJSON(w, status, map[string]string{"message": fmt.Sprintf("injected %d", status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Bearer " + s.token
		s.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail makes every request to method+path answer with status until
// ClearFailures is called.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

// HoldNext parks the next request to method+path.
func (s *Server) HoldNext(method, path string) *Hold {
	h := &Hold{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.holds[key] = append(s.holds[key], h)
	return h
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.holds {
		for _, h := range q {
			h.Release()
		}
	}
}

// Calls returns how many requests reached method+path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// SetToken changes the accepted bearer token.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SeedTransactions appends txs, assigning ids where missing.
func (s *Server) SeedTransactions(txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		s.txs = append(s.txs, tx)
	}
}

func (s *Server) SeedBudgets(bs ...core.Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bs {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		s.budgets = append(s.budgets, b)
	}
}

func (s *Server) SeedGoals(gs ...core.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range gs {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		s.goals = append(s.goals, g)
	}
}

// Transactions returns a copy of the server-side collection.
func (s *Server) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...)
}

// Imports returns the names of uploaded files.
func (s *Server) Imports() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.imports...)
}

// SetInsightsReply sets the chunks streamed back by the insights socket.
func (s *Server) SetInsightsReply(chunks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = chunks
}

// LastQuestion returns the raw JSON of the last insights request.
func (s *Server) LastQuestion() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAsk
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	if in.Email != DefaultEmail || in.Password != DefaultPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  map[string]string{"username": DefaultUsername, "email": in.Email},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "username is required"})
		return
	}
	if in.Email == DefaultEmail {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Email already registered"})
		return
	}
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  map[string]string{"username": in.Username, "email": in.Email},
	})
}

func (s *Server) handleNoContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Transactions())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	if err := tx.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
		return
	}
	tx.ID = uuid.NewString()
	s.mu.Lock()
	s.txs = append(s.txs, tx)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch core.TransactionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs {
		if tx.ID != id {
			continue
		}
		applyPatch(&tx, patch)
		s.txs[i] = tx
		writeJSON(w, http.StatusOK, tx)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Transaction not found"})
}

func applyPatch(tx *core.Transaction, p core.TransactionPatch) {
	if p.Description != nil {
		tx.Description = *p.Description
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.Category != nil {
		tx.Category = *p.Category
	}
	if p.PaymentMethod != nil {
		tx.PaymentMethod = *p.PaymentMethod
	}
	if p.Currency != nil {
		tx.Currency = *p.Currency
	}
	if p.Date != nil {
		tx.Date = *p.Date
	}
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs {
		if tx.ID == id {
			s.txs = append(s.txs[:i:i], s.txs[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Transaction not found"})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]core.Budget(nil), s.budgets...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	var b core.Budget
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := chi.URLParam(r, "id"); id != "" {
		for i := range s.budgets {
			if s.budgets[i].ID == id {
				b.ID = id
				s.budgets[i] = b
				writeJSON(w, http.StatusOK, b)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Budget not found"})
		return
	}
	b.ID = uuid.NewString()
	s.budgets = append(s.budgets, b)
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.budgets {
		if s.budgets[i].ID == id {
			s.budgets = append(s.budgets[:i:i], s.budgets[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Budget not found"})
}

func (s *Server) handleListGoals(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]core.Goal(nil), s.goals...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSaveGoal(w http.ResponseWriter, r *http.Request) {
	var g core.Goal
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := chi.URLParam(r, "id"); id != "" {
		for i := range s.goals {
			if s.goals[i].ID == id {
				g.ID = id
				s.goals[i] = g
				writeJSON(w, http.StatusOK, g)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Goal not found"})
		return
	}
	g.ID = uuid.NewString()
	s.goals = append(s.goals, g)
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals = append(s.goals[:i:i], s.goals[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Goal not found"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	p := s.profile
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p core.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	v := s.settings
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var v core.Settings
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	s.mu.Lock()
	s.settings = v
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListPosts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]core.Post(nil), s.posts...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	p := core.Post{
		ID:        uuid.NewString(),
		Author:    DefaultUsername,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.posts = append(s.posts, p)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			c := core.Comment{ID: uuid.NewString(), Author: DefaultUsername, Content: in.Content, CreatedAt: time.Now().UTC()}
			s.posts[i].Comments = append(s.posts[i].Comments, c)
			writeJSON(w, http.StatusCreated, c)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts[i].Likes++
			writeJSON(w, http.StatusOK, s.posts[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Post not found"})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, _ *http.Request) {
	var b strings.Builder
	b.WriteString("date,description,type,category,amount\n")
	for _, tx := range s.Transactions() {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n", tx.Date.ISO(), tx.Description, tx.Type, tx.Category, tx.Amount.String())
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = io.WriteString(w, b.String())
}

func (s *Server) handleExportPDF(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = io.WriteString(w, "%PDF-1.4\n% finsight statement\n%%EOF\n")
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "expected multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing file"})
		return
	}
	defer file.Close()

	rows, err := countRows(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	s.imports = append(s.imports, header.Filename)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"imported": rows, "skipped": 0})
}

func countRows(f multipart.File) (int, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) <= 1 {
		return 0, nil
	}
	return len(lines) - 1, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleInsights reads one question and streams the configured reply.
// A question of "fail" is answered with an error frame.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in struct {
			Question string `json:"question"`
		}
		_ = json.Unmarshal(raw, &in)

		s.mu.Lock()
		s.lastAsk = raw
		chunks := append([]string(nil), s.reply...)
		s.mu.Unlock()

		if in.Question == "fail" {
			_ = conn.WriteJSON(map[string]string{"type": "error", "content": "model unavailable"})
			continue
		}
		for _, c := range chunks {
			if err := conn.WriteJSON(map[string]string{"type": "chunk", "content": c}); err != nil {
				return
			}
		}
		if err := conn.WriteJSON(map[string]string{"type": "done"}); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
