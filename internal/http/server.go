package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"finsight/internal/aggregate"
	"finsight/internal/api"
	"finsight/internal/core"
	"finsight/internal/insights"
	"finsight/internal/localstate"
	"finsight/internal/log"
	"finsight/internal/middleware/ratelimit"
	"finsight/internal/middleware/security"
	"finsight/internal/middleware/trace"
	"finsight/internal/store"
)

// Overviewer builds the dashboard. *services.DashboardService satisfies it.
type Overviewer interface {
	Overview(ctx context.Context) (aggregate.Overview, error)
}

// BudgetManager is satisfied by *services.BudgetService.
type BudgetManager interface {
	List(ctx context.Context) ([]aggregate.BudgetStatus, error)
	Create(ctx context.Context, in core.Budget) (aggregate.BudgetStatus, error)
	Update(ctx context.Context, in core.Budget) (aggregate.BudgetStatus, error)
	Delete(ctx context.Context, id string) error
}

// GoalManager is satisfied by *services.GoalService.
type GoalManager interface {
	List(ctx context.Context) ([]aggregate.GoalStatus, error)
	Create(ctx context.Context, in core.Goal) (aggregate.GoalStatus, error)
	Update(ctx context.Context, in core.Goal) (aggregate.GoalStatus, error)
	Delete(ctx context.Context, id string) error
}

// CategorySet is satisfied by *categories.Set.
type CategorySet interface {
	Names() []string
	Add(ctx context.Context, name string) (bool, error)
	Drift(txs []core.Transaction) []string
}

// Preferences is the local state the dashboard reads and writes.
// *localstate.Store satisfies it.
type Preferences interface {
	Theme(ctx context.Context) (string, error)
	SetTheme(ctx context.Context, theme string) error
	CheckIn(ctx context.Context, day time.Time) (localstate.Streak, error)
	Streak(ctx context.Context, today time.Time) (localstate.Streak, error)
}

// Importer uploads a statement file. *api.Client satisfies it.
type Importer interface {
	Import(ctx context.Context, filename string, r io.Reader) (api.ImportResult, error)
}

// Assistant answers questions about the overview. *insights.Client
// satisfies it.
type Assistant interface {
	Ask(ctx context.Context, question string, ov aggregate.Overview) (insights.Answer, error)
}

// Deps are the collaborators behind the routes. Importer, Assistant and
// Ready are optional; routes needing an absent one answer 503.
type Deps struct {
	Store      *store.Store
	Dashboard  Overviewer
	Budgets    BudgetManager
	Goals      GoalManager
	Categories CategorySet
	Prefs      Preferences
	Importer   Importer
	Assistant  Assistant

	// Ready reports whether the server can take traffic.
	Ready func(ctx context.Context) error
}

// Options tune the middleware chain.
type Options struct {
	// RateLimitPerMinute caps mutating requests per client IP.
	RateLimitPerMinute int
	TrustedProxies     []string
	BlockSuspicious    bool
	Now                func() time.Time
}

// Server is the dashboard JSON API.
type Server struct {
	http.Server

	deps     Deps
	now      func() time.Time
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		deps:     deps,
		now:      opts.Now,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, safeMethod, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r))
		TooManyRequestsError().Write(w)
	})(h)
	h = s.detector.Middleware(opts.BlockSuspicious)(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/overview", s.handleOverview)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /api/transactions/reload", s.handleReloadTransactions)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("PUT /api/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleAddCategory)

	mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	mux.HandleFunc("POST /api/import", s.handleImport)

	mux.HandleFunc("GET /api/checkin", s.handleStreak)
	mux.HandleFunc("POST /api/checkin", s.handleCheckIn)
	mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /api/theme", s.handleSetTheme)

	mux.HandleFunc("POST /api/insights", s.handleInsights)
}

// safeMethod requests are not rate limited.
func safeMethod(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Metrics is a point-in-time view of the middleware counters.
type Metrics struct {
	Requests  trace.Metrics
	RateLimit ratelimit.Metrics
	Security  security.DetectionMetrics
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
	}
}

// Shutdown stops the rate limiter, logs request totals and drains the
// server. Later calls return nil.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		m := s.Metrics()
		s.logger.InfoContext(ctx, "HTTP server stopping",
			"requests", m.Requests.TotalRequests,
			"server_errors", m.Requests.ServerErrors,
			"rate_limited", m.RateLimit.TotalHits,
			"suspicious", m.Security.SuspiciousRequests)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}

	snap := s.deps.Store.Snapshot()
	NewJSONResponse().Body(map[string]any{
		"status":  "ready",
		"loaded":  snap.Loaded,
		"version": snap.Version,
	}).Write(w)
}
