package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetwise/internal/auth"
	"budgetwise/internal/extraction"
	applog "budgetwise/internal/log"
	"budgetwise/internal/middleware/ratelimit"
	"budgetwise/internal/middleware/security"
	"budgetwise/internal/middleware/trace"
	"budgetwise/internal/services"
	"budgetwise/internal/storage"
)

const readyTimeout = 2 * time.Second

// Deps are the collaborators the server routes to.
type Deps struct {
	Ledger *services.LedgerService
	Goals  *services.GoalService
	Loans  *services.LoanService
	// Analyzer backs statement analysis and category suggestions; nil
	// disables both with 503.
	Analyzer extraction.Analyzer
	Tokens   auth.Validator
	// Store is pinged by /readyz.
	Store  storage.Store
	Logger *applog.Logger

	RateLimitPerMinute int
	MaxUploadBytes     int64
	// TrustedProxies extends the private ranges trusted for X-Forwarded-For.
	TrustedProxies []string
}

type Server struct {
	http.Server

	ledger    *services.LedgerService
	goals     *services.GoalService
	loans     *services.LoanService
	analyzer  extraction.Analyzer
	store     storage.Store
	logger    *applog.Logger
	maxUpload int64

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = extraction.DefaultMaxBytes
	}

	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		ledger:    deps.Ledger,
		goals:     deps.Goals,
		loans:     deps.Loans,
		analyzer:  deps.Analyzer,
		store:     deps.Store,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		maxUpload: maxUpload,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:  detector,
	}
	s.tracer = trace.NewMiddleware(logger, detector.ExtractClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/v1/transactions", s.handleCreateTransaction)
	api.HandleFunc("DELETE /api/v1/transactions/{id}", s.handleDeleteTransaction)
	api.HandleFunc("GET /api/v1/summary", s.handleSummary)
	api.HandleFunc("GET /api/v1/analytics/categories", s.handleCategoryBreakdown)
	api.HandleFunc("GET /api/v1/analytics/daily", s.handleDailyTrend)
	api.HandleFunc("GET /api/v1/goal", s.handleGetGoal)
	api.HandleFunc("PUT /api/v1/goal", s.handleSetGoal)
	api.HandleFunc("POST /api/v1/loans/analyze", s.handleAnalyzeStatement)
	api.HandleFunc("GET /api/v1/loans", s.handleListLoans)
	api.HandleFunc("POST /api/v1/loans", s.handleSaveLoan)
	api.HandleFunc("GET /api/v1/loans/summary", s.handleLoanSummary)
	api.HandleFunc("PATCH /api/v1/loans/{index}", s.handleEditLoan)
	api.HandleFunc("POST /api/v1/loans/{index}/pay", s.handleMarkPaid)
	api.HandleFunc("DELETE /api/v1/loans/{index}", s.handleDeleteLoan)
	api.HandleFunc("POST /api/v1/categories/suggest", s.handleSuggestCategory)

	var protected http.Handler = api
	protected = auth.Middleware(deps.Tokens, writeError)(protected)
	protected = s.limiter.Middleware(detector.ExtractClientIP, s.rateLimited)(protected)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/api/", protected)

	var handler http.Handler = root
	handler = detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applog.FromContext(ctx).WithComponent(applog.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r))
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:     "rate limit exceeded",
		RequestID: trace.GetRequestID(ctx),
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
