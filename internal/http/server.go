package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"granttrack/internal/cache"
	applog "granttrack/internal/log"
	"granttrack/internal/middleware/ratelimit"
	"granttrack/internal/middleware/security"
	"granttrack/internal/middleware/trace"
	"granttrack/internal/services"
	"granttrack/internal/sheets"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to. Sheets, Caches
// and Store may be nil.
type Deps struct {
	Grants     *services.GrantService
	Chart      *services.ChartService
	Forecast   *services.ForecastService
	Expenses   *services.ExpenseService
	Reconciler *services.Reconciler

	Store     Pinger
	Sheets    sheets.TableWriter
	SheetName string
	Currency  string

	Logger        *applog.Logger
	Caches        *cache.Manager
	CacheInterval time.Duration
	RateLimit     ratelimit.Config
}

// Server is the JSON API in front of the grant services.
type Server struct {
	http.Server

	grants     *services.GrantService
	chart      *services.ChartService
	forecast   *services.ForecastService
	expenses   *services.ExpenseService
	reconciler *services.Reconciler

	store     Pinger
	sheets    sheets.TableWriter
	sheetName string
	currency  string

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	caches       *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.Config{Component: applog.ComponentHTTP, Handler: slog.Default().Handler()})
	}
	if deps.Currency == "" {
		deps.Currency = "USD"
	}
	if deps.SheetName == "" {
		deps.SheetName = "Grant Summary"
	}

	s := &Server{
		grants:     deps.Grants,
		chart:      deps.Chart,
		forecast:   deps.Forecast,
		expenses:   deps.Expenses,
		reconciler: deps.Reconciler,
		store:      deps.Store,
		sheets:     deps.Sheets,
		sheetName:  deps.SheetName,
		currency:   deps.Currency,
		limiter:    ratelimit.NewLimiter(deps.RateLimit),
		detector:   security.NewDetector(),
		caches:     deps.Caches,
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP)

	if s.caches != nil {
		interval := deps.CacheInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		s.caches.StartCleanup(interval)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(deps.Logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/funders", s.handleListFunders)
	mux.HandleFunc("POST /api/funders", s.handleCreateFunder)
	mux.HandleFunc("PATCH /api/funders/{id}", s.handleRenameFunder)
	mux.HandleFunc("DELETE /api/funders/{id}", s.handleDeleteFunder)

	mux.HandleFunc("GET /api/grants", s.handleListGrants)
	mux.HandleFunc("POST /api/grants", s.handleCreateGrant)
	mux.HandleFunc("GET /api/grants/{id}", s.handleGetGrant)
	mux.HandleFunc("PUT /api/grants/{id}", s.handleUpdateGrant)
	mux.HandleFunc("DELETE /api/grants/{id}", s.handleDeleteGrant)
	mux.HandleFunc("GET /api/grants/{id}/allocation", s.handleCheckAllocation)
	mux.HandleFunc("GET /api/grants/{id}/summary", s.handleGrantSummary)
	mux.HandleFunc("POST /api/grants/{id}/summary/export", s.handleExportSummary)

	mux.HandleFunc("GET /api/grants/{id}/line-items", s.handleListLineItems)
	mux.HandleFunc("POST /api/grants/{id}/line-items", s.handleCreateLineItem)
	mux.HandleFunc("GET /api/line-items/{id}", s.handleGetLineItem)
	mux.HandleFunc("PATCH /api/line-items/{id}", s.handlePatchLineItem)
	mux.HandleFunc("PUT /api/line-items/{id}/allocation", s.handleUpdateAllocation)
	mux.HandleFunc("DELETE /api/line-items/{id}", s.handleDeleteLineItem)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleRenameCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("GET /api/categories/{id}/subcategories", s.handleListSubcategories)
	mux.HandleFunc("POST /api/categories/{id}/subcategories", s.handleCreateSubcategory)
	mux.HandleFunc("GET /api/subcategories", s.handleListSubcategories)
	mux.HandleFunc("PATCH /api/subcategories/{id}", s.handleRenameSubcategory)
	mux.HandleFunc("DELETE /api/subcategories/{id}", s.handleDeleteSubcategory)
	mux.HandleFunc("GET /api/codes", s.handleListCodes)
	mux.HandleFunc("POST /api/codes", s.handleCreateCode)
	mux.HandleFunc("GET /api/codes/{code}", s.handleGetCode)
	mux.HandleFunc("PATCH /api/codes/{code}", s.handleRenameCode)
	mux.HandleFunc("DELETE /api/codes/{code}", s.handleDeleteCode)
	mux.HandleFunc("POST /api/chart/import", s.handleImportChart)

	mux.HandleFunc("GET /api/grants/{id}/mappings", s.handleListMappings)
	mux.HandleFunc("POST /api/grants/{id}/mappings", s.handleCreateMapping)
	mux.HandleFunc("DELETE /api/mappings/{id}", s.handleDeleteMapping)

	mux.HandleFunc("GET /api/grants/{id}/forecast", s.handleForecastPlan)
	mux.HandleFunc("POST /api/grants/{id}/forecast", s.handleInitializeGrantForecast)
	mux.HandleFunc("DELETE /api/grants/{id}/forecast", s.handleResetForecast)
	mux.HandleFunc("POST /api/line-items/{id}/forecast", s.handleInitializeLineItemForecast)
	mux.HandleFunc("PUT /api/line-items/{id}/forecast/{month}", s.handleUpdateAnticipated)

	mux.HandleFunc("GET /api/grants/{id}/actuals", s.handleListActuals)
	mux.HandleFunc("POST /api/grants/{id}/actuals", s.handleSaveActual)
}

// middleware wraps the mux, outermost first: logger, trace, request-scoped
// logger fields, security headers, probe detection, rate limiting of writes.
func (s *Server) middleware(logger *applog.Logger, next http.Handler) http.Handler {
	limit := s.limiter.Middleware(s.detector.ClientIP, handleRateLimited,
		http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)

	h := limit(next)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.ComponentMiddleware(applog.ComponentHTTP)(h)
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = s.tracer.Middleware(h)
	return applog.Middleware(logger)(h)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// fail logs err and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFromErr(err)
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	if resp.StatusCode() >= http.StatusInternalServerError {
		applog.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, applog.ComponentHTTP, op, applog.NewFields())
	} else {
		logger.DebugContext(ctx, "Request rejected", "error", err, applog.FieldOperation, op)
	}
	resp.Write(w)
}

func handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, retry later").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Run serves until ctx is cancelled, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "HTTP server listening", "addr", s.Addr)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
