package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	// DefaultMaxUploadBytes bounds statement uploads before text extraction.
	DefaultMaxUploadBytes = 5 << 20
)

// Services groups the application services the handlers call.
type Services struct {
	Dashboard    *services.DashboardService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Imports      *services.ImportService
	Chat         *services.ChatService
}

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the server. Zero values fall back to the defaults.
type Options struct {
	Addr           string
	RequestTimeout time.Duration
	// RateLimitPerMinute caps upload and chat requests per owner.
	RateLimitPerMinute int
	MaxUploadBytes     int64
	// TrustedProxies are CIDRs whose forwarding headers are believed, on
	// top of loopback and private ranges.
	TrustedProxies []string
}

// Server is the JSON API. It embeds http.Server so callers can
// ListenAndServe directly.
type Server struct {
	http.Server

	svc        Services
	cache      *cache.ResponseCache
	store      Pinger
	logger     *log.Logger
	structured *log.StructuredLogger
	tracer     *trace.Middleware
	detector   *security.Detector
	limiter    *ratelimit.Limiter
	opts       Options
	now        func() time.Time
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services, responses *cache.ResponseCache, store Pinger, logger *log.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		svc:        svc,
		cache:      responses,
		store:      store,
		logger:     httpLogger,
		structured: log.NewStructuredLogger(httpLogger),
		detector:   security.NewDetector(logger.Slog(log.ComponentSecurity)),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		opts:       opts,
		now:        time.Now,
		started:    time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(strings.TrimSpace(cidr)); err != nil {
			httpLogger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.structured)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /dashboard/kpis", s.owned(s.handleDashboardKPIs))
	mux.Handle("GET /dashboard/charts", s.owned(s.handleDashboardCharts))
	mux.Handle("GET /dashboard/widgets", s.owned(s.handleDashboardWidgets))

	mux.Handle("POST /transactions", s.owned(s.handleCreateTransaction))
	mux.Handle("GET /transactions", s.owned(s.handleListTransactions))
	mux.Handle("GET /transactions/{id}", s.owned(s.handleGetTransaction))
	mux.Handle("PUT /transactions/{id}", s.owned(s.handleUpdateTransaction))
	mux.Handle("DELETE /transactions/{id}", s.owned(s.handleDeleteTransaction))

	mux.Handle("POST /budgets", s.owned(s.handleCreateBudget))
	mux.Handle("GET /budgets", s.owned(s.handleListBudgets))
	mux.Handle("GET /budgets/status", s.owned(s.handleBudgetStatus))
	mux.Handle("GET /budgets/{id}", s.owned(s.handleGetBudget))
	mux.Handle("PUT /budgets/{id}", s.owned(s.handleUpdateBudget))
	mux.Handle("DELETE /budgets/{id}", s.owned(s.handleDeleteBudget))

	mux.Handle("POST /upload/analyze", s.limited(s.owned(s.handleAnalyzeStatement)))
	mux.Handle("POST /upload/confirm", s.owned(s.handleConfirmImport))
	mux.Handle("POST /chat", s.limited(s.owned(s.handleChat)))

	mux.Handle("POST /cache/clear", s.owned(s.handleCacheClear))
	mux.Handle("GET /cache/stats", s.owned(s.handleCacheStats))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.withTimeout(handler)
	handler = headers.Middleware(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = log.Middleware(httpLogger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// owned rejects requests without an owner and passes the owner to h.
func (s *Server) owned(h ownedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFromRequest(r)
		if owner == "" {
			UnauthorizedError("missing " + UserIDHeader + " header").Write(w)
			return
		}
		h(w, r, owner)
	})
}

// limited applies the per-owner rate limit.
func (s *Server) limited(next http.Handler) http.Handler {
	return s.limiter.Middleware(ownerFromRequest, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldUserID, ownerFromRequest(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError("rate limit exceeded, please try again later").Write(w)
	})(next)
}

// withTimeout bounds every request with the configured deadline.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeError logs unexpected failures and writes the mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, ownerID, op string, err error, body bool) {
	resp := FromError(err, body)
	if resp.statusCode >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		s.structured.LogError(r.Context(), "Request failed", err, op,
			log.NewFields().
				WithUserID(ownerID).
				WithRequestID(trace.GetRequestID(r.Context())))
	}
	resp.Write(w)
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
