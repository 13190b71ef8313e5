package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spendrag/internal/budget"
	"spendrag/internal/core"
	"spendrag/internal/detect"
	"spendrag/internal/log"
	"spendrag/internal/middleware/ratelimit"
	"spendrag/internal/middleware/security"
	"spendrag/internal/middleware/trace"
	"spendrag/internal/router"
)

// Asker answers free-form spending questions.
type Asker interface {
	Ask(ctx context.Context, question string) (router.Answer, error)
}

// SubscriptionDetector finds recurring payments.
type SubscriptionDetector interface {
	Detect(ctx context.Context, minOccurrences int) ([]core.SubscriptionCandidate, error)
}

// AnomalyDetector flags unusual item amounts.
type AnomalyDetector interface {
	Detect(ctx context.Context, trailingDays int) (detect.AnomalyResult, error)
}

// BudgetChecker checks one month's budgets.
type BudgetChecker interface {
	Check(ctx context.Context, month string) (budget.Result, error)
}

// CacheAdmin exposes answer cache statistics and eviction.
type CacheAdmin interface {
	Stats(ctx context.Context) (core.CacheStats, error)
	Clear(ctx context.Context) (int, error)
	Prune(ctx context.Context, age time.Duration) (int, error)
}

// Pinger reports whether the ledger is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the API. Any of them may be nil; the
// matching routes then answer 503.
type Deps struct {
	Answerer      Asker
	Subscriptions SubscriptionDetector
	Anomalies     AnomalyDetector
	Reports       router.ReportSource
	Budgets       BudgetChecker
	Cache         CacheAdmin
	Health        Pinger
	Detect        detect.RunConfig
}

// Options tune the transport layer.
type Options struct {
	AllowedOrigins    []string
	RequestsPerMinute int
	RequestTimeout    time.Duration
	Logger            *log.Logger
}

func DefaultOptions() Options {
	return Options{
		AllowedOrigins:    []string{"*"},
		RequestsPerMinute: 60,
		RequestTimeout:    60 * time.Second,
	}
}

type appMetrics struct {
	mu        sync.Mutex
	uptime    time.Time
	questions int64
	outcomes  map[string]int64
	cacheHits int64
}

func (m *appMetrics) recordAnswer(a router.Answer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions++
	m.outcomes[a.Outcome]++
	if a.Cached {
		m.cacheHits++
	}
}

type Server struct {
	http.Server
	deps   Deps
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	def := DefaultOptions()
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = def.AllowedOrigins
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = def.RequestsPerMinute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if deps.Detect == (detect.RunConfig{}) {
		deps.Detect = detect.DefaultRunConfig()
	}

	detector := security.NewDetector(opts.Logger)
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = opts.RequestsPerMinute

	s := &Server{
		deps:             deps,
		logger:           opts.Logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(rlCfg),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now(), outcomes: map[string]int64{}},
	}

	r := chi.NewRouter()
	r.Use(s.traceMiddleware.Handler)
	r.Use(chimw.Recoverer)
	r.Use(log.Middleware(opts.Logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string { return trace.RequestID(r.Context()) }))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(log.ComponentMiddleware(log.ComponentHTTP))
		r.Use(s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimit))
		r.Use(chimw.Timeout(opts.RequestTimeout))

		r.Post("/ask", s.handleAsk)
		r.Get("/subscriptions", s.handleSubscriptions)
		r.Get("/subscriptions/upcoming", s.handleUpcoming)
		r.Get("/anomalies", s.handleAnomalies)
		r.Get("/reports/{month}", s.handleReport)
		r.Get("/budgets/{month}", s.handleBudgets)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later", trace.RequestID(r.Context())).Write(w)
}

// Shutdown stops background routines and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
