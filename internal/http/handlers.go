package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"spendrag/internal/core"
	"spendrag/internal/detect"
	"spendrag/internal/log"
	"spendrag/internal/middleware/trace"
)

// writeError logs unexpected failures and maps err to a JSON error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	ctx := r.Context()
	status := statusFor(err)
	requestID := trace.RequestID(ctx)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Request failed", err, log.ComponentHTTP, operation, log.NewFields().WithRequestID(requestID))
		InternalServerError(requestID).Write(w)
		return
	}
	ErrorResponse(status, err.Error(), requestID).Write(w)
}

func (s *Server) unavailable(w http.ResponseWriter, r *http.Request, what string) {
	UnavailableError(what+" is not configured", trace.RequestID(r.Context())).Write(w)
}

// handleHealth pings the ledger.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Health check failed", log.FieldError, err)
			health["status"] = "unhealthy"
			NewJSONResponse().Status(http.StatusServiceUnavailable).Body(health).Write(w)
			return
		}
	}
	NewJSONResponse().Body(health).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()

	s.appMetrics.mu.Lock()
	questions := s.appMetrics.questions
	cacheHits := s.appMetrics.cacheHits
	outcomes := make([]string, 0, len(s.appMetrics.outcomes))
	for k := range s.appMetrics.outcomes {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	counts := make([]int64, len(outcomes))
	for i, k := range outcomes {
		counts[i] = s.appMetrics.outcomes[k]
	}
	s.appMetrics.mu.Unlock()

	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", s.traceMiddleware.TotalRequests())
	fmt.Fprintf(w, "# TYPE questions_total counter\n")
	fmt.Fprintf(w, "questions_total %d\n", questions)
	for i, k := range outcomes {
		fmt.Fprintf(w, "questions_total{outcome=%q} %d\n", k, counts[i])
	}
	fmt.Fprintf(w, "\n# TYPE answer_cache_hits_total counter\n")
	fmt.Fprintf(w, "answer_cache_hits_total %d\n\n", cacheHits)
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n", rateLimitMetrics.TotalHits)
	fmt.Fprintf(w, "# TYPE rate_limit_clients gauge\n")
	fmt.Fprintf(w, "rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n", securityMetrics.SuspiciousRequests)
	fmt.Fprintf(w, "# TYPE blocked_requests_total counter\n")
	fmt.Fprintf(w, "blocked_requests_total %d\n\n", securityMetrics.BlockedRequests)
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.appMetrics.uptime).Seconds())
}

// handleAsk answers {"question": "..."} (JSON or form). NoMatch and
// Unavailable outcomes are still 200; the body says which.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Answerer == nil {
		s.unavailable(w, r, "question answering")
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err, log.OpAsk)
		return
	}
	answer, err := s.deps.Answerer.Ask(r.Context(), p.Get("question"))
	if err != nil {
		s.writeError(w, r, err, log.OpAsk)
		return
	}
	s.appMetrics.recordAnswer(answer)
	NewJSONResponse().Body(answer).Write(w)
}

type subscriptionsResponse struct {
	MinOccurrences int                          `json:"min_occurrences"`
	Subscriptions  []core.SubscriptionCandidate `json:"subscriptions"`
	AnnualTotal    float64                      `json:"annual_total"`
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Subscriptions == nil {
		s.unavailable(w, r, "subscription detection")
		return
	}
	minOcc, err := ParseDays(r.URL.Query(), "min_occurrences", s.deps.Detect.MinOccurrences)
	if err != nil {
		s.writeError(w, r, err, log.OpDetect)
		return
	}
	subs, err := s.deps.Subscriptions.Detect(r.Context(), minOcc)
	if err != nil {
		s.writeError(w, r, err, log.OpDetect)
		return
	}
	resp := subscriptionsResponse{MinOccurrences: minOcc, Subscriptions: nonNil(subs)}
	for _, c := range subs {
		resp.AnnualTotal += c.AnnualCost
	}
	resp.AnnualTotal = core.RoundAmount(resp.AnnualTotal)
	NewJSONResponse().Body(resp).Write(w)
}

type upcomingResponse struct {
	Days     int                          `json:"days"`
	Upcoming []core.SubscriptionCandidate `json:"upcoming"`
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	if s.deps.Subscriptions == nil {
		s.unavailable(w, r, "subscription detection")
		return
	}
	days, err := ParseDays(r.URL.Query(), "days", s.deps.Detect.UpcomingDays)
	if err != nil {
		s.writeError(w, r, err, log.OpDetect)
		return
	}
	subs, err := s.deps.Subscriptions.Detect(r.Context(), s.deps.Detect.MinOccurrences)
	if err != nil {
		s.writeError(w, r, err, log.OpDetect)
		return
	}
	NewJSONResponse().Body(upcomingResponse{Days: days, Upcoming: nonNil(detect.FilterUpcoming(subs, days))}).Write(w)
}

type anomaliesResponse struct {
	Days      int                  `json:"days"`
	Anomalies []core.AnomalyRecord `json:"anomalies"`
	Skipped   []core.SkippedGroup  `json:"skipped"`
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if s.deps.Anomalies == nil {
		s.unavailable(w, r, "anomaly detection")
		return
	}
	days, err := ParseDays(r.URL.Query(), "days", s.deps.Detect.TrailingDays)
	if err != nil {
		s.writeError(w, r, err, log.OpDetect)
		return
	}
	if days == 0 {
		s.writeError(w, r, fmt.Errorf("days must be at least 1: %w", errBadParameter), log.OpDetect)
		return
	}
	res, err := s.deps.Anomalies.Detect(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err, log.OpDetect)
		return
	}
	NewJSONResponse().Body(anomaliesResponse{
		Days:      days,
		Anomalies: nonNil(res.Anomalies),
		Skipped:   nonNil(res.Skipped),
	}).Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		s.unavailable(w, r, "monthly reports")
		return
	}
	month, err := ParseMonthParam(chi.URLParam(r, "month"))
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	report, err := s.deps.Reports.MonthlyReport(r.Context(), month)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

// handleBudgets checks the month's budgets. Non-ok statuses are recorded
// as alerts, once per category and level.
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	if s.deps.Budgets == nil {
		s.unavailable(w, r, "budgets")
		return
	}
	month, err := ParseMonthParam(chi.URLParam(r, "month"))
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	res, err := s.deps.Budgets.Check(r.Context(), month)
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	res.Statuses = nonNil(res.Statuses)
	res.Alerts = nonNil(res.Alerts)
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.unavailable(w, r, "answer cache")
		return
	}
	stats, err := s.deps.Cache.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(stats).Write(w)
}

type clearResponse struct {
	Removed   int    `json:"removed"`
	OlderThan string `json:"older_than,omitempty"`
}

// handleCacheClear removes every entry, or only those older than
// ?older_than=<duration>.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.unavailable(w, r, "answer cache")
		return
	}
	age, scoped, err := ParseAge(r.URL.Query(), "older_than")
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}

	var removed int
	resp := clearResponse{}
	if scoped {
		removed, err = s.deps.Cache.Prune(r.Context(), age)
		resp.OlderThan = age.String()
	} else {
		removed, err = s.deps.Cache.Clear(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err, "cache_clear")
		return
	}
	resp.Removed = removed
	s.logger.InfoContext(r.Context(), "Answer cache cleared", "removed", removed, "older_than", resp.OlderThan)
	NewJSONResponse().Body(resp).Write(w)
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
