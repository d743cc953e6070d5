package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

type healthStatus struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Uptime    string                    `json:"uptime"`
	Requests  trace.Metrics             `json:"requests"`
	Security  security.DetectionMetrics `json:"security"`
	RateLimit ratelimit.Metrics         `json:"rate_limit"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(healthStatus{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Requests:  s.tracer.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
	}).Write(w)
}

// handleReady pings the store
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			checks["store"] = "unavailable"
			resp := ServiceUnavailableError("not ready")
			resp.envelope.Data = map[string]any{"status": "not_ready", "checks": checks}
			resp.Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]any{"status": "ready", "checks": checks}).Write(w)
}

// handleCacheClear drops every cached response, for all owners.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request, ownerID string) {
	cleared := 0
	if s.cache != nil {
		cleared = s.cache.ClearAll()
	}
	s.logger.InfoContext(r.Context(), "Response cache cleared", log.FieldUserID, ownerID, "cleared_items", cleared)
	NewJSONResponse().Data(map[string]int{"cleared_items": cleared}).Write(w)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request, _ string) {
	if s.cache == nil {
		NewJSONResponse().Data(map[string]any{"items": 0, "keys": []string{}}).Write(w)
		return
	}
	NewJSONResponse().Data(s.cache.Stats()).Write(w)
}
