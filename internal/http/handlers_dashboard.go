package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/daterange"
)

type dashboardMeta struct {
	FilterType  daterange.Filter `json:"filter_type"`
	PeriodLabel string           `json:"period_label"`
	Cached      bool             `json:"cached"`
}

// serveDashboard answers a dashboard read through the response cache. The
// key covers method, path, query and owner; errors are never cached.
func serveDashboard[T any](s *Server, w http.ResponseWriter, r *http.Request, ownerID, op string,
	load func(ctx context.Context, ownerID string, filter daterange.Filter, start, end *time.Time) (T, error)) {
	params, err := ParseDashboardParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, ownerID, op, err, false)
		return
	}

	key := cache.Key(r.Method, r.URL.Path, r.URL.Query(), ownerID)
	data, hit, err := cache.GetOrLoad(s.cache, key, 0, func() (T, error) {
		return load(r.Context(), ownerID, params.Filter, params.Start, params.End)
	})
	s.structured.LogCacheLookup(r.Context(), ownerID, key, hit)
	if err != nil {
		s.writeError(w, r, ownerID, op, err, false)
		return
	}

	status := "MISS"
	if hit {
		status = "HIT"
	}
	NewJSONResponse().
		Header("X-Cache", status).
		Data(data).
		Meta(dashboardMeta{
			FilterType:  params.Filter,
			PeriodLabel: daterange.Label(params.Filter),
			Cached:      hit,
		}).
		Write(w)
}

func (s *Server) handleDashboardKPIs(w http.ResponseWriter, r *http.Request, ownerID string) {
	serveDashboard(s, w, r, ownerID, "dashboard_kpis", s.svc.Dashboard.GetKPIs)
}

func (s *Server) handleDashboardCharts(w http.ResponseWriter, r *http.Request, ownerID string) {
	serveDashboard(s, w, r, ownerID, "dashboard_charts", s.svc.Dashboard.GetCharts)
}

func (s *Server) handleDashboardWidgets(w http.ResponseWriter, r *http.Request, ownerID string) {
	serveDashboard(s, w, r, ownerID, "dashboard_widgets", s.svc.Dashboard.GetWidgets)
}
