package api

import (
	"net/http"

	"github.com/shopdesk/shopdesk-core/internal/dashboard"
)

// handleDashboardStats returns the headline counters for the dashboard.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboard.Stats(r.Context())
	if err != nil {
		s.logger.Error("dashboard stats failed", "error", err)
		writeInternalError(w, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleDashboardActivity returns the recent activity feed for the dashboard.
func (s *Server) handleDashboardActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := pageParams(r)

	entries, err := s.dashboard.RecentActivity(r.Context(), limit)
	if err != nil {
		s.logger.Error("dashboard activity failed", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity": entries,
		"count":    len(entries),
	})
}

// handleDashboardRevenue returns bucketed revenue for a period
// (week, month or year; defaults to month).
func (s *Server) handleDashboardRevenue(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = dashboard.PeriodMonth
	}

	stats, err := s.dashboard.Revenue(r.Context(), period)
	if err != nil {
		s.logger.Error("dashboard revenue failed", "period", period, "error", err)
		writeInternalError(w, "failed to compute revenue")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
