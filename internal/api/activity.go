package api

import "net/http"

// handleRecentActivity returns the shop-wide activity feed, newest first.
func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := pageParams(r)

	entries, err := s.activities.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list activity failed", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity": entries,
		"count":    len(entries),
	})
}
