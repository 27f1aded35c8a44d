package server

import "net/http"

func (s *Server) handleSales(w http.ResponseWriter, r *http.Request, sellerID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sales, summary, err := s.app.Sales(r.Context(), sellerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sales":   newSaleViews(sales),
		"summary": newSummaryView(summary),
	})
}

// handleSeed queues a seed job when a worker queue exists and otherwise
// seeds inline.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request, sellerID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.app.SeedQueued() {
		job, err := s.app.EnqueueSeed(r.Context(), sellerID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
		return
	}
	n, err := s.app.SeedSales(r.Context(), sellerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": n})
}

func (s *Server) handleSeedJob(w http.ResponseWriter, r *http.Request, sellerID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	job, err := s.app.SeedJob(r.Context(), sellerID, r.PathValue("jobId"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sellerID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Dashboard(r.Context(), sellerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": newDashboardView(stats)})
}
