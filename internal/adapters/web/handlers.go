package web

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corey/whiskeybar/internal/domain/catalog"
	"github.com/corey/whiskeybar/internal/domain/ranking"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

const degradedHeader = "X-Degraded"

// SearchResponse is the body of GET /api/whiskeys/search and its /suggest
// alias. Distillery echoes the trimmed filter, "" when none was given.
type SearchResponse struct {
	Whiskeys   []catalog.Hit `json:"whiskeys"`
	Count      int           `json:"count"`
	Query      string        `json:"query"`
	Distillery string        `json:"distillery"`
	Degraded   bool          `json:"degraded"`
}

// RankingRow is one ranking line on the wire. The average is rounded to two
// decimals and exposed under both historical field names.
type RankingRow struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Distillery    string  `json:"distillery"`
	AvgRating     float64 `json:"avg_rating"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// RankingResponse is the body of GET /api/whiskeys/ranking when page or
// page_size is given.
type RankingResponse struct {
	Rankings   []RankingRow       `json:"rankings"`
	Pagination ranking.Pagination `json:"pagination"`
	Degraded   bool               `json:"degraded"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Whiskeys int    `json:"whiskeys"`
	Reviews  int    `json:"reviews"`
	Breaker  string `json:"breaker,omitempty"`
	Uptime   string `json:"uptime"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	distillery := strings.TrimSpace(q.Get("distillery"))
	limit := intParam(q.Get("limit"), 0)

	res := s.search.SearchFiltered(r.Context(), query, distillery, limit)
	hits := res.Hits
	if hits == nil {
		hits = []catalog.Hit{}
	}
	setDegraded(w, res.Degraded)
	s.writeJSON(w, http.StatusOK, SearchResponse{
		Whiskeys:   hits,
		Count:      len(hits),
		Query:      query,
		Distillery: distillery,
		Degraded:   res.Degraded,
	})
}

// handleRanking serves the bare list when neither page nor page_size is
// present, and the paginated envelope otherwise.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("page_size") {
		rows, degraded := s.rank.RankDefault(r.Context())
		setDegraded(w, degraded)
		s.writeJSON(w, http.StatusOK, wireRows(rows))
		return
	}

	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("page_size"), ranking.DefaultPageSize)
	p := s.rank.Rank(r.Context(), page, pageSize)
	setDegraded(w, p.Degraded)
	s.writeJSON(w, http.StatusOK, RankingResponse{
		Rankings:   wireRows(p.Rows),
		Pagination: p.Pagination,
		Degraded:   p.Degraded,
	})
}

func (s *Server) handleWhiskey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hit, err := s.search.Lookup(r.Context(), id)
	if err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("lookup failed")
		setDegraded(w, true)
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "catalog unavailable"})
		return
	}
	if hit == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "whiskey not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, hit)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.BreakerState != nil {
		resp.Breaker = s.opts.BreakerState()
		if resp.Breaker == "open" {
			resp.Status = "degraded"
		}
	}
	if s.opts.Counts != nil {
		whiskeys, reviews, err := s.opts.Counts(r.Context())
		if err != nil {
			resp.Status = "degraded"
		}
		resp.Whiskeys, resp.Reviews = whiskeys, reviews
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func wireRows(rows []ranking.Row) []RankingRow {
	out := make([]RankingRow, len(rows))
	for i, r := range rows {
		avg := round2(r.AvgRating)
		out[i] = RankingRow{
			ID:            r.ID,
			Name:          r.Name,
			Distillery:    r.Distillery,
			AvgRating:     avg,
			AverageRating: avg,
			ReviewCount:   r.ReviewCount,
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// intParam parses a query parameter, returning def when absent or malformed.
// Range clamping is left to the engines.
func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func setDegraded(w http.ResponseWriter, degraded bool) {
	if degraded {
		w.Header().Set(degradedHeader, "true")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	w.Write(data)
}
