package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hisab/internal/core"
	"hisab/internal/reports"
)

// handleLedger serves /api/parties/{kind}/{id}/ledger.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	kind, err := pathKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.handlePartyLedger(kind)(w, r)
}

// handlePartyLedger returns the party's statement grouped by fiscal year.
// Query: through=2081/82 limits the last year, gaps=1 emits empty years.
func (s *Server) handlePartyLedger(kind core.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		q := NewQueryParser(r)
		st, err := s.deps.Book.Statement(r.Context(), kind, id, q.String("through"), q.Bool("gaps"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		OK(w, toStatementView(st))
	}
}

func (s *Server) handleAging(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	kind := q.Kind("kind")
	asOf := q.Date("as_of")
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	if kind == "" {
		kind = core.Customer
	}
	rep, err := s.deps.Book.AgingReport(r.Context(), kind, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toAgingView(rep, q.Bool("items")))
}

// reportFilter reads type, from, to and group from the query.
func reportFilter(q *QueryParser) reports.Filter {
	f := reports.Filter{
		Types:       q.Types("type"),
		From:        q.Date("from"),
		To:          q.Date("to"),
		Granularity: reports.Granularity(q.String("group")),
	}
	if f.Granularity == "" {
		f.Granularity = reports.ByBSMonth
	}
	return f
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	f := reportFilter(q)
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.deps.Book.Summary(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toSummaryViews(rows))
}

func (s *Server) handleDayBook(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	day := q.Date("date")
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	db, err := s.deps.Book.DayBook(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toDayBookView(db))
}

func (s *Server) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	pl, err := s.deps.Book.ProfitAndLoss(r.Context(), NewQueryParser(r).String("fiscal_year"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toProfitLossView(pl))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Book.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toDashboardView(d))
}

func (s *Server) handleTopServices(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	f := reportFilter(q)
	limit := q.Int("limit", 10)
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.deps.Book.TopServices(r.Context(), f, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toServiceRowViews(rows))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	page := max(q.Int("page", 1), 1)
	size := min(max(q.Int("size", 50), 1), 200)
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	entries, more, err := s.deps.Book.Activity(r.Context(), page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]any{
		"page":     page,
		"entries":  toActivityViews(entries),
		"has_more": more,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Book.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, settings)
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	var req settingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Book.SetSetting(r.Context(), key, sanitizeInput(req.Value)); err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]string{key: req.Value})
}
