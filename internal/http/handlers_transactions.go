package http

import (
	"net/http"

	"hisab/internal/core"
	"hisab/internal/storage"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	limit := min(q.Int("limit", defaultPageSize), maxPageSize)
	f := storage.TransactionFilter{
		Types:      q.Types("type"),
		PartyKind:  q.Kind("party_kind"),
		PartyID:    q.Int64("party_id"),
		From:       q.Date("from"),
		To:         q.Date("to"),
		FiscalYear: q.String("fiscal_year"),
		Search:     q.String("q"),
		Limit:      limit,
		Offset:     q.Int("offset", 0),
		WithItems:  q.Bool("items"),
	}
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	txns, err := s.deps.Book.ListTransactions(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toTransactionViews(txns))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Book.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toTransactionView(t))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Book.RecordTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, toTransactionView(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t.ID = id
	updated, err := s.deps.Book.UpdateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toTransactionView(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Book.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]int64{"deleted": id})
}

// handleNextNumber previews the number the next transaction of a type would
// get. Nothing is reserved.
func (s *Server) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r)
	typ := core.TransactionType(q.String("type"))
	date := q.Date("date")
	if err := q.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	if !typ.Valid() {
		writeError(w, r, core.ErrInvalidType)
		return
	}
	number, err := s.deps.Book.NextNumber(r.Context(), typ, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]string{"number": number})
}
