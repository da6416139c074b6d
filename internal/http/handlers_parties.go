package http

import (
	"net/http"

	"hisab/internal/core"
	"hisab/internal/storage"
)

func (s *Server) handleListParties(kind core.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := NewQueryParser(r)
		f := storage.PartyFilter{
			Kind:            kind,
			Search:          q.String("q"),
			IncludeInactive: q.Bool("all"),
		}
		parties, err := s.deps.Book.ListParties(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		OK(w, toPartyViews(parties))
	}
}

func (s *Server) handleGetParty(kind core.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := s.deps.Book.GetParty(r.Context(), kind, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		OK(w, toPartyView(p))
	}
}

func (s *Server) handleCreateParty(kind core.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req partyRequest
		if err := DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p, err := req.toParty(kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		created, err := s.deps.Book.CreateParty(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		Created(w, toPartyView(created))
	}
}

func (s *Server) handleUpdateParty(kind core.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req partyRequest
		if err := DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		p, err := req.toParty(kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		p.ID = id
		updated, err := s.deps.Book.UpdateParty(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		OK(w, toPartyView(updated))
	}
}

func (s *Server) handleDeleteParty(kind core.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.deps.Book.DeleteParty(r.Context(), kind, id); err != nil {
			writeError(w, r, err)
			return
		}
		OK(w, map[string]int64{"deleted": id})
	}
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := s.deps.Book.ListServices(r.Context(), NewQueryParser(r).Bool("all"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]serviceView, 0, len(svcs))
	for _, svc := range svcs {
		out = append(out, toServiceView(svc))
	}
	OK(w, out)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	svc, err := s.deps.Book.GetService(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toServiceView(svc))
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	svc, err := req.toService()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Book.CreateService(r.Context(), svc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, toServiceView(created))
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req serviceRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	svc, err := req.toService()
	if err != nil {
		writeError(w, r, err)
		return
	}
	svc.ID = id
	updated, err := s.deps.Book.UpdateService(r.Context(), svc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, toServiceView(updated))
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Book.DeleteService(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]int64{"deleted": id})
}
