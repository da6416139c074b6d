package http

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"path/filepath"

	"hisab/internal/core"
	"hisab/internal/services"
)

type (
	statementRequest struct {
		SQL    string `json:"sql" validate:"required"`
		Params []any  `json:"params"`
	}

	backupRequest struct {
		Path string `json:"path"`
	}

	restoreRequest struct {
		Path string `json:"path" validate:"required"`
	}

	saveDataRequest struct {
		Key  string          `json:"key" validate:"required,max=64"`
		Data json.RawMessage `json:"data" validate:"required"`
	}

	loadDataRequest struct {
		Key string `json:"key" validate:"required,max=64"`
	}
)

// bindParams turns JSON numbers without a fraction into integers so that
// they bind as INTEGER rather than REAL.
func bindParams(params []any) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		switch v := p.(type) {
		case float64:
			if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
				out[i] = int64(v)
			} else {
				out[i] = v
			}
		case nil, string, bool:
			out[i] = v
		default:
			return nil, fmt.Errorf("%w: parameter %d must be a scalar", core.ErrValidation, i+1)
		}
	}
	return out, nil
}

func (s *Server) handleDBQuery(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	args, err := bindParams(req.Params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.deps.Book.Query(r.Context(), req.SQL, args...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	OK(w, rows)
}

func (s *Server) handleDBUpdate(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	args, err := bindParams(req.Params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Book.Update(r.Context(), req.SQL, args...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, res)
}

// handleDBBackup writes a backup to the requested path, or into the backup
// directory when no path is given.
func (s *Server) handleDBBackup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	dest := sanitizeInput(req.Path)
	switch {
	case dest == "" && s.deps.Backups != nil:
		path, err := s.deps.Backups.RunOnce(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		OK(w, map[string]string{"path": path})
		return
	case dest == "":
		if s.deps.BackupDir == "" {
			BadRequestError("path is required").Write(w)
			return
		}
		dest = filepath.Join(s.deps.BackupDir, services.BackupName(s.now()))
	}
	if err := s.deps.Book.Backup(r.Context(), dest); err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]string{"path": dest})
}

func (s *Server) handleDBRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	src := sanitizeInput(req.Path)
	if err := s.deps.Book.Restore(r.Context(), src); err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]string{"restored": src})
}

func (s *Server) handleSaveData(w http.ResponseWriter, r *http.Request) {
	var req saveDataRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Data.Save(req.Key, req.Data); err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, map[string]string{"key": req.Key})
}

func (s *Server) handleLoadData(w http.ResponseWriter, r *http.Request) {
	var req loadDataRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.deps.Data.Load(req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, data)
}
