package http

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"hisab/internal/core"
	"hisab/internal/printing"
)

type printRequest struct {
	Document      string `json:"document" validate:"required,oneof=invoice statement aging"`
	TransactionID int64  `json:"transaction_id" validate:"required_if=Document invoice"`
	PartyKind     string `json:"party_kind" validate:"omitempty,oneof=customer supplier"`
	PartyID       int64  `json:"party_id" validate:"required_if=Document statement"`
	Through       string `json:"through"`
	AsOf          string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Format        string `json:"format" validate:"omitempty,oneof=pdf html"`
	// Path, when set, writes the PDF there instead of returning it.
	Path string `json:"path"`
}

// handlePrint renders an invoice, statement or aging report. HTML is
// returned inside the envelope; PDF is written to Path or streamed back as
// application/pdf.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req printRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if s.deps.Renderer == nil {
		writeError(w, r, printing.ErrPDFUnavailable)
		return
	}
	name, html, err := s.renderDocument(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Format == "html" {
		OK(w, map[string]string{"name": name, "html": html})
		return
	}

	pdf, err := s.deps.Renderer.PDF(r.Context(), html)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if dest := sanitizeInput(req.Path); dest != "" {
		if err := writeFile(dest, pdf); err != nil {
			writeError(w, r, err)
			return
		}
		OK(w, map[string]any{"path": dest, "bytes": len(pdf)})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) renderDocument(ctx context.Context, req printRequest) (name, html string, err error) {
	book := s.deps.Book
	company := book.Company()
	kind := core.PartyKind(req.PartyKind)

	switch req.Document {
	case "invoice":
		t, err := book.GetTransaction(ctx, req.TransactionID)
		if err != nil {
			return "", "", err
		}
		party, err := book.GetParty(ctx, t.PartyKind, t.PartyID)
		if err != nil {
			return "", "", err
		}
		html, err = s.deps.Renderer.InvoiceHTML(printing.Invoice{Company: company, Party: party, Transaction: t})
		return t.Number, html, err

	case "statement":
		if kind == "" {
			kind = core.Customer
		}
		st, err := book.Statement(ctx, kind, req.PartyID, sanitizeInput(req.Through), false)
		if err != nil {
			return "", "", err
		}
		html, err = s.deps.Renderer.StatementHTML(printing.Statement{
			Company: company,
			Party:   st.Party,
			Balance: st.Balance,
			Years:   st.Years,
		})
		return fmt.Sprintf("statement-%s-%d", kind, req.PartyID), html, err

	default:
		if kind == "" {
			kind = core.Customer
		}
		asOf, err := parseOptionalDate("as_of", req.AsOf)
		if err != nil {
			return "", "", err
		}
		rep, err := book.AgingReport(ctx, kind, asOf)
		if err != nil {
			return "", "", err
		}
		a := printing.Aging{Company: company, Report: rep}
		if kind == core.Supplier {
			a.Title = "Payable aging"
		}
		html, err = s.deps.Renderer.AgingHTML(a)
		return fmt.Sprintf("aging-%s-%s", kind, rep.AsOf), html, err
	}
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
