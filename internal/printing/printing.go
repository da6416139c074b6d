// Package printing renders invoices, party statements and aging reports as
// HTML and converts them to PDF.
package printing

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"hisab/internal/config"
	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/nepali"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrPDFUnavailable = errors.New("printing: no PDF converter configured")

// Converter turns a complete HTML document into PDF bytes.
type Converter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

type (
	Invoice struct {
		Title       string
		Company     config.Company
		Party       core.Party
		Transaction core.Transaction
		Generated   time.Time
	}

	Statement struct {
		Title     string
		Company   config.Company
		Party     core.Party
		Balance   ledger.Balance
		Years     []ledger.FiscalYearLedger
		Generated time.Time
	}

	Aging struct {
		Title     string
		Company   config.Company
		Report    ledger.AgingReport
		Buckets   []ledger.Bucket
		Generated time.Time
	}
)

var typeLabels = map[core.TransactionType]string{
	core.Sale:           "Sales invoice",
	core.Purchase:       "Purchase invoice",
	core.PaymentIn:      "Receipt",
	core.PaymentOut:     "Payment",
	core.SalesReturn:    "Sales return",
	core.PurchaseReturn: "Purchase return",
}

// Label is the printed name of a transaction type.
func Label(t core.TransactionType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

var funcs = template.FuncMap{
	"money": func(m core.Money) string { return m.String() },
	"nz": func(m core.Money) string {
		if m.IsZero() {
			return ""
		}
		return m.String()
	},
	"date": func(d core.Date) string { return d.String() },
	"bs": func(d core.Date) string {
		b, err := nepali.ToBS(d.Time)
		if err != nil {
			return "-"
		}
		return b.String()
	},
	"bucket": func(b ledger.Buckets, k ledger.Bucket) core.Money { return b[k] },
	"label":  Label,
	"inc":    func(i int) int { return i + 1 },
}

type Renderer struct {
	tmpl *template.Template
	pdf  Converter
	now  func() time.Time
}

// NewRenderer parses the embedded templates. pdf may be nil, in which case
// only HTML output is available.
func NewRenderer(pdf Converter) (*Renderer, error) {
	tmpl, err := template.New("print").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse print templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, pdf: pdf, now: time.Now}, nil
}

// CanPDF reports whether a converter is configured.
func (r *Renderer) CanPDF() bool {
	return r.pdf != nil
}

func (r *Renderer) InvoiceHTML(inv Invoice) (string, error) {
	if inv.Title == "" {
		inv.Title = Label(inv.Transaction.Type)
		if inv.Transaction.Type == core.Sale && inv.Transaction.VAT.Paisa > 0 {
			inv.Title = "Tax invoice"
		}
	}
	if inv.Generated.IsZero() {
		inv.Generated = r.now()
	}
	return r.execute("invoice", inv)
}

func (r *Renderer) StatementHTML(st Statement) (string, error) {
	if st.Title == "" {
		st.Title = "Statement of account"
	}
	if st.Generated.IsZero() {
		st.Generated = r.now()
	}
	return r.execute("statement", st)
}

func (r *Renderer) AgingHTML(a Aging) (string, error) {
	if a.Title == "" {
		a.Title = "Receivable aging"
	}
	if len(a.Buckets) == 0 {
		a.Buckets = ledger.BucketOrder
	}
	if a.Generated.IsZero() {
		a.Generated = r.now()
	}
	return r.execute("aging", a)
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// PDF converts an HTML document.
func (r *Renderer) PDF(ctx context.Context, html string) ([]byte, error) {
	if r.pdf == nil {
		return nil, ErrPDFUnavailable
	}
	out, err := r.pdf.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("convert to pdf: %w", err)
	}
	return out, nil
}
