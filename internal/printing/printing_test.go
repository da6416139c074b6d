package printing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hisab/internal/config"
	"hisab/internal/core"
	"hisab/internal/ledger"
)

var generated = time.Date(2024, 8, 1, 9, 30, 0, 0, time.UTC)

func party() core.Party {
	return core.Party{ID: 1, Kind: core.Customer, Name: "Ram & Sons", PAN: "301234567", Address: "Pokhara", Active: true}
}

func sale() core.Transaction {
	return core.Transaction{
		ID: 1, Number: "SI-2081/82-0001", Type: core.Sale, PartyID: 1, PartyKind: core.Customer,
		Date: core.NewDate(2024, 7, 16), FiscalYear: "2081/82",
		SubTotal: core.Rupees(150000), TaxableAmount: core.Rupees(150000), VAT: core.Rupees(19500), Total: core.Rupees(169500),
		PaidAmount: core.Rupees(50000), PaymentMode: core.Cash,
		Items: []core.TransactionItem{
			{Description: "Web design", Quantity: decimal.NewFromInt(3), Rate: core.Rupees(50000), Amount: core.Rupees(150000), Taxable: true},
		},
	}
}

func TestInvoiceHTML(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)

	html, err := r.InvoiceHTML(Invoice{Company: config.DefaultCompany(), Party: party(), Transaction: sale(), Generated: generated})
	require.NoError(t, err)

	for _, want := range []string{
		"Tax invoice SI-2081/82-0001",
		"Ram &amp; Sons",
		"2081-04-01",
		"1,69,500.00",
		"19,500.00",
		"Web design",
		"Generated 2024-08-01 09:30",
	} {
		require.Contains(t, html, want)
	}
	require.False(t, r.CanPDF())
}

func TestStatementHTML(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)

	p := party()
	txns := []core.Transaction{sale()}
	years, err := ledger.GroupByFiscalYear(p, txns, ledger.Options{})
	require.NoError(t, err)

	html, err := r.StatementHTML(Statement{
		Company: config.DefaultCompany(), Party: p, Years: years,
		Balance: ledger.PartyBalance(p, txns, core.Date{}), Generated: generated,
	})
	require.NoError(t, err)
	require.Contains(t, html, "Fiscal year 2081/82")
	require.Contains(t, html, "Opening balance")
	require.Contains(t, html, "Closing balance")
	require.Contains(t, html, "Sales invoice")
	require.Contains(t, html, "Balance: 1,19,500.00 DR")
}

func TestAgingHTML(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)

	p := party()
	p.CreditDays = 30
	report := ledger.Aging([]core.Party{p}, []core.Transaction{sale()}, core.NewDate(2024, 10, 1))

	html, err := r.AgingHTML(Aging{Company: config.DefaultCompany(), Report: report, Generated: generated})
	require.NoError(t, err)
	require.Contains(t, html, "Receivable aging as of 2024-10-01")
	require.Contains(t, html, "<th class=\"num\">31-60</th>")
	require.Contains(t, html, "1,19,500.00")
}

func TestPDFWithoutConverter(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)
	_, err = r.PDF(context.Background(), "<html></html>")
	require.ErrorIs(t, err, ErrPDFUnavailable)
}

func TestGotenbergRenderHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/forms/chromium/convert/html":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f, hdr, err := r.FormFile("files")
			if err != nil || hdr.Filename != "index.html" {
				http.Error(w, "missing index.html", http.StatusBadRequest)
				return
			}
			body, _ := io.ReadAll(f)
			if !strings.Contains(string(body), "<h1>") || r.FormValue("paperWidth") != "8.27" {
				http.Error(w, "unexpected form", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.7 test"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewGotenberg(srv.URL + "/")
	require.NoError(t, g.Ping(context.Background()))

	r, err := NewRenderer(g)
	require.NoError(t, err)
	require.True(t, r.CanPDF())

	pdf, err := r.PDF(context.Background(), "<html><body><h1>Hisab</h1></body></html>")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(pdf), "%PDF"))
}

func TestGotenbergError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewGotenberg(srv.URL).RenderHTML(context.Background(), "<html></html>")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 503")
	require.Contains(t, err.Error(), "chromium crashed")
	require.False(t, errors.Is(err, ErrPDFUnavailable))
}
