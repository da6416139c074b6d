// Package sheets defines the outbound port used to publish fiscal-year
// summaries to a spreadsheet.
package sheets

import (
	"context"

	"hisab/internal/core"
)

// Row is one line of a fiscal-year summary: the totals of one transaction
// type within one Nepali month.
type Row struct {
	Period   string
	Month    string
	Type     core.TransactionType
	Count    int
	SubTotal core.Money
	Discount core.Money
	VAT      core.Money
	Total    core.Money
	Settled  core.Money
}

// Header is the column layout every adapter writes.
var Header = []string{"Period", "Month", "Type", "Count", "Sub total", "Discount", "VAT", "Total", "Settled"}

type LedgerExporter interface {
	// ExportFiscalYear replaces the summary for fiscalYear (e.g. "2081/82")
	// and returns a reference to where it was written.
	ExportFiscalYear(ctx context.Context, fiscalYear string, rows []Row) (ref string, err error)
}

// SheetTitle is the tab name used for a fiscal year. Slashes are not
// allowed in range references, so "2081/82" becomes "FY 2081-82".
func SheetTitle(fiscalYear string) string {
	b := []byte(fiscalYear)
	for i, c := range b {
		if c == '/' {
			b[i] = '-'
		}
	}
	return "FY " + string(b)
}

// Totals sums rows into one line labelled "Total".
func Totals(rows []Row) Row {
	t := Row{Period: "Total"}
	for _, r := range rows {
		t.Count += r.Count
		t.SubTotal = t.SubTotal.Add(r.SubTotal)
		t.Discount = t.Discount.Add(r.Discount)
		t.VAT = t.VAT.Add(r.VAT)
		t.Total = t.Total.Add(r.Total)
		t.Settled = t.Settled.Add(r.Settled)
	}
	return t
}
