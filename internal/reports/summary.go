// Package reports aggregates transactions into period summaries, the day
// book, profit and loss and the dashboard figures.
package reports

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"hisab/internal/core"
	"hisab/internal/nepali"
)

type Granularity string

const (
	ByDay        Granularity = "day"
	ByBSMonth    Granularity = "bs_month"
	ByFiscalYear Granularity = "fiscal_year"
)

func (g Granularity) Valid() bool {
	return g == ByDay || g == ByBSMonth || g == ByFiscalYear
}

type (
	// Filter selects transactions by type and an inclusive date range. Empty
	// fields do not filter.
	Filter struct {
		Types       []core.TransactionType
		From        core.Date
		To          core.Date
		Granularity Granularity
	}

	SummaryRow struct {
		Period   string
		Label    string
		Start    core.Date
		Count    int
		SubTotal core.Money
		Discount core.Money
		VAT      core.Money
		Total    core.Money
		Settled  core.Money
	}
)

// Match reports whether tx passes the filter.
func (f Filter) Match(tx core.Transaction) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, tx.Type) {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To.Time) {
		return false
	}
	return true
}

// Summarize buckets the matching transactions by period, oldest first.
func Summarize(txns []core.Transaction, f Filter) ([]SummaryRow, error) {
	if f.Granularity == "" {
		f.Granularity = ByDay
	}
	if !f.Granularity.Valid() {
		return nil, fmt.Errorf("%w: unknown granularity %q", core.ErrValidation, f.Granularity)
	}

	rows := make(map[string]*SummaryRow)
	for _, tx := range txns {
		if !f.Match(tx) {
			continue
		}
		key, label, start, err := period(tx.Date, f.Granularity)
		if err != nil {
			return nil, err
		}
		r, ok := rows[key]
		if !ok {
			r = &SummaryRow{Period: key, Label: label, Start: start}
			rows[key] = r
		}
		r.Count++
		r.SubTotal = r.SubTotal.Add(tx.SubTotal)
		r.Discount = r.Discount.Add(tx.Discount)
		r.VAT = r.VAT.Add(tx.VAT)
		r.Total = r.Total.Add(tx.Total)
		r.Settled = r.Settled.Add(Settled(tx))
	}

	out := make([]SummaryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start.Time) })
	return out, nil
}

// Settled is the cash that changed hands with the transaction itself.
func Settled(tx core.Transaction) core.Money {
	switch tx.Type {
	case core.Sale, core.Purchase:
		return tx.PaidAmount
	case core.PaymentIn, core.PaymentOut:
		return tx.Total
	}
	return core.Money{}
}

func period(d core.Date, g Granularity) (key, label string, start core.Date, err error) {
	switch g {
	case ByBSMonth:
		bs, err := nepali.ToBS(d.Time)
		if err != nil {
			return "", "", core.Date{}, fmt.Errorf("bs month of %s: %w", d, err)
		}
		first := nepali.BSDate{Year: bs.Year, Month: bs.Month, Day: 1}
		t, err := nepali.ToAD(first)
		if err != nil {
			return "", "", core.Date{}, err
		}
		return fmt.Sprintf("%04d-%02d", bs.Year, bs.Month), fmt.Sprintf("%s %d", bs.MonthName(), bs.Year), core.DateOf(t), nil
	case ByFiscalYear:
		fy, err := nepali.FiscalYearOf(d.Time)
		if err != nil {
			return "", "", core.Date{}, fmt.Errorf("fiscal year of %s: %w", d, err)
		}
		return fy.Label, "FY " + fy.Label, core.DateOf(fy.Start), nil
	default:
		bs := ""
		if b, err := nepali.ToBS(d.Time); err == nil {
			bs = b.String()
		}
		return d.Format(time.DateOnly), bs, d, nil
	}
}
