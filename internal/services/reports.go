package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/nepali"
	"hisab/internal/reports"
	"hisab/internal/sheets"
	"hisab/internal/storage"
)

// PartyStatement is a party's account split by fiscal year together with its
// current balance.
type PartyStatement struct {
	Party   core.Party
	Balance ledger.Balance
	Years   []ledger.FiscalYearLedger
}

// Statement builds the fiscal-year ledger of one party. through limits the
// last year reported ("" means the year of the latest transaction).
func (s *AccountingService) Statement(ctx context.Context, kind core.PartyKind, id int64, through string, fillGaps bool) (PartyStatement, error) {
	key := fmt.Sprintf("statement:%s:%d:%s:%t", kind, id, through, fillGaps)
	if v, ok := s.cached(key); ok {
		if st, ok := v.(PartyStatement); ok {
			return st, nil
		}
	}

	party, err := s.storage.GetParty(ctx, kind, id)
	if err != nil {
		return PartyStatement{}, err
	}
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{PartyKind: kind, PartyID: id})
	if err != nil {
		return PartyStatement{}, err
	}
	years, err := ledger.GroupByFiscalYear(party, txns, ledger.Options{FillGaps: fillGaps, Through: through})
	if err != nil {
		return PartyStatement{}, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}

	st := PartyStatement{
		Party:   party,
		Balance: ledger.PartyBalance(party, txns, core.Date{}),
		Years:   years,
	}
	s.store(key, st)
	return st, nil
}

// AgingReport ages the open balances of every active party of kind as of
// asOf (today when zero).
func (s *AccountingService) AgingReport(ctx context.Context, kind core.PartyKind, asOf core.Date) (ledger.AgingReport, error) {
	if !kind.Valid() {
		return ledger.AgingReport{}, core.ErrInvalidKind
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	key := fmt.Sprintf("aging:%s:%s", kind, asOf)
	if v, ok := s.cached(key); ok {
		if r, ok := v.(ledger.AgingReport); ok {
			return r, nil
		}
	}

	var (
		parties []core.Party
		txns    []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		parties, err = s.storage.ListParties(gctx, storage.PartyFilter{Kind: kind})
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = s.storage.ListTransactions(gctx, storage.TransactionFilter{PartyKind: kind, To: asOf})
		return err
	})
	if err := g.Wait(); err != nil {
		return ledger.AgingReport{}, err
	}

	report := ledger.Aging(parties, txns, asOf)
	s.store(key, report)
	return report, nil
}

// Summary aggregates transactions by period.
func (s *AccountingService) Summary(ctx context.Context, f reports.Filter) ([]reports.SummaryRow, error) {
	if f.Granularity != "" && !f.Granularity.Valid() {
		return nil, fmt.Errorf("%w: unknown granularity %q", core.ErrValidation, f.Granularity)
	}
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{Types: f.Types, From: f.From, To: f.To})
	if err != nil {
		return nil, err
	}
	return reports.Summarize(txns, f)
}

func (s *AccountingService) DayBook(ctx context.Context, day core.Date) (reports.DayBook, error) {
	if day.IsZero() {
		day = s.today()
	}
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{From: day, To: day})
	if err != nil {
		return reports.DayBook{}, err
	}
	return reports.BuildDayBook(txns, day), nil
}

// ProfitAndLoss reports the trading result of a fiscal year ("" for the
// current one).
func (s *AccountingService) ProfitAndLoss(ctx context.Context, fiscalYear string) (reports.ProfitLoss, error) {
	fy, err := s.fiscalYear(fiscalYear)
	if err != nil {
		return reports.ProfitLoss{}, err
	}
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{FiscalYear: fy.Label})
	if err != nil {
		return reports.ProfitLoss{}, err
	}
	return reports.ProfitAndLoss(txns, fy), nil
}

func (s *AccountingService) TopServices(ctx context.Context, f reports.Filter, limit int) ([]reports.ServiceRow, error) {
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{
		Types:     []core.TransactionType{core.Sale, core.SalesReturn},
		From:      f.From,
		To:        f.To,
		WithItems: true,
	})
	if err != nil {
		return nil, err
	}
	return reports.TopServices(txns, f, limit), nil
}

// Dashboard loads parties and transactions concurrently and computes the
// headline figures.
func (s *AccountingService) Dashboard(ctx context.Context) (reports.Dashboard, error) {
	key := "dashboard:" + s.today().String()
	if v, ok := s.cached(key); ok {
		if d, ok := v.(reports.Dashboard); ok {
			return d, nil
		}
	}

	var (
		parties []core.Party
		txns    []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		parties, err = s.storage.ListParties(gctx, storage.PartyFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = s.storage.ListTransactions(gctx, storage.TransactionFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return reports.Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	d := reports.BuildDashboard(parties, txns, s.now())
	s.store(key, d)
	return d, nil
}

// FiscalYearRows totals a fiscal year per Nepali month and transaction type,
// in month order, for spreadsheet export.
func (s *AccountingService) FiscalYearRows(ctx context.Context, fiscalYear string) (string, []sheets.Row, error) {
	fy, err := s.fiscalYear(fiscalYear)
	if err != nil {
		return "", nil, err
	}
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{FiscalYear: fy.Label})
	if err != nil {
		return "", nil, err
	}

	type cell struct {
		month string
		typ   core.TransactionType
	}
	found := make(map[cell]reports.SummaryRow)
	var months []reports.SummaryRow
	seen := make(map[string]bool)
	for _, typ := range transactionTypes {
		rows, err := reports.Summarize(txns, reports.Filter{Types: []core.TransactionType{typ}, Granularity: reports.ByBSMonth})
		if err != nil {
			return "", nil, err
		}
		for _, r := range rows {
			found[cell{r.Period, typ}] = r
			if !seen[r.Period] {
				seen[r.Period] = true
				months = append(months, r)
			}
		}
	}
	slices.SortFunc(months, func(a, b reports.SummaryRow) int { return a.Start.Compare(b.Start.Time) })

	var out []sheets.Row
	for _, m := range months {
		for _, typ := range transactionTypes {
			r, ok := found[cell{m.Period, typ}]
			if !ok {
				continue
			}
			out = append(out, sheets.Row{
				Period:   r.Period,
				Month:    r.Label,
				Type:     typ,
				Count:    r.Count,
				SubTotal: r.SubTotal,
				Discount: r.Discount,
				VAT:      r.VAT,
				Total:    r.Total,
				Settled:  r.Settled,
			})
		}
	}
	return fy.Label, out, nil
}

// ExportFiscalYear pushes the fiscal-year summary to exp.
func (s *AccountingService) ExportFiscalYear(ctx context.Context, exp sheets.LedgerExporter, fiscalYear string) (string, error) {
	label, rows, err := s.FiscalYearRows(ctx, fiscalYear)
	if err != nil {
		return "", err
	}
	ref, err := exp.ExportFiscalYear(ctx, label, rows)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", label, err)
	}
	slog.InfoContext(ctx, "Fiscal year exported", "fiscal_year", label, "rows", len(rows), "ref", ref)
	return ref, nil
}

var transactionTypes = []core.TransactionType{
	core.Sale, core.SalesReturn, core.Purchase, core.PurchaseReturn, core.PaymentIn, core.PaymentOut,
}

// fiscalYear parses label, defaulting to the current fiscal year.
func (s *AccountingService) fiscalYear(label string) (nepali.FiscalYear, error) {
	var (
		fy  nepali.FiscalYear
		err error
	)
	if label == "" {
		fy, err = nepali.FiscalYearOf(s.today().Time)
	} else {
		fy, err = nepali.ParseFiscalYear(label)
	}
	if err != nil {
		return nepali.FiscalYear{}, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return fy, nil
}

func (s *AccountingService) cached(key string) (any, bool) {
	if s.reports == nil {
		return nil, false
	}
	return s.reports.Get(key)
}

func (s *AccountingService) store(key string, v any) {
	if s.reports != nil {
		s.reports.Set(key, v)
	}
}
