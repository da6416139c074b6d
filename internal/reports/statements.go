package reports

import (
	"cmp"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/nepali"
)

type (
	DayBook struct {
		Date      core.Date
		BSDate    string
		Entries   []core.Transaction
		Sales     core.Money
		Purchases core.Money
		CashIn    core.Money
		CashOut   core.Money
	}

	ProfitLoss struct {
		FiscalYear      string
		Sales           core.Money
		SalesReturns    core.Money
		NetSales        core.Money
		Purchases       core.Money
		PurchaseReturns core.Money
		NetPurchases    core.Money
		GrossProfit     core.Money
		OutputVAT       core.Money
		InputVAT        core.Money
		VATPayable      core.Money
	}

	ServiceRow struct {
		ServiceID *int64
		Name      string
		Quantity  decimal.Decimal
		Amount    core.Money
	}

	Dashboard struct {
		Customers    int
		Suppliers    int
		FiscalYear   string
		TodaySales   core.Money
		MonthSales   core.Money
		FYSales      core.Money
		FYPurchases  core.Money
		Receivable   core.Money
		Payable      core.Money
		Advances     core.Money
		Transactions int
	}
)

// BuildDayBook lists the transactions dated d and totals the cash that moved.
func BuildDayBook(txns []core.Transaction, d core.Date) DayBook {
	book := DayBook{Date: d}
	if bs, err := nepali.ToBS(d.Time); err == nil {
		book.BSDate = bs.String()
	}
	for _, tx := range txns {
		if !tx.Date.Equal(d.Time) {
			continue
		}
		book.Entries = append(book.Entries, tx)
		switch tx.Type {
		case core.Sale:
			book.Sales = book.Sales.Add(tx.Total)
			book.CashIn = book.CashIn.Add(tx.PaidAmount)
		case core.Purchase:
			book.Purchases = book.Purchases.Add(tx.Total)
			book.CashOut = book.CashOut.Add(tx.PaidAmount)
		case core.PaymentIn:
			book.CashIn = book.CashIn.Add(tx.Total)
		case core.PaymentOut:
			book.CashOut = book.CashOut.Add(tx.Total)
		}
	}
	sort.SliceStable(book.Entries, func(i, j int) bool { return book.Entries[i].ID < book.Entries[j].ID })
	return book
}

// ProfitAndLoss computes trading results and the VAT position for fy.
// Amounts are taken net of VAT.
func ProfitAndLoss(txns []core.Transaction, fy nepali.FiscalYear) ProfitLoss {
	pl := ProfitLoss{FiscalYear: fy.Label}
	var outReturns, inReturns core.Money
	for _, tx := range txns {
		if !fy.Contains(tx.Date.Time) {
			continue
		}
		net := tx.Total.Sub(tx.VAT)
		switch tx.Type {
		case core.Sale:
			pl.Sales = pl.Sales.Add(net)
			pl.OutputVAT = pl.OutputVAT.Add(tx.VAT)
		case core.SalesReturn:
			pl.SalesReturns = pl.SalesReturns.Add(net)
			outReturns = outReturns.Add(tx.VAT)
		case core.Purchase:
			pl.Purchases = pl.Purchases.Add(net)
			pl.InputVAT = pl.InputVAT.Add(tx.VAT)
		case core.PurchaseReturn:
			pl.PurchaseReturns = pl.PurchaseReturns.Add(net)
			inReturns = inReturns.Add(tx.VAT)
		}
	}
	pl.NetSales = pl.Sales.Sub(pl.SalesReturns)
	pl.NetPurchases = pl.Purchases.Sub(pl.PurchaseReturns)
	pl.GrossProfit = pl.NetSales.Sub(pl.NetPurchases)
	pl.OutputVAT = pl.OutputVAT.Sub(outReturns)
	pl.InputVAT = pl.InputVAT.Sub(inReturns)
	pl.VATPayable = pl.OutputVAT.Sub(pl.InputVAT)
	return pl
}

// TopServices ranks sold line items inside f by amount, net of sales
// returns. Lines without a service are grouped by description.
func TopServices(txns []core.Transaction, f Filter, limit int) []ServiceRow {
	type key struct {
		id   int64
		name string
	}
	rows := make(map[key]*ServiceRow)
	for _, tx := range txns {
		if (tx.Type != core.Sale && tx.Type != core.SalesReturn) || !f.Match(tx) {
			continue
		}
		for _, it := range tx.Items {
			k := key{name: it.Description}
			if it.ServiceID != nil {
				k = key{id: *it.ServiceID}
			}
			r, ok := rows[k]
			if !ok {
				r = &ServiceRow{ServiceID: it.ServiceID, Name: it.Description, Quantity: decimal.Zero}
				rows[k] = r
			}
			if tx.Type == core.SalesReturn {
				r.Quantity = r.Quantity.Sub(it.Quantity)
				r.Amount = r.Amount.Sub(it.Amount)
				continue
			}
			r.Quantity = r.Quantity.Add(it.Quantity)
			r.Amount = r.Amount.Add(it.Amount)
		}
	}

	out := make([]ServiceRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b ServiceRow) int {
		if c := cmp.Compare(b.Amount.Paisa, a.Amount.Paisa); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// BuildDashboard computes the headline figures as of now.
func BuildDashboard(parties []core.Party, txns []core.Transaction, now time.Time) Dashboard {
	today := core.DateOf(now)
	d := Dashboard{Transactions: len(txns)}

	fy, fyErr := nepali.FiscalYearOf(today.Time)
	if fyErr == nil {
		d.FiscalYear = fy.Label
	}
	bsToday, bsErr := nepali.ToBS(today.Time)

	for _, p := range parties {
		switch p.Kind {
		case core.Customer:
			d.Customers++
		case core.Supplier:
			d.Suppliers++
		}
	}

	for _, tx := range txns {
		switch tx.Type {
		case core.Sale:
			if tx.Date.Equal(today.Time) {
				d.TodaySales = d.TodaySales.Add(tx.Total)
			}
			if bsErr == nil {
				if bs, err := nepali.ToBS(tx.Date.Time); err == nil && bs.Year == bsToday.Year && bs.Month == bsToday.Month {
					d.MonthSales = d.MonthSales.Add(tx.Total)
				}
			}
			if fyErr == nil && fy.Contains(tx.Date.Time) {
				d.FYSales = d.FYSales.Add(tx.Total)
			}
		case core.Purchase:
			if fyErr == nil && fy.Contains(tx.Date.Time) {
				d.FYPurchases = d.FYPurchases.Add(tx.Total)
			}
		}
	}

	balances := ledger.Balances(parties, txns, today)
	for i, p := range parties {
		b := balances[i]
		if b.Amount.Paisa < 0 {
			d.Advances = d.Advances.Add(b.Amount.Abs())
			continue
		}
		if p.Kind == core.Customer {
			d.Receivable = d.Receivable.Add(b.Amount)
		} else {
			d.Payable = d.Payable.Add(b.Amount)
		}
	}
	return d
}
