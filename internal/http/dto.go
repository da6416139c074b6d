package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/nepali"
	"hisab/internal/reports"
	"hisab/internal/services"
)

// Amounts travel as decimal strings ("1695.00") so that clients never see
// float rounding. Dates are YYYY-MM-DD.

type (
	partyRequest struct {
		Name           string `json:"name" validate:"required,max=200"`
		Phone          string `json:"phone" validate:"max=40"`
		Email          string `json:"email" validate:"omitempty,email"`
		Address        string `json:"address" validate:"max=300"`
		PAN            string `json:"pan" validate:"max=20"`
		OpeningBalance string `json:"opening_balance"`
		OpeningType    string `json:"opening_type" validate:"omitempty,oneof=DR CR"`
		OpeningDate    string `json:"opening_date" validate:"omitempty,datetime=2006-01-02"`
		CreditDays     int    `json:"credit_days" validate:"gte=0,lte=365"`
		Active         *bool  `json:"active"`
	}

	serviceRequest struct {
		Name        string `json:"name" validate:"required,max=200"`
		Description string `json:"description" validate:"max=500"`
		Rate        string `json:"rate" validate:"required"`
		Unit        string `json:"unit" validate:"max=20"`
		Taxable     bool   `json:"taxable"`
		Active      *bool  `json:"active"`
	}

	itemRequest struct {
		ServiceID   *int64 `json:"service_id" validate:"omitempty,gt=0"`
		Description string `json:"description" validate:"max=300"`
		Quantity    string `json:"quantity"`
		Rate        string `json:"rate"`
		Taxable     bool   `json:"taxable"`
	}

	transactionRequest struct {
		Type        string        `json:"type" validate:"required,oneof=sale purchase payment_in payment_out sales_return purchase_return"`
		PartyID     int64         `json:"party_id" validate:"required,gt=0"`
		PartyKind   string        `json:"party_kind" validate:"omitempty,oneof=customer supplier"`
		Date        string        `json:"date" validate:"omitempty,datetime=2006-01-02"`
		Discount    string        `json:"discount"`
		VAT         string        `json:"vat"`
		Total       string        `json:"total"`
		PaidAmount  string        `json:"paid_amount"`
		PaymentMode string        `json:"payment_mode" validate:"omitempty,oneof=cash bank cheque credit"`
		Reference   string        `json:"reference" validate:"max=100"`
		Notes       string        `json:"notes" validate:"max=1000"`
		Items       []itemRequest `json:"items" validate:"dive"`
	}

	settingRequest struct {
		Value string `json:"value"`
	}
)

func (req partyRequest) toParty(kind core.PartyKind) (core.Party, error) {
	opening, err := parseAmount("opening_balance", req.OpeningBalance)
	if err != nil {
		return core.Party{}, err
	}
	openingDate, err := parseOptionalDate("opening_date", req.OpeningDate)
	if err != nil {
		return core.Party{}, err
	}
	p := core.Party{
		Kind:           kind,
		Name:           sanitizeInput(req.Name),
		Phone:          sanitizeInput(req.Phone),
		Email:          sanitizeInput(req.Email),
		Address:        sanitizeInput(req.Address),
		PAN:            strings.ToUpper(sanitizeInput(req.PAN)),
		OpeningBalance: opening,
		OpeningType:    core.BalanceType(req.OpeningType),
		OpeningDate:    openingDate,
		CreditDays:     req.CreditDays,
		Active:         req.Active == nil || *req.Active,
	}
	return p, nil
}

func (req serviceRequest) toService() (core.Service, error) {
	rate, err := parseAmount("rate", req.Rate)
	if err != nil {
		return core.Service{}, err
	}
	return core.Service{
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		Rate:        rate,
		Unit:        sanitizeInput(req.Unit),
		Taxable:     req.Taxable,
		Active:      req.Active == nil || *req.Active,
	}, nil
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	t := core.Transaction{
		Type:        core.TransactionType(req.Type),
		PartyID:     req.PartyID,
		PartyKind:   core.PartyKind(req.PartyKind),
		PaymentMode: core.PaymentMode(req.PaymentMode),
		Reference:   sanitizeInput(req.Reference),
		Notes:       sanitizeInput(req.Notes),
	}
	var err error
	if t.Date, err = parseOptionalDate("date", req.Date); err != nil {
		return t, err
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *core.Money
	}{
		{"discount", req.Discount, &t.Discount},
		{"vat", req.VAT, &t.VAT},
		{"total", req.Total, &t.Total},
		{"paid_amount", req.PaidAmount, &t.PaidAmount},
	} {
		if *f.dst, err = parseAmount(f.name, f.raw); err != nil {
			return t, err
		}
	}
	if len(req.Items) == 0 {
		t.SubTotal = t.Total.Sub(t.VAT).Add(t.Discount)
		return t, nil
	}
	for i, ir := range req.Items {
		it, err := ir.toItem()
		if err != nil {
			return t, fmt.Errorf("item %d: %w", i+1, err)
		}
		t.Items = append(t.Items, it)
	}
	return t, nil
}

func (ir itemRequest) toItem() (core.TransactionItem, error) {
	qty := decimal.NewFromInt(1)
	if q := sanitizeInput(ir.Quantity); q != "" {
		d, err := decimal.NewFromString(q)
		if err != nil {
			return core.TransactionItem{}, fmt.Errorf("%w: quantity %q", core.ErrInvalidQuantity, q)
		}
		qty = d
	}
	rate, err := parseAmount("rate", ir.Rate)
	if err != nil {
		return core.TransactionItem{}, err
	}
	return core.TransactionItem{
		ServiceID:   ir.ServiceID,
		Description: sanitizeInput(ir.Description),
		Quantity:    qty,
		Rate:        rate,
		Taxable:     ir.Taxable,
	}, nil
}

type (
	partyView struct {
		ID             int64  `json:"id"`
		Kind           string `json:"kind"`
		Name           string `json:"name"`
		Phone          string `json:"phone,omitempty"`
		Email          string `json:"email,omitempty"`
		Address        string `json:"address,omitempty"`
		PAN            string `json:"pan,omitempty"`
		OpeningBalance string `json:"opening_balance"`
		OpeningType    string `json:"opening_type,omitempty"`
		OpeningDate    string `json:"opening_date,omitempty"`
		CreditDays     int    `json:"credit_days"`
		Active         bool   `json:"active"`
	}

	serviceView struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Rate        string `json:"rate"`
		Unit        string `json:"unit,omitempty"`
		Taxable     bool   `json:"taxable"`
		Active      bool   `json:"active"`
	}

	itemView struct {
		ID          int64  `json:"id"`
		ServiceID   *int64 `json:"service_id,omitempty"`
		Description string `json:"description"`
		Quantity    string `json:"quantity"`
		Rate        string `json:"rate"`
		Amount      string `json:"amount"`
		Taxable     bool   `json:"taxable"`
	}

	transactionView struct {
		ID            int64      `json:"id"`
		Number        string     `json:"number"`
		Type          string     `json:"type"`
		PartyID       int64      `json:"party_id"`
		PartyKind     string     `json:"party_kind"`
		PartyName     string     `json:"party_name,omitempty"`
		Date          string     `json:"date"`
		BSDate        string     `json:"bs_date,omitempty"`
		FiscalYear    string     `json:"fiscal_year"`
		SubTotal      string     `json:"sub_total"`
		Discount      string     `json:"discount"`
		TaxableAmount string     `json:"taxable_amount"`
		VAT           string     `json:"vat"`
		Total         string     `json:"total"`
		PaidAmount    string     `json:"paid_amount"`
		PaymentMode   string     `json:"payment_mode"`
		Reference     string     `json:"reference,omitempty"`
		Notes         string     `json:"notes,omitempty"`
		Items         []itemView `json:"items,omitempty"`
	}

	balanceView struct {
		Amount string `json:"amount"`
		Type   string `json:"type"`
	}

	entryView struct {
		Kind        string `json:"kind"`
		Date        string `json:"date"`
		BSDate      string `json:"bs_date"`
		Number      string `json:"number,omitempty"`
		Type        string `json:"type,omitempty"`
		TxID        *int64 `json:"transaction_id,omitempty"`
		Debit       string `json:"debit"`
		Credit      string `json:"credit"`
		Balance     string `json:"balance"`
		BalanceType string `json:"balance_type"`
	}

	fiscalYearView struct {
		FiscalYear  string      `json:"fiscal_year"`
		Start       string      `json:"start"`
		End         string      `json:"end"`
		Opening     balanceView `json:"opening"`
		Closing     balanceView `json:"closing"`
		TotalDebit  string      `json:"total_debit"`
		TotalCredit string      `json:"total_credit"`
		Entries     []entryView `json:"entries"`
	}

	statementView struct {
		Party   partyView        `json:"party"`
		Balance balanceView      `json:"balance"`
		Years   []fiscalYearView `json:"years"`
	}

	openItemView struct {
		Date        string `json:"date"`
		DueDate     string `json:"due_date"`
		Number      string `json:"number,omitempty"`
		Original    string `json:"original"`
		Outstanding string `json:"outstanding"`
		DaysOverdue int    `json:"days_overdue"`
		Bucket      string `json:"bucket"`
	}

	agingRowView struct {
		PartyID   int64             `json:"party_id"`
		PartyKind string            `json:"party_kind"`
		Name      string            `json:"name"`
		Buckets   map[string]string `json:"buckets"`
		Total     string            `json:"total"`
		Advance   string            `json:"advance"`
		Items     []openItemView    `json:"items,omitempty"`
	}

	agingView struct {
		AsOf    string            `json:"as_of"`
		Buckets []string          `json:"bucket_order"`
		Rows    []agingRowView    `json:"rows"`
		Totals  map[string]string `json:"totals"`
		Total   string            `json:"total"`
		Advance string            `json:"advance"`
	}

	summaryRowView struct {
		Period   string `json:"period"`
		Label    string `json:"label"`
		Start    string `json:"start"`
		Count    int    `json:"count"`
		SubTotal string `json:"sub_total"`
		Discount string `json:"discount"`
		VAT      string `json:"vat"`
		Total    string `json:"total"`
		Settled  string `json:"settled"`
	}

	dayBookView struct {
		Date      string            `json:"date"`
		BSDate    string            `json:"bs_date"`
		Entries   []transactionView `json:"entries"`
		Sales     string            `json:"sales"`
		Purchases string            `json:"purchases"`
		CashIn    string            `json:"cash_in"`
		CashOut   string            `json:"cash_out"`
	}

	profitLossView struct {
		FiscalYear      string `json:"fiscal_year"`
		Sales           string `json:"sales"`
		SalesReturns    string `json:"sales_returns"`
		NetSales        string `json:"net_sales"`
		Purchases       string `json:"purchases"`
		PurchaseReturns string `json:"purchase_returns"`
		NetPurchases    string `json:"net_purchases"`
		GrossProfit     string `json:"gross_profit"`
		OutputVAT       string `json:"output_vat"`
		InputVAT        string `json:"input_vat"`
		VATPayable      string `json:"vat_payable"`
	}

	serviceRowView struct {
		ServiceID *int64 `json:"service_id,omitempty"`
		Name      string `json:"name"`
		Quantity  string `json:"quantity"`
		Amount    string `json:"amount"`
	}

	dashboardView struct {
		Customers    int    `json:"customers"`
		Suppliers    int    `json:"suppliers"`
		FiscalYear   string `json:"fiscal_year"`
		TodaySales   string `json:"today_sales"`
		MonthSales   string `json:"month_sales"`
		FYSales      string `json:"fy_sales"`
		FYPurchases  string `json:"fy_purchases"`
		Receivable   string `json:"receivable"`
		Payable      string `json:"payable"`
		Advances     string `json:"advances"`
		Transactions int    `json:"transactions"`
	}

	activityView struct {
		ID        int64     `json:"id"`
		Action    string    `json:"action"`
		Entity    string    `json:"entity"`
		EntityID  int64     `json:"entity_id,omitempty"`
		Details   string    `json:"details,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
)

func toPartyView(p core.Party) partyView {
	return partyView{
		ID:             p.ID,
		Kind:           string(p.Kind),
		Name:           p.Name,
		Phone:          p.Phone,
		Email:          p.Email,
		Address:        p.Address,
		PAN:            p.PAN,
		OpeningBalance: amount(p.OpeningBalance),
		OpeningType:    string(p.OpeningType),
		OpeningDate:    p.OpeningDate.String(),
		CreditDays:     p.CreditDays,
		Active:         p.Active,
	}
}

func toPartyViews(parties []core.Party) []partyView {
	out := make([]partyView, 0, len(parties))
	for _, p := range parties {
		out = append(out, toPartyView(p))
	}
	return out
}

func toServiceView(s core.Service) serviceView {
	return serviceView{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Rate:        amount(s.Rate),
		Unit:        s.Unit,
		Taxable:     s.Taxable,
		Active:      s.Active,
	}
}

func toTransactionView(t core.Transaction) transactionView {
	v := transactionView{
		ID:            t.ID,
		Number:        t.Number,
		Type:          string(t.Type),
		PartyID:       t.PartyID,
		PartyKind:     string(t.PartyKind),
		PartyName:     t.PartyName,
		Date:          t.Date.String(),
		FiscalYear:    t.FiscalYear,
		SubTotal:      amount(t.SubTotal),
		Discount:      amount(t.Discount),
		TaxableAmount: amount(t.TaxableAmount),
		VAT:           amount(t.VAT),
		Total:         amount(t.Total),
		PaidAmount:    amount(t.PaidAmount),
		PaymentMode:   string(t.PaymentMode),
		Reference:     t.Reference,
		Notes:         t.Notes,
	}
	if bs, err := nepali.ToBS(t.Date.Time); err == nil {
		v.BSDate = bs.String()
	}
	for _, it := range t.Items {
		v.Items = append(v.Items, itemView{
			ID:          it.ID,
			ServiceID:   it.ServiceID,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			Rate:        amount(it.Rate),
			Amount:      amount(it.Amount),
			Taxable:     it.Taxable,
		})
	}
	return v
}

func toTransactionViews(txns []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionView(t))
	}
	return out
}

func toBalanceView(m core.Money, typ core.BalanceType) balanceView {
	return balanceView{Amount: amount(m.Abs()), Type: string(typ)}
}

func toStatementView(st services.PartyStatement) statementView {
	v := statementView{
		Party:   toPartyView(st.Party),
		Balance: toBalanceView(st.Balance.Amount, st.Balance.Type),
		Years:   make([]fiscalYearView, 0, len(st.Years)),
	}
	for _, y := range st.Years {
		fy := fiscalYearView{
			FiscalYear:  y.FiscalYear.Label,
			Start:       core.DateOf(y.FiscalYear.Start).String(),
			End:         core.DateOf(y.FiscalYear.End).String(),
			Opening:     toBalanceView(y.Opening, y.OpeningType),
			Closing:     toBalanceView(y.Closing, y.ClosingType),
			TotalDebit:  amount(y.TotalDebit),
			TotalCredit: amount(y.TotalCredit),
			Entries:     make([]entryView, 0, len(y.Entries)),
		}
		for _, e := range y.Entries {
			ev := entryView{
				Kind:        string(e.Kind),
				Date:        e.Date.String(),
				BSDate:      e.BSDate.String(),
				Debit:       amount(e.Debit),
				Credit:      amount(e.Credit),
				Balance:     amount(e.Balance.Abs()),
				BalanceType: string(e.BalanceType),
			}
			if e.Transaction != nil {
				id := e.Transaction.ID
				ev.TxID = &id
				ev.Number = e.Transaction.Number
				ev.Type = string(e.Transaction.Type)
			}
			fy.Entries = append(fy.Entries, ev)
		}
		v.Years = append(v.Years, fy)
	}
	return v
}

func toBucketMap(b ledger.Buckets) map[string]string {
	out := make(map[string]string, len(ledger.BucketOrder))
	for _, k := range ledger.BucketOrder {
		out[string(k)] = amount(b[k])
	}
	return out
}

func toAgingView(rep ledger.AgingReport, withItems bool) agingView {
	v := agingView{
		AsOf:    rep.AsOf.String(),
		Rows:    make([]agingRowView, 0, len(rep.Rows)),
		Totals:  toBucketMap(rep.Totals),
		Total:   amount(rep.Total),
		Advance: amount(rep.Advance),
	}
	for _, b := range ledger.BucketOrder {
		v.Buckets = append(v.Buckets, string(b))
	}
	for _, row := range rep.Rows {
		rv := agingRowView{
			PartyID:   row.Party.ID,
			PartyKind: string(row.Party.Kind),
			Name:      row.Party.Name,
			Buckets:   toBucketMap(row.Buckets),
			Total:     amount(row.Total),
			Advance:   amount(row.Advance),
		}
		if withItems {
			for _, it := range row.Items {
				rv.Items = append(rv.Items, openItemView{
					Date:        it.Date.String(),
					DueDate:     it.DueDate.String(),
					Number:      it.Number,
					Original:    amount(it.Original),
					Outstanding: amount(it.Outstanding),
					DaysOverdue: it.DaysOverdue,
					Bucket:      string(it.Bucket),
				})
			}
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}

func toSummaryViews(rows []reports.SummaryRow) []summaryRowView {
	out := make([]summaryRowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, summaryRowView{
			Period:   r.Period,
			Label:    r.Label,
			Start:    r.Start.String(),
			Count:    r.Count,
			SubTotal: amount(r.SubTotal),
			Discount: amount(r.Discount),
			VAT:      amount(r.VAT),
			Total:    amount(r.Total),
			Settled:  amount(r.Settled),
		})
	}
	return out
}

func toDayBookView(db reports.DayBook) dayBookView {
	return dayBookView{
		Date:      db.Date.String(),
		BSDate:    db.BSDate,
		Entries:   toTransactionViews(db.Entries),
		Sales:     amount(db.Sales),
		Purchases: amount(db.Purchases),
		CashIn:    amount(db.CashIn),
		CashOut:   amount(db.CashOut),
	}
}

func toProfitLossView(pl reports.ProfitLoss) profitLossView {
	return profitLossView{
		FiscalYear:      pl.FiscalYear,
		Sales:           amount(pl.Sales),
		SalesReturns:    amount(pl.SalesReturns),
		NetSales:        amount(pl.NetSales),
		Purchases:       amount(pl.Purchases),
		PurchaseReturns: amount(pl.PurchaseReturns),
		NetPurchases:    amount(pl.NetPurchases),
		GrossProfit:     amount(pl.GrossProfit),
		OutputVAT:       amount(pl.OutputVAT),
		InputVAT:        amount(pl.InputVAT),
		VATPayable:      amount(pl.VATPayable),
	}
}

func toServiceRowViews(rows []reports.ServiceRow) []serviceRowView {
	out := make([]serviceRowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, serviceRowView{
			ServiceID: r.ServiceID,
			Name:      r.Name,
			Quantity:  r.Quantity.String(),
			Amount:    amount(r.Amount),
		})
	}
	return out
}

func toDashboardView(d reports.Dashboard) dashboardView {
	return dashboardView{
		Customers:    d.Customers,
		Suppliers:    d.Suppliers,
		FiscalYear:   d.FiscalYear,
		TodaySales:   amount(d.TodaySales),
		MonthSales:   amount(d.MonthSales),
		FYSales:      amount(d.FYSales),
		FYPurchases:  amount(d.FYPurchases),
		Receivable:   amount(d.Receivable),
		Payable:      amount(d.Payable),
		Advances:     amount(d.Advances),
		Transactions: d.Transactions,
	}
}

func toActivityViews(entries []core.ActivityEntry) []activityView {
	out := make([]activityView, 0, len(entries))
	for _, e := range entries {
		out = append(out, activityView{
			ID:        e.ID,
			Action:    e.Action,
			Entity:    e.Entity,
			EntityID:  e.EntityID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
