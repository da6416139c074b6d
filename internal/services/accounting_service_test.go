package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hisab/internal/amqp"
	"hisab/internal/config"
	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/reports"
	"hisab/internal/sheets/memory"
	"hisab/internal/storage"
)

var clock = func() time.Time { return time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *AccountingService
	pub      *recordingPublisher
	customer core.Party
	service  core.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "book.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	pub := &recordingPublisher{}
	svc := NewAccountingService(repo, config.DefaultCompany(), WithPublisher(pub), WithClock(clock))

	ctx := context.Background()
	customer, err := svc.CreateParty(ctx, core.Party{Kind: core.Customer, Name: "Ram Traders", CreditDays: 15, Active: true})
	require.NoError(t, err)
	service, err := svc.CreateService(ctx, core.Service{Name: "Web design", Rate: core.Rupees(500), Unit: "hour", Taxable: true, Active: true})
	require.NoError(t, err)

	return fixture{svc: svc, pub: pub, customer: customer, service: service}
}

func (f fixture) sale(t *testing.T, qty int64, paid int64) core.Transaction {
	t.Helper()
	id := f.service.ID
	tx, err := f.svc.RecordTransaction(context.Background(), core.Transaction{
		Type:       core.Sale,
		PartyID:    f.customer.ID,
		Date:       core.NewDate(2024, 7, 16),
		PaidAmount: core.Rupees(paid),
		Items:      []core.TransactionItem{{ServiceID: &id, Quantity: decimal.NewFromInt(qty)}},
	})
	require.NoError(t, err)
	return tx
}

func TestRecordTransactionPricesFromCatalogue(t *testing.T) {
	f := newFixture(t)

	tx := f.sale(t, 3, 500)

	require.Equal(t, "SI-2081/82-0001", tx.Number)
	require.Equal(t, "2081/82", tx.FiscalYear)
	require.Equal(t, core.Customer, tx.PartyKind)
	require.Equal(t, core.Cash, tx.PaymentMode)
	require.Equal(t, "Web design", tx.Items[0].Description)
	require.Equal(t, core.Rupees(1500), tx.SubTotal)
	require.Equal(t, core.Rupees(195), tx.VAT)
	require.Equal(t, core.Rupees(1695), tx.Total)

	require.Contains(t, f.pub.types(), amqp.TransactionCreated)

	next, err := f.svc.NextNumber(context.Background(), core.Sale, core.NewDate(2024, 8, 1))
	require.NoError(t, err)
	require.Equal(t, "SI-2081/82-0002", next)

	activity, _, err := f.svc.Activity(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, "transaction", activity[0].Entity)
}

func TestRecordTransactionDefaultsToCreditWhenUnpaid(t *testing.T) {
	f := newFixture(t)
	tx := f.sale(t, 1, 0)
	require.Equal(t, core.CreditMode, tx.PaymentMode)
}

func TestRecordTransactionRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := int64(999)

	tests := []struct {
		name string
		tx   core.Transaction
	}{
		{"unknown type", core.Transaction{Type: "gift", PartyID: f.customer.ID, Total: core.Rupees(1)}},
		{"no party", core.Transaction{Type: core.PaymentIn, Total: core.Rupees(1)}},
		{"zero total", core.Transaction{Type: core.PaymentIn, PartyID: f.customer.ID}},
		{"purchase from customer", core.Transaction{Type: core.Purchase, PartyID: f.customer.ID, PartyKind: core.Customer, Total: core.Rupees(1)}},
		{"items on payment", core.Transaction{Type: core.PaymentIn, PartyID: f.customer.ID, Total: core.Rupees(1),
			Items: []core.TransactionItem{{Description: "x", Quantity: decimal.NewFromInt(1)}}}},
		{"unknown service", core.Transaction{Type: core.Sale, PartyID: f.customer.ID,
			Items: []core.TransactionItem{{ServiceID: &missing, Quantity: decimal.NewFromInt(1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordTransaction(ctx, tt.tx)
			require.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	tx := f.sale(t, 1, 0)
	require.NotZero(t, tx.ID)

	stored, err := f.svc.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, tx.Number, stored.Number)
}

func TestWithoutPublisher(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "book.db"))
	require.NoError(t, err)
	svc := NewAccountingService(repo, config.DefaultCompany(), WithPublisher(nil), WithClock(clock))
	defer svc.Close()

	_, err = svc.CreateParty(context.Background(), core.Party{Kind: core.Supplier, Name: "Everest Supplies", Active: true})
	require.NoError(t, err)
}

func TestVATRateSettingOverridesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetSetting(ctx, "vat_rate", " 0 "))
	tx := f.sale(t, 2, 0)
	require.True(t, tx.VAT.IsZero())
	require.Equal(t, core.Rupees(1000), tx.Total)

	require.ErrorIs(t, f.svc.SetSetting(ctx, "vat_rate", "abc"), core.ErrValidation)
	require.ErrorIs(t, f.svc.SetSetting(ctx, "vat_rate", "101"), core.ErrValidation)
	require.ErrorIs(t, f.svc.SetSetting(ctx, "sequence.sale.2081/82", "7"), core.ErrValidation)

	settings, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, "0", settings["vat_rate"])
}

func TestDuplicateNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateParty(ctx, core.Party{Kind: core.Customer, Name: "  ram   TRADERS ", Active: true})
	require.ErrorIs(t, err, core.ErrConflict)

	// Same name on the other side of the book is a different party.
	_, err = f.svc.CreateParty(ctx, core.Party{Kind: core.Supplier, Name: "Ram Traders", Active: true})
	require.NoError(t, err)

	_, err = f.svc.CreateService(ctx, core.Service{Name: "WEB DESIGN", Rate: core.Rupees(1)})
	require.ErrorIs(t, err, core.ErrConflict)

	renamed := f.customer
	renamed.Phone = "9801111111"
	_, err = f.svc.UpdateParty(ctx, renamed)
	require.NoError(t, err)
}

func TestDeletePartyWithHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sale(t, 1, 0)

	err := f.svc.DeleteParty(ctx, core.Customer, f.customer.ID)
	require.ErrorIs(t, err, core.ErrConflict)

	other, err := f.svc.CreateParty(ctx, core.Party{Kind: core.Customer, Name: "Sita Stores", Active: true})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteParty(ctx, core.Customer, other.ID))
	_, err = f.svc.GetParty(ctx, core.Customer, other.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateTransactionKeepsNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.sale(t, 3, 0)

	tx.Items = tx.Items[:1]
	tx.Items[0].Quantity = decimal.NewFromInt(2)
	tx.Number = "SI-9999"
	updated, err := f.svc.UpdateTransaction(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, "SI-2081/82-0001", updated.Number)
	require.Equal(t, core.Rupees(1130), updated.Total)

	tx.Type = core.SalesReturn
	_, err = f.svc.UpdateTransaction(ctx, tx)
	require.ErrorIs(t, err, core.ErrValidation)

	require.NoError(t, f.svc.DeleteTransaction(ctx, tx.ID))
	_, err = f.svc.GetTransaction(ctx, tx.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.Equal(t, []amqp.EventType{
		amqp.PartyChanged, amqp.TransactionCreated, amqp.TransactionUpdated, amqp.TransactionDeleted,
	}, f.pub.types())
}

func TestStatementIsInvalidatedByWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sale(t, 3, 500)

	st, err := f.svc.Statement(ctx, core.Customer, f.customer.ID, "", false)
	require.NoError(t, err)
	require.Len(t, st.Years, 1)
	require.Equal(t, "2081/82", st.Years[0].FiscalYear.Label)
	require.Equal(t, core.Rupees(1195), st.Balance.Amount)
	require.Equal(t, core.Debit, st.Balance.Type)
	require.Positive(t, f.svc.ReportCache().Size())

	_, err = f.svc.RecordTransaction(ctx, core.Transaction{
		Type: core.PaymentIn, PartyID: f.customer.ID, Date: core.NewDate(2024, 8, 10), Total: core.Rupees(200),
	})
	require.NoError(t, err)

	st, err = f.svc.Statement(ctx, core.Customer, f.customer.ID, "", false)
	require.NoError(t, err)
	require.Equal(t, core.Rupees(995), st.Balance.Amount)
	require.Equal(t, core.Rupees(995), st.Years[0].Closing)

	st, err = f.svc.Statement(ctx, core.Customer, f.customer.ID, "2082/83", false)
	require.NoError(t, err)
	require.Len(t, st.Years, 2)
	require.Equal(t, core.Rupees(995), st.Years[1].Opening)
}

func TestAgingReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sale(t, 3, 500)

	report, err := f.svc.AgingReport(ctx, core.Customer, core.Date{})
	require.NoError(t, err)
	require.Equal(t, core.NewDate(2024, 9, 1), report.AsOf)
	require.Len(t, report.Rows, 1)
	require.Equal(t, core.Rupees(1195), report.Total)
	require.Equal(t, core.Rupees(1195), report.Totals[ledger.Bucket31To60])

	_, err = f.svc.AgingReport(ctx, "vendor", core.Date{})
	require.ErrorIs(t, err, core.ErrInvalidKind)
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sale(t, 3, 500)
	_, err := f.svc.RecordTransaction(ctx, core.Transaction{
		Type: core.PaymentIn, PartyID: f.customer.ID, Date: core.NewDate(2024, 8, 10), Total: core.Rupees(200),
	})
	require.NoError(t, err)

	book, err := f.svc.DayBook(ctx, core.NewDate(2024, 8, 10))
	require.NoError(t, err)
	require.Len(t, book.Entries, 1)
	require.Equal(t, core.Rupees(200), book.CashIn)

	pl, err := f.svc.ProfitAndLoss(ctx, "2081/82")
	require.NoError(t, err)
	require.Equal(t, core.Rupees(1500), pl.NetSales)
	require.Equal(t, core.Rupees(195), pl.VATPayable)

	_, err = f.svc.ProfitAndLoss(ctx, "2081/83")
	require.ErrorIs(t, err, core.ErrValidation)

	top, err := f.svc.TopServices(ctx, reports.Filter{}, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "Web design", top[0].Name)

	dash, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, dash.Customers)
	require.Equal(t, 2, dash.Transactions)
	require.Equal(t, "2081/82", dash.FiscalYear)
}

func TestExportFiscalYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sale(t, 3, 500)
	_, err := f.svc.RecordTransaction(ctx, core.Transaction{
		Type: core.PaymentIn, PartyID: f.customer.ID, Date: core.NewDate(2024, 8, 10), Total: core.Rupees(200),
	})
	require.NoError(t, err)

	store := memory.New()
	ref, err := f.svc.ExportFiscalYear(ctx, store, "")
	require.NoError(t, err)
	require.Equal(t, "mem:FY 2081-82:1", ref)

	rows, ok := store.Rows("2081/82")
	require.True(t, ok)
	require.Len(t, rows, 2)
	require.Equal(t, "2081-04", rows[0].Period)
	require.Equal(t, core.Sale, rows[0].Type)
	require.Equal(t, core.Rupees(500), rows[0].Settled)
	require.Equal(t, core.PaymentIn, rows[1].Type)
}

func TestDashboardFollowsClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sale(t, 1, 0)

	day := time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return day }

	dash, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, core.Rupees(565), dash.TodaySales)

	day = day.AddDate(0, 0, 1)
	dash, err = f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.True(t, dash.TodaySales.IsZero())
	require.Equal(t, 2, f.svc.ReportCache().Size())
}

func TestBridgeUpdateDropsCachedReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.svc.ReportCache().Size())

	res, err := f.svc.Update(ctx, `UPDATE customers SET phone = ? WHERE id = ?`, "9812345678", f.customer.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowsAffected)
	require.Zero(t, f.svc.ReportCache().Size())

	rows, err := f.svc.Query(ctx, `SELECT phone FROM customers WHERE id = ?`, f.customer.ID)
	require.NoError(t, err)
	require.Equal(t, "9812345678", rows[0]["phone"])
}

func TestBackupAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dest := filepath.Join(t.TempDir(), "snapshot.db")

	require.NoError(t, f.svc.Backup(ctx, dest))
	_, err := f.svc.CreateParty(ctx, core.Party{Kind: core.Customer, Name: "Late Arrival", Active: true})
	require.NoError(t, err)

	require.NoError(t, f.svc.Restore(ctx, dest))
	parties, err := f.svc.ListParties(ctx, storage.PartyFilter{Kind: core.Customer})
	require.NoError(t, err)
	require.Len(t, parties, 1)
	require.Equal(t, "Ram Traders", parties[0].Name)
	require.Contains(t, f.pub.types(), amqp.BookRestored)
}

func TestClose(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		svc := &AccountingService{}
		require.NoError(t, svc.Close())
	})
	t.Run("closes publisher", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := &AccountingService{events: pub}
		require.NoError(t, svc.Close())
		require.True(t, pub.closed)
	})
}
