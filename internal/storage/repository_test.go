package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"hisab/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "book.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedCustomer(t *testing.T, repo *SQLiteRepository) core.Party {
	t.Helper()
	p, err := repo.CreateParty(context.Background(), core.Party{
		Kind: core.Customer, Name: " Ram Traders ", Phone: "9800000000",
		OpeningBalance: core.Rupees(500), OpeningDate: core.NewDate(2024, 7, 16), CreditDays: 15, Active: true,
	})
	require.NoError(t, err)
	return p
}

func TestPartyCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	c := seedCustomer(t, repo)
	require.NotZero(t, c.ID)
	require.Equal(t, "Ram Traders", c.Name)
	require.Equal(t, core.Debit, c.OpeningType)

	s, err := repo.CreateParty(ctx, core.Party{Kind: core.Supplier, Name: "Himal Paper", Active: true})
	require.NoError(t, err)
	require.Equal(t, core.Credit, s.OpeningType)
	require.Equal(t, c.ID, s.ID, "customers and suppliers number independently")

	got, err := repo.GetParty(ctx, core.Customer, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50000), got.OpeningBalance.Paisa)
	require.Equal(t, "2024-07-16", got.OpeningDate.String())
	require.Equal(t, 15, got.CreditDays)

	got.Phone = "9811111111"
	got.Active = false
	updated, err := repo.UpdateParty(ctx, got)
	require.NoError(t, err)
	require.Equal(t, "9811111111", updated.Phone)

	active, err := repo.ListParties(ctx, PartyFilter{Kind: core.Customer})
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := repo.ListParties(ctx, PartyFilter{IncludeInactive: true, Search: "98111"})
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = repo.GetParty(ctx, core.Supplier, 999)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.DeleteParty(ctx, core.Supplier, s.ID))
	require.ErrorIs(t, repo.DeleteParty(ctx, core.Supplier, s.ID), core.ErrNotFound)
}

func TestServiceCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	svc, err := repo.CreateService(ctx, core.Service{Name: "Consulting", Rate: core.Rupees(1500), Unit: "hour", Taxable: true, Active: true})
	require.NoError(t, err)

	svc.Rate = core.Rupees(2000)
	svc, err = repo.UpdateService(ctx, svc)
	require.NoError(t, err)
	require.Equal(t, int64(200000), svc.Rate.Paisa)
	require.True(t, svc.Taxable)

	list, err := repo.ListServices(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.DeleteService(ctx, svc.ID))
	_, err = repo.GetService(ctx, svc.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := seedCustomer(t, repo)
	svc, err := repo.CreateService(ctx, core.Service{Name: "Design", Rate: core.Rupees(1000), Taxable: true, Active: true})
	require.NoError(t, err)

	sale := core.Transaction{
		Type: core.Sale, PartyID: c.ID, PartyKind: core.Customer, Date: core.NewDate(2024, 7, 20),
		SubTotal: core.Rupees(2000), TaxableAmount: core.Rupees(2000), VAT: core.Rupees(260), Total: core.Rupees(2260),
		PaidAmount: core.Rupees(260), PaymentMode: core.Cash,
		Items: []core.TransactionItem{
			{ServiceID: &svc.ID, Description: "Design", Quantity: decimal.RequireFromString("2"), Rate: core.Rupees(1000), Amount: core.Rupees(2000), Taxable: true},
		},
	}

	next, err := repo.NextSequence(ctx, core.Sale, "2081/82")
	require.NoError(t, err)
	require.Equal(t, int64(1), next)

	first, err := repo.CreateTransaction(ctx, sale, "SI")
	require.NoError(t, err)
	require.Equal(t, "SI-2081/82-0001", first.Number)
	require.Equal(t, "2081/82", first.FiscalYear)

	second, err := repo.CreateTransaction(ctx, sale, "SI")
	require.NoError(t, err)
	require.Equal(t, "SI-2081/82-0002", second.Number)

	older := sale
	older.Date = core.NewDate(2024, 7, 1)
	prior, err := repo.CreateTransaction(ctx, older, "SI")
	require.NoError(t, err)
	require.Equal(t, "SI-2080/81-0001", prior.Number)

	next, err = repo.NextSequence(ctx, core.Sale, "2081/82")
	require.NoError(t, err)
	require.Equal(t, int64(3), next)

	got, err := repo.GetTransaction(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "Ram Traders", got.PartyName)
	require.Len(t, got.Items, 1)
	require.True(t, got.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
	require.Equal(t, svc.ID, *got.Items[0].ServiceID)

	got.Notes = "revised"
	got.Items = nil
	got, err = repo.UpdateTransaction(ctx, got)
	require.NoError(t, err)
	require.Equal(t, "revised", got.Notes)
	require.Empty(t, got.Items)
	require.Equal(t, "SI-2081/82-0001", got.Number)

	list, err := repo.ListTransactions(ctx, TransactionFilter{FiscalYear: "2081/82", WithItems: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Len(t, list[1].Items, 1)

	list, err = repo.ListTransactions(ctx, TransactionFilter{Search: "Ram", To: core.NewDate(2024, 7, 15)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, prior.ID, list[0].ID)

	require.ErrorIs(t, repo.DeleteParty(ctx, core.Customer, c.ID), core.ErrConflict)

	require.NoError(t, repo.DeleteTransaction(ctx, second.ID))
	require.ErrorIs(t, repo.DeleteTransaction(ctx, second.ID), core.ErrNotFound)
}

func TestCreateTransactionUnknownParty(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateTransaction(context.Background(), core.Transaction{
		Type: core.PaymentIn, PartyID: 42, PartyKind: core.Customer, Date: core.NewDate(2024, 8, 1), Total: core.Rupees(10),
	}, "RV")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSettingsAndActivity(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	v, err := repo.GetSetting(ctx, "vat_rate")
	require.NoError(t, err)
	require.Equal(t, "13", v)

	require.NoError(t, repo.SetSetting(ctx, "company_name", "Hisab Pvt. Ltd."))
	require.NoError(t, repo.SetSetting(ctx, "company_name", "Hisab Traders"))
	all, err := repo.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, "Hisab Traders", all["company_name"])

	_, err = repo.GetSetting(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)

	for i := range 3 {
		_, err := repo.LogActivity(ctx, core.ActivityEntry{Action: "create", Entity: "customer", EntityID: int64(i + 1)})
		require.NoError(t, err)
	}
	page, hasNext, err := repo.ListActivity(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, hasNext)
	require.Len(t, page, 2)
	require.Equal(t, int64(3), page[0].EntityID)

	page, hasNext, err = repo.ListActivity(ctx, 2, 2)
	require.NoError(t, err)
	require.False(t, hasNext)
	require.Len(t, page, 1)
}

func TestBridgeQuery(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedCustomer(t, repo)

	rows, err := repo.Query(ctx, "SELECT id, name FROM customers WHERE name LIKE ?;", "Ram%")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Ram Traders", rows[0]["name"])

	rows, err = repo.Query(ctx, "select count(*) as n from suppliers")
	require.NoError(t, err)
	require.EqualValues(t, 0, rows[0]["n"])

	for _, stmt := range []string{
		"DELETE FROM customers",
		"SELECT 1; DELETE FROM customers",
		"PRAGMA journal_mode = DELETE",
		"PRAGMA journal_mode(DELETE)",
		"PRAGMA foreign_keys(0)",
		"pragma main.foreign_keys (OFF)",
		"PRAGMA busy_timeout",
		"WITH x AS (SELECT 1) DELETE FROM customers",
		"",
	} {
		_, err := repo.Query(ctx, stmt)
		require.ErrorIs(t, err, ErrReadOnlyQuery, stmt)
	}

	rows, err = repo.Query(ctx, "PRAGMA foreign_keys")
	require.NoError(t, err)
	require.EqualValues(t, 1, rows[0]["foreign_keys"])

	rows, err = repo.Query(ctx, "PRAGMA table_info(customers)")
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	_, err = repo.Update(ctx, "INSERT INTO transaction_items (transaction_id, description, quantity, rate, amount) VALUES (999, 'x', '1', 0, 0)")
	require.Error(t, err, "foreign keys must still be enforced")

	res, err := repo.Update(ctx, "UPDATE customers SET phone = ? WHERE id = ?", "01-4000000", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)

	_, err = repo.Update(ctx, "DROP TABLE customers")
	require.ErrorIs(t, err, ErrUnsupportedStmt)

	p, err := repo.GetParty(ctx, core.Customer, 1)
	require.NoError(t, err)
	require.Equal(t, "01-4000000", p.Phone)
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedCustomer(t, repo)

	dest := filepath.Join(t.TempDir(), "backups", "book-1.db")
	require.NoError(t, repo.Backup(ctx, dest))
	require.ErrorIs(t, repo.Backup(ctx, dest), ErrBackupExists)
	require.NoError(t, VerifyBackup(ctx, dest))

	_, err := repo.CreateParty(ctx, core.Party{Kind: core.Customer, Name: "After Backup", Active: true})
	require.NoError(t, err)

	require.NoError(t, repo.Restore(ctx, dest))
	parties, err := repo.ListParties(ctx, PartyFilter{Kind: core.Customer, IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, parties, 1)
	require.Equal(t, "Ram Traders", parties[0].Name)

	_, err = os.Stat(repo.Path() + ".pre-restore")
	require.NoError(t, err)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedCustomer(t, repo)

	junk := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not sqlite"), 0o644))
	require.ErrorIs(t, repo.Restore(ctx, junk), ErrNotSQLite)

	parties, err := repo.ListParties(ctx, PartyFilter{})
	require.NoError(t, err)
	require.Len(t, parties, 1)
}

func TestDataStore(t *testing.T) {
	store, err := NewDataStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("ui-state", json.RawMessage(`{"theme":"dark"}`)))
	got, err := store.Load("ui-state")
	require.NoError(t, err)
	require.JSONEq(t, `{"theme":"dark"}`, string(got))

	_, err = store.Load("missing")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.ErrorIs(t, store.Save("../escape", json.RawMessage(`{}`)), core.ErrValidation)
	require.ErrorIs(t, store.Save("bad", json.RawMessage(`{`)), core.ErrValidation)
}
