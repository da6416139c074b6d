package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hisab/internal/core"
)

func TestBucketFor(t *testing.T) {
	cases := map[int]Bucket{
		-5: BucketCurrent,
		0:  BucketCurrent,
		1:  Bucket1To30,
		30: Bucket1To30,
		31: Bucket31To60,
		60: Bucket31To60,
		61: Bucket61To90,
		90: Bucket61To90,
		91: BucketOver90,
	}
	for days, want := range cases {
		if got := BucketFor(days); got != want {
			t.Errorf("BucketFor(%d) = %s, want %s", days, got, want)
		}
	}
}

func TestAgeFIFO(t *testing.T) {
	p := customer()
	p.OpeningBalance = core.Money{}
	txns := []core.Transaction{
		sale(1, core.NewDate(2024, 1, 1), 100, 0),
		sale(2, core.NewDate(2024, 3, 1), 200, 0),
		receipt(3, core.NewDate(2024, 3, 15), 150),
	}
	txns[1].Number = "SI-2080/81-0002"

	row := Age(p, txns, core.NewDate(2024, 5, 15))
	require.Len(t, row.Items, 1)
	item := row.Items[0]
	require.Equal(t, "SI-2080/81-0002", item.Number)
	require.Equal(t, int64(15000), item.Outstanding.Paisa)
	require.Equal(t, "2024-03-31", item.DueDate.String())
	require.Equal(t, 45, item.DaysOverdue)
	require.Equal(t, Bucket31To60, item.Bucket)
	require.Equal(t, int64(15000), row.Total.Paisa)
	require.True(t, row.Advance.IsZero())
}

func TestAgeBucketsSumToBalance(t *testing.T) {
	p := customer()
	txns := statementFixture()
	asOf := core.NewDate(2026, 12, 1)
	row := Age(p, txns, asOf)

	var sum int64
	for _, b := range BucketOrder {
		sum += row.Buckets[b].Paisa
	}
	require.Equal(t, row.Total.Paisa, sum)
	require.Equal(t, PartyBalance(p, txns, asOf).Amount.Paisa, row.Total.Paisa-row.Advance.Paisa)
	require.Equal(t, int64(450000), row.Buckets[BucketOver90].Paisa)
}

func TestAgeAdvance(t *testing.T) {
	p := customer()
	p.OpeningBalance = core.Money{}
	txns := []core.Transaction{
		sale(1, core.NewDate(2024, 1, 1), 100, 0),
		receipt(2, core.NewDate(2024, 1, 10), 300),
		sale(3, core.NewDate(2024, 2, 1), 50, 0),
	}
	row := Age(p, txns, core.NewDate(2024, 6, 1))
	require.Empty(t, row.Items)
	require.True(t, row.Total.IsZero())
	require.Equal(t, int64(15000), row.Advance.Paisa)
}

func TestAgeIgnoresFutureTransactions(t *testing.T) {
	p := customer()
	p.OpeningBalance = core.Money{}
	txns := []core.Transaction{sale(1, core.NewDate(2024, 1, 1), 100, 0)}
	row := Age(p, txns, core.NewDate(2023, 12, 31))
	require.True(t, row.Total.IsZero())
}

func TestAgingReport(t *testing.T) {
	a := core.Party{ID: 1, Kind: core.Customer, Name: "Alpha"}
	b := core.Party{ID: 2, Kind: core.Customer, Name: "Beta", CreditDays: 30}
	idle := core.Party{ID: 3, Kind: core.Customer, Name: "Idle"}
	supplier := core.Party{ID: 1, Kind: core.Supplier, Name: "Alpha Supplies"}

	txns := []core.Transaction{
		{ID: 1, Type: core.Sale, PartyID: 1, PartyKind: core.Customer, Date: core.NewDate(2024, 1, 1), Total: core.Rupees(100)},
		{ID: 2, Type: core.Sale, PartyID: 2, PartyKind: core.Customer, Date: core.NewDate(2024, 5, 20), Total: core.Rupees(400)},
		{ID: 3, Type: core.Purchase, PartyID: 1, PartyKind: core.Supplier, Date: core.NewDate(2024, 5, 1), Total: core.Rupees(900)},
	}

	report := Aging([]core.Party{a, b, idle}, txns, core.NewDate(2024, 6, 1))
	require.Len(t, report.Rows, 2)
	require.Equal(t, "Beta", report.Rows[0].Party.Name)
	require.Equal(t, "Alpha", report.Rows[1].Party.Name)
	require.Equal(t, int64(50000), report.Total.Paisa)
	require.Equal(t, int64(40000), report.Totals[BucketCurrent].Paisa)
	require.Equal(t, int64(10000), report.Totals[BucketOver90].Paisa)

	payables := Aging([]core.Party{supplier}, txns, core.NewDate(2024, 6, 1))
	require.Len(t, payables.Rows, 1)
	require.Equal(t, int64(90000), payables.Total.Paisa)
	require.Equal(t, int64(90000), payables.Totals[Bucket31To60].Paisa)
}

func TestBalances(t *testing.T) {
	parties := []core.Party{customer(), {ID: 2, Kind: core.Customer, Name: "Other"}}
	got := Balances(parties, statementFixture(), core.NewDate(2024, 7, 31))
	require.Equal(t, int64(400000), got[0].Amount.Paisa)
	require.Equal(t, int64(77700), got[1].Amount.Paisa)
}

func TestOpeningDatedAfterAsOf(t *testing.T) {
	p := customer()
	txns := []core.Transaction{sale(1, core.NewDate(2023, 6, 1), 100, 0)}
	asOf := core.NewDate(2023, 7, 15)

	row := Age(p, txns, asOf)
	require.Len(t, row.Items, 1)
	require.Equal(t, int64(10000), row.Total.Paisa)

	require.Equal(t, int64(10000), PartyBalance(p, txns, asOf).Amount.Paisa)
	require.Equal(t, int64(10000), Balances([]core.Party{p}, txns, asOf)[0].Amount.Paisa)

	onDate := Age(p, txns, p.OpeningDate)
	require.Equal(t, int64(110000), onDate.Total.Paisa)
	require.Equal(t, int64(110000), PartyBalance(p, txns, core.Date{}).Amount.Paisa)
}
