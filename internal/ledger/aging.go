package ledger

import (
	"sort"
	"time"

	"hisab/internal/core"
)

type Bucket string

const (
	BucketCurrent Bucket = "current"
	Bucket1To30   Bucket = "1-30"
	Bucket31To60  Bucket = "31-60"
	Bucket61To90  Bucket = "61-90"
	BucketOver90  Bucket = "90+"
)

// BucketOrder lists buckets from youngest to oldest.
var BucketOrder = []Bucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

type (
	// OpenItem is the unsettled remainder of a debit to the party's account.
	OpenItem struct {
		Date        core.Date
		DueDate     core.Date
		Number      string
		Original    core.Money
		Outstanding core.Money
		DaysOverdue int
		Bucket      Bucket
	}

	Buckets map[Bucket]core.Money

	PartyAging struct {
		Party   core.Party
		Buckets Buckets
		Total   core.Money
		Advance core.Money
		Items   []OpenItem
	}

	AgingReport struct {
		AsOf    core.Date
		Rows    []PartyAging
		Totals  Buckets
		Total   core.Money
		Advance core.Money
	}
)

// BucketFor classifies the number of days past due.
func BucketFor(daysOverdue int) Bucket {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

func (b Buckets) add(bucket Bucket, m core.Money) {
	b[bucket] = b[bucket].Add(m)
}

// Age allocates the party's credits against its debits oldest first and ages
// whatever is left open as of asOf. Debits are the opening balance, the unpaid
// part of each invoice and refunds; credits are payments and returns. A net
// credit balance is reported as Advance and not aged. A zero asOf means today.
func Age(party core.Party, txns []core.Transaction, asOf core.Date) PartyAging {
	if asOf.IsZero() {
		asOf = core.DateOf(time.Now())
	}
	own := partyTransactions(party, txns)

	var open []OpenItem
	var unapplied int64

	debit := func(item OpenItem) {
		if unapplied > 0 {
			used := min(unapplied, item.Outstanding.Paisa)
			item.Outstanding.Paisa -= used
			unapplied -= used
		}
		if item.Outstanding.Paisa > 0 {
			open = append(open, item)
		}
	}
	credit := func(amount int64) {
		for len(open) > 0 && amount > 0 {
			head := &open[0]
			used := min(amount, head.Outstanding.Paisa)
			head.Outstanding.Paisa -= used
			amount -= used
			if head.Outstanding.Paisa == 0 {
				open = open[1:]
			}
		}
		unapplied += amount
	}

	if opening := openingAsOf(party, asOf); opening.Paisa > 0 {
		d := party.OpeningDate
		if d.IsZero() && len(own) > 0 {
			d = own[0].Date
		}
		if d.IsZero() {
			d = asOf
		}
		debit(OpenItem{Date: d, Number: "Opening", Original: opening, Outstanding: opening})
	} else if opening.Paisa < 0 {
		credit(-opening.Paisa)
	}

	for _, tx := range own {
		if tx.Date.After(asOf.Time) {
			continue
		}
		eff := tx.Effect()
		switch {
		case eff.Paisa > 0:
			debit(OpenItem{Date: tx.Date, Number: tx.Number, Original: eff, Outstanding: eff})
		case eff.Paisa < 0:
			credit(-eff.Paisa)
		}
	}

	out := PartyAging{Party: party, Buckets: Buckets{}, Advance: core.Money{Paisa: unapplied}}
	for _, item := range open {
		item.DueDate = core.DateOf(item.Date.AddDate(0, 0, party.CreditDays))
		item.DaysOverdue = daysBetween(item.DueDate.Time, asOf.Time)
		item.Bucket = BucketFor(item.DaysOverdue)
		out.Buckets.add(item.Bucket, item.Outstanding)
		out.Total = out.Total.Add(item.Outstanding)
		out.Items = append(out.Items, item)
	}
	return out
}

// Aging builds the aging report for a set of parties, largest exposure first.
// Parties with nothing outstanding and no advance are left out.
func Aging(parties []core.Party, txns []core.Transaction, asOf core.Date) AgingReport {
	if asOf.IsZero() {
		asOf = core.DateOf(time.Now())
	}
	byParty := make(map[partyKey][]core.Transaction)
	for _, tx := range txns {
		k := partyKey{kind: tx.PartyKind, id: tx.PartyID}
		byParty[k] = append(byParty[k], tx)
	}

	report := AgingReport{AsOf: asOf, Totals: Buckets{}}
	for _, p := range parties {
		row := Age(p, byParty[partyKey{kind: p.Kind, id: p.ID}], asOf)
		if row.Total.IsZero() && row.Advance.IsZero() {
			continue
		}
		for b, m := range row.Buckets {
			report.Totals.add(b, m)
		}
		report.Total = report.Total.Add(row.Total)
		report.Advance = report.Advance.Add(row.Advance)
		report.Rows = append(report.Rows, row)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.Total.Paisa != b.Total.Paisa {
			return a.Total.Paisa > b.Total.Paisa
		}
		return a.Party.Name < b.Party.Name
	})
	return report
}

type partyKey struct {
	kind core.PartyKind
	id   int64
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
