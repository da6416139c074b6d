// Package ledger builds party statements grouped by Nepali fiscal year and
// classifies outstanding receivables and payables by age.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hisab/internal/core"
	"hisab/internal/nepali"
)

type EntryKind string

const (
	OpeningEntry     EntryKind = "opening"
	TransactionEntry EntryKind = "transaction"
	ClosingEntry     EntryKind = "closing"
)

var ErrUnknownFiscalYear = errors.New("ledger: unknown fiscal year")

type (
	// Entry is one statement line. Balance is the running balance in the
	// party's natural direction; Debit and Credit are the accounting columns.
	Entry struct {
		Kind        EntryKind
		Date        core.Date
		BSDate      nepali.BSDate
		Transaction *core.Transaction
		Debit       core.Money
		Credit      core.Money
		Balance     core.Money
		BalanceType core.BalanceType
	}

	FiscalYearLedger struct {
		FiscalYear  nepali.FiscalYear
		Opening     core.Money
		OpeningType core.BalanceType
		Closing     core.Money
		ClosingType core.BalanceType
		TotalDebit  core.Money
		TotalCredit core.Money
		Entries     []Entry
	}

	Options struct {
		// FillGaps emits years without transactions between active years.
		FillGaps bool
		// Through is the last fiscal year reported ("2081/82"). Later years
		// are dropped and the sequence is extended up to it when needed.
		Through string
	}
)

// GroupByFiscalYear builds the party's statement one fiscal year at a time.
//
// Transactions are grouped by their fiscal-year label, sorted by date then
// ID, and given a running balance. Each year opens with the previous year's
// closing balance (the party's opening balance for the first year) and closes
// with the balance of its last entry. Transactions of other parties are
// ignored.
func GroupByFiscalYear(party core.Party, txns []core.Transaction, opts Options) ([]FiscalYearLedger, error) {
	own := partyTransactions(party, txns)

	groups := make(map[int][]core.Transaction)
	years := make(map[int]nepali.FiscalYear)
	for _, tx := range own {
		fy, err := fiscalYearOfTx(tx)
		if err != nil {
			return nil, err
		}
		groups[fy.StartYear] = append(groups[fy.StartYear], tx)
		years[fy.StartYear] = fy
	}
	if !party.OpeningDate.IsZero() {
		if fy, err := nepali.FiscalYearOf(party.OpeningDate.Time); err == nil {
			years[fy.StartYear] = fy
		}
	}

	if opts.Through != "" {
		fy, err := nepali.ParseFiscalYear(opts.Through)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFiscalYear, opts.Through)
		}
		years[fy.StartYear] = fy
		for y := range years {
			if y > fy.StartYear {
				delete(years, y)
			}
		}
	}

	order := sortedYears(years)
	if len(order) == 0 {
		return nil, nil
	}
	if opts.FillGaps {
		filled, err := fillYears(order[0], order[len(order)-1])
		if err != nil {
			return nil, err
		}
		for _, fy := range filled {
			years[fy.StartYear] = fy
		}
		order = sortedYears(years)
	}

	out := make([]FiscalYearLedger, 0, len(order))
	balance := party.SignedOpening()
	for _, y := range order {
		l := buildYear(party, years[y], balance, groups[y])
		balance = l.Closing
		out = append(out, l)
	}
	return out, nil
}

func buildYear(party core.Party, fy nepali.FiscalYear, opening core.Money, txns []core.Transaction) FiscalYearLedger {
	l := FiscalYearLedger{
		FiscalYear:  fy,
		Opening:     opening,
		OpeningType: party.BalanceTypeOf(opening),
		Entries:     make([]Entry, 0, len(txns)+2),
	}
	l.Entries = append(l.Entries, placeholder(party, OpeningEntry, fy.Start, opening))

	balance := opening
	for i := range txns {
		tx := txns[i]
		debit, credit := Columns(tx)
		balance = balance.Add(tx.Effect())
		l.TotalDebit = l.TotalDebit.Add(debit)
		l.TotalCredit = l.TotalCredit.Add(credit)
		l.Entries = append(l.Entries, Entry{
			Kind:        TransactionEntry,
			Date:        tx.Date,
			BSDate:      bsOf(tx.Date),
			Transaction: &tx,
			Debit:       debit,
			Credit:      credit,
			Balance:     balance,
			BalanceType: party.BalanceTypeOf(balance),
		})
	}

	l.Closing = l.Entries[len(l.Entries)-1].Balance
	l.ClosingType = party.BalanceTypeOf(l.Closing)
	l.Entries = append(l.Entries, placeholder(party, ClosingEntry, fy.End, l.Closing))
	return l
}

func placeholder(party core.Party, kind EntryKind, day time.Time, balance core.Money) Entry {
	d := core.DateOf(day)
	return Entry{
		Kind:        kind,
		Date:        d,
		BSDate:      bsOf(d),
		Balance:     balance,
		BalanceType: party.BalanceTypeOf(balance),
	}
}

// Columns splits a transaction into the statement's debit and credit columns.
// Sales and purchases show the invoice total on the party's natural side and
// any amount settled at the counter on the other side.
func Columns(tx core.Transaction) (debit, credit core.Money) {
	natural, opposite := tx.Total, core.Money{}
	switch tx.Type {
	case core.Sale, core.Purchase:
		opposite = tx.PaidAmount
	default:
		eff := tx.Effect()
		if eff.Paisa < 0 {
			natural, opposite = core.Money{}, eff.Abs()
		} else {
			natural = eff
		}
	}
	if tx.PartyKind == core.Supplier {
		return opposite, natural
	}
	return natural, opposite
}

func partyTransactions(party core.Party, txns []core.Transaction) []core.Transaction {
	own := make([]core.Transaction, 0, len(txns))
	for _, tx := range txns {
		if tx.PartyID != party.ID || (tx.PartyKind != "" && tx.PartyKind != party.Kind) {
			continue
		}
		own = append(own, tx)
	}
	sortTransactions(own)
	return own
}

func sortTransactions(txns []core.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		a, b := txns[i], txns[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		return a.ID < b.ID
	})
}

func fiscalYearOfTx(tx core.Transaction) (nepali.FiscalYear, error) {
	if tx.FiscalYear != "" {
		fy, err := nepali.ParseFiscalYear(tx.FiscalYear)
		if err != nil {
			return nepali.FiscalYear{}, fmt.Errorf("%w: transaction %d has %q", ErrUnknownFiscalYear, tx.ID, tx.FiscalYear)
		}
		return fy, nil
	}
	fy, err := nepali.FiscalYearOf(tx.Date.Time)
	if err != nil {
		return nepali.FiscalYear{}, fmt.Errorf("%w: transaction %d dated %s", ErrUnknownFiscalYear, tx.ID, tx.Date)
	}
	return fy, nil
}

func fillYears(first, last int) ([]nepali.FiscalYear, error) {
	out := make([]nepali.FiscalYear, 0, last-first+1)
	for y := first; y <= last; y++ {
		fy, err := nepali.FiscalYearFor(y)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFiscalYear, nepali.Label(y))
		}
		out = append(out, fy)
	}
	return out, nil
}

func sortedYears(years map[int]nepali.FiscalYear) []int {
	out := make([]int, 0, len(years))
	for y := range years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func bsOf(d core.Date) nepali.BSDate {
	if d.IsZero() {
		return nepali.BSDate{}
	}
	bs, err := nepali.ToBS(d.Time)
	if err != nil {
		return nepali.BSDate{}
	}
	return bs
}
