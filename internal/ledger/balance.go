package ledger

import "hisab/internal/core"

// Balance is a signed natural balance with its CR/DR indicator.
type Balance struct {
	Amount core.Money
	Type   core.BalanceType
}

// Abs is the unsigned amount shown next to the indicator.
func (b Balance) Abs() core.Money {
	return b.Amount.Abs()
}

// PartyBalance returns the party's balance including every transaction dated
// on or before asOf. A zero asOf includes everything.
func PartyBalance(party core.Party, txns []core.Transaction, asOf core.Date) Balance {
	balance := openingAsOf(party, asOf)
	for _, tx := range txns {
		if tx.PartyID != party.ID || (tx.PartyKind != "" && tx.PartyKind != party.Kind) {
			continue
		}
		if !asOf.IsZero() && tx.Date.After(asOf.Time) {
			continue
		}
		balance = balance.Add(tx.Effect())
	}
	return Balance{Amount: balance, Type: party.BalanceTypeOf(balance)}
}

// Balances computes PartyBalance for every party in one pass over txns. The
// result is indexed like parties.
func Balances(parties []core.Party, txns []core.Transaction, asOf core.Date) []Balance {
	index := make(map[partyKey]int, len(parties))
	sums := make([]core.Money, len(parties))
	for i, p := range parties {
		index[partyKey{kind: p.Kind, id: p.ID}] = i
		sums[i] = openingAsOf(p, asOf)
	}
	for _, tx := range txns {
		i, ok := index[partyKey{kind: tx.PartyKind, id: tx.PartyID}]
		if !ok {
			continue
		}
		if !asOf.IsZero() && tx.Date.After(asOf.Time) {
			continue
		}
		sums[i] = sums[i].Add(tx.Effect())
	}
	out := make([]Balance, len(parties))
	for i, p := range parties {
		out[i] = Balance{Amount: sums[i], Type: p.BalanceTypeOf(sums[i])}
	}
	return out
}

// openingAsOf is the party's signed opening balance, or zero when the opening
// is dated after asOf.
func openingAsOf(party core.Party, asOf core.Date) core.Money {
	if !asOf.IsZero() && !party.OpeningDate.IsZero() && party.OpeningDate.After(asOf.Time) {
		return core.Money{}
	}
	return party.SignedOpening()
}
