package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPartyValidate(t *testing.T) {
	good := Party{Kind: Customer, Name: "Ram Traders", OpeningBalance: Rupees(100), OpeningType: Debit}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Party{
		{Kind: "vendor", Name: "x"},
		{Kind: Customer, Name: "  "},
		{Kind: Customer, Name: "x", OpeningBalance: Money{Paisa: -1}},
		{Kind: Supplier, Name: "x", OpeningType: "XX"},
		{Kind: Supplier, Name: "x", CreditDays: -3},
	}
	for i, p := range bads {
		if err := p.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestSignedOpening(t *testing.T) {
	c := Party{Kind: Customer, OpeningBalance: Rupees(50), OpeningType: Credit}
	if got := c.SignedOpening().Paisa; got != -5000 {
		t.Fatalf("customer CR opening = %d", got)
	}
	if got := c.BalanceTypeOf(Money{Paisa: -1}); got != Credit {
		t.Fatalf("customer negative balance = %s", got)
	}

	s := Party{Kind: Supplier, OpeningBalance: Rupees(50), OpeningType: Credit}
	if got := s.SignedOpening().Paisa; got != 5000 {
		t.Fatalf("supplier CR opening = %d", got)
	}
	if got := s.BalanceTypeOf(Rupees(1)); got != Credit {
		t.Fatalf("supplier positive balance = %s", got)
	}
}

func TestTransactionEffect(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		want int64
	}{
		{"credit sale", Transaction{Type: Sale, PartyKind: Customer, Total: Rupees(100)}, 10000},
		{"part paid sale", Transaction{Type: Sale, PartyKind: Customer, Total: Rupees(100), PaidAmount: Rupees(40)}, 6000},
		{"receipt", Transaction{Type: PaymentIn, PartyKind: Customer, Total: Rupees(30)}, -3000},
		{"refund to customer", Transaction{Type: PaymentOut, PartyKind: Customer, Total: Rupees(5)}, 500},
		{"sales return", Transaction{Type: SalesReturn, PartyKind: Customer, Total: Rupees(10)}, -1000},
		{"purchase", Transaction{Type: Purchase, PartyKind: Supplier, Total: Rupees(200)}, 20000},
		{"supplier payment", Transaction{Type: PaymentOut, PartyKind: Supplier, Total: Rupees(150)}, -15000},
		{"supplier refund", Transaction{Type: PaymentIn, PartyKind: Supplier, Total: Rupees(15)}, 1500},
		{"purchase return", Transaction{Type: PurchaseReturn, PartyKind: Supplier, Total: Rupees(20)}, -2000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tx.Effect().Paisa; got != tc.want {
				t.Errorf("Effect() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type: Sale, PartyID: 1, PartyKind: Customer,
		Date: NewDate(2024, 8, 1), Total: Rupees(100), PaidAmount: Rupees(100),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := []Transaction{
		{Type: "gift", PartyID: 1, PartyKind: Customer, Date: NewDate(2024, 8, 1), Total: Rupees(1)},
		{Type: Sale, PartyID: 1, PartyKind: Supplier, Date: NewDate(2024, 8, 1), Total: Rupees(1)},
		{Type: Sale, PartyID: 0, PartyKind: Customer, Date: NewDate(2024, 8, 1), Total: Rupees(1)},
		{Type: Sale, PartyID: 1, PartyKind: Customer, Total: Rupees(1)},
		{Type: Sale, PartyID: 1, PartyKind: Customer, Date: NewDate(2024, 8, 1)},
		{Type: Sale, PartyID: 1, PartyKind: Customer, Date: NewDate(2024, 8, 1), Total: Rupees(1), PaidAmount: Rupees(2)},
		{Type: PaymentIn, PartyID: 1, PartyKind: Customer, Date: NewDate(2024, 8, 1), Total: Rupees(2), PaidAmount: Rupees(1)},
	}
	for i, tx := range bad {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestApplyItems(t *testing.T) {
	tx := Transaction{
		Type:     Sale,
		Discount: Rupees(100),
		Items: []TransactionItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), Rate: Rupees(600), Taxable: true},
			{Description: "Books", Quantity: decimal.RequireFromString("1.5"), Rate: Rupees(200)},
		},
	}
	if err := tx.ApplyItems(decimal.NewFromInt(13)); err != nil {
		t.Fatalf("ApplyItems: %v", err)
	}
	// subtotal 1200 + 300 = 1500; discount share on taxable = 100*1200/1500 = 80
	if tx.SubTotal.Paisa != 150000 {
		t.Fatalf("subtotal = %d", tx.SubTotal.Paisa)
	}
	if tx.TaxableAmount.Paisa != 112000 {
		t.Fatalf("taxable = %d", tx.TaxableAmount.Paisa)
	}
	if tx.VAT.Paisa != 14560 {
		t.Fatalf("vat = %d", tx.VAT.Paisa)
	}
	if tx.Total.Paisa != 150000-10000+14560 {
		t.Fatalf("total = %d", tx.Total.Paisa)
	}
	if tx.Items[1].Amount.Paisa != 30000 {
		t.Fatalf("line amount = %d", tx.Items[1].Amount.Paisa)
	}
}

func TestApplyItemsRejectsLargeDiscount(t *testing.T) {
	tx := Transaction{
		Discount: Rupees(10),
		Items:    []TransactionItem{{Description: "x", Quantity: decimal.NewFromInt(1), Rate: Rupees(5)}},
	}
	if err := tx.ApplyItems(decimal.NewFromInt(13)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
