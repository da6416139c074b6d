package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Customer PartyKind = "customer"
	Supplier PartyKind = "supplier"
)

const (
	Debit  BalanceType = "DR"
	Credit BalanceType = "CR"
)

const (
	Sale           TransactionType = "sale"
	Purchase       TransactionType = "purchase"
	PaymentIn      TransactionType = "payment_in"
	PaymentOut     TransactionType = "payment_out"
	SalesReturn    TransactionType = "sales_return"
	PurchaseReturn TransactionType = "purchase_return"
)

const (
	Cash       PaymentMode = "cash"
	Bank       PaymentMode = "bank"
	Cheque     PaymentMode = "cheque"
	CreditMode PaymentMode = "credit"
)

type (
	PartyKind       string
	BalanceType     string
	TransactionType string
	PaymentMode     string

	Date struct {
		time.Time
	}

	Money struct {
		Paisa int64
	}

	// Party is a customer or a supplier. OpeningBalance is always stored as a
	// non-negative amount; OpeningType says which side it sits on.
	Party struct {
		ID             int64
		Kind           PartyKind
		Name           string
		Phone          string
		Email          string
		Address        string
		PAN            string
		OpeningBalance Money
		OpeningType    BalanceType
		OpeningDate    Date
		CreditDays     int
		Active         bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Service struct {
		ID          int64
		Name        string
		Description string
		Rate        Money
		Unit        string
		Taxable     bool
		Active      bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Transaction struct {
		ID            int64
		Number        string
		Type          TransactionType
		PartyID       int64
		PartyKind     PartyKind
		PartyName     string // filled on reads, not persisted
		Date          Date
		FiscalYear    string
		SubTotal      Money
		Discount      Money
		TaxableAmount Money
		VAT           Money
		Total         Money
		PaidAmount    Money
		PaymentMode   PaymentMode
		Reference     string
		Notes         string
		Items         []TransactionItem
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	TransactionItem struct {
		ID            int64
		TransactionID int64
		ServiceID     *int64
		Description   string
		Quantity      decimal.Decimal
		Rate          Money
		Amount        Money
		Taxable       bool
	}

	ActivityEntry struct {
		ID        int64
		Action    string
		Entity    string
		EntityID  int64
		Details   string
		CreatedAt time.Time
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidDate      = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrEmptyName        = fmt.Errorf("%w: empty name", ErrValidation)
	ErrInvalidKind      = fmt.Errorf("%w: invalid party kind", ErrValidation)
	ErrInvalidType      = fmt.Errorf("%w: invalid transaction type", ErrValidation)
	ErrPartyMismatch    = fmt.Errorf("%w: transaction type does not apply to party kind", ErrValidation)
	ErrOverpaid         = fmt.Errorf("%w: paid amount exceeds total", ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: invalid quantity", ErrValidation)
	ErrEmptyDescription = fmt.Errorf("%w: empty description", ErrValidation)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (k PartyKind) Valid() bool {
	return k == Customer || k == Supplier
}

func (t TransactionType) Valid() bool {
	switch t {
	case Sale, Purchase, PaymentIn, PaymentOut, SalesReturn, PurchaseReturn:
		return true
	}
	return false
}

// AppliesTo reports whether a transaction of this type can be recorded
// against a party of kind k.
func (t TransactionType) AppliesTo(k PartyKind) bool {
	switch t {
	case Sale, SalesReturn:
		return k == Customer
	case Purchase, PurchaseReturn:
		return k == Supplier
	case PaymentIn, PaymentOut:
		return k.Valid()
	}
	return false
}

// IsInvoice reports whether the type carries line items and VAT.
func (t TransactionType) IsInvoice() bool {
	switch t {
	case Sale, Purchase, SalesReturn, PurchaseReturn:
		return true
	}
	return false
}

func (p Party) Validate() error {
	if !p.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrValidation)
	}
	if p.OpeningBalance.Paisa < 0 {
		return ErrInvalidAmount
	}
	if p.OpeningType != "" && p.OpeningType != Debit && p.OpeningType != Credit {
		return fmt.Errorf("%w: opening balance type must be DR or CR", ErrValidation)
	}
	if p.CreditDays < 0 {
		return fmt.Errorf("%w: credit days cannot be negative", ErrValidation)
	}
	return nil
}

// NaturalType is the side a positive balance sits on for this party:
// customers owe us (DR), we owe suppliers (CR).
func (p Party) NaturalType() BalanceType {
	if p.Kind == Supplier {
		return Credit
	}
	return Debit
}

// SignedOpening returns the opening balance in the party's natural direction.
func (p Party) SignedOpening() Money {
	opening := p.OpeningBalance
	if p.OpeningType != "" && p.OpeningType != p.NaturalType() {
		return opening.Neg()
	}
	return opening
}

// BalanceTypeOf returns the CR/DR indicator for a signed natural balance.
func (p Party) BalanceTypeOf(balance Money) BalanceType {
	natural := p.NaturalType()
	if balance.Paisa >= 0 {
		return natural
	}
	if natural == Debit {
		return Credit
	}
	return Debit
}

func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if s.Rate.Paisa < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (it TransactionItem) Validate() error {
	if strings.TrimSpace(it.Description) == "" {
		return ErrEmptyDescription
	}
	if !it.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if it.Rate.Paisa < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.PartyID <= 0 {
		return fmt.Errorf("%w: party is required", ErrValidation)
	}
	if !t.Type.AppliesTo(t.PartyKind) {
		return ErrPartyMismatch
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Total.Paisa <= 0 {
		return ErrInvalidAmount
	}
	if t.Discount.Paisa < 0 || t.VAT.Paisa < 0 || t.PaidAmount.Paisa < 0 {
		return ErrInvalidAmount
	}
	if t.PaidAmount.Paisa > t.Total.Paisa {
		return ErrOverpaid
	}
	if t.PaidAmount.Paisa > 0 && t.Type != Sale && t.Type != Purchase {
		return fmt.Errorf("%w: paid amount only applies to sales and purchases", ErrValidation)
	}
	for _, it := range t.Items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Effect is the signed change this transaction makes to its party's balance,
// measured in the party's natural direction.
func (t Transaction) Effect() Money {
	switch t.Type {
	case Sale, Purchase:
		return t.Total.Sub(t.PaidAmount)
	case SalesReturn, PurchaseReturn:
		return t.Total.Neg()
	case PaymentIn:
		if t.PartyKind == Supplier {
			return t.Total
		}
		return t.Total.Neg()
	case PaymentOut:
		if t.PartyKind == Customer {
			return t.Total
		}
		return t.Total.Neg()
	}
	return Money{}
}

// ApplyItems recomputes SubTotal, TaxableAmount, VAT and Total from the line
// items, the current Discount and a VAT rate in percent. The discount is
// spread over taxable and exempt lines in proportion to their value.
// Transactions without items keep their Total.
func (t *Transaction) ApplyItems(vatRate decimal.Decimal) error {
	if len(t.Items) == 0 {
		return nil
	}
	var subTotal, taxable int64
	for i := range t.Items {
		it := &t.Items[i]
		if err := it.Validate(); err != nil {
			return err
		}
		it.Amount = LineAmount(it.Quantity, it.Rate)
		subTotal += it.Amount.Paisa
		if it.Taxable {
			taxable += it.Amount.Paisa
		}
	}
	if t.Discount.Paisa > subTotal {
		return fmt.Errorf("%w: discount exceeds subtotal", ErrValidation)
	}

	taxableAfter := decimal.Zero
	if subTotal > 0 && taxable > 0 {
		share := decimal.NewFromInt(t.Discount.Paisa).
			Mul(decimal.NewFromInt(taxable)).
			Div(decimal.NewFromInt(subTotal))
		taxableAfter = decimal.NewFromInt(taxable).Sub(share).Round(0)
	}
	vat := taxableAfter.Mul(vatRate).Div(decimal.NewFromInt(100)).Round(0)

	t.SubTotal = Money{Paisa: subTotal}
	t.TaxableAmount = Money{Paisa: taxableAfter.IntPart()}
	t.VAT = Money{Paisa: vat.IntPart()}
	t.Total = Money{Paisa: subTotal - t.Discount.Paisa + t.VAT.Paisa}
	return nil
}

// LineAmount multiplies quantity by rate and rounds to the nearest paisa.
func LineAmount(qty decimal.Decimal, rate Money) Money {
	return Money{Paisa: qty.Mul(decimal.NewFromInt(rate.Paisa)).Round(0).IntPart()}
}
