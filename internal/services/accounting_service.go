package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"hisab/internal/amqp"
	"hisab/internal/cache"
	"hisab/internal/config"
	"hisab/internal/core"
	"hisab/internal/nepali"
	"hisab/internal/storage"
)

// EventPublisher announces changes to the book. *amqp.Client satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, e *amqp.LedgerEvent) error
}

// AccountingService orchestrates book operations: it validates and prices
// vouchers, persists them, records activity, drops stale report snapshots
// and publishes ledger events. Publishing is best effort; the database is
// the source of truth.
type AccountingService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
	company config.Company
	reports cache.Cache[any]
	now     func() time.Time
}

type Option func(*AccountingService)

// WithPublisher enables ledger events. A nil publisher is ignored.
func WithPublisher(p EventPublisher) Option {
	return func(s *AccountingService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithReportCache replaces the default report snapshot cache.
func WithReportCache(c cache.Cache[any]) Option {
	return func(s *AccountingService) { s.reports = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *AccountingService) { s.now = now }
}

func NewAccountingService(storage *storage.SQLiteRepository, company config.Company, opts ...Option) *AccountingService {
	s := &AccountingService{
		storage: storage,
		company: company,
		reports: cache.NewLRUCache[any](128, 10*time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AccountingService) Company() config.Company {
	return s.company
}

// Storage exposes the repository for the raw bridge endpoints.
func (s *AccountingService) Storage() *storage.SQLiteRepository {
	return s.storage
}

// ReportCache exposes the snapshot cache so it can be registered for
// periodic cleanup.
func (s *AccountingService) ReportCache() cache.Cache[any] {
	return s.reports
}

func (s *AccountingService) today() core.Date {
	return core.DateOf(s.now())
}

// VATRate returns the rate in percent. The vat_rate setting wins over the
// company profile.
func (s *AccountingService) VATRate(ctx context.Context) decimal.Decimal {
	if v, err := s.storage.GetSetting(ctx, "vat_rate"); err == nil {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			return d
		}
		slog.WarnContext(ctx, "Ignoring invalid vat_rate setting", "value", v)
	}
	return s.company.VAT()
}

// RecordTransaction prices and validates a voucher, assigns its number and
// stores it.
func (s *AccountingService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := s.prepare(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.storage.CreateTransaction(ctx, t, s.company.Prefix(t.Type))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.afterTransaction(ctx, amqp.TransactionCreated, "create", saved)
	slog.InfoContext(ctx, "Transaction recorded",
		"transaction_id", saved.ID,
		"transaction_number", saved.Number,
		"transaction_type", saved.Type,
		"fiscal_year", saved.FiscalYear,
		"amount_paisa", saved.Total.Paisa)
	return saved, nil
}

// UpdateTransaction reprices and rewrites a voucher. Type and number are
// fixed once recorded.
func (s *AccountingService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	existing, err := s.storage.GetTransaction(ctx, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.Type == "" {
		t.Type = existing.Type
	}
	if t.Type != existing.Type {
		return core.Transaction{}, fmt.Errorf("%w: transaction type cannot change", core.ErrValidation)
	}
	t.Number = existing.Number
	if err := s.prepare(ctx, &t); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.storage.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.afterTransaction(ctx, amqp.TransactionUpdated, "update", saved)
	return saved, nil
}

func (s *AccountingService) DeleteTransaction(ctx context.Context, id int64) error {
	existing, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.afterTransaction(ctx, amqp.TransactionDeleted, "delete", existing)
	return nil
}

func (s *AccountingService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

func (s *AccountingService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, f)
}

// NextNumber previews the voucher number the next transaction of typ dated
// on date would receive.
func (s *AccountingService) NextNumber(ctx context.Context, typ core.TransactionType, date core.Date) (string, error) {
	if !typ.Valid() {
		return "", core.ErrInvalidType
	}
	if date.IsZero() {
		date = s.today()
	}
	fy, err := nepali.FiscalYearOf(date.Time)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidDate, err)
	}
	seq, err := s.storage.NextSequence(ctx, typ, fy.Label)
	if err != nil {
		return "", err
	}
	return storage.TransactionNumber(s.company.Prefix(typ), fy.Label, seq), nil
}

// prepare fills defaults, expands catalogue items and recomputes totals.
func (s *AccountingService) prepare(ctx context.Context, t *core.Transaction) error {
	if t.PartyKind == "" {
		switch t.Type {
		case core.Sale, core.SalesReturn, core.PaymentIn:
			t.PartyKind = core.Customer
		case core.Purchase, core.PurchaseReturn, core.PaymentOut:
			t.PartyKind = core.Supplier
		}
	}
	if t.PaymentMode == "" {
		t.PaymentMode = core.Cash
		if t.Type.IsInvoice() && t.PaidAmount.IsZero() {
			t.PaymentMode = core.CreditMode
		}
	}
	if t.Date.IsZero() {
		t.Date = s.today()
	}
	if len(t.Items) > 0 && !t.Type.IsInvoice() {
		return fmt.Errorf("%w: %s does not carry line items", core.ErrValidation, t.Type)
	}
	for i := range t.Items {
		if err := s.fillFromCatalogue(ctx, &t.Items[i]); err != nil {
			return err
		}
	}
	if err := t.ApplyItems(s.VATRate(ctx)); err != nil {
		return err
	}
	return t.Validate()
}

func (s *AccountingService) fillFromCatalogue(ctx context.Context, it *core.TransactionItem) error {
	if it.ServiceID == nil {
		return nil
	}
	svc, err := s.storage.GetService(ctx, *it.ServiceID)
	if err != nil {
		return fmt.Errorf("%w: line item references unknown service %d", core.ErrValidation, *it.ServiceID)
	}
	if it.Description == "" {
		it.Description = svc.Name
	}
	if it.Rate.IsZero() {
		it.Rate = svc.Rate
		it.Taxable = svc.Taxable
	}
	return nil
}

func (s *AccountingService) afterTransaction(ctx context.Context, typ amqp.EventType, action string, t core.Transaction) {
	s.InvalidateReports()
	s.logActivity(ctx, action, "transaction", t.ID, fmt.Sprintf("%s %s %s", t.Number, t.Type, t.Total))
	s.publish(ctx, amqp.NewLedgerEvent(typ, t.ID).ForParty(string(t.PartyKind), t.PartyID, t.FiscalYear))
}

// InvalidateReports drops every cached report snapshot.
func (s *AccountingService) InvalidateReports() {
	if s.reports != nil {
		s.reports.Purge()
	}
}

func (s *AccountingService) logActivity(ctx context.Context, action, entity string, id int64, details string) {
	if _, err := s.storage.LogActivity(ctx, core.ActivityEntry{Action: action, Entity: entity, EntityID: id, Details: details}); err != nil {
		slog.ErrorContext(ctx, "Failed to record activity", "action", action, "entity", entity, "id", id, "error", err)
	}
}

// publish sends e when a publisher is configured. Failures are logged and
// never fail the caller; the change is already committed.
func (s *AccountingService) publish(ctx context.Context, e *amqp.LedgerEvent) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping ledger event", "type", e.Type)
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", e.Type,
			"entity_id", e.EntityID,
			"error", err)
	}
}

// Close releases the publisher (when it is closable) and the database.
func (s *AccountingService) Close() error {
	var errs []error
	if c, ok := s.events.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close accounting service: %w", errors.Join(errs...))
	}
	return nil
}
