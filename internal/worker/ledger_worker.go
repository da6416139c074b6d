package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"hisab/internal/amqp"
	"hisab/internal/nepali"
	"hisab/internal/services"
	"hisab/internal/sheets"
)

// Book is the part of the accounting service the worker drives.
type Book interface {
	ExportFiscalYear(ctx context.Context, exp sheets.LedgerExporter, fiscalYear string) (string, error)
}

// Backups takes an on-demand backup.
type Backups interface {
	RunOnce(ctx context.Context) (string, error)
}

var timeNow = time.Now

var (
	_ Book    = (*services.AccountingService)(nil)
	_ Backups = (*services.BackupScheduler)(nil)
)

// DefaultBackupDebounce is the quiet period after the last change before a
// backup is taken.
const DefaultBackupDebounce = 2 * time.Minute

// LedgerWorker reacts to ledger events: it refreshes the fiscal-year summary
// in the spreadsheet and backs the book up once changes have settled. Fiscal
// years whose export failed stay pending and are retried by ProcessPending.
type LedgerWorker struct {
	book     Book
	exporter sheets.LedgerExporter
	backups  Backups
	debounce time.Duration

	mu         sync.Mutex
	pending    map[string]struct{}
	dirty      bool
	lastChange time.Time
}

// NewLedgerWorker creates a worker. exporter and backups may be nil, which
// disables the matching reaction.
func NewLedgerWorker(book Book, exporter sheets.LedgerExporter, backups Backups) *LedgerWorker {
	return &LedgerWorker{
		book:     book,
		exporter: exporter,
		backups:  backups,
		debounce: DefaultBackupDebounce,
		pending:  make(map[string]struct{}),
	}
}

// WithBackupDebounce sets the quiet period. Non-positive values keep the
// default.
func (w *LedgerWorker) WithBackupDebounce(d time.Duration) *LedgerWorker {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// HandleEvent processes one ledger event from AMQP. Returning an error
// requeues the message.
func (w *LedgerWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", e.ID,
		"type", e.Type,
		"entity_id", e.EntityID,
		"fiscal_year", e.FiscalYear)

	switch e.Type {
	case amqp.TransactionCreated, amqp.TransactionUpdated, amqp.TransactionDeleted:
		w.markChanged()
		w.export(ctx, e.FiscalYear)
	case amqp.BookRestored:
		w.markChanged()
		w.export(ctx, "")
	case amqp.BackupRequested:
		if w.backups == nil {
			slog.WarnContext(ctx, "No backup scheduler configured, skipping backup request", "event_id", e.ID)
			return nil
		}
		path, err := w.backups.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("requested backup: %w", err)
		}
		w.mu.Lock()
		w.dirty = false
		w.mu.Unlock()
		slog.InfoContext(ctx, "Requested backup written", "path", path)
	case amqp.PartyChanged:
		w.markChanged()
		slog.DebugContext(ctx, "Party change needs no export", "party_id", e.PartyID)
	default:
		slog.WarnContext(ctx, "Unknown ledger event type", "type", e.Type)
	}
	return nil
}

func (w *LedgerWorker) markChanged() {
	if w.backups == nil {
		return
	}
	w.mu.Lock()
	w.dirty = true
	w.lastChange = timeNow()
	w.mu.Unlock()
}

// BackupIfQuiet takes a backup when the book changed and no further change
// arrived for the debounce period. It reports whether a backup was written.
// A failed backup leaves the book marked as changed.
func (w *LedgerWorker) BackupIfQuiet(ctx context.Context) (bool, error) {
	if w.backups == nil {
		return false, nil
	}
	w.mu.Lock()
	due := w.dirty && timeNow().Sub(w.lastChange) >= w.debounce
	changedAt := w.lastChange
	w.mu.Unlock()
	if !due {
		return false, nil
	}

	path, err := w.backups.RunOnce(ctx)
	if err != nil {
		return false, fmt.Errorf("debounced backup: %w", err)
	}

	w.mu.Lock()
	// A change that landed while the backup ran keeps the book dirty.
	if w.lastChange.Equal(changedAt) {
		w.dirty = false
	}
	w.mu.Unlock()
	slog.InfoContext(ctx, "Debounced backup written", "path", path)
	return true, nil
}

// export refreshes one fiscal year ("" for the current one). Failures are
// remembered for the next ProcessPending.
func (w *LedgerWorker) export(ctx context.Context, fiscalYear string) {
	if w.exporter == nil {
		slog.DebugContext(ctx, "No ledger exporter configured, skipping export", "fiscal_year", fiscalYear)
		return
	}
	if fiscalYear == "" {
		fiscalYear = nepali.LabelOf(timeNow())
	}
	if _, err := w.book.ExportFiscalYear(ctx, w.exporter, fiscalYear); err != nil {
		slog.ErrorContext(ctx, "Failed to export fiscal year", "fiscal_year", fiscalYear, "error", err)
		w.mu.Lock()
		w.pending[fiscalYear] = struct{}{}
		w.mu.Unlock()
		return
	}
	w.mu.Lock()
	delete(w.pending, fiscalYear)
	w.mu.Unlock()
}

// Pending lists fiscal years waiting for a retry.
func (w *LedgerWorker) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.pending))
}

// ProcessPending retries every fiscal year whose export failed.
func (w *LedgerWorker) ProcessPending(ctx context.Context) error {
	years := w.Pending()
	if len(years) == 0 {
		return nil
	}
	slog.InfoContext(ctx, "Retrying pending exports", "count", len(years))

	var errs []error
	for _, fy := range years {
		w.export(ctx, fy)
	}
	for _, fy := range w.Pending() {
		errs = append(errs, fmt.Errorf("fiscal year %s still pending", fy))
	}
	return errors.Join(errs...)
}

// StartupSync exports the current fiscal year so the spreadsheet reflects
// writes made while the worker was down.
func (w *LedgerWorker) StartupSync(ctx context.Context) error {
	if w.exporter == nil {
		slog.InfoContext(ctx, "Spreadsheet export disabled, skipping startup sync")
		return nil
	}
	w.export(ctx, "")
	if pending := w.Pending(); len(pending) > 0 {
		return fmt.Errorf("startup export failed for %v", pending)
	}
	slog.InfoContext(ctx, "Startup sync completed")
	return nil
}
