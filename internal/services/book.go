package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"hisab/internal/amqp"
	"hisab/internal/core"
	"hisab/internal/storage"
)

func (s *AccountingService) Settings(ctx context.Context) (map[string]string, error) {
	return s.storage.Settings(ctx)
}

// SetSetting stores a user setting. Sequence counters are managed by the
// book and cannot be written here.
func (s *AccountingService) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "sequence.") {
		return fmt.Errorf("%w: %q is reserved", core.ErrValidation, key)
	}
	if key == "vat_rate" {
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: vat_rate must be a number between 0 and 100", core.ErrValidation)
		}
		value = d.String()
	}
	if err := s.storage.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.InvalidateReports()
	s.logActivity(ctx, "update", "setting", 0, key)
	return nil
}

func (s *AccountingService) Activity(ctx context.Context, page, pageSize int) ([]core.ActivityEntry, bool, error) {
	return s.storage.ListActivity(ctx, page, pageSize)
}

// Backup writes a copy of the book to dest.
func (s *AccountingService) Backup(ctx context.Context, dest string) error {
	if err := s.storage.Backup(ctx, dest); err != nil {
		return err
	}
	s.logActivity(ctx, "backup", "database", 0, dest)
	return nil
}

// Restore swaps the live book for the backup at src. Every cached report is
// dropped and a book.restored event is published.
func (s *AccountingService) Restore(ctx context.Context, src string) error {
	if err := s.storage.Restore(ctx, src); err != nil {
		return err
	}
	s.InvalidateReports()
	s.logActivity(ctx, "restore", "database", 0, src)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.BookRestored, 0))
	return nil
}

// Query runs a read-only statement for the renderer bridge.
func (s *AccountingService) Query(ctx context.Context, stmt string, args ...any) ([]map[string]any, error) {
	return s.storage.Query(ctx, stmt, args...)
}

// Update runs a write statement for the renderer bridge. The write bypasses
// validation, so every cached report is dropped.
func (s *AccountingService) Update(ctx context.Context, stmt string, args ...any) (storage.UpdateResult, error) {
	res, err := s.storage.Update(ctx, stmt, args...)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	s.InvalidateReports()
	slog.InfoContext(ctx, "Bridge update applied", "rows_affected", res.RowsAffected)
	return res, nil
}

func (s *AccountingService) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}
