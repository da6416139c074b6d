// Package memory is an in-process LedgerExporter used when no spreadsheet
// is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	ports "hisab/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	exports map[string][]ports.Row
	count   int
}

var _ ports.LedgerExporter = (*Store)(nil)

func New() *Store {
	return &Store{exports: make(map[string][]ports.Row)}
}

func (s *Store) ExportFiscalYear(ctx context.Context, fiscalYear string, rows []ports.Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[fiscalYear] = slices.Clone(rows)
	s.count++
	return fmt.Sprintf("mem:%s:%d", ports.SheetTitle(fiscalYear), s.count), nil
}

// Rows returns the last export for fiscalYear.
func (s *Store) Rows(fiscalYear string) ([]ports.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.exports[fiscalYear]
	return slices.Clone(rows), ok
}

// Exports is the number of exports performed.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
