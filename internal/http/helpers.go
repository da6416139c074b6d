package http

import (
	"fmt"
	"strings"

	"hisab/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseAmount parses an optional amount field. Empty means zero.
func parseAmount(field, s string) (core.Money, error) {
	s = sanitizeInput(s)
	if s == "" {
		return core.Money{}, nil
	}
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %s %q", core.ErrInvalidAmount, field, s)
	}
	return m, nil
}

// parseOptionalDate parses an optional YYYY-MM-DD field.
func parseOptionalDate(field, s string) (core.Date, error) {
	s = sanitizeInput(s)
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s %q", core.ErrInvalidDate, field, s)
	}
	return d, nil
}

// amount renders m as a plain decimal string, e.g. "1695.00".
func amount(m core.Money) string {
	return m.Decimal().StringFixed(2)
}
