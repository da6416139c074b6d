// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer paisa. Parsing goes through decimal so that
// inputs such as "1,23,456.785" round the same way everywhere.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a rupee string to Money.
//
// Grouping commas are ignored in either western (1,234,567) or Nepali
// (12,34,567) style. The value is rounded half away from zero to two decimal
// places. Negative values are rejected; zero is allowed.
//
// Examples:
//
//	ParseAmount("1,23,456.78") -> 12345678 paisa
//	ParseAmount("12.345")      -> 1235 paisa
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.TrimPrefix(s, "रु")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	paisa := d.Round(2).Shift(2)
	if paisa.GreaterThan(decimal.NewFromInt(1 << 53)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Paisa: paisa.IntPart()}, nil
}

// MustAmount is ParseAmount for literals in tests and seed data.
func MustAmount(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Rupees constructs Money from whole rupees.
func Rupees(r int64) Money {
	return Money{Paisa: r * 100}
}

func (m Money) Validate() error {
	if m.Paisa <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Paisa: m.Paisa + o.Paisa} }
func (m Money) Sub(o Money) Money { return Money{Paisa: m.Paisa - o.Paisa} }
func (m Money) Neg() Money        { return Money{Paisa: -m.Paisa} }
func (m Money) IsZero() bool      { return m.Paisa == 0 }

func (m Money) Abs() Money {
	if m.Paisa < 0 {
		return m.Neg()
	}
	return m
}

// Decimal returns the rupee value. Use paisa for arithmetic.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Paisa, -2)
}

// String renders the amount with Nepali digit grouping, e.g. "-12,34,567.50".
func (m Money) String() string {
	return FormatLakh(m.Paisa)
}

// FormatLakh formats paisa as rupees grouped the South Asian way: the last
// three integer digits, then pairs (1,23,45,678.00).
func FormatLakh(paisa int64) string {
	neg := paisa < 0
	if neg {
		paisa = -paisa
	}
	whole := strconv.FormatInt(paisa/100, 10)
	frac := paisa % 100

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	if len(whole) <= 3 {
		b.WriteString(whole)
	} else {
		head, tail := whole[:len(whole)-3], whole[len(whole)-3:]
		first := len(head) % 2
		if first == 0 {
			first = 2
		}
		b.WriteString(head[:first])
		for i := first; i < len(head); i += 2 {
			b.WriteByte(',')
			b.WriteString(head[i : i+2])
		}
		b.WriteByte(',')
		b.WriteString(tail)
	}
	b.WriteByte('.')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}
