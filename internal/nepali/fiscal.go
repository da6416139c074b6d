package nepali

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// shrawan is the BS month a fiscal year opens in.
const shrawan = 4

// FiscalYear is a Nepali fiscal year, Shrawan 1 through the last day of Asar
// of the following BS year. Start and End are Gregorian days, both inclusive.
type FiscalYear struct {
	StartYear int
	Label     string
	Start     time.Time
	End       time.Time
}

// FiscalYearFor builds the fiscal year opening in BS year startYear.
func FiscalYearFor(startYear int) (FiscalYear, error) {
	start, err := ToAD(BSDate{Year: startYear, Month: shrawan, Day: 1})
	if err != nil {
		return FiscalYear{}, err
	}
	next := startYear + 1
	end, err := ToAD(BSDate{Year: next, Month: shrawan - 1, Day: DaysInMonth(next, shrawan-1)})
	if err != nil {
		return FiscalYear{}, err
	}
	return FiscalYear{
		StartYear: startYear,
		Label:     Label(startYear),
		Start:     start,
		End:       end,
	}, nil
}

// FiscalYearOf returns the fiscal year containing t.
func FiscalYearOf(t time.Time) (FiscalYear, error) {
	bs, err := ToBS(t)
	if err != nil {
		return FiscalYear{}, err
	}
	y := bs.Year
	if bs.Month < shrawan {
		y--
	}
	return FiscalYearFor(y)
}

// LabelOf returns the fiscal-year label of t, or "" outside the table.
func LabelOf(t time.Time) string {
	fy, err := FiscalYearOf(t)
	if err != nil {
		return ""
	}
	return fy.Label
}

// Label formats a fiscal-year label such as "2081/82".
func Label(startYear int) string {
	return fmt.Sprintf("%d/%02d", startYear, (startYear+1)%100)
}

// ParseFiscalYear accepts "2081/82", "2081-82" or "2081/2082".
func ParseFiscalYear(s string) (FiscalYear, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "/")
	head, tail, ok := strings.Cut(s, "/")
	if !ok {
		return FiscalYear{}, fmt.Errorf("%w: fiscal year %q", ErrInvalidDate, s)
	}
	start, err := strconv.Atoi(head)
	if err != nil {
		return FiscalYear{}, fmt.Errorf("%w: fiscal year %q", ErrInvalidDate, s)
	}
	end, err := strconv.Atoi(tail)
	if err != nil {
		return FiscalYear{}, fmt.Errorf("%w: fiscal year %q", ErrInvalidDate, s)
	}
	switch len(tail) {
	case 2:
		if end != (start+1)%100 {
			return FiscalYear{}, fmt.Errorf("%w: fiscal year %q", ErrInvalidDate, s)
		}
	case 4:
		if end != start+1 {
			return FiscalYear{}, fmt.Errorf("%w: fiscal year %q", ErrInvalidDate, s)
		}
	default:
		return FiscalYear{}, fmt.Errorf("%w: fiscal year %q", ErrInvalidDate, s)
	}
	return FiscalYearFor(start)
}

// Next returns the following fiscal year.
func (fy FiscalYear) Next() (FiscalYear, error) {
	return FiscalYearFor(fy.StartYear + 1)
}

// Prev returns the preceding fiscal year.
func (fy FiscalYear) Prev() (FiscalYear, error) {
	return FiscalYearFor(fy.StartYear - 1)
}

// Contains reports whether the calendar day of t falls inside fy.
func (fy FiscalYear) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(fy.Start) && !day.After(fy.End)
}

func (fy FiscalYear) String() string {
	return fy.Label
}
