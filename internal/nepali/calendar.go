// Package nepali converts between Gregorian dates and Bikram Sambat (BS)
// dates and derives the Nepali fiscal year of a date.
package nepali

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrOutOfRange  = errors.New("nepali: date outside supported range")
	ErrInvalidDate = errors.New("nepali: invalid BS date")
)

// MonthNames are the BS month names, Baishakh first.
var MonthNames = [12]string{
	"Baishakh", "Jestha", "Asar", "Shrawan", "Bhadra", "Asoj",
	"Kartik", "Mangsir", "Poush", "Magh", "Falgun", "Chaitra",
}

// BSDate is a Bikram Sambat calendar date. Month is 1-12.
type BSDate struct {
	Year  int
	Month int
	Day   int
}

// ToBS converts a Gregorian date to BS. Only the calendar day of t is used.
func ToBS(t time.Time) (BSDate, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(day.Sub(epochAD).Hours() / 24)
	if offset < 0 {
		return BSDate{}, ErrOutOfRange
	}
	for i, months := range monthDays {
		for m, n := range months {
			if offset < n {
				return BSDate{Year: firstYear + i, Month: m + 1, Day: offset + 1}, nil
			}
			offset -= n
		}
	}
	return BSDate{}, ErrOutOfRange
}

// ToAD converts a BS date to its Gregorian date at midnight UTC.
func ToAD(d BSDate) (time.Time, error) {
	if err := d.Validate(); err != nil {
		return time.Time{}, err
	}
	offset := 0
	for y := firstYear; y < d.Year; y++ {
		offset += yearDays(y)
	}
	months := monthDays[d.Year-firstYear]
	for m := 0; m < d.Month-1; m++ {
		offset += months[m]
	}
	offset += d.Day - 1
	return epochAD.AddDate(0, 0, offset), nil
}

// MustToBS is ToBS for dates known to be inside the table.
func MustToBS(t time.Time) BSDate {
	d, err := ToBS(t)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate checks the date against the month-length table.
func (d BSDate) Validate() error {
	if d.Year < firstYear || d.Year > lastYear() {
		return ErrOutOfRange
	}
	if d.Month < 1 || d.Month > 12 {
		return ErrInvalidDate
	}
	if d.Day < 1 || d.Day > DaysInMonth(d.Year, d.Month) {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d BSDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MonthName returns the BS month name, or "" for an invalid month.
func (d BSDate) MonthName() string {
	if d.Month < 1 || d.Month > 12 {
		return ""
	}
	return MonthNames[d.Month-1]
}

// Before reports whether d is earlier than o.
func (d BSDate) Before(o BSDate) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// ParseBS parses "YYYY-MM-DD" or "YYYY/MM/DD".
func ParseBS(s string) (BSDate, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return BSDate{}, ErrInvalidDate
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return BSDate{}, ErrInvalidDate
		}
		nums[i] = n
	}
	d := BSDate{Year: nums[0], Month: nums[1], Day: nums[2]}
	if err := d.Validate(); err != nil {
		return BSDate{}, err
	}
	return d, nil
}

// DaysInMonth returns the length of a BS month, or 0 outside the table.
func DaysInMonth(year, month int) int {
	if year < firstYear || year > lastYear() || month < 1 || month > 12 {
		return 0
	}
	return monthDays[year-firstYear][month-1]
}

// Range returns the first and last Gregorian days that fall in a fiscal year
// the table covers completely: Shrawan 1 of the first table year through the
// end of Asar of the last. ToBS and ToAD accept the whole table.
func Range() (time.Time, time.Time) {
	first, _ := ToAD(BSDate{Year: firstYear, Month: shrawan, Day: 1})
	last, _ := ToAD(BSDate{Year: lastYear(), Month: shrawan - 1, Day: DaysInMonth(lastYear(), shrawan-1)})
	return first, last
}

func yearDays(year int) int {
	n := 0
	for _, d := range monthDays[year-firstYear] {
		n += d
	}
	return n
}

func lastYear() int {
	return firstYear + len(monthDays) - 1
}
