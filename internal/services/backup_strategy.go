package services

import (
	"fmt"
	"time"
)

// BackupFrequency is how often the scheduler writes a backup.
type BackupFrequency string

const (
	BackupOff     BackupFrequency = "off"
	BackupDaily   BackupFrequency = "daily"
	BackupWeekly  BackupFrequency = "weekly"
	BackupMonthly BackupFrequency = "monthly"
)

// DuenessChecker decides whether a backup is due given the time of the last
// one. A zero lastBackup means none has been taken.
type DuenessChecker interface {
	IsDue(lastBackup, now time.Time) bool
}

type DailyChecker struct{}

// IsDue returns true if the last backup was taken before today.
func (DailyChecker) IsDue(lastBackup, now time.Time) bool {
	if lastBackup.IsZero() {
		return true
	}
	return lastBackup.Format(time.DateOnly) != now.Format(time.DateOnly)
}

type WeeklyChecker struct{}

// IsDue returns true if 7 or more days have passed.
func (WeeklyChecker) IsDue(lastBackup, now time.Time) bool {
	if lastBackup.IsZero() {
		return true
	}
	return now.Sub(lastBackup) >= 7*24*time.Hour
}

type MonthlyChecker struct{}

// IsDue returns true once per calendar month.
func (MonthlyChecker) IsDue(lastBackup, now time.Time) bool {
	if lastBackup.IsZero() {
		return true
	}
	return lastBackup.Year() != now.Year() || lastBackup.Month() != now.Month()
}

type neverChecker struct{}

func (neverChecker) IsDue(time.Time, time.Time) bool { return false }

var duenessStrategies = map[BackupFrequency]DuenessChecker{
	BackupOff:     neverChecker{},
	BackupDaily:   DailyChecker{},
	BackupWeekly:  WeeklyChecker{},
	BackupMonthly: MonthlyChecker{},
}

func GetDuenessChecker(frequency BackupFrequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown backup frequency: %s", frequency)
	}
	return checker, nil
}
