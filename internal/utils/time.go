package utils

import (
	"fmt"
	"time"
	_ "time/tzdata" // timezone lookups must not depend on the host zoneinfo

	"github.com/julianstephens/habitline/internal/constants"
)

// GetTodayInTimezone returns today's date string (YYYY-MM-DD) in the specified timezone.
// This ensures that "today" is determined by the user's configured timezone, not the system timezone.
func GetTodayInTimezone(timezone string) (string, error) {
	return DayInTimezone(time.Now(), timezone)
}

// DayInTimezone returns the calendar day (YYYY-MM-DD) that instant t falls on
// in the specified timezone.
func DayInTimezone(t time.Time, timezone string) (string, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return t.In(loc).Format(constants.DateFormat), nil
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is empty it falls back to UTC; "Local" selects the system timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	switch timezone {
	case "":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// ParseDate parses a date string in the standard format (YYYY-MM-DD).
// The result is midnight UTC so that day arithmetic is free of DST shifts.
func ParseDate(day string) (time.Time, error) {
	return time.Parse(constants.DateFormat, day)
}

// ValidateDate checks if the string is a real calendar day in YYYY-MM-DD format.
func ValidateDate(day string) bool {
	_, err := ParseDate(day)
	return err == nil
}

// AddDays shifts a YYYY-MM-DD day by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := ParseDate(day)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", day, err)
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}

// DaysBetween returns the number of calendar days from one day to another.
// The result is negative when to is before from.
func DaysBetween(from, to string) (int, error) {
	f, err := ParseDate(from)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", from, err)
	}
	t, err := ParseDate(to)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", to, err)
	}
	return int(t.Sub(f).Hours() / 24), nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	if timezone == "" || timezone == "Local" {
		return true
	}
	_, err := time.LoadLocation(timezone)
	return err == nil
}
