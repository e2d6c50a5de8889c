package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/utils"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// ValidateID checks that id is a UUID
func ValidateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.Validationf("invalid %s", field)
	}
	return nil
}

// ValidateEmail checks the basic shape of an email address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return errors.Validationf("invalid email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.Validationf("invalid email")
	}
	return nil
}

// ValidatePassword checks the minimum password length
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < constants.MinPasswordLen {
		return errors.Validationf("password must be at least %d characters", constants.MinPasswordLen)
	}
	return nil
}

// ValidateDisplayName checks the display name length after trimming
func ValidateDisplayName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < constants.MinDisplayNameLen || n > constants.MaxDisplayNameLen {
		return errors.Validationf("display name must be between %d and %d characters", constants.MinDisplayNameLen, constants.MaxDisplayNameLen)
	}
	return nil
}

// ValidateHabitName checks the habit name length after trimming
func ValidateHabitName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < constants.MinHabitNameLen || n > constants.MaxHabitNameLen {
		return errors.Validationf("habit name must be between %d and %d characters", constants.MinHabitNameLen, constants.MaxHabitNameLen)
	}
	return nil
}

// ValidateDescription checks the optional description length
func ValidateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > constants.MaxDescriptionLen {
		return errors.Validationf("description must be at most %d characters", constants.MaxDescriptionLen)
	}
	return nil
}

// ValidateColor checks an optional #RRGGBB color
func ValidateColor(color string) error {
	if color == "" {
		return nil
	}
	if !colorPattern.MatchString(color) {
		return errors.Validationf("color must be in #RRGGBB format")
	}
	return nil
}

// ValidateFrequency checks that the frequency is supported. Empty means daily.
func ValidateFrequency(freq constants.Frequency) error {
	if freq == "" || freq == constants.FrequencyDaily {
		return nil
	}
	return errors.Validationf("unsupported frequency %q", freq)
}

// ValidateStartDate checks an optional YYYY-MM-DD start date
func ValidateStartDate(day *string) error {
	if day == nil || *day == "" {
		return nil
	}
	if !utils.ValidateDate(*day) {
		return errors.Validationf("start date must be in YYYY-MM-DD format")
	}
	return nil
}

// ValidateOrder checks an optional non-negative sort order
func ValidateOrder(order *int) error {
	if order != nil && *order < 0 {
		return errors.Validationf("order must be a non-negative integer")
	}
	return nil
}

// ValidateTimezone checks an IANA timezone name
func ValidateTimezone(tz string) error {
	if !utils.ValidateTimezone(tz) {
		return errors.Validationf("invalid timezone %q", tz)
	}
	return nil
}

// ValidateWeekStart checks a weekday index
func ValidateWeekStart(day int) error {
	if day < 0 || day > 6 {
		return errors.Validationf("week start must be between 0 and 6")
	}
	return nil
}

// First returns the first non-nil error
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
