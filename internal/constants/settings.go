package constants

const (
	// Default user settings values
	DefaultTimezone                  = "UTC"
	DefaultWeekStart                 = 6
	DefaultLocale                    = "fa-IR"
	DefaultNotificationsEmailEnabled = false

	// Field limits
	MinDisplayNameLen = 2
	MaxDisplayNameLen = 50
	MinHabitNameLen   = 2
	MaxHabitNameLen   = 60
	MaxDescriptionLen = 300
	MinPasswordLen    = 6
)
