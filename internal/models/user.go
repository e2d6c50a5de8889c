package models

import "time"

// UserSettings holds per-user display preferences
type UserSettings struct {
	WeekStart                 int    `json:"weekStart"` // 0 = Sunday ... 6 = Saturday
	Locale                    string `json:"locale"`
	NotificationsEmailEnabled bool   `json:"notificationsEmailEnabled"`
}

// User is an account that owns habits
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	DisplayName  string       `json:"displayName"`
	AvatarURL    string       `json:"avatarUrl,omitempty"`
	Timezone     string       `json:"timezone"` // IANA timezone name, anchors the user's calendar day
	Settings     UserSettings `json:"settings"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
