package models

import (
	"time"

	"github.com/julianstephens/habitline/internal/constants"
)

// HabitStatus is the lifecycle state of a habit
type HabitStatus string

const (
	HabitActive   HabitStatus = "active"
	HabitArchived HabitStatus = "archived"
)

// Habit represents a recurring practice to track
type Habit struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Color       string              `json:"color,omitempty"`
	Frequency   constants.Frequency `json:"frequency"`
	StartDate   *string             `json:"startDate,omitempty"` // YYYY-MM-DD format
	Order       *int                `json:"order,omitempty"`

	CurrentStreak     int     `json:"currentStreak"`
	LongestStreak     int     `json:"longestStreak"`
	LastCompletedDate *string `json:"lastCompletedDate"` // YYYY-MM-DD format

	// CompletedToday is derived from the completion store at query time and
	// never persisted.
	CompletedToday bool `json:"completedToday"`

	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// Status reports whether the habit is active or archived
func (h Habit) Status() HabitStatus {
	if h.ArchivedAt != nil {
		return HabitArchived
	}
	return HabitActive
}

// Completion records that a habit was performed by its owner on a calendar day
type Completion struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	HabitID   string    `json:"habitId"`
	Day       string    `json:"day"` // YYYY-MM-DD format
	CreatedAt time.Time `json:"createdAt"`
}

// Streak is the streak view of a habit
type Streak struct {
	HabitID           string  `json:"habitId,omitempty"`
	CurrentStreak     int     `json:"currentStreak"`
	LongestStreak     int     `json:"longestStreak"`
	LastCompletedDate *string `json:"lastCompletedDate"`
}
