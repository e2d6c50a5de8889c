// Package streak maintains the cached streak counters of a habit from its
// completion history.
package streak

import (
	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/utils"
)

// Result is the outcome of recomputing a habit's streak on a given day
type Result struct {
	Current        int
	Longest        int
	CompletedToday bool
}

// CurrentRun counts the consecutive days present in days, walking backward
// from today. It is 0 when today itself is absent.
func CurrentRun(days map[string]bool, today string) int {
	t, err := utils.ParseDate(today)
	if err != nil {
		return 0
	}

	run := 0
	for days[t.Format(constants.DateFormat)] {
		run++
		t = t.AddDate(0, 0, -1)
	}
	return run
}

// Compute derives the streak counters for today. The longest streak only
// ever ratchets upward from prevLongest.
func Compute(days map[string]bool, today string, prevLongest int) Result {
	current := CurrentRun(days, today)
	return Result{
		Current:        current,
		Longest:        max(prevLongest, current),
		CompletedToday: days[today],
	}
}

// Effective reports the habit's streak as seen on today. The cached current
// streak only stays alive while the last completion is today or yesterday.
func Effective(h models.Habit, today string) models.Streak {
	s := models.Streak{
		HabitID:           h.ID,
		CurrentStreak:     h.CurrentStreak,
		LongestStreak:     max(h.LongestStreak, h.CurrentStreak),
		LastCompletedDate: h.LastCompletedDate,
	}
	if Lapsed(h, today) {
		s.CurrentStreak = 0
	}
	return s
}

// Lapsed reports whether the habit has a cached current streak that can no
// longer be extended on today.
func Lapsed(h models.Habit, today string) bool {
	if h.CurrentStreak == 0 {
		return false
	}
	if h.LastCompletedDate == nil {
		return true
	}
	gap, err := utils.DaysBetween(*h.LastCompletedDate, today)
	if err != nil {
		return false
	}
	return gap > 1
}
