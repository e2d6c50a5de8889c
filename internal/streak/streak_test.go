package streak

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/julianstephens/habitline/internal/models"
)

func daySet(days ...string) map[string]bool {
	set := make(map[string]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

func TestCurrentRun(t *testing.T) {
	tests := []struct {
		name  string
		days  map[string]bool
		today string
		want  int
	}{
		{"empty", daySet(), "2024-03-10", 0},
		{"today only", daySet("2024-03-10"), "2024-03-10", 1},
		{"three consecutive", daySet("2024-03-10", "2024-03-09", "2024-03-08", "2024-03-06"), "2024-03-10", 3},
		{"today missing", daySet("2024-03-09", "2024-03-08"), "2024-03-10", 0},
		{"across month end", daySet("2024-03-01", "2024-02-29", "2024-02-28"), "2024-03-01", 3},
		{"across year end", daySet("2024-01-01", "2023-12-31"), "2024-01-01", 2},
		{"future days ignored", daySet("2024-03-11", "2024-03-10"), "2024-03-10", 1},
		{"invalid today", daySet("2024-03-10"), "03/10/2024", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentRun(tt.days, tt.today))
		})
	}
}

func TestCompute(t *testing.T) {
	res := Compute(daySet("2024-03-10", "2024-03-09"), "2024-03-10", 5)
	assert.Equal(t, Result{Current: 2, Longest: 5, CompletedToday: true}, res)

	res = Compute(daySet("2024-03-10", "2024-03-09"), "2024-03-10", 1)
	assert.Equal(t, 2, res.Longest)

	res = Compute(daySet("2024-03-09"), "2024-03-10", 4)
	assert.Equal(t, Result{Current: 0, Longest: 4, CompletedToday: false}, res)
}

func strPtr(s string) *string { return &s }

func TestEffective(t *testing.T) {
	tests := []struct {
		name        string
		habit       models.Habit
		today       string
		wantCurrent int
		wantLongest int
	}{
		{
			name:  "no streak data",
			habit: models.Habit{ID: "h"},
			today: "2024-03-10",
		},
		{
			name:        "completed today",
			habit:       models.Habit{ID: "h", CurrentStreak: 3, LongestStreak: 4, LastCompletedDate: strPtr("2024-03-10")},
			today:       "2024-03-10",
			wantCurrent: 3,
			wantLongest: 4,
		},
		{
			name:        "completed yesterday",
			habit:       models.Habit{ID: "h", CurrentStreak: 3, LongestStreak: 3, LastCompletedDate: strPtr("2024-03-09")},
			today:       "2024-03-10",
			wantCurrent: 3,
			wantLongest: 3,
		},
		{
			name:        "lapsed",
			habit:       models.Habit{ID: "h", CurrentStreak: 3, LongestStreak: 7, LastCompletedDate: strPtr("2024-03-08")},
			today:       "2024-03-10",
			wantCurrent: 0,
			wantLongest: 7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Effective(tt.habit, tt.today)
			assert.Equal(t, "h", s.HabitID)
			assert.Equal(t, tt.wantCurrent, s.CurrentStreak)
			assert.Equal(t, tt.wantLongest, s.LongestStreak)
			assert.Equal(t, tt.habit.LastCompletedDate, s.LastCompletedDate)
		})
	}
}

func TestLapsed(t *testing.T) {
	assert.False(t, Lapsed(models.Habit{}, "2024-03-10"))
	assert.True(t, Lapsed(models.Habit{CurrentStreak: 1}, "2024-03-10"))
	assert.False(t, Lapsed(models.Habit{CurrentStreak: 1, LastCompletedDate: strPtr("2024-03-09")}, "2024-03-10"))
	assert.True(t, Lapsed(models.Habit{CurrentStreak: 1, LastCompletedDate: strPtr("2024-03-01")}, "2024-03-10"))
	// a timezone change can put the last completion ahead of today
	assert.False(t, Lapsed(models.Habit{CurrentStreak: 1, LastCompletedDate: strPtr("2024-03-11")}, "2024-03-10"))
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Zero(t, k.size())
}

func TestOptionsNormalized(t *testing.T) {
	o := Options{}.normalized()
	assert.Equal(t, DefaultOptions(), o)

	o = Options{Window: 10, MaxLookback: 5}.normalized()
	assert.Equal(t, 10, o.MaxLookback)

	o = Options{Window: 60, MaxLookback: 60, MaxRetries: 1}.normalized()
	assert.Equal(t, Options{Window: 60, MaxLookback: 60, MaxRetries: 1}, o)
}
