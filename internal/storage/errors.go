package storage

import "github.com/julianstephens/habitline/internal/errors"

// ErrStaleVersion is returned by UpdateHabitStreak when the habit was
// modified after it was read.
var ErrStaleVersion = errors.Conflictf("habit was modified concurrently")
