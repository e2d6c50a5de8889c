package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/logger"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/storage"
	"github.com/julianstephens/habitline/internal/utils"
)

// Publisher receives events after a toggle commits
type Publisher interface {
	Publish(e events.Event)
}

// Options tunes how much completion history a toggle reads
type Options struct {
	// Window is the number of completion records fetched per page.
	Window int
	// MaxLookback caps the total number of records read for one toggle.
	// Equal to Window, only the most recent page is consulted.
	MaxLookback int
	// MaxRetries is how many times a toggle is attempted when the habit
	// was modified concurrently.
	MaxRetries int
}

// DefaultOptions returns the options used by the server and the CLI
func DefaultOptions() Options {
	return Options{
		Window:      constants.DefaultStreakWindow,
		MaxLookback: constants.DefaultStreakMaxLookback,
		MaxRetries:  constants.DefaultToggleRetries,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Window <= 0 {
		o.Window = d.Window
	}
	if o.MaxLookback <= 0 {
		o.MaxLookback = d.MaxLookback
	}
	if o.MaxLookback < o.Window {
		o.MaxLookback = o.Window
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	return o
}

// Engine records completions and keeps habit streak counters current
type Engine struct {
	store storage.Repository
	bus   Publisher
	opts  Options
	locks *keyedMutex
}

// New creates an engine over store. bus may be nil.
func New(store storage.Repository, bus Publisher, opts Options) *Engine {
	return &Engine{
		store: store,
		bus:   bus,
		opts:  opts.normalized(),
		locks: newKeyedMutex(),
	}
}

// Toggle marks today complete (or not) for the habit owned by userID and
// recomputes its streak. The completion write and the streak update commit
// together or not at all.
func (e *Engine) Toggle(ctx context.Context, habitID, userID string, markComplete bool, today string) (models.Habit, error) {
	if !utils.ValidateDate(today) {
		return models.Habit{}, errors.Validationf("invalid day %q, expected YYYY-MM-DD", today)
	}

	unlock := e.locks.Lock(habitID)
	defer unlock()

	var (
		habit models.Habit
		err   error
	)
	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		habit, err = e.toggle(ctx, habitID, userID, markComplete, today)
		if !errors.Is(err, storage.ErrStaleVersion) {
			break
		}
		logger.Debug("Habit changed during toggle, retrying", "habit", habitID, "attempt", attempt)
	}
	if errors.Is(err, storage.ErrStaleVersion) {
		return models.Habit{}, fmt.Errorf("toggle abandoned after %d attempts: %w", e.opts.MaxRetries, err)
	}
	if err != nil {
		return models.Habit{}, err
	}

	logger.Debug("Habit toggled",
		"habit", habitID,
		"day", today,
		"complete", markComplete,
		"current", habit.CurrentStreak,
		"longest", habit.LongestStreak,
	)

	if e.bus != nil {
		eventType := events.HabitUncompleted
		if markComplete {
			eventType = events.HabitCompleted
		}
		e.bus.Publish(events.Event{
			Type:    eventType,
			UserID:  userID,
			HabitID: habitID,
			Data:    habit,
		})
	}
	return habit, nil
}

func (e *Engine) toggle(ctx context.Context, habitID, userID string, markComplete bool, today string) (models.Habit, error) {
	var updated models.Habit
	err := e.store.WithTx(ctx, func(tx storage.Repository) error {
		habit, err := tx.GetHabit(ctx, habitID, userID)
		if err != nil {
			return err
		}

		if markComplete {
			err = tx.UpsertCompletion(ctx, models.Completion{
				ID:        uuid.NewString(),
				UserID:    userID,
				HabitID:   habitID,
				Day:       today,
				CreatedAt: time.Now().UTC(),
			})
		} else {
			_, err = tx.DeleteCompletion(ctx, userID, habitID, today)
		}
		if err != nil {
			return err
		}

		days, err := e.recentDays(ctx, tx, userID, habitID, today)
		if err != nil {
			return err
		}

		res := Compute(days, today, habit.LongestStreak)
		habit.CurrentStreak = res.Current
		habit.LongestStreak = res.Longest
		if res.CompletedToday {
			day := today
			habit.LastCompletedDate = &day
		}

		updated, err = tx.UpdateHabitStreak(ctx, habit)
		if err != nil {
			return err
		}
		updated.CompletedToday = res.CompletedToday
		return nil
	})
	return updated, err
}

// recentDays collects completed days, newest first, one page at a time. It
// stops once the run ending at today is known to be broken inside the
// fetched range, history is exhausted, or MaxLookback records were read.
func (e *Engine) recentDays(ctx context.Context, tx storage.Repository, userID, habitID, today string) (map[string]bool, error) {
	days := make(map[string]bool)
	before := ""
	fetched := 0

	for fetched < e.opts.MaxLookback {
		limit := min(e.opts.Window, e.opts.MaxLookback-fetched)
		page, err := tx.GetRecentCompletions(ctx, userID, habitID, before, limit)
		if err != nil {
			return nil, err
		}
		for _, c := range page {
			days[c.Day] = true
		}
		fetched += len(page)
		if len(page) < limit {
			break
		}

		// every day on or after oldest is now known
		oldest := page[len(page)-1].Day
		gap, err := utils.AddDays(today, -CurrentRun(days, today))
		if err != nil {
			return nil, err
		}
		if gap >= oldest {
			break
		}
		before = oldest
	}
	return days, nil
}

// Streak returns the streak of one habit as seen on today
func (e *Engine) Streak(ctx context.Context, habitID, userID, today string) (models.Streak, error) {
	h, err := e.store.GetHabit(ctx, habitID, userID)
	if err != nil {
		return models.Streak{}, err
	}
	return Effective(h, today), nil
}

// Streaks returns the streak of every habit owned by userID
func (e *Engine) Streaks(ctx context.Context, userID, today string) ([]models.Streak, error) {
	habits, err := e.store.GetAllHabits(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	out := make([]models.Streak, 0, len(habits))
	for _, h := range habits {
		out = append(out, Effective(h, today))
	}
	return out, nil
}
