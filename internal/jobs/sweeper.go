package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/logger"
	"github.com/julianstephens/habitline/internal/storage"
	"github.com/julianstephens/habitline/internal/streak"
	"github.com/julianstephens/habitline/internal/utils"
)

// ScheduleParser accepts standard five-field specs, an optional leading
// seconds field, and descriptors such as @hourly.
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether schedule is a cron expression the sweeper can run
func ValidateSchedule(schedule string) error {
	if _, err := ScheduleParser.Parse(schedule); err != nil {
		return errors.Validationf("invalid schedule %q: %v", schedule, err)
	}
	return nil
}

// Report summarizes one sweep
type Report struct {
	Checked int
	Reset   int
	Skipped int
}

// Sweeper zeroes cached current streaks that lapsed because a day was
// missed without any toggle recomputing them.
type Sweeper struct {
	store storage.Repository
	bus   streak.Publisher
	now   func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper creates a sweeper over store. bus may be nil.
func NewSweeper(store storage.Repository, bus streak.Publisher) *Sweeper {
	return &Sweeper{
		store: store,
		bus:   bus,
		now:   time.Now,
	}
}

// RunOnce performs a single sweep over every habit with a live streak
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	habits, err := s.store.GetStreakingHabits(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load streaking habits: %w", err)
	}

	now := s.now()
	for _, sh := range habits {
		report.Checked++

		today, err := utils.DayInTimezone(now, sh.Timezone)
		if err != nil {
			logger.Warn("Invalid user timezone, using UTC", "user", sh.Habit.UserID, "timezone", sh.Timezone)
			today = now.UTC().Format(constants.DateFormat)
		}
		if !streak.Lapsed(sh.Habit, today) {
			continue
		}

		h := sh.Habit
		h.CurrentStreak = 0
		if _, err := s.store.UpdateHabitStreak(ctx, h); err != nil {
			if errors.Is(err, storage.ErrStaleVersion) || errors.Is(err, errors.ErrNotFound) {
				report.Skipped++
				continue
			}
			return report, fmt.Errorf("failed to reset streak for habit %s: %w", h.ID, err)
		}
		report.Reset++

		if s.bus != nil {
			s.bus.Publish(events.Event{
				Type:    events.StreakReset,
				UserID:  h.UserID,
				HabitID: h.ID,
				Data:    streak.Effective(h, today),
			})
		}
	}

	logger.Info("Streak sweep finished", "checked", report.Checked, "reset", report.Reset, "skipped", report.Skipped)
	return report, nil
}

// Start runs the sweeper on schedule until Stop is called
func (s *Sweeper) Start(schedule string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	l := cronLogger{}
	c := cron.New(
		cron.WithParser(ScheduleParser),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			logger.Error("Streak sweep failed", "error", err)
		}
	}); err != nil {
		return errors.Validationf("invalid schedule %q: %v", schedule, err)
	}

	c.Start()
	s.cron = c
	logger.Info("Streak sweeper started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// cronLogger routes cron's own messages to the application log
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
