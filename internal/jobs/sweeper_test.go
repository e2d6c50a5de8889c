package jobs

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/storage/sqlite"
	"github.com/julianstephens/habitline/internal/streak"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func addUser(t *testing.T, store *sqlite.Store, tz string) models.User {
	t.Helper()
	now := time.Now().UTC()
	u := models.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		DisplayName:  "Sweeper",
		Timezone:     tz,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.AddUser(context.Background(), u))
	return u
}

func addHabit(t *testing.T, store *sqlite.Store, userID, name string) models.Habit {
	t.Helper()
	now := time.Now().UTC()
	h := models.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Frequency: "daily",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.AddHabit(context.Background(), h))
	return h
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 5 * * * *"))
	assert.NoError(t, ValidateSchedule("5 * * * *"))
	assert.NoError(t, ValidateSchedule("@hourly"))

	err := ValidateSchedule("every tuesday")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestRunOnceResetsLapsedStreaks(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	engine := streak.New(store, nil, streak.DefaultOptions())

	utcUser := addUser(t, store, "UTC")
	lapsed := addHabit(t, store, utcUser.ID, "Lapsed")
	alive := addHabit(t, store, utcUser.ID, "Alive")

	_, err := engine.Toggle(ctx, lapsed.ID, utcUser.ID, true, "2024-03-07")
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, lapsed.ID, utcUser.ID, true, "2024-03-08")
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, alive.ID, utcUser.ID, true, "2024-03-09")
	require.NoError(t, err)

	rec := &recorder{}
	s := NewSweeper(store, rec)
	s.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	report, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 2, Reset: 1}, report)

	got, err := store.GetHabit(ctx, lapsed.ID, utcUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 2, got.LongestStreak)
	require.NotNil(t, got.LastCompletedDate)
	assert.Equal(t, "2024-03-08", *got.LastCompletedDate)

	kept, err := store.GetHabit(ctx, alive.ID, utcUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.CurrentStreak)

	require.Len(t, rec.events, 1)
	assert.Equal(t, events.StreakReset, rec.events[0].Type)
	assert.Equal(t, lapsed.ID, rec.events[0].HabitID)

	// a second sweep has nothing left to do
	report, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1}, report)
}

func TestRunOnceUsesOwnerTimezone(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	engine := streak.New(store, nil, streak.DefaultOptions())

	// 2024-03-10 22:00 UTC is already 2024-03-11 in Tehran
	now := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	tehran := addUser(t, store, "Asia/Tehran")
	utc := addUser(t, store, "UTC")
	th := addHabit(t, store, tehran.ID, "Read")
	uh := addHabit(t, store, utc.ID, "Read")

	_, err := engine.Toggle(ctx, th.ID, tehran.ID, true, "2024-03-09")
	require.NoError(t, err)
	_, err = engine.Toggle(ctx, uh.ID, utc.ID, true, "2024-03-09")
	require.NoError(t, err)

	s := NewSweeper(store, nil)
	s.now = func() time.Time { return now }

	report, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reset)

	got, _ := store.GetHabit(ctx, th.ID, tehran.ID)
	assert.Equal(t, 0, got.CurrentStreak)
	got, _ = store.GetHabit(ctx, uh.ID, utc.ID)
	assert.Equal(t, 1, got.CurrentStreak)
}

func TestStartStop(t *testing.T) {
	store := setupStore(t)
	s := NewSweeper(store, nil)

	assert.Error(t, s.Start("not a schedule", time.Second))

	require.NoError(t, s.Start("@every 1h", time.Second))
	assert.Error(t, s.Start("@every 1h", time.Second), "starting twice should fail")
	s.Stop()
	// stopping an idle sweeper is a no-op
	s.Stop()
}
