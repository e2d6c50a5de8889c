package streak

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
	"github.com/julianstephens/habitline/internal/storage"
	"github.com/julianstephens/habitline/internal/storage/sqlite"
	"github.com/julianstephens/habitline/internal/utils"
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

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store  *sqlite.Store
	userID string
	habit  models.Habit
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store := sqlite.NewStore(filepath.Join(t.TempDir(), "streak.db"))
	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		DisplayName:  "Streaker",
		Timezone:     "UTC",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.AddUser(ctx, user))

	habit := models.Habit{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      "Exercise",
		Frequency: "daily",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.AddHabit(ctx, habit))

	return fixture{store: store, userID: user.ID, habit: habit}
}

// day returns base shifted by n days
func day(t *testing.T, n int) string {
	t.Helper()
	d, err := utils.AddDays("2024-03-10", n)
	require.NoError(t, err)
	return d
}

func (f fixture) toggle(t *testing.T, e *Engine, complete bool, today string) models.Habit {
	t.Helper()
	h, err := e.Toggle(context.Background(), f.habit.ID, f.userID, complete, today)
	require.NoError(t, err)
	return h
}

func (f fixture) seed(t *testing.T, days ...string) {
	t.Helper()
	for _, d := range days {
		require.NoError(t, f.store.UpsertCompletion(context.Background(), models.Completion{
			ID:        uuid.NewString(),
			UserID:    f.userID,
			HabitID:   f.habit.ID,
			Day:       d,
			CreatedAt: time.Now(),
		}))
	}
}

func TestToggleCompleteIsIdempotent(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())
	today := day(t, 0)

	first := f.toggle(t, e, true, today)
	second := f.toggle(t, e, true, today)

	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, first.CurrentStreak, second.CurrentStreak)
	assert.Equal(t, first.LongestStreak, second.LongestStreak)
	assert.Equal(t, first.LastCompletedDate, second.LastCompletedDate)
	assert.True(t, second.CompletedToday)

	rows, err := f.store.GetRecentCompletions(context.Background(), f.userID, f.habit.ID, "", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestToggleUncompleteIsIdempotent(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())
	today := day(t, 0)

	fresh := f.toggle(t, e, false, today)
	assert.Equal(t, 0, fresh.CurrentStreak)
	assert.Equal(t, 0, fresh.LongestStreak)
	assert.Nil(t, fresh.LastCompletedDate)
	assert.False(t, fresh.CompletedToday)

	f.toggle(t, e, true, today)
	undone := f.toggle(t, e, false, today)
	again := f.toggle(t, e, false, today)

	assert.Equal(t, undone.CurrentStreak, again.CurrentStreak)
	assert.Equal(t, undone.LongestStreak, again.LongestStreak)
	assert.Equal(t, 0, again.CurrentStreak)
	assert.Equal(t, 1, again.LongestStreak)
	// the last completed day is kept when today is undone
	require.NotNil(t, again.LastCompletedDate)
	assert.Equal(t, today, *again.LastCompletedDate)
}

func TestLongestStreakRatchets(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())

	steps := []struct {
		offset   int
		complete bool
	}{
		{0, true}, {1, true}, {2, true}, {2, false}, {2, true},
		{4, true}, {5, true}, {5, false}, {6, true}, {7, true},
		{8, true}, {9, true}, {9, false}, {12, true},
	}

	prevLongest := 0
	for _, s := range steps {
		h := f.toggle(t, e, s.complete, day(t, s.offset))
		assert.GreaterOrEqual(t, h.LongestStreak, prevLongest, "longest decreased at offset %d", s.offset)
		assert.GreaterOrEqual(t, h.LongestStreak, h.CurrentStreak, "longest below current at offset %d", s.offset)
		prevLongest = h.LongestStreak
	}
	assert.Equal(t, 4, prevLongest)
}

func TestConsecutiveDaysCount(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())

	f.seed(t, day(t, -4), day(t, -2), day(t, -1))
	h := f.toggle(t, e, true, day(t, 0))

	assert.Equal(t, 3, h.CurrentStreak)
	assert.Equal(t, 3, h.LongestStreak)
}

func TestGapResetsCurrentStreak(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())

	f.toggle(t, e, true, day(t, -2))

	h := f.toggle(t, e, false, day(t, 0))
	assert.Equal(t, 0, h.CurrentStreak)

	h = f.toggle(t, e, true, day(t, 0))
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 1, h.LongestStreak)
}

func TestExerciseScenario(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())

	var h models.Habit
	for d := 1; d <= 3; d++ {
		h = f.toggle(t, e, true, day(t, d))
	}
	assert.Equal(t, 3, h.CurrentStreak)
	assert.Equal(t, 3, h.LongestStreak)

	// day 4 skipped
	h = f.toggle(t, e, true, day(t, 5))
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 3, h.LongestStreak)
	require.NotNil(t, h.LastCompletedDate)
	assert.Equal(t, day(t, 5), *h.LastCompletedDate)
}

func TestFixedWindowBoundary(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, Options{Window: 60, MaxLookback: 60})

	// every day from 60 days ago through yesterday
	var days []string
	for n := -60; n <= -1; n++ {
		days = append(days, day(t, n))
	}
	f.seed(t, days...)

	h := f.toggle(t, e, true, day(t, 0))
	assert.Equal(t, 60, h.CurrentStreak, "the completion 60 days back falls outside the window")
}

func TestLookbackPagesPastWindow(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, Options{Window: 5, MaxLookback: 1000})

	var days []string
	for n := -30; n <= -1; n++ {
		days = append(days, day(t, n))
	}
	// older, disconnected history
	days = append(days, day(t, -40), day(t, -41))
	f.seed(t, days...)

	h := f.toggle(t, e, true, day(t, 0))
	assert.Equal(t, 31, h.CurrentStreak)

	capped := New(f.store, nil, Options{Window: 5, MaxLookback: 12})
	h = f.toggle(t, capped, true, day(t, 0))
	assert.Equal(t, 12, h.CurrentStreak)
	assert.Equal(t, 31, h.LongestStreak)
}

func TestDefaultLookbackCoversLongStreaks(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())

	var days []string
	for n := -90; n <= -1; n++ {
		days = append(days, day(t, n))
	}
	f.seed(t, days...)

	h := f.toggle(t, e, true, day(t, 0))
	assert.Equal(t, 91, h.CurrentStreak)
}

func TestToggleUnknownHabit(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())
	ctx := context.Background()

	_, err := e.Toggle(ctx, uuid.NewString(), f.userID, true, day(t, 0))
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	// another user's habit is invisible
	_, err = e.Toggle(ctx, f.habit.ID, uuid.NewString(), true, day(t, 0))
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	rows, err := f.store.GetRecentCompletions(ctx, f.userID, f.habit.ID, "", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestToggleRejectsMalformedDay(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())

	_, err := e.Toggle(context.Background(), f.habit.ID, f.userID, true, "10/03/2024")
	assert.True(t, errors.Is(err, errors.ErrValidation), "got %v", err)
}

func TestTogglePublishesEvents(t *testing.T) {
	f := setup(t)
	rec := &recorder{}
	e := New(f.store, rec, DefaultOptions())

	f.toggle(t, e, true, day(t, 0))
	f.toggle(t, e, false, day(t, 0))
	_, err := e.Toggle(context.Background(), uuid.NewString(), f.userID, true, day(t, 0))
	require.Error(t, err)

	assert.Equal(t, []events.Type{events.HabitCompleted, events.HabitUncompleted}, rec.types())
	assert.Equal(t, f.habit.ID, rec.events[0].HabitID)
	assert.Equal(t, f.userID, rec.events[0].UserID)
}

// failingRepo wraps a repository and fails streak updates
type failingRepo struct {
	storage.Repository
	mu        sync.Mutex
	failures  int
	err       error
	updateHit int
}

func (r *failingRepo) WithTx(ctx context.Context, fn func(tx storage.Repository) error) error {
	return r.Repository.WithTx(ctx, func(tx storage.Repository) error {
		return fn(&failingTx{Repository: tx, parent: r})
	})
}

type failingTx struct {
	storage.Repository
	parent *failingRepo
}

func (tx *failingTx) UpdateHabitStreak(ctx context.Context, h models.Habit) (models.Habit, error) {
	tx.parent.mu.Lock()
	tx.parent.updateHit++
	fail := tx.parent.failures != 0
	if tx.parent.failures > 0 {
		tx.parent.failures--
	}
	tx.parent.mu.Unlock()

	if fail {
		return models.Habit{}, tx.parent.err
	}
	return tx.Repository.UpdateHabitStreak(ctx, h)
}

func TestFailedStreakUpdateRollsBackCompletion(t *testing.T) {
	f := setup(t)
	repo := &failingRepo{Repository: f.store, failures: -1, err: errors.New("disk on fire")}
	e := New(repo, nil, DefaultOptions())
	ctx := context.Background()

	_, err := e.Toggle(ctx, f.habit.ID, f.userID, true, day(t, 0))
	require.Error(t, err)
	assert.Equal(t, 1, repo.updateHit, "store failures are not retried")

	rows, err := f.store.GetRecentCompletions(ctx, f.userID, f.habit.ID, "", 10)
	require.NoError(t, err)
	assert.Empty(t, rows, "completion must not outlive a failed streak update")
}

func TestStaleVersionIsRetried(t *testing.T) {
	f := setup(t)
	repo := &failingRepo{Repository: f.store, failures: 2, err: storage.ErrStaleVersion}
	e := New(repo, nil, Options{MaxRetries: 3})

	h, err := e.Toggle(context.Background(), f.habit.ID, f.userID, true, day(t, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 3, repo.updateHit)
}

func TestStaleVersionExhaustsRetries(t *testing.T) {
	f := setup(t)
	repo := &failingRepo{Repository: f.store, failures: -1, err: storage.ErrStaleVersion}
	e := New(repo, nil, Options{MaxRetries: 2})

	_, err := e.Toggle(context.Background(), f.habit.ID, f.userID, true, day(t, 0))
	assert.True(t, errors.Is(err, errors.ErrConflict), "got %v", err)
	assert.Equal(t, 2, repo.updateHit)
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())
	ctx := context.Background()
	today := day(t, 0)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Toggle(ctx, f.habit.ID, f.userID, true, today)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	h, err := f.store.GetHabit(ctx, f.habit.ID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 1+workers, h.Version)
	assert.Zero(t, e.locks.size())
}

func TestStreakReads(t *testing.T) {
	f := setup(t)
	e := New(f.store, nil, DefaultOptions())
	ctx := context.Background()

	s, err := e.Streak(ctx, f.habit.ID, f.userID, day(t, 0))
	require.NoError(t, err)
	assert.Equal(t, models.Streak{HabitID: f.habit.ID}, s)

	f.toggle(t, e, true, day(t, -1))
	f.toggle(t, e, true, day(t, 0))

	s, err = e.Streak(ctx, f.habit.ID, f.userID, day(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, s.CurrentStreak)

	s, err = e.Streak(ctx, f.habit.ID, f.userID, day(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentStreak, "streak lapses after a missed day")
	assert.Equal(t, 2, s.LongestStreak)

	all, err := e.Streaks(ctx, f.userID, day(t, 0))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, f.habit.ID, all[0].HabitID)

	_, err = e.Streak(ctx, uuid.NewString(), f.userID, day(t, 0))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
