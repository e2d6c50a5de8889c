package storage

import (
	"context"

	"github.com/julianstephens/habitline/internal/models"
)

// Repository is the set of record operations shared by a Provider and the
// transactions it opens. Every method is scoped by ctx.
type Repository interface {
	// Users
	AddUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	// DeleteUser removes the user together with their habits and completions.
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int, error)

	// Habits
	AddHabit(ctx context.Context, habit models.Habit) error
	// GetHabit returns the habit only when it is owned by userID.
	GetHabit(ctx context.Context, id, userID string) (models.Habit, error)
	GetAllHabits(ctx context.Context, userID string, includeArchived bool) ([]models.Habit, error)
	// UpdateHabit persists descriptive fields (name, description, color,
	// frequency, start date, order). Streak fields are left untouched.
	UpdateHabit(ctx context.Context, habit models.Habit) error
	// UpdateHabitStreak persists the cached streak fields when the stored
	// version still equals habit.Version, and bumps the version. A stale
	// version yields ErrStaleVersion.
	UpdateHabitStreak(ctx context.Context, habit models.Habit) (models.Habit, error)
	ArchiveHabit(ctx context.Context, id, userID string) error
	UnarchiveHabit(ctx context.Context, id, userID string) error
	// DeleteHabit removes the habit and its completions.
	DeleteHabit(ctx context.Context, id, userID string) error
	CountHabits(ctx context.Context, userID string) (int, error)
	// GetStreakingHabits returns every habit with a positive cached current
	// streak, paired with its owner's timezone.
	GetStreakingHabits(ctx context.Context) ([]StreakingHabit, error)

	// Completions
	// UpsertCompletion records the completion; recording the same
	// (user, habit, day) twice is a no-op.
	UpsertCompletion(ctx context.Context, completion models.Completion) error
	// DeleteCompletion removes the completion if present and reports whether
	// a row was removed.
	DeleteCompletion(ctx context.Context, userID, habitID, day string) (bool, error)
	// GetRecentCompletions returns up to limit completions ordered by day
	// descending. When before is non-empty only days strictly before it are
	// returned.
	GetRecentCompletions(ctx context.Context, userID, habitID, before string, limit int) ([]models.Completion, error)
	// GetCompletionsInRange returns completions with startDay <= day <= endDay,
	// ordered by day descending.
	GetCompletionsInRange(ctx context.Context, userID, habitID, startDay, endDay string) ([]models.Completion, error)
	// GetCompletedHabitIDs returns the ids of the user's habits completed on day.
	GetCompletedHabitIDs(ctx context.Context, userID, day string) (map[string]bool, error)

	// WithTx runs fn inside a single database transaction. The transaction
	// commits when fn returns nil and rolls back otherwise. Called on a
	// transaction, fn joins it.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

// StreakingHabit pairs a habit with its owner's timezone
type StreakingHabit struct {
	Habit    models.Habit
	Timezone string
}

// Provider is a storage backend
type Provider interface {
	Repository

	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Migrate applies pending schema migrations and returns how many ran.
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	// SchemaVersion returns the database's schema version and the latest
	// version known to this binary.
	SchemaVersion(ctx context.Context) (current, latest int, err error)

	// Utils
	GetConfigPath() string
}
