package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/storage"
	"github.com/julianstephens/habitline/internal/utils"
)

var habitFields = []string{
	"id", "user_id", "name", "description", "color", "frequency", "start_date", "sort_order",
	"current_streak", "longest_streak", "last_completed_date", "version",
	"created_at", "updated_at", "archived_at",
}

func habitColumns(alias string) string {
	if alias == "" {
		return strings.Join(habitFields, ", ")
	}
	cols := make([]string, len(habitFields))
	for i, f := range habitFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

func scanHabit(s scanner, extra ...any) (models.Habit, error) {
	var (
		h                    models.Habit
		frequency            string
		startDate, lastDone  sql.NullString
		order                sql.NullInt64
		createdAt, updatedAt string
		archivedAt           sql.NullString
	)
	dest := []any{
		&h.ID, &h.UserID, &h.Name, &h.Description, &h.Color, &frequency, &startDate, &order,
		&h.CurrentStreak, &h.LongestStreak, &lastDone, &h.Version,
		&createdAt, &updatedAt, &archivedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return models.Habit{}, err
	}

	h.Frequency = constants.Frequency(frequency)
	if startDate.Valid {
		h.StartDate = &startDate.String
	}
	if order.Valid {
		o := int(order.Int64)
		h.Order = &o
	}
	if lastDone.Valid {
		h.LastCompletedDate = &lastDone.String
	}

	var err error
	if h.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Habit{}, err
	}
	if h.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Habit{}, err
	}
	if archivedAt.Valid {
		t, err := parseTime("archived_at", archivedAt.String)
		if err != nil {
			return models.Habit{}, err
		}
		h.ArchivedAt = &t
	}
	return h, nil
}

func (r *Repo) AddHabit(ctx context.Context, habit models.Habit) error {
	version := habit.Version
	if version == 0 {
		version = 1
	}
	_, err := r.exec(ctx, `
		INSERT INTO habits (`+habitColumns("")+`, name_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		habit.ID, habit.UserID, habit.Name, habit.Description, habit.Color, string(habit.Frequency),
		nullString(habit.StartDate), nullInt(habit.Order),
		habit.CurrentStreak, habit.LongestStreak, nullString(habit.LastCompletedDate), version,
		formatTime(habit.CreatedAt), formatTime(habit.UpdatedAt), nullTime(habit.ArchivedAt),
		utils.NameKey(habit.Name))
	if r.d.uniqueViolation(err) {
		return errors.Conflictf("an active habit named %q already exists", habit.Name)
	}
	if r.d.foreignKeyViolation(err) {
		return errors.NotFoundf("user %s not found", habit.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}
	return nil
}

func (r *Repo) GetHabit(ctx context.Context, id, userID string) (models.Habit, error) {
	h, err := scanHabit(r.queryRow(ctx,
		`SELECT `+habitColumns("")+` FROM habits WHERE id = ? AND user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return models.Habit{}, errors.NotFoundf("habit %s", id)
	}
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to get habit: %w", err)
	}
	return h, nil
}

func (r *Repo) GetAllHabits(ctx context.Context, userID string, includeArchived bool) ([]models.Habit, error) {
	query := `SELECT ` + habitColumns("") + ` FROM habits WHERE user_id = ?`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY sort_order IS NULL, sort_order, created_at, id`

	rows, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (r *Repo) UpdateHabit(ctx context.Context, habit models.Habit) error {
	res, err := r.exec(ctx, `
		UPDATE habits SET
			name = ?, name_key = ?, description = ?, color = ?, frequency = ?,
			start_date = ?, sort_order = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		habit.Name, utils.NameKey(habit.Name), habit.Description, habit.Color, string(habit.Frequency),
		nullString(habit.StartDate), nullInt(habit.Order), formatTime(habit.UpdatedAt),
		habit.ID, habit.UserID)
	if r.d.uniqueViolation(err) {
		return errors.Conflictf("an active habit named %q already exists", habit.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("habit %s", habit.ID)
	}
	return nil
}

func (r *Repo) UpdateHabitStreak(ctx context.Context, habit models.Habit) (models.Habit, error) {
	if habit.CurrentStreak < 0 || habit.LongestStreak < 0 {
		return models.Habit{}, errors.Validationf("streak counters must not be negative")
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.exec(ctx, `
		UPDATE habits SET
			current_streak = ?, longest_streak = ?, last_completed_date = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`,
		habit.CurrentStreak, habit.LongestStreak, nullString(habit.LastCompletedDate),
		formatTime(now), habit.ID, habit.UserID, habit.Version)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to update habit streak: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return models.Habit{}, err
	}
	if n == 0 {
		if _, err := r.GetHabit(ctx, habit.ID, habit.UserID); err != nil {
			return models.Habit{}, err
		}
		return models.Habit{}, storage.ErrStaleVersion
	}

	habit.Version++
	habit.UpdatedAt = now
	return habit, nil
}

func (r *Repo) ArchiveHabit(ctx context.Context, id, userID string) error {
	now := formatTime(time.Now())
	res, err := r.exec(ctx, `
		UPDATE habits SET archived_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND archived_at IS NULL`,
		now, now, id, userID)
	if err != nil {
		return fmt.Errorf("failed to archive habit: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		// already archived is fine, missing is not
		_, err := r.GetHabit(ctx, id, userID)
		return err
	}
	return nil
}

func (r *Repo) UnarchiveHabit(ctx context.Context, id, userID string) error {
	res, err := r.exec(ctx, `
		UPDATE habits SET archived_at = NULL, updated_at = ?
		WHERE id = ? AND user_id = ? AND archived_at IS NOT NULL`,
		formatTime(time.Now()), id, userID)
	if r.d.uniqueViolation(err) {
		return errors.Conflictf("an active habit with the same name already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to unarchive habit: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		_, err := r.GetHabit(ctx, id, userID)
		return err
	}
	return nil
}

func (r *Repo) DeleteHabit(ctx context.Context, id, userID string) error {
	return r.atomic(ctx, func(tx *Repo) error {
		if _, err := tx.exec(ctx,
			`DELETE FROM completions WHERE habit_id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("failed to delete habit completions: %w", err)
		}
		res, err := tx.exec(ctx, `DELETE FROM habits WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("failed to delete habit: %w", err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NotFoundf("habit %s", id)
		}
		return nil
	})
}

func (r *Repo) CountHabits(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM habits WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count habits: %w", err)
	}
	return n, nil
}

func (r *Repo) GetStreakingHabits(ctx context.Context) ([]storage.StreakingHabit, error) {
	rows, err := r.query(ctx, `
		SELECT `+habitColumns("h")+`, u.timezone
		FROM habits h
		JOIN users u ON u.id = h.user_id
		WHERE h.current_streak > 0
		ORDER BY h.user_id, h.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaking habits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []storage.StreakingHabit
	for rows.Next() {
		var tz string
		h, err := scanHabit(rows, &tz)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		out = append(out, storage.StreakingHabit{Habit: h, Timezone: tz})
	}
	return out, rows.Err()
}
