package sqlstore

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/models"
)

const completionColumns = `id, user_id, habit_id, day, created_at`

func scanCompletion(s scanner) (models.Completion, error) {
	var (
		c         models.Completion
		createdAt string
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.HabitID, &c.Day, &createdAt); err != nil {
		return models.Completion{}, err
	}
	t, err := parseTime("created_at", createdAt)
	if err != nil {
		return models.Completion{}, err
	}
	c.CreatedAt = t
	return c, nil
}

func (r *Repo) UpsertCompletion(ctx context.Context, completion models.Completion) error {
	_, err := r.exec(ctx, `
		INSERT INTO completions (`+completionColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, habit_id, day) DO NOTHING`,
		completion.ID, completion.UserID, completion.HabitID, completion.Day, formatTime(completion.CreatedAt))
	if r.d.foreignKeyViolation(err) {
		return errors.NotFoundf("habit %s not found", completion.HabitID)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert completion: %w", err)
	}
	return nil
}

func (r *Repo) DeleteCompletion(ctx context.Context, userID, habitID, day string) (bool, error) {
	res, err := r.exec(ctx,
		`DELETE FROM completions WHERE user_id = ? AND habit_id = ? AND day = ?`, userID, habitID, day)
	if err != nil {
		return false, fmt.Errorf("failed to delete completion: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) GetRecentCompletions(ctx context.Context, userID, habitID, before string, limit int) ([]models.Completion, error) {
	query := `SELECT ` + completionColumns + ` FROM completions WHERE user_id = ? AND habit_id = ?`
	args := []any{userID, habitID}
	if before != "" {
		query += ` AND day < ?`
		args = append(args, before)
	}
	query += ` ORDER BY day DESC LIMIT ?`
	args = append(args, limit)

	return r.listCompletions(ctx, query, args...)
}

func (r *Repo) GetCompletionsInRange(ctx context.Context, userID, habitID, startDay, endDay string) ([]models.Completion, error) {
	return r.listCompletions(ctx, `
		SELECT `+completionColumns+` FROM completions
		WHERE user_id = ? AND habit_id = ? AND day >= ? AND day <= ?
		ORDER BY day DESC`,
		userID, habitID, startDay, endDay)
}

func (r *Repo) GetCompletedHabitIDs(ctx context.Context, userID, day string) (map[string]bool, error) {
	rows, err := r.query(ctx, `SELECT habit_id FROM completions WHERE user_id = ? AND day = ?`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (r *Repo) listCompletions(ctx context.Context, query string, args ...any) ([]models.Completion, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
