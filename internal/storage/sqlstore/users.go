package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/models"
)

const userColumns = `id, email, password_hash, display_name, avatar_url, timezone,
	week_start, locale, notifications_email_enabled, created_at, updated_at`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scanUser(s scanner) (models.User, error) {
	var (
		u                    models.User
		createdAt, updatedAt string
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL, &u.Timezone,
		&u.Settings.WeekStart, &u.Settings.Locale, &u.Settings.NotificationsEmailEnabled,
		&createdAt, &updatedAt)
	if err != nil {
		return models.User{}, err
	}
	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.User{}, err
	}
	if u.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r *Repo) AddUser(ctx context.Context, user models.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, normalizeEmail(user.Email), user.PasswordHash, user.DisplayName, user.AvatarURL, user.Timezone,
		user.Settings.WeekStart, user.Settings.Locale, user.Settings.NotificationsEmailEnabled,
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	if r.d.uniqueViolation(err) {
		return errors.Conflictf("a user with email %q already exists", normalizeEmail(user.Email))
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *Repo) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return models.User{}, errors.NotFoundf("user %s", id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
	if err == sql.ErrNoRows {
		return models.User{}, errors.NotFoundf("user with email %q", normalizeEmail(email))
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (r *Repo) GetAllUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repo) UpdateUser(ctx context.Context, user models.User) error {
	res, err := r.exec(ctx, `
		UPDATE users SET
			email = ?, password_hash = ?, display_name = ?, avatar_url = ?, timezone = ?,
			week_start = ?, locale = ?, notifications_email_enabled = ?, updated_at = ?
		WHERE id = ?`,
		normalizeEmail(user.Email), user.PasswordHash, user.DisplayName, user.AvatarURL, user.Timezone,
		user.Settings.WeekStart, user.Settings.Locale, user.Settings.NotificationsEmailEnabled,
		formatTime(user.UpdatedAt), user.ID)
	if r.d.uniqueViolation(err) {
		return errors.Conflictf("a user with email %q already exists", normalizeEmail(user.Email))
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("user %s", user.ID)
	}
	return nil
}

func (r *Repo) DeleteUser(ctx context.Context, id string) error {
	return r.atomic(ctx, func(tx *Repo) error {
		if _, err := tx.exec(ctx, `DELETE FROM completions WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete user completions: %w", err)
		}
		if _, err := tx.exec(ctx, `DELETE FROM habits WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete user habits: %w", err)
		}
		res, err := tx.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NotFoundf("user %s", id)
		}
		return nil
	})
}

func (r *Repo) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
