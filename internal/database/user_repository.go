package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

const userColumns = "telegram_id, username, first_name, last_name, is_admin, notification_enabled, notification_hour, created_at, updated_at"

// UserRepository handles database operations for users
type UserRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new repository instance
func NewUserRepository() *UserRepository {
	return &UserRepository{db: DB}
}

// GetByID returns a user by Telegram ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE telegram_id = ?")
	err := sqlx.GetContext(ctx, r.db, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

// GetAll returns all users
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	return r.getUsersWithCondition(ctx, "1 = 1")
}

// Create inserts a new user or updates the profile fields if it exists.
// Notification preferences of an existing user are kept.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC().Format(timestampLayout)
	if user.CreatedAt == "" {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.IsAdmin,
		user.NotificationEnabled,
		user.NotificationHour,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create/update user: %w", err)
	}
	return nil
}

// UpdateNotifications changes when and whether a user gets reminders
func (r *UserRepository) UpdateNotifications(ctx context.Context, id int64, enabled bool, hour int) error {
	query := r.db.Rebind("UPDATE users SET notification_enabled = ?, notification_hour = ?, updated_at = ? WHERE telegram_id = ?")
	result, err := r.db.ExecContext(ctx, query, enabled, hour, time.Now().UTC().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("failed to update notifications: %w", err)
	}
	return expectRows(result, "user")
}

// SetAdmin grants or revokes admin rights
func (r *UserRepository) SetAdmin(ctx context.Context, id int64, admin bool) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE users SET is_admin = ? WHERE telegram_id = ?"), admin, id)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	return expectRows(result, "user")
}

// GetAdminUsers returns all admin users
func (r *UserRepository) GetAdminUsers(ctx context.Context) ([]models.User, error) {
	return r.getUsersWithCondition(ctx, "is_admin = ?", true)
}

// GetUsersForNotification returns users who want reminders at the given hour
func (r *UserRepository) GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error) {
	return r.getUsersWithCondition(ctx, "notification_enabled = ? AND notification_hour = ?", true, hour)
}

// getUsersWithCondition is a helper function to get users with a specific condition
func (r *UserRepository) getUsersWithCondition(ctx context.Context, condition string, args ...interface{}) ([]models.User, error) {
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + condition + " ORDER BY created_at")
	var users []models.User
	if err := sqlx.SelectContext(ctx, r.db, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}
