package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

// SettingsRepository handles database operations for user settings
type SettingsRepository struct {
	db sqlx.ExtContext
}

// NewSettingsRepository creates a new repository instance
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{db: DB}
}

// WithTx returns a copy of the repository running inside tx
func (r *SettingsRepository) WithTx(tx *sqlx.Tx) *SettingsRepository {
	return &SettingsRepository{db: tx}
}

// Get returns the user's settings, or the defaults if none were saved
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (models.UserSettings, error) {
	var row settingsRow
	query := r.db.Rebind("SELECT user_id, daily_new_limit, daily_review_limit, enabled_list_ids FROM user_settings WHERE user_id = ?")
	err := sqlx.GetContext(ctx, r.db, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := models.UserSettings{
		DailyNewCardLimit: row.DailyNewLimit,
		DailyReviewLimit:  row.DailyReviewLimit,
	}
	if err := row.EnabledListIDs.Unmarshal(&settings.EnabledListIDs); err != nil {
		return models.UserSettings{}, fmt.Errorf("failed to parse enabled lists: %w", err)
	}
	settings.EnabledListIDs = stringsOrEmpty(settings.EnabledListIDs)
	return settings, nil
}

// Save stores the user's settings
func (r *SettingsRepository) Save(ctx context.Context, userID int64, settings models.UserSettings) error {
	lists, err := jsonText(stringsOrEmpty(settings.EnabledListIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal enabled lists: %w", err)
	}
	query := r.db.Rebind(`
		INSERT INTO user_settings (user_id, daily_new_limit, daily_review_limit, enabled_list_ids)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			daily_new_limit = excluded.daily_new_limit,
			daily_review_limit = excluded.daily_review_limit,
			enabled_list_ids = excluded.enabled_list_ids
	`)
	if _, err := r.db.ExecContext(ctx, query, userID, settings.DailyNewCardLimit, settings.DailyReviewLimit, lists); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
