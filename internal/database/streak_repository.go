package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

// StreakRepository handles database operations for study streaks
type StreakRepository struct {
	db sqlx.ExtContext
}

// NewStreakRepository creates a new repository instance
func NewStreakRepository() *StreakRepository {
	return &StreakRepository{db: DB}
}

// WithTx returns a copy of the repository running inside tx
func (r *StreakRepository) WithTx(tx *sqlx.Tx) *StreakRepository {
	return &StreakRepository{db: tx}
}

// Get returns the user's streak; a user without activity has an empty streak
func (r *StreakRepository) Get(ctx context.Context, userID int64) (models.StreakData, error) {
	var row streakRow
	query := r.db.Rebind("SELECT user_id, current_streak, longest_streak, last_active_date, active_dates FROM streaks WHERE user_id = ?")
	err := sqlx.GetContext(ctx, r.db, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StreakData{ActiveDates: []string{}}, nil
	}
	if err != nil {
		return models.StreakData{}, fmt.Errorf("failed to get streak: %w", err)
	}

	streak := models.StreakData{
		CurrentStreak:  row.CurrentStreak,
		LongestStreak:  row.LongestStreak,
		LastActiveDate: row.LastActiveDate,
	}
	if err := row.ActiveDates.Unmarshal(&streak.ActiveDates); err != nil {
		return models.StreakData{}, fmt.Errorf("failed to parse active dates: %w", err)
	}
	streak.ActiveDates = stringsOrEmpty(streak.ActiveDates)
	return streak, nil
}

// Save stores the user's streak
func (r *StreakRepository) Save(ctx context.Context, userID int64, streak models.StreakData) error {
	dates, err := jsonText(stringsOrEmpty(streak.ActiveDates))
	if err != nil {
		return fmt.Errorf("failed to marshal active dates: %w", err)
	}
	query := r.db.Rebind(`
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_active_date, active_dates)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_active_date = excluded.last_active_date,
			active_dates = excluded.active_dates
	`)
	_, err = r.db.ExecContext(ctx, query, userID, streak.CurrentStreak, streak.LongestStreak, streak.LastActiveDate, dates)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}
