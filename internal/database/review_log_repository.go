package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

const reviewLogColumns = "id, user_id, word_id, quality, reviewed_at, review_date, previous_interval, new_interval, previous_ef, new_ef, mode"

// ReviewLogRepository handles database operations for the review history
type ReviewLogRepository struct {
	db sqlx.ExtContext
}

// NewReviewLogRepository creates a new repository instance
func NewReviewLogRepository() *ReviewLogRepository {
	return &ReviewLogRepository{db: DB}
}

// WithTx returns a copy of the repository running inside tx
func (r *ReviewLogRepository) WithTx(tx *sqlx.Tx) *ReviewLogRepository {
	return &ReviewLogRepository{db: tx}
}

// Insert appends review logs. A log whose id is already stored is skipped, so
// writing the same batch twice keeps one copy.
func (r *ReviewLogRepository) Insert(ctx context.Context, userID int64, logs ...models.ReviewLog) error {
	query := r.db.Rebind(`
		INSERT INTO review_logs (` + reviewLogColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	for _, l := range logs {
		row := newReviewLogRow(userID, l)
		_, err := r.db.ExecContext(ctx, query,
			row.ID,
			row.UserID,
			row.WordID,
			row.Quality,
			row.ReviewedAt,
			row.ReviewDate,
			row.PreviousInterval,
			row.NewInterval,
			row.PreviousEF,
			row.NewEF,
			row.Mode,
		)
		if err != nil {
			return fmt.Errorf("failed to add review log: %w", err)
		}
	}
	return nil
}

// ListSince returns the logs reviewed on or after date, oldest first
func (r *ReviewLogRepository) ListSince(ctx context.Context, userID int64, date string) ([]models.ReviewLog, error) {
	query := r.db.Rebind("SELECT " + reviewLogColumns + " FROM review_logs WHERE user_id = ? AND review_date >= ? ORDER BY reviewed_at, id")
	return r.selectLogs(ctx, query, userID, date)
}

// ListAll returns every log of the user, oldest first
func (r *ReviewLogRepository) ListAll(ctx context.Context, userID int64) ([]models.ReviewLog, error) {
	query := r.db.Rebind("SELECT " + reviewLogColumns + " FROM review_logs WHERE user_id = ? ORDER BY reviewed_at, id")
	return r.selectLogs(ctx, query, userID)
}

// DeleteAll removes the user's review history
func (r *ReviewLogRepository) DeleteAll(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM review_logs WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("failed to delete review logs: %w", err)
	}
	return nil
}

// CountPerDay returns the number of reviews per date since date
func (r *ReviewLogRepository) CountPerDay(ctx context.Context, userID int64, since string) (map[string]int, error) {
	var rows []struct {
		ReviewDate string `db:"review_date"`
		Count      int    `db:"count"`
	}
	query := r.db.Rebind("SELECT review_date, COUNT(*) AS count FROM review_logs WHERE user_id = ? AND review_date >= ? GROUP BY review_date")
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID, since); err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.ReviewDate] = row.Count
	}
	return out, nil
}

func (r *ReviewLogRepository) selectLogs(ctx context.Context, query string, args ...interface{}) ([]models.ReviewLog, error) {
	var rows []reviewLogRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get review logs: %w", err)
	}
	logs := make([]models.ReviewLog, 0, len(rows))
	for _, row := range rows {
		l, err := row.toModel()
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}
