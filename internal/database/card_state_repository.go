package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

const cardStateColumns = "user_id, word_id, ease_factor, interval_days, repetition, due_date, last_review_date, status, consecutive_easy"

// CardStateRepository handles database operations for card states
type CardStateRepository struct {
	db sqlx.ExtContext
}

// NewCardStateRepository creates a new repository instance
func NewCardStateRepository() *CardStateRepository {
	return &CardStateRepository{db: DB}
}

// WithTx returns a copy of the repository running inside tx
func (r *CardStateRepository) WithTx(tx *sqlx.Tx) *CardStateRepository {
	return &CardStateRepository{db: tx}
}

// Upsert writes card states, replacing the stored state of the same word
func (r *CardStateRepository) Upsert(ctx context.Context, userID int64, states ...models.CardState) error {
	query := r.db.Rebind(`
		INSERT INTO card_states (` + cardStateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, word_id) DO UPDATE SET
			ease_factor = excluded.ease_factor,
			interval_days = excluded.interval_days,
			repetition = excluded.repetition,
			due_date = excluded.due_date,
			last_review_date = excluded.last_review_date,
			status = excluded.status,
			consecutive_easy = excluded.consecutive_easy
	`)
	for _, st := range states {
		row := newCardStateRow(userID, st)
		_, err := r.db.ExecContext(ctx, query,
			row.UserID,
			row.WordID,
			row.EaseFactor,
			row.Interval,
			row.Repetition,
			row.DueDate,
			row.LastReviewDate,
			row.Status,
			row.ConsecutiveEasy,
		)
		if err != nil {
			return fmt.Errorf("failed to save card state %s: %w", st.WordID, err)
		}
	}
	return nil
}

// Find returns the user's card states matching the filter, ordered by word id
func (r *CardStateRepository) Find(ctx context.Context, userID int64, find *models.FindCardState) ([]models.CardState, error) {
	if find == nil || len(find.WordIDs) <= maxQueryIDs {
		return r.find(ctx, userID, find)
	}

	var states []models.CardState
	for _, ids := range chunkIDs(find.WordIDs, maxQueryIDs) {
		part := *find
		part.WordIDs = ids
		found, err := r.find(ctx, userID, &part)
		if err != nil {
			return nil, err
		}
		states = append(states, found...)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].WordID < states[j].WordID })
	return states, nil
}

func (r *CardStateRepository) find(ctx context.Context, userID int64, find *models.FindCardState) ([]models.CardState, error) {
	where, args := []string{"user_id = ?"}, []interface{}{userID}
	if find != nil {
		if len(find.WordIDs) > 0 {
			where, args = append(where, "word_id IN (?)"), append(args, find.WordIDs)
		}
		if find.DueOnOrBefore != "" {
			where, args = append(where, "due_date <= ?"), append(args, find.DueOnOrBefore)
		}
		if len(find.Statuses) > 0 {
			where, args = append(where, "status IN (?)"), append(args, statusStrings(find.Statuses))
		}
		if len(find.ExcludeStatuses) > 0 {
			where, args = append(where, "status NOT IN (?)"), append(args, statusStrings(find.ExcludeStatuses))
		}
	}

	query, args, err := sqlx.In(
		"SELECT "+cardStateColumns+" FROM card_states WHERE "+strings.Join(where, " AND ")+" ORDER BY word_id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build card state query: %w", err)
	}

	var rows []cardStateRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get card states: %w", err)
	}
	states := make([]models.CardState, 0, len(rows))
	for _, row := range rows {
		states = append(states, row.toModel())
	}
	return states, nil
}

// DeleteAll removes every card state of the user
func (r *CardStateRepository) DeleteAll(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM card_states WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("failed to delete card states: %w", err)
	}
	return nil
}

// DeleteByWord removes the card states of a word for every user
func (r *CardStateRepository) DeleteByWord(ctx context.Context, wordID string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM card_states WHERE word_id = ?"), wordID); err != nil {
		return fmt.Errorf("failed to delete card states: %w", err)
	}
	return nil
}

// CountByStatus returns the number of cards per status
func (r *CardStateRepository) CountByStatus(ctx context.Context, userID int64) (map[models.CardStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := r.db.Rebind("SELECT status, COUNT(*) AS count FROM card_states WHERE user_id = ? GROUP BY status")
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to count card states: %w", err)
	}
	out := make(map[models.CardStatus]int, len(rows))
	for _, row := range rows {
		out[models.CardStatus(row.Status)] = row.Count
	}
	return out, nil
}

// CountDueByDate returns the number of studied, not retired cards due on each
// date of the inclusive range
func (r *CardStateRepository) CountDueByDate(ctx context.Context, userID int64, from, to string) (map[string]int, error) {
	var rows []struct {
		DueDate string `db:"due_date"`
		Count   int    `db:"count"`
	}
	query := r.db.Rebind(`
		SELECT due_date, COUNT(*) AS count FROM card_states
		WHERE user_id = ? AND due_date >= ? AND due_date <= ? AND status NOT IN (?, ?)
		GROUP BY due_date
	`)
	err := sqlx.SelectContext(ctx, r.db, &rows, query, userID, from, to, string(models.StatusNew), string(models.StatusRetired))
	if err != nil {
		return nil, fmt.Errorf("failed to count due cards: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.DueDate] = row.Count
	}
	return out, nil
}

func statusStrings(statuses []models.CardStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
