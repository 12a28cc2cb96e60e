package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

// QuizResultRepository handles database operations for quiz results
type QuizResultRepository struct {
	db sqlx.ExtContext
}

// NewQuizResultRepository creates a new repository instance
func NewQuizResultRepository() *QuizResultRepository {
	return &QuizResultRepository{db: DB}
}

// WithTx returns a copy of the repository running inside tx
func (r *QuizResultRepository) WithTx(tx *sqlx.Tx) *QuizResultRepository {
	return &QuizResultRepository{db: tx}
}

// Create stores a quiz result
func (r *QuizResultRepository) Create(ctx context.Context, userID int64, result models.QuizResult) error {
	wrong, err := jsonText(stringsOrEmpty(result.WrongWordIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal wrong words: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO quiz_results (
			id, user_id, taken_at, mode, total_questions,
			correct_count, wrong_word_ids, duration_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	_, err = r.db.ExecContext(ctx, query,
		result.ID,
		userID,
		result.Date.Format(timestampLayout),
		string(result.Mode),
		result.TotalQuestions,
		result.CorrectCount,
		wrong,
		result.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz result: %w", err)
	}
	return nil
}

// GetAllByUserID returns the user's quiz results, newest first
func (r *QuizResultRepository) GetAllByUserID(ctx context.Context, userID int64) ([]models.QuizResult, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, taken_at, mode, total_questions, correct_count, wrong_word_ids, duration_seconds
		FROM quiz_results
		WHERE user_id = ?
		ORDER BY taken_at DESC
	`)
	var rows []quizResultRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get quiz results: %w", err)
	}
	results := make([]models.QuizResult, 0, len(rows))
	for _, row := range rows {
		res, err := row.toModel()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// DeleteAll removes the user's quiz results
func (r *QuizResultRepository) DeleteAll(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM quiz_results WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("failed to delete quiz results: %w", err)
	}
	return nil
}
