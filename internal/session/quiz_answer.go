package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

// AnswerStore is the part of the store a quiz answer is written to
type AnswerStore interface {
	FindCardStates(ctx context.Context, find *models.FindCardState) ([]models.CardState, error)
	ReviewSink
}

// RecordQuizAnswer rates a quiz word with QuizCorrectQuality or QuizWrongQuality
// and writes its card state and a quiz review log at once. A word without a
// card state is not rated and the returned review is nil.
func RecordQuizAnswer(ctx context.Context, store AnswerStore, model *spaced_repetition.SM2, wordID string, correct bool, logID string, now time.Time) (*spaced_repetition.Review, error) {
	quality := QuizWrongQuality
	if correct {
		quality = QuizCorrectQuality
	}

	states, err := store.FindCardStates(ctx, &models.FindCardState{WordIDs: []string{wordID}})
	if err != nil {
		return nil, fmt.Errorf("failed to get card state: %w", err)
	}
	if len(states) == 0 {
		return nil, nil
	}

	review := model.Apply(states[0], float64(quality), now)
	entry := review.Log(logID, models.ModeQuiz, now)
	if err := store.SaveReviews(ctx, []models.CardState{review.Updated}, []models.ReviewLog{entry}); err != nil {
		return nil, fmt.Errorf("failed to save quiz answer: %w", err)
	}
	metrics.RecordRating(string(models.ModeQuiz), review.Quality)
	return &review, nil
}

// QuizDuration returns the whole seconds between start and end, rounded
func QuizDuration(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Seconds()))
}
