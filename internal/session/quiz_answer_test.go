package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

func TestRecordQuizAnswer(t *testing.T) {
	store := newFakeStore(word("w1"), word("w2"))
	store.states["w1"] = models.CardState{WordID: "w1", EaseFactor: 2.5, Interval: 6, Repetition: 2, DueDate: "2025-03-10", Status: models.StatusReview}
	store.states["w2"] = models.CardState{WordID: "w2", EaseFactor: 2.5, Interval: 6, Repetition: 2, DueDate: "2025-03-10", Status: models.StatusReview}
	model := spaced_repetition.NewSM2().WithRand(rand.New(rand.NewSource(1)))
	ctx := context.Background()

	review, err := RecordQuizAnswer(ctx, store, model, "w1", true, "l1", day0)
	require.NoError(t, err)
	require.NotNil(t, review)
	assert.Equal(t, QuizCorrectQuality, review.Quality)
	assert.Equal(t, 3, store.states["w1"].Repetition)

	_, err = RecordQuizAnswer(ctx, store, model, "w2", false, "l2", day0)
	require.NoError(t, err)
	assert.Equal(t, 0, store.states["w2"].Repetition)
	assert.Equal(t, "2025-03-11", store.states["w2"].DueDate)

	require.Len(t, store.logs, 2)
	assert.Equal(t, models.ModeQuiz, store.logs[0].Mode)
	assert.Equal(t, 4, store.logs[0].Quality)
	assert.Equal(t, 1, store.logs[1].Quality)

	// nothing to rate without a card state
	review, err = RecordQuizAnswer(ctx, store, model, "missing", true, "l3", day0)
	require.NoError(t, err)
	assert.Nil(t, review)
	assert.Len(t, store.logs, 2)

	store.saveErr = errors.New("disk full")
	_, err = RecordQuizAnswer(ctx, store, model, "w1", true, "l4", day0)
	assert.Error(t, err)
}

func TestQuizDuration(t *testing.T) {
	assert.Equal(t, 2, QuizDuration(day0, day0.Add(1600*time.Millisecond)))
	assert.Equal(t, 1, QuizDuration(day0, day0.Add(1400*time.Millisecond)))
	assert.Equal(t, 0, QuizDuration(day0, day0))
}
