package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordsrs/pkg/models"
)

func rateAll(t *testing.T, s *Session, qualities ...int) {
	t.Helper()
	for _, q := range qualities {
		_, err := s.Rate(context.Background(), q)
		require.NoError(t, err)
	}
}

func TestLearning_RepeatedRatingsOfOneWord(t *testing.T) {
	env := newEnv(word("w1"))
	s := env.session(t)
	ctx := context.Background()

	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	c, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, models.StatusNew, c.State.Status)

	res, err := s.Rate(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Requeued)
	assert.False(t, res.Completed)

	_, err = s.Rate(ctx, 1)
	require.NoError(t, err)

	res, err = s.Rate(ctx, 4)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.True(t, s.Complete())
	assert.False(t, s.Pending())

	s.Close(ctx)

	require.Len(t, env.store.logs, 3)
	for i, q := range []int{1, 1, 4} {
		assert.Equal(t, q, env.store.logs[i].Quality)
		assert.Equal(t, models.ModeReview, env.store.logs[i].Mode)
	}

	st := env.store.states["w1"]
	assert.Equal(t, 1.42, st.EaseFactor)
	assert.Equal(t, 1, st.Repetition)
	assert.Equal(t, 1, st.Interval)
	assert.Equal(t, models.StatusReview, st.Status)
	assert.Equal(t, "2025-03-11", st.DueDate)

	assert.Equal(t, Stats{Reviewed: 3, Correct: 1, Incorrect: 2}, s.Stats())
	assert.Equal(t, 33, s.Stats().Accuracy())
	assert.Equal(t, 1, env.streak.touches)
}

func TestLearning_StreakTouchedOnCompletion(t *testing.T) {
	env := newEnv(word("w1"), word("w2"))
	s := env.session(t)
	ctx := context.Background()

	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	rateAll(t, s, 4)
	env.streak.mu.Lock()
	assert.Equal(t, 0, env.streak.touches)
	env.streak.mu.Unlock()

	rateAll(t, s, 4)
	s.Close(ctx)
	assert.Equal(t, 1, env.streak.touches)
}

func TestLearning_StreakFailureIsNotFatal(t *testing.T) {
	env := newEnv(word("w1"))
	env.streak.err = errors.New("streak store down")
	s := env.session(t)
	ctx := context.Background()

	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	res, err := s.Rate(ctx, 4)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.True(t, s.Complete())

	require.NoError(t, s.Flush(ctx))
	s.Close(ctx)

	assert.Equal(t, 1, env.streak.touches)
	assert.False(t, s.Pending())
	assert.Len(t, env.store.logs, 1)
	assert.Equal(t, 1, env.store.states["w1"].Repetition)
}

func TestLearning_FlushFailureKeepsReviews(t *testing.T) {
	env := newEnv(word("w1"), word("w2"))
	env.store.saveErr = errors.New("disk full")
	s := env.session(t)
	ctx := context.Background()

	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	_, err := s.Rate(ctx, 4)
	require.NoError(t, err)
	_, err = s.Rate(ctx, 5)
	require.ErrorIs(t, err, ErrFlushFailed)

	assert.True(t, s.Complete())
	assert.True(t, s.Pending())
	assert.Equal(t, 2, env.store.saveCall)
	assert.Empty(t, env.store.logs)

	env.store.saveErr = nil
	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Pending())
	assert.Len(t, env.store.logs, 2)
	assert.Len(t, env.store.states, 2)

	// nothing left to write
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 3, env.store.saveCall)
}

func TestLearning_NewCardsOncePerDay(t *testing.T) {
	env := newEnv(word("w1"), word("w2"))
	ctx := context.Background()

	s := env.session(t)
	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	_, total := s.Progress()
	assert.Equal(t, 2, total)
	assert.True(t, s.Day().NewCardsShown)

	// a reloaded session on the same day does not offer them again
	again := env.session(t)
	require.NoError(t, again.StartLearning(ctx, models.DefaultSettings()))
	assert.True(t, again.Complete())

	require.NoError(t, again.RestartLearning(ctx, models.DefaultSettings()))
	_, total = again.Progress()
	assert.Equal(t, 2, total)

	// next day starts fresh
	env.clock = day0.AddDate(0, 0, 1)
	next := env.session(t)
	require.NoError(t, next.StartLearning(ctx, models.DefaultSettings()))
	_, total = next.Progress()
	assert.Equal(t, 2, total)
}

func TestLearning_EmptyReasons(t *testing.T) {
	ctx := context.Background()

	env := newEnv()
	s := env.session(t)
	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	assert.True(t, s.Complete())
	assert.Equal(t, EmptyNoWords, s.EmptyReason())

	env = newEnv(word("w1"), word("w2"))
	env.store.states["w1"] = models.CardState{WordID: "w1", Status: models.StatusMastered, DueDate: "2025-06-01", Repetition: 5, Interval: 40, EaseFactor: 2.5}
	env.store.states["w2"] = models.CardState{WordID: "w2", Status: models.StatusRetired, DueDate: "2025-01-01", Repetition: 6, Interval: 90, EaseFactor: 2.8}
	s = env.session(t)
	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	assert.Equal(t, EmptyAllMastered, s.EmptyReason())

	env.store.states["w1"] = models.CardState{WordID: "w1", Status: models.StatusReview, DueDate: "2025-06-01", Repetition: 2, Interval: 6, EaseFactor: 2.5}
	s = env.session(t)
	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	assert.True(t, s.Complete())
	assert.Equal(t, EmptyNone, s.EmptyReason())
}

func TestLearning_DropsCardsWithoutWord(t *testing.T) {
	env := newEnv(word("w1"))
	env.store.states["ghost"] = models.CardState{WordID: "ghost", Status: models.StatusReview, DueDate: "2025-03-01", EaseFactor: 2.5, Repetition: 1, Interval: 1}
	env.store.orphans = []string{"ghost"}
	s := env.session(t)

	require.NoError(t, s.StartLearning(context.Background(), models.DefaultSettings()))
	c, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "w1", c.Word.ID)
	_, total := s.Progress()
	assert.Equal(t, 1, total)
}

func TestLearning_ProjectedIntervals(t *testing.T) {
	env := newEnv(word("w1"))
	env.store.states["w1"] = models.CardState{WordID: "w1", Status: models.StatusReview, DueDate: "2025-03-10", EaseFactor: 2.5, Repetition: 2, Interval: 6}
	s := env.session(t)

	require.NoError(t, s.StartLearning(context.Background(), models.DefaultSettings()))
	assert.Equal(t, map[int]int{1: 1, 3: 12, 4: 15, 5: 16}, s.ProjectedIntervals())
}

func TestRate_WrongPhaseAndComplete(t *testing.T) {
	env := newEnv(word("w1"))
	s := env.session(t)
	ctx := context.Background()

	_, err := s.Rate(ctx, 4)
	assert.ErrorIs(t, err, ErrSessionComplete)

	require.NoError(t, s.StartLearning(ctx, models.DefaultSettings()))
	assert.ErrorIs(t, s.StartReinforcement(ctx), ErrPhaseIncomplete)
	assert.ErrorIs(t, s.StartQuiz(ctx), ErrPhaseIncomplete)
	assert.ErrorIs(t, s.Next(ctx), ErrWrongPhase)
}
