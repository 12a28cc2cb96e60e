package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordsrs/pkg/models"
)

type sinkFunc func(ctx context.Context, states []models.CardState, logs []models.ReviewLog) error

func (f sinkFunc) SaveReviews(ctx context.Context, states []models.CardState, logs []models.ReviewLog) error {
	return f(ctx, states, logs)
}

func TestWriteBuffer_LatestStateAllLogs(t *testing.T) {
	b := NewWriteBuffer()
	b.Add(models.CardState{WordID: "w1", Interval: 1}, models.ReviewLog{ID: "l1", WordID: "w1"})
	b.Add(models.CardState{WordID: "w2", Interval: 6}, models.ReviewLog{ID: "l2", WordID: "w2"})
	b.Add(models.CardState{WordID: "w1", Interval: 4}, models.ReviewLog{ID: "l3", WordID: "w1"})

	states, logs := b.Pending()
	assert.Equal(t, 2, states)
	assert.Equal(t, 3, logs)

	var gotStates []models.CardState
	var gotLogs []models.ReviewLog
	err := b.Flush(context.Background(), sinkFunc(func(_ context.Context, s []models.CardState, l []models.ReviewLog) error {
		gotStates, gotLogs = s, l
		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, []models.CardState{{WordID: "w1", Interval: 4}, {WordID: "w2", Interval: 6}}, gotStates)
	assert.Len(t, gotLogs, 3)
	assert.True(t, b.Empty())
}

func TestWriteBuffer_FailedFlushKeepsEverything(t *testing.T) {
	b := NewWriteBuffer()
	b.Add(models.CardState{WordID: "w1"}, models.ReviewLog{ID: "l1"})

	err := b.Flush(context.Background(), sinkFunc(func(context.Context, []models.CardState, []models.ReviewLog) error {
		return errors.New("offline")
	}))
	require.Error(t, err)

	states, logs := b.Pending()
	assert.Equal(t, 1, states)
	assert.Equal(t, 1, logs)
}

func TestWriteBuffer_AddDuringFlushSurvives(t *testing.T) {
	b := NewWriteBuffer()
	b.Add(models.CardState{WordID: "w1", Interval: 1}, models.ReviewLog{ID: "l1"})

	err := b.Flush(context.Background(), sinkFunc(func(context.Context, []models.CardState, []models.ReviewLog) error {
		b.Add(models.CardState{WordID: "w1", Interval: 6}, models.ReviewLog{ID: "l2"})
		return nil
	}))
	require.NoError(t, err)

	states, logs := b.Pending()
	assert.Equal(t, 1, states)
	assert.Equal(t, 1, logs)

	var got []models.ReviewLog
	require.NoError(t, b.Flush(context.Background(), sinkFunc(func(_ context.Context, _ []models.CardState, l []models.ReviewLog) error {
		got = l
		return nil
	})))
	require.Len(t, got, 1)
	assert.Equal(t, "l2", got[0].ID)
}

func TestWriteBuffer_EmptyFlushIsNoop(t *testing.T) {
	called := false
	err := NewWriteBuffer().Flush(context.Background(), sinkFunc(func(context.Context, []models.CardState, []models.ReviewLog) error {
		called = true
		return nil
	}))
	require.NoError(t, err)
	assert.False(t, called)
}
