package session

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayState_TouchKeepsWorstQuality(t *testing.T) {
	d := NewDayState("2025-03-10")
	d.Touch("w1", 4)
	d.Touch("w1", 1)
	d.Touch("w1", 5)
	d.Touch("w2", 3)

	assert.Equal(t, map[string]int{"w1": 1, "w2": 3}, d.Touched)
	assert.Equal(t, []string{"w1", "w2"}, d.TouchedIDs())

	d.NewCardsShown = true
	d.Restart()
	assert.False(t, d.NewCardsShown)
	assert.Empty(t, d.Touched)
}

func testDayStore(t *testing.T, store DayStateStore) {
	ctx := context.Background()

	fresh, err := store.Load(ctx, "u-test", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, NewDayState("2025-03-10"), fresh)

	fresh.NewCardsShown = true
	fresh.Touch("w1", 3)
	require.NoError(t, store.Save(ctx, "u-test", fresh))

	loaded, err := store.Load(ctx, "u-test", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, fresh, loaded)

	other, err := store.Load(ctx, "u-test", "2025-03-11")
	require.NoError(t, err)
	assert.False(t, other.NewCardsShown)

	require.NoError(t, store.Clear(ctx, "u-test", "2025-03-10"))
	cleared, err := store.Load(ctx, "u-test", "2025-03-10")
	require.NoError(t, err)
	assert.Empty(t, cleared.Touched)
}

func TestMemoryDayStore(t *testing.T) {
	store := NewMemoryDayStore()
	testDayStore(t, store)

	require.NoError(t, store.Save(context.Background(), "u", NewDayState("2025-03-09")))
	require.NoError(t, store.Save(context.Background(), "u", NewDayState("2025-03-10")))
	assert.Equal(t, 1, store.Prune("2025-03-10"))
}

func TestRedisDayStore(t *testing.T) {
	url := os.Getenv("WORDSRS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WORDSRS_TEST_REDIS_URL not set")
	}

	store, err := NewRedisDayStore(context.Background(), url)
	require.NoError(t, err)
	defer store.Close()

	testDayStore(t, store)
}
