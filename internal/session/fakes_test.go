package session

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

var day0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu      sync.Mutex
	words   map[string]models.Word
	states  map[string]models.CardState
	logs    []models.ReviewLog
	results []models.QuizResult
	// eligible ids whose word row is gone
	orphans []string

	saveErr  error
	saveCall int
}

func newFakeStore(words ...models.Word) *fakeStore {
	f := &fakeStore{words: map[string]models.Word{}, states: map[string]models.CardState{}}
	for _, w := range words {
		f.words[w.ID] = w
	}
	return f
}

func (f *fakeStore) EligibleWordIDs(_ context.Context, _ []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.words))
	for id := range f.words {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return append(ids, f.orphans...), nil
}

func (f *fakeStore) FindCardStates(_ context.Context, find *models.FindCardState) ([]models.CardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := map[string]bool{}
	for _, id := range find.WordIDs {
		wanted[id] = true
	}
	excluded := map[models.CardStatus]bool{}
	for _, st := range find.ExcludeStatuses {
		excluded[st] = true
	}

	var out []models.CardState
	for _, st := range f.states {
		if len(wanted) > 0 && !wanted[st.WordID] {
			continue
		}
		if excluded[st.Status] {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WordID < out[j].WordID })
	return out, nil
}

func (f *fakeStore) GetWordsByIDs(_ context.Context, ids []string) (map[string]models.Word, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]models.Word{}
	for _, id := range ids {
		if w, ok := f.words[id]; ok {
			out[id] = w
		}
	}
	return out, nil
}

func (f *fakeStore) SaveReviews(_ context.Context, states []models.CardState, logs []models.ReviewLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCall++
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, st := range states {
		f.states[st.WordID] = st
	}
	seen := map[string]bool{}
	for _, l := range f.logs {
		seen[l.ID] = true
	}
	for _, l := range logs {
		if !seen[l.ID] {
			f.logs = append(f.logs, l)
		}
	}
	return nil
}

func (f *fakeStore) AppendQuizResult(_ context.Context, result models.QuizResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.results = append(f.results, result)
	return nil
}

func (f *fakeStore) ListReviewLogsSince(_ context.Context, date string) ([]models.ReviewLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ReviewLog
	for _, l := range f.logs {
		if models.DateOf(l.ReviewedAt) >= date {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeStreak struct {
	mu      sync.Mutex
	touches int
	err     error
}

func (f *fakeStreak) Touch(_ context.Context) (models.StreakData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	if f.err != nil {
		return models.StreakData{}, f.err
	}
	return models.StreakData{CurrentStreak: 1}, nil
}

func word(id string) models.Word {
	return models.Word{
		ID:          id,
		Text:        "text-" + id,
		Definitions: []models.Definition{{PartOfSpeech: "n.", Meaning: "meaning of " + id}},
		Source:      models.SourceUser,
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type testEnv struct {
	store  *fakeStore
	days   *MemoryDayStore
	streak *fakeStreak
	clock  time.Time
}

func newEnv(words ...models.Word) *testEnv {
	return &testEnv{
		store:  newFakeStore(words...),
		days:   NewMemoryDayStore(),
		streak: &fakeStreak{},
		clock:  day0,
	}
}

func (e *testEnv) session(t *testing.T) *Session {
	t.Helper()
	s, err := New(context.Background(), Deps{
		Store:   e.store,
		Model:   spaced_repetition.NewSM2().WithRand(rand.New(rand.NewSource(1))),
		Streak:  e.streak,
		Days:    e.days,
		UserKey: "u1",
		Now:     func() time.Time { return e.clock },
		NewID:   sequentialIDs(),
		Rand:    rand.New(rand.NewSource(2)),
	}, Config{FlushAttempts: 2, FlushBackoff: time.Millisecond})
	require.NoError(t, err)
	return s
}
