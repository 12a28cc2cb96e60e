package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordsrs/pkg/models"
)

var today = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, Connect(DriverSQLite, ":memory:"))
	t.Cleanup(func() { Close() })
}

func newWord(text string) *models.Word {
	return &models.Word{
		Text:        text,
		Definitions: []models.Definition{{PartOfSpeech: "v.", Meaning: "meaning of " + text}},
		Tags:        []string{"test"},
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	assert.Error(t, Connect("mysql", "dsn"))
}

func TestUserStore_WordsAndEligibility(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(1)
	other := NewUserStore(2)

	w := newWord("abandon")
	require.NoError(t, store.AddWord(ctx, w, models.CardState{EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusNew}))
	require.NotEmpty(t, w.ID)
	require.NoError(t, other.AddWord(ctx, newWord("zeal"), models.CardState{EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusNew}))

	list := &models.WordList{Name: "CET-4"}
	require.NoError(t, NewWordListRepository().Create(ctx, list))
	builtin := newWord("benefit")
	builtin.Source = models.SourceBuiltin
	builtin.ListID = list.ID
	require.NoError(t, NewWordRepository().Create(ctx, 0, builtin))

	ids, err := store.EligibleWordIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{w.ID}, ids)

	ids, err = store.EligibleWordIDs(ctx, []string{list.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{w.ID, builtin.ID}, ids)

	words, err := store.GetWordsByIDs(ctx, append(ids, "missing"))
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "abandon", words[w.ID].Text)
	assert.Equal(t, []models.Definition{{PartOfSpeech: "v.", Meaning: "meaning of abandon"}}, words[w.ID].Definitions)
	assert.Equal(t, []string{"test"}, words[w.ID].Tags)
	assert.Equal(t, models.SourceBuiltin, words[builtin.ID].Source)

	found, err := store.FindWordByText(ctx, "ABANDON")
	require.NoError(t, err)
	assert.Equal(t, w.ID, found.ID)
	_, err = store.FindWordByText(ctx, "zeal")
	assert.ErrorIs(t, err, ErrNotFound)

	lists, err := NewWordListRepository().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, 1, lists[0].WordCount)

	require.NoError(t, store.DeleteWord(ctx, w.ID))
	states, err := store.FindCardStates(ctx, &models.FindCardState{})
	require.NoError(t, err)
	assert.Empty(t, states)
	assert.ErrorIs(t, store.DeleteWord(ctx, w.ID), ErrNotFound)
}

func TestUserStore_SaveReviewsIsIdempotent(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(7)

	at := time.Date(2025, 3, 10, 21, 15, 30, 123, time.UTC)
	state := models.CardState{WordID: "w1", EaseFactor: 2.36, Interval: 4, Repetition: 2, DueDate: "2025-03-14", LastReviewDate: "2025-03-10", Status: models.StatusReview}
	log := models.ReviewLog{ID: "l1", WordID: "w1", Quality: 3, ReviewedAt: at, PreviousInterval: 1, NewInterval: 4, PreviousEF: 2.5, NewEF: 2.36, Mode: models.ModeReview}

	require.NoError(t, store.SaveReviews(ctx, []models.CardState{state}, []models.ReviewLog{log}))
	require.NoError(t, store.SaveReviews(ctx, []models.CardState{state}, []models.ReviewLog{log}))

	states, err := store.FindCardStates(ctx, &models.FindCardState{WordIDs: []string{"w1"}})
	require.NoError(t, err)
	assert.Equal(t, []models.CardState{state}, states)

	logs, err := store.ListReviewLogsSince(ctx, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, at.Equal(logs[0].ReviewedAt))
	assert.Equal(t, 3, logs[0].Quality)
	assert.Equal(t, models.ModeReview, logs[0].Mode)

	logs, err = store.ListReviewLogsSince(ctx, "2025-03-11")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestUserStore_FindCardStatesFilters(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(1)

	require.NoError(t, store.SaveReviews(ctx, []models.CardState{
		{WordID: "a", EaseFactor: 2.5, DueDate: "2025-03-01", Status: models.StatusReview},
		{WordID: "b", EaseFactor: 2.5, DueDate: "2025-03-20", Status: models.StatusMastered},
		{WordID: "c", EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusNew},
	}, nil))
	require.NoError(t, NewUserStore(2).SaveReviews(ctx, []models.CardState{{WordID: "a", EaseFactor: 2.5, DueDate: "2025-03-01", Status: models.StatusReview}}, nil))

	ids := func(find *models.FindCardState) []string {
		states, err := store.FindCardStates(ctx, find)
		require.NoError(t, err)
		var out []string
		for _, st := range states {
			out = append(out, st.WordID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids(&models.FindCardState{}))
	assert.Equal(t, []string{"a", "c"}, ids(&models.FindCardState{DueOnOrBefore: "2025-03-10"}))
	assert.Equal(t, []string{"a", "b"}, ids(&models.FindCardState{ExcludeStatuses: []models.CardStatus{models.StatusNew}}))
	assert.Equal(t, []string{"b"}, ids(&models.FindCardState{Statuses: []models.CardStatus{models.StatusMastered}}))
	assert.Equal(t, []string{"c"}, ids(&models.FindCardState{WordIDs: []string{"c", "zz"}}))
}

func TestUserStore_LookupsBeyondVariableLimit(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(1)

	// more ids than SQLite binds in one statement
	ids := make([]string, 40000)
	for i := range ids {
		ids[i] = fmt.Sprintf("w%05d", i)
	}
	require.NoError(t, store.SaveReviews(ctx, []models.CardState{
		{WordID: ids[39999], EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusReview},
		{WordID: ids[0], EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusReview},
		{WordID: ids[20000], EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusNew},
	}, nil))

	states, err := store.FindCardStates(ctx, &models.FindCardState{
		WordIDs:         ids,
		ExcludeStatuses: []models.CardStatus{models.StatusNew},
	})
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, ids[0], states[0].WordID)
	assert.Equal(t, ids[39999], states[1].WordID)

	w := newWord("abandon")
	require.NoError(t, store.AddWord(ctx, w, models.CardState{EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusNew}))
	words, err := store.GetWordsByIDs(ctx, append(ids, w.ID))
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "abandon", words[w.ID].Text)
}

func TestChunkIDs(t *testing.T) {
	assert.Nil(t, chunkIDs(nil, 2))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunkIDs([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b"}}, chunkIDs([]string{"a", "b"}, 2))
}

func TestUserStore_SettingsAndStreak(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(3)

	settings, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)

	settings.DailyNewCardLimit = 5
	settings.EnabledListIDs = []string{"l1"}
	require.NoError(t, store.SaveSettings(ctx, settings))
	loaded, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)

	streak, err := store.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, streak.CurrentStreak)
	assert.Empty(t, streak.ActiveDates)

	streak = models.StreakData{CurrentStreak: 2, LongestStreak: 4, LastActiveDate: "2025-03-10", ActiveDates: []string{"2025-03-09", "2025-03-10"}}
	require.NoError(t, store.SaveStreak(ctx, streak))
	got, err := store.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, streak, got)
}

func TestUserStore_QuizResults(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(3)

	res := models.QuizResult{ID: "q1", Date: today, Mode: models.QuizMultipleChoice, TotalQuestions: 4, CorrectCount: 3, WrongWordIDs: []string{"w2"}, DurationSeconds: 42}
	require.NoError(t, store.AppendQuizResult(ctx, res))

	results, err := store.ListQuizResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, today.Equal(results[0].Date))
	results[0].Date = today
	assert.Equal(t, res, results[0])
}

func TestUserStore_Statistics(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(1)

	require.NoError(t, store.SaveReviews(ctx, []models.CardState{
		{WordID: "a", EaseFactor: 2.5, DueDate: "2025-03-08", Status: models.StatusReview},
		{WordID: "b", EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusLearning},
		{WordID: "c", EaseFactor: 2.5, DueDate: "2025-03-12", Status: models.StatusMastered},
		{WordID: "d", EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusNew},
		{WordID: "e", EaseFactor: 2.5, DueDate: "2025-03-01", Status: models.StatusRetired},
	}, []models.ReviewLog{
		{ID: "1", WordID: "a", Quality: 4, ReviewedAt: today.AddDate(0, 0, -1), Mode: models.ModeReview},
		{ID: "2", WordID: "b", Quality: 1, ReviewedAt: today, Mode: models.ModeReview},
		{ID: "3", WordID: "b", Quality: 4, ReviewedAt: today, Mode: models.ModeQuiz},
		{ID: "4", WordID: "c", Quality: 5, ReviewedAt: today.AddDate(0, 0, -10), Mode: models.ModeReview},
	}))

	stats, err := store.GetStatistics(ctx, today, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalCards)
	assert.Equal(t, 1, stats.StatusCounts[models.StatusMastered])
	assert.Equal(t, 2, stats.DueToday)
	assert.Equal(t, []DayCount{{"2025-03-08", 0}, {"2025-03-09", 1}, {"2025-03-10", 2}}, stats.ReviewsPerDay)
	assert.Equal(t, []DayCount{{"2025-03-10", 2}, {"2025-03-11", 0}, {"2025-03-12", 1}}, stats.DueForecast)
}

func TestUserStore_Replace(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	store := NewUserStore(1)

	require.NoError(t, store.AddWord(ctx, newWord("old"), models.CardState{EaseFactor: 2.5, DueDate: "2025-03-10", Status: models.StatusNew}))

	snap := Snapshot{
		Words:      []models.Word{{ID: "n1", Text: "new", Definitions: []models.Definition{{Meaning: "fresh"}}, Tags: []string{}}},
		CardStates: []models.CardState{{WordID: "n1", EaseFactor: 2.6, Interval: 6, Repetition: 2, DueDate: "2025-03-16", Status: models.StatusReview}},
		ReviewLogs: []models.ReviewLog{{ID: "r1", WordID: "n1", Quality: 5, ReviewedAt: today, Mode: models.ModeReview}},
		Settings:   models.UserSettings{DailyNewCardLimit: 3, DailyReviewLimit: 30, EnabledListIDs: []string{}},
		Streak:     models.StreakData{CurrentStreak: 1, LongestStreak: 1, LastActiveDate: "2025-03-10", ActiveDates: []string{"2025-03-10"}},
	}
	require.NoError(t, store.Replace(ctx, snap))

	words, err := store.ListUserWords(ctx)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "new", words[0].Text)
	assert.Equal(t, models.SourceUser, words[0].Source)

	states, err := store.FindCardStates(ctx, &models.FindCardState{})
	require.NoError(t, err)
	assert.Equal(t, snap.CardStates, states)

	logs, err := store.ListReviewLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	settings, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Settings, settings)
}

func TestUserRepository(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	repo := NewUserRepository()

	require.NoError(t, repo.Create(ctx, &models.User{ID: 42, Username: "ann", NotificationEnabled: true, NotificationHour: 9}))
	require.NoError(t, repo.Create(ctx, &models.User{ID: 43, Username: "bob", NotificationEnabled: false, NotificationHour: 9}))
	require.NoError(t, repo.Create(ctx, &models.User{ID: 42, Username: "ann2", NotificationHour: 20}))

	u, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ann2", u.Username)
	assert.Equal(t, 9, u.NotificationHour)

	users, err := repo.GetUsersForNotification(ctx, 9)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(42), users[0].ID)

	require.NoError(t, repo.UpdateNotifications(ctx, 43, true, 9))
	users, err = repo.GetUsersForNotification(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdateNotifications(ctx, 1, true, 9), ErrNotFound)
}

func TestListStore(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	list := &models.WordList{Name: "IELTS"}
	require.NoError(t, NewWordListRepository().Create(ctx, list))
	store := NewListStore(list.ID)

	w := newWord("candid")
	require.NoError(t, store.AddWord(ctx, w, models.CardState{}))
	assert.Equal(t, models.SourceBuiltin, w.Source)
	assert.Equal(t, list.ID, w.ListID)

	found, err := store.FindWordByText(ctx, "Candid")
	require.NoError(t, err)
	found.Example = "a candid answer"
	require.NoError(t, store.UpdateWord(ctx, found))

	words, err := store.Words(ctx)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "a candid answer", words[0].Example)

	// list words are not user words and have no card state
	_, err = NewUserStore(1).FindWordByText(ctx, "candid")
	assert.ErrorIs(t, err, ErrNotFound)
	states, err := NewUserStore(1).FindCardStates(ctx, &models.FindCardState{WordIDs: []string{w.ID}})
	require.NoError(t, err)
	assert.Empty(t, states)

	lists, err := NewWordListRepository().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, 1, lists[0].WordCount)
}
