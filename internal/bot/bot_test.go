package bot

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/wordsrs/internal/backup"
	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/session"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

const testUserID int64 = 7

// fakeAPI records everything the bot sends to Telegram
type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	fileURL string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if _, ok := c.(tgbotapi.CallbackConfig); ok {
		return &tgbotapi.APIResponse{Ok: true}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeAPI) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastText() string {
	switch m := f.last().(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	}
	return ""
}

func setupBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	require.NoError(t, database.Connect(database.DriverSQLite, ":memory:"))
	t.Cleanup(func() { database.Close() })

	cfg := DefaultConfig()
	cfg.Token = "test-token"
	cfg.AdminUserIDs = []int64{1}
	cfg.Session.FlushBackoff = time.Millisecond

	model := spaced_repetition.NewSM2().WithRand(rand.New(rand.NewSource(1)))
	b, err := New(cfg, model, session.NewMemoryDayStore())
	require.NoError(t, err)
	t.Cleanup(b.Stop)

	api := &fakeAPI{}
	b.api = api
	b.now = func() time.Time { return testNow }
	return b, api
}

func command(userID int64, text string) *tgbotapi.Message {
	name, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
		From:     &tgbotapi.User{ID: userID, UserName: "learner"},
		Chat:     &tgbotapi.Chat{ID: userID},
	}
}

func callback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}
}

func addWord(t *testing.T, b *Bot, userID int64, text, meaning string) *models.Word {
	t.Helper()
	w := &models.Word{Text: text, Definitions: []models.Definition{{Meaning: meaning}}}
	require.NoError(t, database.NewUserStore(userID).AddWord(context.Background(), w, b.model.CreateInitialState("", testNow)))
	return w
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(&BotConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestStart_RegistersUser(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/start")))
	assert.Contains(t, api.lastText(), "Welcome")

	user, err := b.users.GetByID(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, "learner", user.Username)
	assert.True(t, user.NotificationEnabled)
	assert.False(t, user.IsAdmin)
}

func TestReview_NoWords(t *testing.T) {
	b, api := setupBot(t)

	require.NoError(t, b.HandleCommand(context.Background(), command(testUserID, "/review")))
	assert.Contains(t, api.lastText(), "no words yet")
}

func TestReview_RateSavesProgress(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	w := addWord(t, b, testUserID, "abandon", "to leave behind")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/review")))
	assert.Contains(t, api.lastText(), "📚 Card 1/1")
	assert.Contains(t, api.lastText(), "<b>abandon</b>")

	// rating before the answer is shown only re-shows the card
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, "rate_4")))
	assert.Contains(t, api.lastText(), "📚 Card 1/1")
	assert.NotContains(t, api.lastText(), "to leave behind")

	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackShowAnswer)))
	edit, ok := api.last().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 10, edit.MessageID)
	assert.Contains(t, edit.Text, "to leave behind")
	require.NotNil(t, edit.ReplyMarkup)
	assert.Contains(t, edit.ReplyMarkup.InlineKeyboard[1][0].Text, "Good · 1d")

	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, "rate_4")))
	assert.Contains(t, api.lastText(), "Session complete")
	assert.Contains(t, api.lastText(), "Reviewed: 1")

	store := database.NewUserStore(testUserID)
	states, err := store.FindCardStates(ctx, &models.FindCardState{WordIDs: []string{w.ID}})
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 1, states[0].Repetition)
	assert.Equal(t, "2025-03-11", states[0].DueDate)

	logs, err := store.ListReviewLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 4, logs[0].Quality)
}

func TestQuiz_NotEnoughWords(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	addWord(t, b, testUserID, "abandon", "to leave behind")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/review")))
	// the learning phase must be finished first
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackQuiz)))
	assert.Contains(t, api.lastText(), "Finish the current cards first")

	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackShowAnswer)))
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, "rate_5")))
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackQuiz)))
	assert.Contains(t, api.lastText(), "Not enough words for a quiz")
}

func TestReinforce_AfterReview(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	addWord(t, b, testUserID, "abandon", "to leave behind")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/review")))
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackShowAnswer)))
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, "rate_3")))

	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackReinforce)))
	assert.Contains(t, api.lastText(), "💪 Reinforcement 1/1")

	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackShowAnswer)))
	assert.Contains(t, api.lastText(), "to leave behind")
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackNext)))
	assert.Contains(t, api.lastText(), "Reinforcement complete")
}

func TestCallback_WithoutSession(t *testing.T) {
	b, api := setupBot(t)

	require.NoError(t, b.HandleCallback(context.Background(), callback(testUserID, "rate_4")))
	assert.Contains(t, api.lastText(), "This session has ended")
}

func TestAddWords_FromText(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/add")))
	msg := &tgbotapi.Message{
		Text: "hello - a greeting\nworld - the earth\nnot a word line",
		From: &tgbotapi.User{ID: testUserID},
		Chat: &tgbotapi.Chat{ID: testUserID},
	}
	require.NoError(t, b.handleMessage(ctx, msg))
	assert.Contains(t, api.lastText(), "Added: 2")
	assert.Contains(t, api.lastText(), "Errors (1)")

	words, err := database.NewUserStore(testUserID).ListUserWords(ctx)
	require.NoError(t, err)
	assert.Len(t, words, 2)

	// the prompt state is gone after one message
	require.NoError(t, b.handleMessage(ctx, msg))
	assert.Contains(t, api.lastText(), "I don't understand")
}

func TestSettings_ChangeNewCardLimit(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()

	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, "set_new_5")))
	assert.Contains(t, api.lastText(), "New cards per day: 5")

	settings, err := database.NewUserStore(testUserID).LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, settings.DailyNewCardLimit)
	assert.Equal(t, 100, settings.DailyReviewLimit)
}

func TestCommands_NotifyTimeLimits(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/time 21")))
	assert.Contains(t, api.lastText(), "21:00")
	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/notify off")))
	assert.Contains(t, api.lastText(), "turned off")

	user, err := b.users.GetByID(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 21, user.NotificationHour)
	assert.False(t, user.NotificationEnabled)

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/limits 7")))
	assert.Contains(t, api.lastText(), "Please specify both limits")
	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/limits 7 70")))
	settings, err := database.NewUserStore(testUserID).LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, settings.DailyNewCardLimit)
	assert.Equal(t, 70, settings.DailyReviewLimit)
}

func TestExportAndRestore(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	addWord(t, b, testUserID, "abandon", "to leave behind")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/export")))
	doc, ok := api.last().(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "vocab-backup-2025-03-10.json", file.Name)
	assert.Contains(t, doc.Caption, "1 word")

	env, err := backup.Read(bytes.NewReader(file.Bytes))
	require.NoError(t, err)
	require.Len(t, env.Words, 1)

	// a word added after the backup is gone once it is restored
	addWord(t, b, testUserID, "zeal", "great energy")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(file.Bytes)
	}))
	defer server.Close()
	api.fileURL = server.URL

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/restore")))
	upload := &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "backup", FileName: file.Name, FileSize: len(file.Bytes)},
		From:     &tgbotapi.User{ID: testUserID},
		Chat:     &tgbotapi.Chat{ID: testUserID},
	}
	require.NoError(t, b.handleMessage(ctx, upload))
	assert.Contains(t, api.lastText(), "Restored 1 word and 1 card")

	words, err := database.NewUserStore(testUserID).ListUserWords(ctx)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "abandon", words[0].Text)
}

func TestRestore_RejectsLargeFiles(t *testing.T) {
	b, api := setupBot(t)
	b.config.MaxUploadBytes = 10

	require.NoError(t, b.HandleCommand(context.Background(), command(testUserID, "/restore")))
	upload := &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "backup", FileName: "b.json", FileSize: 11},
		From:     &tgbotapi.User{ID: testUserID},
		Chat:     &tgbotapi.Chat{ID: testUserID},
	}
	require.NoError(t, b.handleMessage(context.Background(), upload))
	assert.Contains(t, api.lastText(), "too large")
}

func TestSendReminders(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()

	assert.ErrorIs(t, b.SendReminders(testUserID, 2), database.ErrNotFound)

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/start")))
	require.NoError(t, b.SendReminders(testUserID, 2))
	msg, ok := api.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, testUserID, msg.ChatID)
	assert.Contains(t, msg.Text, "2 cards due")
}

func TestAdminStats(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/admin_stats")))
	assert.Contains(t, api.lastText(), "only available for administrators")

	require.NoError(t, b.HandleCommand(ctx, command(1, "/start")))
	require.NoError(t, b.HandleCommand(ctx, command(1, "/admin_stats")))
	assert.Contains(t, api.lastText(), "👥 Users: 1 (admins: 1)")
}

func TestEnsureUser_SyncsAdminFlag(t *testing.T) {
	b, _ := setupBot(t)
	ctx := context.Background()
	require.NoError(t, b.users.Create(ctx, &models.User{ID: 1, Username: "owner"}))

	require.NoError(t, b.HandleCommand(ctx, command(1, "/start")))
	user, err := b.users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
}

func TestCloseIdleSessions(t *testing.T) {
	b, _ := setupBot(t)
	ctx := context.Background()
	addWord(t, b, testUserID, "abandon", "to leave behind")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/review")))
	_, ok := b.currentSession(testUserID)
	require.True(t, ok)

	b.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	b.closeIdleSessions(ctx)
	_, ok = b.currentSession(testUserID)
	assert.False(t, ok)
}

func addStudiedWord(t *testing.T, userID int64, text, meaning string) *models.Word {
	t.Helper()
	w := &models.Word{Text: text, Definitions: []models.Definition{{Meaning: meaning}}}
	state := models.CardState{EaseFactor: 2.5, Interval: 6, Repetition: 2, DueDate: "2025-03-14", Status: models.StatusReview}
	require.NoError(t, database.NewUserStore(userID).AddWord(context.Background(), w, state))
	return w
}

func spellingAnswer(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: testUserID},
		Chat: &tgbotapi.Chat{ID: testUserID},
	}
}

func TestSpelling(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	store := database.NewUserStore(testUserID)

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/spell")))
	assert.Contains(t, api.lastText(), "No studied words yet")

	w := addStudiedWord(t, testUserID, "abandon", "to leave behind")
	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/spell")))
	assert.Contains(t, api.lastText(), "Spelling 1/1")
	assert.Contains(t, api.lastText(), "to leave behind")

	require.NoError(t, b.handleMessage(ctx, spellingAnswer(" Abandon ")))
	assert.Contains(t, api.lastText(), "✅ Correct!")

	_, waiting := b.userState(testUserID)
	assert.False(t, waiting)

	states, err := store.FindCardStates(ctx, &models.FindCardState{WordIDs: []string{w.ID}})
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 3, states[0].Repetition)
	assert.Equal(t, models.StatusReview, states[0].Status)

	logs, err := store.ListReviewLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, w.ID, logs[0].WordID)
	assert.Equal(t, 4, logs[0].Quality)
	assert.Equal(t, models.ModeQuiz, logs[0].Mode)

	streakData, err := store.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streakData.CurrentStreak)
	assert.Equal(t, "2025-03-10", streakData.LastActiveDate)

	results, err := store.ListQuizResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.QuizSpelling, results[0].Mode)
	assert.Equal(t, 1, results[0].TotalQuestions)
	assert.Equal(t, 1, results[0].CorrectCount)
}

func TestSpelling_WrongAnswerAndCancel(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	store := database.NewUserStore(testUserID)
	w := addStudiedWord(t, testUserID, "abandon", "to leave behind")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/spell")))
	require.NoError(t, b.handleMessage(ctx, spellingAnswer("abandom")))
	assert.Contains(t, api.lastText(), "The answer is: <b>abandon</b>")

	states, err := store.FindCardStates(ctx, &models.FindCardState{WordIDs: []string{w.ID}})
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 0, states[0].Repetition)
	assert.Equal(t, 1, states[0].Interval)
	assert.Equal(t, "2025-03-11", states[0].DueDate)

	logs, err := store.ListReviewLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].Quality)

	results, err := store.ListQuizResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{w.ID}, results[0].WrongWordIDs)

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/spell")))
	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/cancel")))
	_, waiting := b.userState(testUserID)
	assert.False(t, waiting)
	b.mu.Lock()
	assert.Empty(t, b.practice)
	b.mu.Unlock()
}

func TestPractice_MultipleChoice(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	store := database.NewUserStore(testUserID)

	addStudiedWord(t, testUserID, "abandon", "to leave behind")
	addStudiedWord(t, testUserID, "benefit", "an advantage")
	addStudiedWord(t, testUserID, "candid", "truthful and direct")
	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/practice")))
	assert.Contains(t, api.lastText(), "needs at least 4 studied words")

	addStudiedWord(t, testUserID, "diligent", "showing care in work")
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, callbackPractice)))
	assert.Contains(t, api.lastText(), "1/4")

	run, ok := b.currentPractice(testUserID)
	require.True(t, ok)
	require.Equal(t, models.QuizMultipleChoice, run.mode)
	require.Len(t, run.mcq, 4)

	// a button of a later question does nothing
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, "practice_answer_1_0")))
	assert.Equal(t, 0, run.index)

	for i, q := range run.mcq {
		data := fmt.Sprintf("practice_answer_%d_%d", i, q.CorrectIndex())
		require.NoError(t, b.HandleCallback(ctx, callback(testUserID, data)))
	}
	assert.Contains(t, api.lastText(), "✅ Correct!")

	_, ok = b.currentPractice(testUserID)
	assert.False(t, ok)

	results, err := store.ListQuizResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.QuizMultipleChoice, results[0].Mode)
	assert.Equal(t, 4, results[0].TotalQuestions)
	assert.Equal(t, 4, results[0].CorrectCount)

	logs, err := store.ListReviewLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 4)

	streakData, err := store.LoadStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streakData.CurrentStreak)

	// answering after the end
	require.NoError(t, b.HandleCallback(ctx, callback(testUserID, "practice_answer_3_0")))
	assert.Contains(t, api.lastText(), "This quiz has ended")
}

func TestParsePracticeAnswer(t *testing.T) {
	q, o, err := parsePracticeAnswer("practice_answer_3_1")
	require.NoError(t, err)
	assert.Equal(t, 3, q)
	assert.Equal(t, 1, o)

	for _, data := range []string{"practice_answer_3", "practice_answer_x_1", "practice_answer_2_y"} {
		_, _, err := parsePracticeAnswer(data)
		assert.Error(t, err, data)
	}
}

func TestDeleteWord(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()
	addWord(t, b, testUserID, "abandon", "to leave behind")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/delete")))
	assert.Contains(t, api.lastText(), "Usage: /delete")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/delete benefit")))
	assert.Contains(t, api.lastText(), "not found")

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/delete Abandon")))
	assert.Contains(t, api.lastText(), "Deleted \"abandon\"")

	words, err := database.NewUserStore(testUserID).ListUserWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)
}

type fakeReminders struct {
	count int
	users []int64
}

func (f *fakeReminders) RunManualCheck(ctx context.Context, userID int64) (int, error) {
	f.users = append(f.users, userID)
	return f.count, nil
}

func TestRemindCommand(t *testing.T) {
	b, api := setupBot(t)
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/remind")))
	assert.Contains(t, api.lastText(), "Reminders are not running")

	checker := &fakeReminders{}
	b.WithReminders(checker)
	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/remind")))
	assert.Equal(t, "✅ No cards due right now.", api.lastText())
	assert.Equal(t, []int64{testUserID}, checker.users)

	// the checker sends the reminder itself
	checker.count = 3
	api.mu.Lock()
	sent := len(api.sent)
	api.mu.Unlock()
	require.NoError(t, b.HandleCommand(ctx, command(testUserID, "/remind")))
	api.mu.Lock()
	assert.Len(t, api.sent, sent)
	api.mu.Unlock()
}
