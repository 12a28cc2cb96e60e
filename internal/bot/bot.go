package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/session"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/internal/streak"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// telegramAPI is the part of the Bot API client the bot talks to
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Conversation states waiting for the user's next message
const (
	stateAwaitingImport   = "awaiting_import"
	stateAwaitingRestore  = "awaiting_restore"
	stateAwaitingWord     = "awaiting_word"
	stateAwaitingSpelling = "awaiting_spelling"
)

// UserState represents the current state of a user in conversation with the bot
type UserState struct {
	State     string
	Timestamp time.Time
}

// studySession is a running study session of one user
type studySession struct {
	session  *session.Session
	store    *database.UserStore
	revealed bool
	lastUsed time.Time
}

// Bot represents the Telegram bot application
type Bot struct {
	api    telegramAPI
	config *BotConfig
	model  *spaced_repetition.SM2
	days   session.DayStateStore
	users  *database.UserRepository
	lists  *database.WordListRepository
	admins map[int64]bool
	client *http.Client
	now    func() time.Time

	mu         sync.Mutex
	userLocks  map[int64]*sync.Mutex
	sessions   map[int64]*studySession
	userStates map[int64]UserState
	practice   map[int64]*practiceRun

	reminders ReminderChecker
}

// ReminderChecker counts a user's due cards and reminds them if any are waiting
type ReminderChecker interface {
	RunManualCheck(ctx context.Context, userID int64) (int, error)
}

// New creates a new bot instance. The database must be connected.
func New(config *BotConfig, model *spaced_repetition.SM2, days session.DayStateStore) (*Bot, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("telegram bot token is not set")
	}
	if database.DB == nil {
		return nil, fmt.Errorf("database connection is not established")
	}
	if model == nil {
		model = spaced_repetition.NewSM2()
	}
	if days == nil {
		days = session.NewMemoryDayStore()
	}

	bot := &Bot{
		config:     config,
		model:      model,
		days:       days,
		users:      database.NewUserRepository(),
		lists:      database.NewWordListRepository(),
		admins:     make(map[int64]bool),
		client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		userLocks:  make(map[int64]*sync.Mutex),
		sessions:   make(map[int64]*studySession),
		userStates: make(map[int64]UserState),
		practice:   make(map[int64]*practiceRun),
	}
	for _, id := range config.AdminUserIDs {
		bot.admins[id] = true
	}
	return bot, nil
}

// WithReminders enables the /remind command
func (b *Bot) WithReminders(r ReminderChecker) *Bot {
	b.reminders = r
	return b
}

// Start connects to Telegram and handles updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.config.Token)
	if err != nil {
		return fmt.Errorf("failed to create bot API: %w", err)
	}
	b.api = botAPI
	log.Printf("Authorized on account %s", botAPI.Self.UserName)

	// Set up the update configuration
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := botAPI.GetUpdatesChan(updateConfig)

	cleanup := time.NewTicker(10 * time.Minute)
	defer cleanup.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			wg.Wait()
			b.Stop()
			return nil
		case <-cleanup.C:
			b.closeIdleSessions(ctx)
		case update, ok := <-updates:
			if !ok {
				wg.Wait()
				b.Stop()
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// Stop flushes and closes every running session
func (b *Bot) Stop() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[int64]*studySession)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for userID, s := range sessions {
		unlock := b.lockUser(userID)
		s.session.Close(ctx)
		unlock()
	}
	log.Println("Bot stopped")
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(userID int64, count int) error {
	if _, err := b.users.GetByID(context.Background(), userID); err != nil {
		log.Printf("Error getting user %d: %v", userID, err)
		return err
	}

	// В личных чатах chat ID совпадает с user ID
	chatID := userID

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("⏰ You have %s due for review today!", pluralize(count, "card", "cards")))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🎯 Start review", CallbackData: callbackStartLearning}},
	})
	err := b.sendMessage(msg)
	if err != nil {
		log.Printf("Error sending reminder to user %d: %v", userID, err)
	} else {
		log.Printf("Successfully sent reminder to user %d for %d cards", userID, count)
	}
	return err
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

// lockUser serializes the updates of one user; a study session is not safe
// for concurrent use
func (b *Bot) lockUser(userID int64) func() {
	b.mu.Lock()
	l, ok := b.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		b.userLocks[userID] = l
	}
	b.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var (
		userID int64
		err    error
	)
	switch {
	case update.Message != nil && update.Message.From != nil:
		userID = update.Message.From.ID
		unlock := b.lockUser(userID)
		defer unlock()
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		userID = update.CallbackQuery.From.ID
		unlock := b.lockUser(userID)
		defer unlock()
		err = b.HandleCallback(ctx, update.CallbackQuery)
	default:
		return
	}
	if err != nil {
		log.Printf("Error handling update from user %d: %v", userID, err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.IsCommand() {
		return b.HandleCommand(ctx, message)
	}

	state, ok := b.userState(message.From.ID)
	if !ok {
		msg := tgbotapi.NewMessage(message.Chat.ID, "I don't understand. Use /menu to show the main menu.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.sendMessage(msg)
	}

	switch state.State {
	case stateAwaitingImport, stateAwaitingRestore:
		if message.Document == nil {
			return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Please send a file, or /cancel."))
		}
		b.clearUserState(message.From.ID)
		if state.State == stateAwaitingRestore {
			return b.handleRestoreUpload(ctx, message)
		}
		return b.handleImportUpload(ctx, message)
	case stateAwaitingWord:
		b.clearUserState(message.From.ID)
		return b.handleAddWordText(ctx, message)
	case stateAwaitingSpelling:
		return b.answerSpelling(ctx, message.From.ID, message.Chat.ID, message.Text)
	}
	return nil
}

func (b *Bot) userState(userID int64) (UserState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.userStates[userID]
	return s, ok
}

func (b *Bot) setUserState(userID int64, state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userStates[userID] = UserState{State: state, Timestamp: b.now()}
}

func (b *Bot) clearUserState(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.userStates, userID)
}

// openSession replaces the user's study session with a fresh one
func (b *Bot) openSession(ctx context.Context, userID int64) (*studySession, error) {
	b.closeSession(ctx, userID)

	store := database.NewUserStore(userID)
	sess, err := session.New(ctx, session.Deps{
		Store:   store,
		Model:   b.model,
		Streak:  streak.NewTracker(store).WithClock(b.now),
		Days:    b.days,
		UserKey: fmt.Sprint(userID),
		Now:     b.now,
	}, b.config.Session)
	if err != nil {
		return nil, err
	}

	s := &studySession{session: sess, store: store, lastUsed: b.now()}
	b.mu.Lock()
	b.sessions[userID] = s
	b.mu.Unlock()
	return s, nil
}

// currentSession returns the running session of a user
func (b *Bot) currentSession(userID int64) (*studySession, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[userID]
	if ok {
		s.lastUsed = b.now()
	}
	return s, ok
}

// closeSession flushes and forgets the user's session. The caller holds the user lock.
func (b *Bot) closeSession(ctx context.Context, userID int64) {
	b.mu.Lock()
	s, ok := b.sessions[userID]
	delete(b.sessions, userID)
	b.mu.Unlock()
	if ok {
		s.session.Close(ctx)
	}
}

func (b *Bot) closeIdleSessions(ctx context.Context) {
	deadline := b.now().Add(-b.config.SessionIdleTimeout)

	b.mu.Lock()
	var idle []int64
	for userID, s := range b.sessions {
		if s.lastUsed.Before(deadline) {
			idle = append(idle, userID)
		}
	}
	for userID, run := range b.practice {
		if run.lastUsed.Before(deadline) {
			delete(b.practice, userID)
			if st, ok := b.userStates[userID]; ok && st.State == stateAwaitingSpelling {
				delete(b.userStates, userID)
			}
		}
	}
	b.mu.Unlock()

	for _, userID := range idle {
		unlock := b.lockUser(userID)
		b.closeSession(ctx, userID)
		unlock()
	}
	if len(idle) > 0 {
		log.Printf("Closed %d idle study sessions", len(idle))
	}
}

func (b *Bot) sendMessage(c tgbotapi.Chattable) error {
	_, err := b.api.Send(c)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) editMessage(c tgbotapi.Chattable) error {
	_, err := b.api.Request(c)
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// pluralize formats n with the singular or plural noun
func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
