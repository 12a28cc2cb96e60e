package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/example/wordsrs/internal/backup"
	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/excel"
	"github.com/example/wordsrs/internal/streak"
	"github.com/example/wordsrs/pkg/models"
)

// Constants for callback data
const (
	callbackMainMenu          = "main_menu"
	callbackHelp              = "help"
	callbackStartLearning     = "start_learning"
	callbackRestartLearning   = "restart_learning"
	callbackContinue          = "continue"
	callbackShowAnswer        = "show_answer"
	callbackAudio             = "audio"
	callbackRatePrefix        = "rate_"
	callbackNext              = "next"
	callbackEndSession        = "end_session"
	callbackRetrySave         = "retry_save"
	callbackReinforce         = "reinforce"
	callbackQuiz              = "quiz"
	callbackAnswerPrefix      = "answer_"
	callbackQuizNext          = "quiz_next"
	callbackStats             = "stats"
	callbackSettings          = "settings"
	callbackNotifyOn          = "notify_on"
	callbackNotifyOff         = "notify_off"
	callbackTimeSettings      = "time_settings"
	callbackHourPrefix        = "set_hour_"
	callbackNewLimitPrefix    = "set_new_"
	callbackReviewLimitPrefix = "set_review_"
	callbackListsMenu         = "lists_menu"
	callbackListPrefix        = "toggle_list_"
	callbackAddWords          = "add_words"
	callbackImport            = "import"
	callbackExport            = "export"
	callbackRestore           = "restore"
	callbackCancelAction      = "cancel_action"
	callbackSpell             = "spell"
	callbackPractice          = "practice"

	callbackPracticeAnswerPrefix = "practice_answer_"
)

var (
	newLimitChoices    = []int{5, 10, 20, 30}
	reviewLimitChoices = []int{50, 100, 200}
)

var errFileTooLarge = errors.New("file is too large")

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "help":
		return b.handleHelp(chatID, 0)
	case "menu":
		return b.showMainMenu(chatID, 0)
	case "review":
		return b.startLearning(ctx, message.From, chatID, 0)
	case "restart":
		return b.restartLearning(ctx, message.From, chatID, 0)
	case "reinforce":
		return b.startReinforcement(ctx, message.From, chatID, 0)
	case "quiz":
		return b.startQuiz(ctx, message.From, chatID, 0)
	case "practice":
		return b.startPractice(ctx, message.From.ID, chatID, 0, models.QuizMultipleChoice)
	case "spell":
		return b.startPractice(ctx, message.From.ID, chatID, 0, models.QuizSpelling)
	case "stats":
		return b.handleStats(ctx, message.From.ID, chatID, 0)
	case "settings":
		return b.handleSettings(ctx, message.From, chatID, 0)
	case "notify":
		return b.handleNotifyCommand(ctx, message)
	case "time":
		return b.handleTimeCommand(ctx, message)
	case "limits":
		return b.handleLimitsCommand(ctx, message)
	case "add":
		return b.promptAddWords(message.From.ID, chatID, 0)
	case "import":
		return b.promptImport(message.From.ID, chatID, 0)
	case "export":
		return b.handleExport(ctx, message.From.ID, chatID)
	case "restore":
		return b.promptRestore(message.From.ID, chatID, 0)
	case "delete":
		return b.handleDeleteCommand(ctx, message)
	case "remind":
		return b.handleRemindCommand(ctx, message)
	case "cancel":
		b.endPractice(message.From.ID)
		return b.showMainMenu(chatID, 0)
	case "admin_stats":
		if !b.isAdmin(message.From.ID) {
			msg := tgbotapi.NewMessage(chatID, "This command is only available for administrators.")
			msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
			return b.sendMessage(msg)
		}
		return b.handleAdminStats(ctx, chatID)
	default:
		msg := tgbotapi.NewMessage(chatID, "Unknown command. Use /help to see what I can do.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.sendMessage(msg)
	}
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback == nil || callback.Message == nil || callback.From == nil || callback.Message.Chat == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always send an answer to the callback query to remove the loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Warning: Failed to answer callback: %v", err)
	}

	err := b.dispatchCallback(ctx, callback)
	if err != nil {
		log.Printf("Error handling callback %q from user %d: %v", callback.Data, callback.From.ID, err)
		errorMsg := tgbotapi.NewMessage(callback.Message.Chat.ID, "❌ Something went wrong. Please try again later.")
		return b.sendMessage(errorMsg)
	}
	return nil
}

func (b *Bot) dispatchCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	from := callback.From
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	switch callback.Data {
	case callbackMainMenu:
		return b.showMainMenu(chatID, messageID)
	case callbackHelp:
		return b.handleHelp(chatID, messageID)
	case callbackStartLearning:
		return b.startLearning(ctx, from, chatID, messageID)
	case callbackRestartLearning:
		return b.restartLearning(ctx, from, chatID, messageID)
	case callbackReinforce:
		return b.startReinforcement(ctx, from, chatID, messageID)
	case callbackQuiz:
		return b.startQuiz(ctx, from, chatID, messageID)
	case callbackPractice:
		return b.startPractice(ctx, from.ID, chatID, messageID, models.QuizMultipleChoice)
	case callbackSpell:
		return b.startPractice(ctx, from.ID, chatID, messageID, models.QuizSpelling)
	case callbackStats:
		return b.handleStats(ctx, from.ID, chatID, messageID)
	case callbackSettings:
		return b.handleSettings(ctx, from, chatID, messageID)
	case callbackNotifyOn, callbackNotifyOff:
		return b.handleNotificationsToggle(ctx, from, chatID, messageID, callback.Data == callbackNotifyOn)
	case callbackTimeSettings:
		return b.handleTimeSettings(chatID, messageID)
	case callbackListsMenu:
		return b.handleListsMenu(ctx, from.ID, chatID, messageID)
	case callbackAddWords:
		return b.promptAddWords(from.ID, chatID, messageID)
	case callbackImport:
		return b.promptImport(from.ID, chatID, messageID)
	case callbackRestore:
		return b.promptRestore(from.ID, chatID, messageID)
	case callbackExport:
		return b.handleExport(ctx, from.ID, chatID)
	case callbackCancelAction:
		b.endPractice(from.ID)
		return b.showMainMenu(chatID, messageID)
	case callbackEndSession:
		b.closeSession(ctx, from.ID)
		return b.showMainMenu(chatID, messageID)
	}

	switch {
	case strings.HasPrefix(callback.Data, callbackHourPrefix):
		hour, err := parseCallbackInt(callback.Data, callbackHourPrefix)
		if err != nil || hour < 0 || hour > 23 {
			return fmt.Errorf("invalid notification hour in callback data %q", callback.Data)
		}
		return b.handleNotificationHourChange(ctx, from, chatID, messageID, hour)
	case strings.HasPrefix(callback.Data, callbackNewLimitPrefix):
		n, err := parseCallbackInt(callback.Data, callbackNewLimitPrefix)
		if err != nil {
			return err
		}
		return b.handleLimitChange(ctx, from, chatID, messageID, func(s *models.UserSettings) { s.DailyNewCardLimit = n })
	case strings.HasPrefix(callback.Data, callbackReviewLimitPrefix):
		n, err := parseCallbackInt(callback.Data, callbackReviewLimitPrefix)
		if err != nil {
			return err
		}
		return b.handleLimitChange(ctx, from, chatID, messageID, func(s *models.UserSettings) { s.DailyReviewLimit = n })
	case strings.HasPrefix(callback.Data, callbackPracticeAnswerPrefix):
		return b.answerChoice(ctx, from.ID, chatID, messageID, callback.Data)
	case strings.HasPrefix(callback.Data, callbackListPrefix):
		return b.handleListToggle(ctx, from.ID, chatID, messageID, strings.TrimPrefix(callback.Data, callbackListPrefix))
	}

	// Everything below acts on the running study session
	s, ok := b.currentSession(from.ID)
	if !ok {
		return b.show(chatID, messageID, "⌛ This session has ended. Start a new one from the menu.",
			[][]MenuButton{{{Text: "🎯 Start review", CallbackData: callbackStartLearning}}})
	}

	switch {
	case callback.Data == callbackShowAnswer:
		return b.revealCard(chatID, messageID, s)
	case callback.Data == callbackContinue:
		return b.resume(chatID, messageID, s)
	case callback.Data == callbackNext:
		return b.nextCard(ctx, chatID, messageID, s)
	case callback.Data == callbackAudio:
		return b.sendAudio(chatID, s)
	case callback.Data == callbackRetrySave:
		return b.retrySave(ctx, chatID, messageID, s)
	case callback.Data == callbackQuizNext:
		return b.nextQuestion(ctx, chatID, messageID, s)
	case strings.HasPrefix(callback.Data, callbackRatePrefix):
		q, err := parseCallbackInt(callback.Data, callbackRatePrefix)
		if err != nil {
			return err
		}
		return b.rateCard(ctx, chatID, messageID, s, q)
	case strings.HasPrefix(callback.Data, callbackAnswerPrefix):
		i, err := parseCallbackInt(callback.Data, callbackAnswerPrefix)
		if err != nil {
			return err
		}
		return b.answerQuestion(ctx, chatID, messageID, s, i)
	}

	return b.sendMessage(tgbotapi.NewMessage(chatID, "⚠️ Unknown action"))
}

func parseCallbackInt(data, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil {
		return 0, fmt.Errorf("invalid number in callback data %q: %w", data, err)
	}
	return n, nil
}

// show sends a new message, or edits messageID when it is set
func (b *Bot) show(chatID int64, messageID int, text string, buttons [][]MenuButton) error {
	if messageID == 0 {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if len(buttons) > 0 {
			msg.ReplyMarkup = createKeyboard(buttons)
		}
		return b.sendMessage(msg)
	}

	var edit tgbotapi.EditMessageTextConfig
	if len(buttons) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, createKeyboard(buttons))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML
	return b.editMessage(edit)
}

// ensureUser registers the Telegram user on first contact
func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*models.User, error) {
	user, err := b.users.GetByID(ctx, from.ID)
	if err == nil {
		if admin := b.isAdmin(from.ID); user.IsAdmin != admin {
			if err := b.users.SetAdmin(ctx, user.ID, admin); err != nil {
				return nil, err
			}
			user.IsAdmin = admin
		}
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		ID:                  from.ID,
		Username:            from.UserName,
		FirstName:           from.FirstName,
		LastName:            from.LastName,
		IsAdmin:             b.isAdmin(from.ID),
		NotificationEnabled: true,
		NotificationHour:    9,
	}
	if err := b.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, message.From); err != nil {
		return err
	}

	text := "👋 Welcome to the vocabulary trainer!\n\n" +
		"I show you the words you are about to forget, right when you need to see them again.\n\n" +
		"🔹 How it works:\n" +
		"1. Add words or enable a word list\n" +
		"2. Review the cards due today and rate how well you remembered\n" +
		"3. Reinforce or quiz yourself on today's words\n" +
		"4. Keep your streak going"

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.sendMessage(msg)
}

func (b *Bot) handleHelp(chatID int64, messageID int) error {
	text := "📖 <b>Help</b>\n\n" +
		"/review - Review today's cards\n" +
		"/reinforce - Drill the words you studied today\n" +
		"/quiz - Multiple-choice quiz on today's words\n" +
		"/practice - Multiple-choice quiz on all studied words\n" +
		"/spell - Spell the words you have studied\n" +
		"/restart - Learn today's new cards again\n" +
		"/stats - Your progress\n\n" +
		"/add - Add words as \"word - meaning\" lines\n" +
		"/import - Import a .csv or .xlsx file\n" +
		"/export - Download a backup\n" +
		"/restore - Restore a backup\n" +
		"/delete &lt;word&gt; - Delete one of your words\n\n" +
		"/settings - Daily limits, reminders and word lists\n" +
		"/limits &lt;new&gt; &lt;reviews&gt; - Set daily limits\n" +
		"/notify on|off - Turn reminders on or off\n" +
		"/time &lt;hour&gt; - Set the reminder hour (0-23)\n" +
		"/remind - Check for due cards now\n\n" +
		"After each card rate how well you remembered it:\n" +
		"😵 Forget - the card comes back later in the session\n" +
		"😓 Hard, 🙂 Good, 😎 Easy - the card is scheduled further out"

	return b.show(chatID, messageID, text, [][]MenuButton{
		{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
	})
}

// showMainMenu shows the main menu
func (b *Bot) showMainMenu(chatID int64, messageID int) error {
	return b.show(chatID, messageID, "🤖 Main Menu - choose an option:", b.MainMenuButtons())
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Start review", CallbackData: callbackStartLearning},
			{Text: "📊 Statistics", CallbackData: callbackStats},
		},
		{
			{Text: "💪 Reinforce", CallbackData: callbackReinforce},
			{Text: "❓ Quiz", CallbackData: callbackQuiz},
		},
		{
			{Text: "🧠 Practice", CallbackData: callbackPractice},
			{Text: "✍️ Spelling", CallbackData: callbackSpell},
		},
		{
			{Text: "📝 Add words", CallbackData: callbackAddWords},
			{Text: "📥 Import", CallbackData: callbackImport},
		},
		{
			{Text: "⚙️ Settings", CallbackData: callbackSettings},
			{Text: "ℹ️ Help", CallbackData: callbackHelp},
		},
	}
}

func (b *Bot) handleStats(ctx context.Context, userID, chatID int64, messageID int) error {
	store := database.NewUserStore(userID)
	tracker := streak.NewTracker(store).WithClock(b.now)

	var (
		stats   *database.Statistics
		current models.StreakData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = store.GetStatistics(gctx, b.now(), b.config.StatsDays)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = tracker.Current(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	return b.show(chatID, messageID, renderStatistics(stats, current), [][]MenuButton{
		{{Text: "🎯 Start review", CallbackData: callbackStartLearning}},
		{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
	})
}

func (b *Bot) handleSettings(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	settings, err := database.NewUserStore(from.ID).LoadSettings(ctx)
	if err != nil {
		return err
	}
	lists, err := b.lists.GetAll(ctx)
	if err != nil {
		return err
	}

	return b.show(chatID, messageID, renderSettings(user, settings, lists), settingsButtons(user, settings))
}

func settingsButtons(user *models.User, settings models.UserSettings) [][]MenuButton {
	var newRow, reviewRow []MenuButton
	for _, n := range newLimitChoices {
		text := fmt.Sprintf("🆕 %d", n)
		if n == settings.DailyNewCardLimit {
			text = "✓ " + text
		}
		newRow = append(newRow, MenuButton{Text: text, CallbackData: fmt.Sprintf("%s%d", callbackNewLimitPrefix, n)})
	}
	for _, n := range reviewLimitChoices {
		text := fmt.Sprintf("🔁 %d", n)
		if n == settings.DailyReviewLimit {
			text = "✓ " + text
		}
		reviewRow = append(reviewRow, MenuButton{Text: text, CallbackData: fmt.Sprintf("%s%d", callbackReviewLimitPrefix, n)})
	}

	notify := MenuButton{Text: "🔔 Turn reminders on", CallbackData: callbackNotifyOn}
	if user.NotificationEnabled {
		notify = MenuButton{Text: "🔕 Turn reminders off", CallbackData: callbackNotifyOff}
	}

	return [][]MenuButton{
		newRow,
		reviewRow,
		{notify, {Text: "🕒 Reminder time", CallbackData: callbackTimeSettings}},
		{{Text: "📚 Word lists", CallbackData: callbackListsMenu}},
		{
			{Text: "📤 Export", CallbackData: callbackExport},
			{Text: "📥 Restore", CallbackData: callbackRestore},
		},
		{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
	}
}

func (b *Bot) handleLimitChange(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int, change func(s *models.UserSettings)) error {
	store := database.NewUserStore(from.ID)
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	change(&settings)
	if err := store.SaveSettings(ctx, settings); err != nil {
		return err
	}
	return b.handleSettings(ctx, from, chatID, messageID)
}

func (b *Bot) handleNotificationsToggle(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int, enabled bool) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	if err := b.users.UpdateNotifications(ctx, from.ID, enabled, user.NotificationHour); err != nil {
		return err
	}
	return b.handleSettings(ctx, from, chatID, messageID)
}

func (b *Bot) handleTimeSettings(chatID int64, messageID int) error {
	var buttons [][]MenuButton
	var row []MenuButton
	for hour := 6; hour <= 23; hour++ {
		row = append(row, MenuButton{Text: fmt.Sprintf("%d:00", hour), CallbackData: fmt.Sprintf("%s%d", callbackHourPrefix, hour)})
		if len(row) == 6 {
			buttons = append(buttons, row)
			row = nil
		}
	}
	buttons = append(buttons, []MenuButton{{Text: "⬅️ Back to settings", CallbackData: callbackSettings}})

	return b.show(chatID, messageID, "🕒 When should I remind you about due cards?", buttons)
}

func (b *Bot) handleNotificationHourChange(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int, hour int) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	if err := b.users.UpdateNotifications(ctx, from.ID, user.NotificationEnabled, hour); err != nil {
		return err
	}
	return b.handleSettings(ctx, from, chatID, messageID)
}

func (b *Bot) handleListsMenu(ctx context.Context, userID, chatID int64, messageID int) error {
	settings, err := database.NewUserStore(userID).LoadSettings(ctx)
	if err != nil {
		return err
	}
	lists, err := b.lists.GetAll(ctx)
	if err != nil {
		return err
	}

	enabled := make(map[string]bool, len(settings.EnabledListIDs))
	for _, id := range settings.EnabledListIDs {
		enabled[id] = true
	}

	text := "📚 Word lists\n\nTap a list to turn it on or off."
	if len(lists) == 0 {
		text = "📚 There are no shared word lists yet."
	}
	var buttons [][]MenuButton
	for _, l := range lists {
		mark := "⬜️"
		if enabled[l.ID] {
			mark = "✅"
		}
		buttons = append(buttons, []MenuButton{{
			Text:         fmt.Sprintf("%s %s (%d)", mark, l.Name, l.WordCount),
			CallbackData: callbackListPrefix + l.ID,
		}})
	}
	buttons = append(buttons, []MenuButton{{Text: "⬅️ Back to settings", CallbackData: callbackSettings}})
	return b.show(chatID, messageID, text, buttons)
}

func (b *Bot) handleListToggle(ctx context.Context, userID, chatID int64, messageID int, listID string) error {
	store := database.NewUserStore(userID)
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(settings.EnabledListIDs)+1)
	found := false
	for _, id := range settings.EnabledListIDs {
		if id == listID {
			found = true
			continue
		}
		ids = append(ids, id)
	}
	if !found {
		ids = append(ids, listID)
	}
	settings.EnabledListIDs = ids

	if err := store.SaveSettings(ctx, settings); err != nil {
		return err
	}
	return b.handleListsMenu(ctx, userID, chatID, messageID)
}

func (b *Bot) handleNotifyCommand(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, message.From)
	if err != nil {
		return err
	}

	var enabled bool
	switch strings.ToLower(strings.TrimSpace(message.CommandArguments())) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Please specify on or off: /notify <on|off>"))
	}

	if err := b.users.UpdateNotifications(ctx, user.ID, enabled, user.NotificationHour); err != nil {
		return err
	}
	text := "✅ Reminders turned off"
	if enabled {
		text = fmt.Sprintf("✅ Reminders turned on, at %d:00", user.NotificationHour)
	}
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, text))
}

func (b *Bot) handleTimeCommand(ctx context.Context, message *tgbotapi.Message) error {
	hour, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	if err != nil || hour < 0 || hour > 23 {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Please specify an hour between 0 and 23: /time <hour>"))
	}

	user, err := b.ensureUser(ctx, message.From)
	if err != nil {
		return err
	}
	if err := b.users.UpdateNotifications(ctx, user.ID, user.NotificationEnabled, hour); err != nil {
		return err
	}
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("✅ Reminder time set to %d:00", hour)))
}

func (b *Bot) handleLimitsCommand(ctx context.Context, message *tgbotapi.Message) error {
	usage := "Please specify both limits: /limits <new cards> <reviews>, e.g. /limits 20 100"
	fields := strings.Fields(message.CommandArguments())
	if len(fields) != 2 {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, usage))
	}
	newLimit, err1 := strconv.Atoi(fields[0])
	reviewLimit, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || newLimit < 0 || reviewLimit < 0 || newLimit > 500 || reviewLimit > 1000 {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, usage))
	}

	store := database.NewUserStore(message.From.ID)
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	settings.DailyNewCardLimit = newLimit
	settings.DailyReviewLimit = reviewLimit
	if err := store.SaveSettings(ctx, settings); err != nil {
		return err
	}
	return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("✅ Daily limits set: %d new cards, %d reviews", newLimit, reviewLimit)))
}

func (b *Bot) promptAddWords(userID, chatID int64, messageID int) error {
	b.setUserState(userID, stateAwaitingWord)
	text := "📝 <b>Adding words</b>\n\n" +
		"Send a list of words, one per line:\n\n" +
		"<code>word - meaning</code>\n\n" +
		"To cancel, send /cancel"
	return b.show(chatID, messageID, text, [][]MenuButton{{{Text: "✖️ Cancel", CallbackData: callbackCancelAction}}})
}

func (b *Bot) promptImport(userID, chatID int64, messageID int) error {
	b.setUserState(userID, stateAwaitingImport)
	text := "📥 <b>Import words</b>\n\n" +
		"Send a .csv or .xlsx file with the columns:\n" +
		"word, part of speech, meaning, example, tags, phonetic\n\n" +
		"The first row is treated as a header. Several meanings are separated by ';'."
	return b.show(chatID, messageID, text, [][]MenuButton{{{Text: "✖️ Cancel", CallbackData: callbackCancelAction}}})
}

func (b *Bot) promptRestore(userID, chatID int64, messageID int) error {
	b.setUserState(userID, stateAwaitingRestore)
	text := "♻️ <b>Restore a backup</b>\n\n" +
		"Send a backup file made with /export.\n" +
		"⚠️ Your current words and progress will be replaced."
	return b.show(chatID, messageID, text, [][]MenuButton{{{Text: "✖️ Cancel", CallbackData: callbackCancelAction}}})
}

func (b *Bot) handleAddWordText(ctx context.Context, message *tgbotapi.Message) error {
	store := database.NewUserStore(message.From.ID)
	result := excel.NewImporter(store, b.model).WithClock(b.now).ImportText(ctx, message.Text)

	msg := tgbotapi.NewMessage(message.Chat.ID, renderImportResult(result))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.sendMessage(msg)
}

func (b *Bot) handleImportUpload(ctx context.Context, message *tgbotapi.Message) error {
	doc := message.Document
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".csv" && ext != ".xlsx" {
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ Only .csv and .xlsx files can be imported."))
	}

	data, err := b.downloadFile(ctx, doc)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ The file is too large."))
		}
		return err
	}

	importer := excel.NewImporter(database.NewUserStore(message.From.ID), b.model).WithClock(b.now)
	config := excel.DefaultImportConfig()

	var result *excel.ImportResult
	if ext == ".csv" {
		result, err = importer.ImportCSV(ctx, bytes.NewReader(data), config)
	} else {
		result, err = b.importExcel(ctx, importer, config, data)
	}
	if err != nil {
		log.Printf("Error importing %s for user %d: %v", doc.FileName, message.From.ID, err)
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ Could not read the file: "+err.Error()))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, renderImportResult(result))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.sendMessage(msg)
}

// importExcel stores the upload in a temporary file for excelize
func (b *Bot) importExcel(ctx context.Context, importer *excel.Importer, config excel.ImportConfig, data []byte) (*excel.ImportResult, error) {
	tmp, err := os.CreateTemp("", "wordsrs-import-*.xlsx")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temporary file: %w", err)
	}

	config.FilePath = tmp.Name()
	config.SheetName = ""
	return importer.ImportWords(ctx, config)
}

func renderImportResult(result *excel.ImportResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Words processed:\n"+
		"- Added: %d\n"+
		"- Updated: %d\n", result.Created, result.Updated))

	if len(result.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("\n❌ Errors (%d):\n", len(result.Errors)))
		for i, errMsg := range result.Errors {
			if i == 10 {
				sb.WriteString(fmt.Sprintf("- ... and %d more\n", len(result.Errors)-i))
				break
			}
			sb.WriteString("- " + errMsg + "\n")
		}
	}

	sb.WriteString("\nPress Start review to study them!")
	return sb.String()
}

func (b *Bot) handleExport(ctx context.Context, userID, chatID int64) error {
	// buffered reviews belong in the backup
	if s, ok := b.currentSession(userID); ok && s.session.Pending() {
		if err := s.session.Flush(ctx); err != nil {
			log.Printf("Error saving reviews before export for user %d: %v", userID, err)
		}
	}

	now := b.now()
	env, err := backup.Export(ctx, database.NewUserStore(userID), now)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := backup.Write(&buf, env); err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: backup.FileName(now), Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("💾 Backup with %s and %s",
		pluralize(len(env.Words), "word", "words"), pluralize(len(env.ReviewLogs), "review", "reviews"))
	return b.sendMessage(doc)
}

func (b *Bot) handleRestoreUpload(ctx context.Context, message *tgbotapi.Message) error {
	data, err := b.downloadFile(ctx, message.Document)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ The file is too large."))
		}
		return err
	}

	env, err := backup.Read(bytes.NewReader(data))
	if err != nil {
		log.Printf("Error reading backup from user %d: %v", message.From.ID, err)
		return b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "❌ This is not a valid backup file."))
	}

	userID := message.From.ID
	b.closeSession(ctx, userID)
	if err := backup.Restore(ctx, database.NewUserStore(userID), env); err != nil {
		return err
	}
	// what was touched today no longer matches the restored history
	if err := b.days.Clear(ctx, fmt.Sprint(userID), models.DateOf(b.now())); err != nil {
		log.Printf("Error clearing day state for user %d: %v", userID, err)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("✅ Restored %s and %s.",
		pluralize(len(env.Words), "word", "words"), pluralize(len(env.CardStates), "card", "cards")))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.sendMessage(msg)
}

// downloadFile fetches an uploaded document from Telegram
func (b *Bot) downloadFile(ctx context.Context, doc *tgbotapi.Document) ([]byte, error) {
	if int64(doc.FileSize) > b.config.MaxUploadBytes {
		return nil, errFileTooLarge
	}
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.config.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if int64(len(data)) > b.config.MaxUploadBytes {
		return nil, errFileTooLarge
	}
	return data, nil
}

func (b *Bot) handleAdminStats(ctx context.Context, chatID int64) error {
	users, err := b.users.GetAll(ctx)
	if err != nil {
		return err
	}
	lists, err := b.lists.GetAll(ctx)
	if err != nil {
		return err
	}
	admins, err := b.users.GetAdminUsers(ctx)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 Users: %d (admins: %d)\n", len(users), len(admins)))
	reminders := 0
	for _, u := range users {
		if u.NotificationEnabled {
			reminders++
		}
	}
	sb.WriteString(fmt.Sprintf("🔔 With reminders: %d\n", reminders))
	b.mu.Lock()
	sb.WriteString(fmt.Sprintf("📚 Active sessions: %d\n", len(b.sessions)))
	b.mu.Unlock()
	sb.WriteString(fmt.Sprintf("\nWord lists: %d\n", len(lists)))
	for _, l := range lists {
		sb.WriteString(fmt.Sprintf("- %s: %d words\n", l.Name, l.WordCount))
	}

	return b.sendMessage(tgbotapi.NewMessage(chatID, sb.String()))
}

// handleDeleteCommand deletes a personal word with its card. Review history is kept.
func (b *Bot) handleDeleteCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Usage: /delete <word>"))
	}

	store := database.NewUserStore(message.From.ID)
	word, err := store.FindWordByText(ctx, text)
	if errors.Is(err, database.ErrNotFound) {
		return b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Word %q not found.", text)))
	}
	if err != nil {
		return err
	}

	// the running session still holds the card
	b.closeSession(ctx, message.From.ID)
	if err := store.DeleteWord(ctx, word.ID); err != nil {
		return fmt.Errorf("failed to delete word: %w", err)
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("🗑 Deleted %q.", word.Text)))
}

func (b *Bot) handleRemindCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	if b.reminders == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Reminders are not running."))
	}
	if _, err := b.ensureUser(ctx, message.From); err != nil {
		return err
	}

	count, err := b.reminders.RunManualCheck(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if count == 0 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "✅ No cards due right now."))
	}
	return nil
}
