package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/quiz"
	"github.com/example/wordsrs/internal/session"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

var ratingLabels = map[int]string{
	spaced_repetition.RatingForget: "😵 Forget",
	spaced_repetition.RatingHard:   "😓 Hard",
	spaced_repetition.RatingGood:   "🙂 Good",
	spaced_repetition.RatingEasy:   "😎 Easy",
}

var statusLabels = []struct {
	status models.CardStatus
	label  string
}{
	{models.StatusNew, "🆕 New"},
	{models.StatusLearning, "📖 Learning"},
	{models.StatusReview, "🔁 Review"},
	{models.StatusMastered, "🏆 Mastered"},
	{models.StatusRetired, "💤 Retired"},
}

// renderCardFront shows the word only
func renderCardFront(card session.Card, pos, total int, phase session.Phase) string {
	var sb strings.Builder
	if phase == session.PhaseReinforcing {
		sb.WriteString(fmt.Sprintf("💪 Reinforcement %d/%d\n\n", pos, total))
	} else {
		sb.WriteString(fmt.Sprintf("📚 Card %d/%d", pos, total))
		if card.State.Status == models.StatusNew {
			sb.WriteString(" · new")
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString("<b>" + html.EscapeString(card.Word.Text) + "</b>")
	if card.Word.Phonetic != "" {
		sb.WriteString("  " + html.EscapeString(card.Word.Phonetic))
	}
	return sb.String()
}

// renderCardBack adds the definitions and the example to the front
func renderCardBack(card session.Card, pos, total int, phase session.Phase) string {
	var sb strings.Builder
	sb.WriteString(renderCardFront(card, pos, total, phase))
	sb.WriteString("\n\n")
	for i, d := range card.Word.Definitions {
		sb.WriteString(fmt.Sprintf("%d. ", i+1))
		if d.PartOfSpeech != "" {
			sb.WriteString("<i>" + html.EscapeString(d.PartOfSpeech) + "</i> ")
		}
		sb.WriteString(html.EscapeString(d.Meaning) + "\n")
	}
	if card.Word.Example != "" {
		sb.WriteString("\n💬 " + html.EscapeString(card.Word.Example))
		if card.Word.ExampleTranslation != "" {
			sb.WriteString("\n    " + html.EscapeString(card.Word.ExampleTranslation))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// frontButtons lets the user flip the card or listen to it
func frontButtons(card session.Card) [][]MenuButton {
	row := []MenuButton{{Text: "👀 Show answer", CallbackData: callbackShowAnswer}}
	if card.Word.Audio != "" {
		row = append(row, MenuButton{Text: "🔊", CallbackData: callbackAudio})
	}
	return [][]MenuButton{row, {{Text: "⏹ End session", CallbackData: callbackEndSession}}}
}

// ratingButtons labels every rating with the interval it would schedule
func ratingButtons(projected map[int]int) [][]MenuButton {
	var row []MenuButton
	for _, r := range spaced_repetition.Ratings {
		text := ratingLabels[r]
		if days, ok := projected[r]; ok {
			text += " · " + spaced_repetition.FormatInterval(days)
		}
		row = append(row, MenuButton{Text: text, CallbackData: fmt.Sprintf("%s%d", callbackRatePrefix, r)})
	}
	return [][]MenuButton{row[:2], row[2:]}
}

// reinforcementButtons only advances, drilling does not rate
func reinforcementButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "➡️ Next", CallbackData: callbackNext}},
		{{Text: "⏹ End session", CallbackData: callbackEndSession}},
	}
}

// renderLearningSummary is shown when the learning queue is done
func renderLearningSummary(stats session.Stats) string {
	if stats.Reviewed == 0 {
		return "✅ Nothing left to review right now."
	}
	return fmt.Sprintf("🎉 Session complete!\n\n"+
		"Reviewed: %d\n"+
		"Remembered: %d\n"+
		"Forgotten: %d\n"+
		"Accuracy: %d%%",
		stats.Reviewed, stats.Correct, stats.Incorrect, stats.Accuracy())
}

// emptyQueueText explains an empty learning queue
func emptyQueueText(reason session.EmptyReason) string {
	switch reason {
	case session.EmptyNoWords:
		return "📭 You have no words yet.\n\nAdd some with /add, import a file with /import or enable a word list in /settings."
	case session.EmptyAllMastered:
		return "🏆 Every word is mastered. Add new words or enable another list to keep going."
	default:
		return "✅ All done for today! Come back tomorrow, or reinforce today's words."
	}
}

// afterPhaseButtons offers the optional phases
func afterPhaseButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "💪 Reinforce", CallbackData: callbackReinforce},
			{Text: "❓ Quiz", CallbackData: callbackQuiz},
		},
		{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
	}
}

// renderQuestion shows a multiple-choice question
func renderQuestion(q quiz.MCQQuestion, pos, total int) string {
	text := fmt.Sprintf("❓ Question %d/%d\n\nWhat does <b>%s</b> mean?", pos, total, html.EscapeString(q.QuestionText))
	if q.Phonetic != "" {
		text += "\n" + html.EscapeString(q.Phonetic)
	}
	return text
}

// questionButtons has one button per option, referenced by index
func questionButtons(q quiz.MCQQuestion) [][]MenuButton {
	buttons := make([][]MenuButton, 0, len(q.Options))
	for i, option := range q.Options {
		buttons = append(buttons, []MenuButton{{Text: option, CallbackData: fmt.Sprintf("%s%d", callbackAnswerPrefix, i)}})
	}
	return buttons
}

// renderAnswer shows the question with the graded answer
func renderAnswer(q quiz.MCQQuestion, pos, total int, res *session.AnswerResult) string {
	text := renderQuestion(q, pos, total) + "\n\n"
	if res.Correct {
		return text + "✅ Correct!"
	}
	return text + "❌ Wrong. The answer is: <b>" + html.EscapeString(res.CorrectAnswer) + "</b>"
}

// renderQuizResult summarizes a finished quiz
func renderQuizResult(result *models.QuizResult) string {
	if result == nil {
		return "🏁 Quiz finished."
	}
	return fmt.Sprintf("🏁 Quiz finished!\n\nScore: %d/%d\nTime: %ds",
		result.CorrectCount, result.TotalQuestions, result.DurationSeconds)
}

// renderStatistics formats the statistics page
func renderStatistics(stats *database.Statistics, streak models.StreakData) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>Your statistics</b>\n\n")
	sb.WriteString(fmt.Sprintf("🔥 Streak: %s (best %d)\n", pluralize(streak.CurrentStreak, "day", "days"), streak.LongestStreak))
	sb.WriteString(fmt.Sprintf("📅 Due today: %d\n", stats.DueToday))
	sb.WriteString(fmt.Sprintf("🗂 Total cards: %d\n\n", stats.TotalCards))

	for _, s := range statusLabels {
		sb.WriteString(fmt.Sprintf("%s: %d\n", s.label, stats.StatusCounts[s.status]))
	}

	sb.WriteString("\n<b>Reviews</b>\n")
	for _, d := range stats.ReviewsPerDay {
		sb.WriteString(fmt.Sprintf("%s  %s %d\n", d.Date[5:], bar(d.Count), d.Count))
	}
	sb.WriteString("\n<b>Upcoming</b>\n")
	for _, d := range stats.DueForecast {
		sb.WriteString(fmt.Sprintf("%s  %s %d\n", d.Date[5:], bar(d.Count), d.Count))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// bar draws a small histogram bar, one block per five cards
func bar(n int) string {
	blocks := (n + 4) / 5
	if blocks > 10 {
		blocks = 10
	}
	return strings.Repeat("▇", blocks)
}

// renderSettings shows the current settings
func renderSettings(user *models.User, settings models.UserSettings, lists []models.WordList) string {
	notifications := "off"
	if user.NotificationEnabled {
		notifications = fmt.Sprintf("on, at %d:00", user.NotificationHour)
	}

	enabled := make(map[string]bool, len(settings.EnabledListIDs))
	for _, id := range settings.EnabledListIDs {
		enabled[id] = true
	}
	var names []string
	for _, l := range lists {
		if enabled[l.ID] {
			names = append(names, l.Name)
		}
	}
	listText := "none"
	if len(names) > 0 {
		listText = strings.Join(names, ", ")
	}

	return fmt.Sprintf("⚙️ <b>Settings</b>\n\n"+
		"New cards per day: %d\n"+
		"Reviews per day: %d\n"+
		"Reminders: %s\n"+
		"Word lists: %s",
		settings.DailyNewCardLimit, settings.DailyReviewLimit, notifications, html.EscapeString(listText))
}
