package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/internal/quiz"
	"github.com/example/wordsrs/internal/session"
	"github.com/example/wordsrs/internal/streak"
	"github.com/example/wordsrs/pkg/models"
)

// practiceRun is a quiz over every studied word, run outside the study
// session. Answers reschedule their words like session quiz answers.
type practiceRun struct {
	mode     models.QuizMode
	mcq      []quiz.MCQQuestion
	spelling []quiz.SpellingQuestion
	index    int
	correct  int
	wrong    []string
	started  time.Time
	lastUsed time.Time
	// the streak is touched on the first saved answer
	touched bool
}

func (r *practiceRun) total() int {
	if r.mode == models.QuizSpelling {
		return len(r.spelling)
	}
	return len(r.mcq)
}

func (r *practiceRun) wordID() string {
	if r.mode == models.QuizSpelling {
		return r.spelling[r.index].WordID
	}
	return r.mcq[r.index].WordID
}

func (b *Bot) startPractice(ctx context.Context, userID, chatID int64, messageID int, mode models.QuizMode) error {
	count := b.config.Session.QuizQuestionCount
	if count <= 0 {
		count = quiz.DefaultQuestionCount
	}
	gen := quiz.NewGenerator(database.NewUserStore(userID))

	run := &practiceRun{mode: mode, wrong: []string{}, started: b.now(), lastUsed: b.now()}
	empty := "📭 No studied words yet. Review some cards first."
	var err error
	if mode == models.QuizSpelling {
		run.spelling, err = gen.GenerateSpelling(ctx, count)
	} else {
		run.mcq, err = gen.GenerateMCQ(ctx, count)
		empty = fmt.Sprintf("📭 A quiz needs at least %d studied words. Review some cards first.", quiz.MinMCQWords)
	}
	if err != nil {
		return fmt.Errorf("failed to generate questions: %w", err)
	}
	if run.total() == 0 {
		return b.show(chatID, messageID, empty,
			[][]MenuButton{{{Text: "🎯 Start review", CallbackData: callbackStartLearning}}})
	}

	b.mu.Lock()
	b.practice[userID] = run
	b.mu.Unlock()
	if mode == models.QuizSpelling {
		b.setUserState(userID, stateAwaitingSpelling)
	} else {
		b.clearUserState(userID)
	}
	metrics.RecordPhaseStart("practice_" + string(mode))

	text, buttons := renderPracticeQuestion(run)
	return b.show(chatID, messageID, text, buttons)
}

func (b *Bot) currentPractice(userID int64) (*practiceRun, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	run, ok := b.practice[userID]
	return run, ok
}

// answerSpelling checks a typed answer
func (b *Bot) answerSpelling(ctx context.Context, userID, chatID int64, text string) error {
	run, ok := b.currentPractice(userID)
	if !ok || run.mode != models.QuizSpelling {
		b.clearUserState(userID)
		return b.showMainMenu(chatID, 0)
	}
	q := run.spelling[run.index]
	return b.answerPractice(ctx, userID, chatID, 0, run, q.IsCorrect(text), q.CorrectAnswer)
}

// answerChoice grades the option picked for question number question.
// Buttons of earlier questions are ignored.
func (b *Bot) answerChoice(ctx context.Context, userID, chatID int64, messageID int, data string) error {
	question, option, err := parsePracticeAnswer(data)
	if err != nil {
		return err
	}
	run, ok := b.currentPractice(userID)
	if !ok || run.mode != models.QuizMultipleChoice {
		return b.show(chatID, messageID, "⌛ This quiz has ended.",
			[][]MenuButton{{{Text: "❓ New quiz", CallbackData: callbackPractice}}})
	}
	if question != run.index {
		return nil
	}
	q := run.mcq[run.index]
	if option < 0 || option >= len(q.Options) {
		return fmt.Errorf("invalid option index %d", option)
	}
	return b.answerPractice(ctx, userID, chatID, messageID, run, q.IsCorrect(q.Options[option]), q.CorrectAnswer)
}

func (b *Bot) answerPractice(ctx context.Context, userID, chatID int64, messageID int, run *practiceRun, correct bool, answer string) error {
	store := database.NewUserStore(userID)
	run.lastUsed = b.now()
	if run.mode == models.QuizSpelling {
		b.setUserState(userID, stateAwaitingSpelling)
	}

	if _, err := session.RecordQuizAnswer(ctx, store, b.model, run.wordID(), correct, uuid.NewString(), b.now()); err != nil {
		log.Printf("Error saving practice answer for user %d: %v", userID, err)
		text, buttons := renderPracticeQuestion(run)
		return b.show(chatID, messageID, "⚠️ Your answer could not be saved, please answer again.\n\n"+text, buttons)
	}
	metrics.RecordQuizAnswer(correct)
	if !run.touched {
		run.touched = true
		if _, err := streak.NewTracker(store).WithClock(b.now).Touch(ctx); err != nil {
			log.Printf("Error updating streak for user %d: %v", userID, err)
		}
	}

	feedback := "✅ Correct!"
	if correct {
		run.correct++
	} else {
		run.wrong = append(run.wrong, run.wordID())
		feedback = "❌ Wrong. The answer is: <b>" + html.EscapeString(answer) + "</b>"
	}

	run.index++
	if run.index < run.total() {
		text, buttons := renderPracticeQuestion(run)
		return b.show(chatID, messageID, feedback+"\n\n"+text, buttons)
	}

	b.endPractice(userID)
	result := models.QuizResult{
		ID:              uuid.NewString(),
		Date:            b.now(),
		Mode:            run.mode,
		TotalQuestions:  run.total(),
		CorrectCount:    run.correct,
		WrongWordIDs:    run.wrong,
		DurationSeconds: session.QuizDuration(run.started, b.now()),
	}
	if err := store.AppendQuizResult(ctx, result); err != nil {
		log.Printf("Error saving practice result for user %d: %v", userID, err)
	}

	again := callbackPractice
	if run.mode == models.QuizSpelling {
		again = callbackSpell
	}
	return b.show(chatID, messageID, feedback+"\n\n"+renderQuizResult(&result), [][]MenuButton{
		{{Text: "🔁 Again", CallbackData: again}},
		{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
	})
}

func (b *Bot) endPractice(userID int64) {
	b.mu.Lock()
	delete(b.practice, userID)
	b.mu.Unlock()
	b.clearUserState(userID)
}

func renderPracticeQuestion(run *practiceRun) (string, [][]MenuButton) {
	pos, total := run.index+1, run.total()
	if run.mode == models.QuizMultipleChoice {
		q := run.mcq[run.index]
		buttons := make([][]MenuButton, 0, len(q.Options))
		for i, option := range q.Options {
			buttons = append(buttons, []MenuButton{{
				Text:         option,
				CallbackData: fmt.Sprintf("%s%d_%d", callbackPracticeAnswerPrefix, run.index, i),
			}})
		}
		return renderQuestion(q, pos, total), buttons
	}

	q := run.spelling[run.index]
	text := fmt.Sprintf("✍️ Spelling %d/%d\n\n%s", pos, total, html.EscapeString(q.Hint))
	if q.Phonetic != "" {
		text += "\n" + html.EscapeString(q.Phonetic)
	}
	return text + "\n\nType the word, or /cancel.", nil
}

// parsePracticeAnswer splits "practice_answer_<question>_<option>"
func parsePracticeAnswer(data string) (int, int, error) {
	q, o, ok := strings.Cut(strings.TrimPrefix(data, callbackPracticeAnswerPrefix), "_")
	if !ok {
		return 0, 0, fmt.Errorf("invalid practice answer %q", data)
	}
	question, err := strconv.Atoi(q)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid practice answer %q: %w", data, err)
	}
	option, err := strconv.Atoi(o)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid practice answer %q: %w", data, err)
	}
	return question, option, nil
}
