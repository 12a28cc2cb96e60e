package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/wordsrs/internal/session"
)

// startLearning opens a new session with today's due and new cards
func (b *Bot) startLearning(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int) error {
	s, err := b.beginLearning(ctx, from)
	if err != nil {
		return err
	}
	return b.showCard(chatID, messageID, s)
}

func (b *Bot) beginLearning(ctx context.Context, from *tgbotapi.User) (*studySession, error) {
	if _, err := b.ensureUser(ctx, from); err != nil {
		return nil, err
	}
	s, err := b.openSession(ctx, from.ID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.session.StartLearning(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to start learning: %w", err)
	}
	return s, nil
}

// restartLearning forgets what was shown today and offers new cards again
func (b *Bot) restartLearning(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int) error {
	if _, err := b.ensureUser(ctx, from); err != nil {
		return err
	}
	s, err := b.openSession(ctx, from.ID)
	if err != nil {
		return err
	}
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	if err := s.session.RestartLearning(ctx, settings); err != nil {
		return fmt.Errorf("failed to restart learning: %w", err)
	}
	return b.showCard(chatID, messageID, s)
}

// showCard shows the front of the current card, or the end of the phase
func (b *Bot) showCard(chatID int64, messageID int, s *studySession) error {
	card, ok := s.session.Current()
	if !ok {
		return b.showPhaseEnd(chatID, messageID, s)
	}
	pos, total := s.session.Progress()
	s.revealed = false
	return b.show(chatID, messageID, renderCardFront(card, pos, total, s.session.Phase()), frontButtons(card))
}

// resume shows whatever the session is on
func (b *Bot) resume(chatID int64, messageID int, s *studySession) error {
	if s.session.Phase() == session.PhaseQuizzing {
		return b.showQuestion(chatID, messageID, s)
	}
	return b.showCard(chatID, messageID, s)
}

// revealCard flips the current card
func (b *Bot) revealCard(chatID int64, messageID int, s *studySession) error {
	card, ok := s.session.Current()
	if !ok {
		return b.showPhaseEnd(chatID, messageID, s)
	}
	pos, total := s.session.Progress()
	phase := s.session.Phase()

	buttons := reinforcementButtons()
	if phase == session.PhaseLearning {
		buttons = ratingButtons(s.session.ProjectedIntervals())
	}
	s.revealed = true
	return b.show(chatID, messageID, renderCardBack(card, pos, total, phase), buttons)
}

// rateCard applies a rating in the learning phase
func (b *Bot) rateCard(ctx context.Context, chatID int64, messageID int, s *studySession, quality int) error {
	if s.session.Phase() != session.PhaseLearning || !s.revealed {
		// stale button from an earlier message
		return b.resume(chatID, messageID, s)
	}

	_, err := s.session.Rate(ctx, quality)
	switch {
	case errors.Is(err, session.ErrFlushFailed):
		log.Printf("Error saving reviews for chat %d: %v", chatID, err)
		return b.showSaveFailed(chatID, messageID)
	case errors.Is(err, session.ErrSessionComplete):
		return b.showPhaseEnd(chatID, messageID, s)
	case err != nil:
		return err
	}
	return b.showCard(chatID, messageID, s)
}

func (b *Bot) showSaveFailed(chatID int64, messageID int) error {
	return b.show(chatID, messageID,
		"⚠️ Your answers could not be saved yet. They are kept, please try again.",
		[][]MenuButton{{{Text: "🔁 Try again", CallbackData: callbackRetrySave}}})
}

// retrySave flushes the buffered reviews again
func (b *Bot) retrySave(ctx context.Context, chatID int64, messageID int, s *studySession) error {
	if err := s.session.Flush(ctx); err != nil {
		log.Printf("Error saving reviews for chat %d: %v", chatID, err)
		return b.showSaveFailed(chatID, messageID)
	}
	return b.showCard(chatID, messageID, s)
}

// nextCard moves on in the reinforcement phase
func (b *Bot) nextCard(ctx context.Context, chatID int64, messageID int, s *studySession) error {
	if err := s.session.Next(ctx); err != nil && !errors.Is(err, session.ErrSessionComplete) {
		if errors.Is(err, session.ErrWrongPhase) {
			return b.resume(chatID, messageID, s)
		}
		return err
	}
	return b.showCard(chatID, messageID, s)
}

// completedSession returns a session whose current phase is done, starting
// one when needed. It returns nil when the user still has cards to learn;
// the current card is shown instead.
func (b *Bot) completedSession(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int) (*studySession, error) {
	if s, ok := b.currentSession(from.ID); ok {
		if s.session.Complete() {
			return s, nil
		}
		return nil, b.show(chatID, messageID, "📚 Finish the current cards first.",
			[][]MenuButton{{{Text: "▶️ Continue", CallbackData: callbackContinue}}})
	}

	s, err := b.beginLearning(ctx, from)
	if err != nil {
		return nil, err
	}
	if !s.session.Complete() {
		return nil, b.showCard(chatID, messageID, s)
	}
	return s, nil
}

// startReinforcement drills every word touched today, hardest first
func (b *Bot) startReinforcement(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int) error {
	s, err := b.completedSession(ctx, from, chatID, messageID)
	if err != nil || s == nil {
		return err
	}
	if err := s.session.StartReinforcement(ctx); err != nil {
		if errors.Is(err, session.ErrFlushFailed) {
			log.Printf("Error saving reviews for chat %d: %v", chatID, err)
			return b.showSaveFailed(chatID, messageID)
		}
		return fmt.Errorf("failed to start reinforcement: %w", err)
	}
	return b.showCard(chatID, messageID, s)
}

// startQuiz asks multiple-choice questions about today's words
func (b *Bot) startQuiz(ctx context.Context, from *tgbotapi.User, chatID int64, messageID int) error {
	s, err := b.completedSession(ctx, from, chatID, messageID)
	if err != nil || s == nil {
		return err
	}
	if err := s.session.StartQuiz(ctx); err != nil {
		if errors.Is(err, session.ErrFlushFailed) {
			log.Printf("Error saving reviews for chat %d: %v", chatID, err)
			return b.showSaveFailed(chatID, messageID)
		}
		return fmt.Errorf("failed to start quiz: %w", err)
	}
	return b.showQuestion(chatID, messageID, s)
}

func (b *Bot) showQuestion(chatID int64, messageID int, s *studySession) error {
	q, ok := s.session.CurrentQuestion()
	if !ok {
		return b.showPhaseEnd(chatID, messageID, s)
	}
	pos, total := s.session.Progress()
	return b.show(chatID, messageID, renderQuestion(q, pos, total), questionButtons(q))
}

// answerQuestion grades the option with the given index
func (b *Bot) answerQuestion(ctx context.Context, chatID int64, messageID int, s *studySession, index int) error {
	q, ok := s.session.CurrentQuestion()
	if !ok {
		return b.showPhaseEnd(chatID, messageID, s)
	}
	if s.session.Answered() {
		return nil
	}
	if index < 0 || index >= len(q.Options) {
		return fmt.Errorf("invalid option index %d", index)
	}

	res, err := s.session.Answer(ctx, q.Options[index])
	if err != nil {
		log.Printf("Error saving quiz answer for chat %d: %v", chatID, err)
		pos, total := s.session.Progress()
		return b.show(chatID, messageID,
			renderQuestion(q, pos, total)+"\n\n⚠️ Your answer could not be saved, please answer again.",
			questionButtons(q))
	}

	pos, total := s.session.Progress()
	label := "➡️ Next"
	if pos == total {
		label = "🏁 Finish"
	}
	return b.show(chatID, messageID, renderAnswer(q, pos, total, res),
		[][]MenuButton{{{Text: label, CallbackData: callbackQuizNext}}})
}

// nextQuestion moves on in the quiz and saves the result after the last one
func (b *Bot) nextQuestion(ctx context.Context, chatID int64, messageID int, s *studySession) error {
	err := s.session.Next(ctx)
	switch {
	case errors.Is(err, session.ErrNotAnswered), errors.Is(err, session.ErrWrongPhase):
		return b.showQuestion(chatID, messageID, s)
	case errors.Is(err, session.ErrSessionComplete):
		return b.showPhaseEnd(chatID, messageID, s)
	case err != nil:
		log.Printf("Error saving quiz result for chat %d: %v", chatID, err)
		return b.show(chatID, messageID, "⚠️ The quiz result could not be saved.",
			[][]MenuButton{{{Text: "🔁 Try again", CallbackData: callbackQuizNext}}})
	}
	return b.showQuestion(chatID, messageID, s)
}

// showPhaseEnd summarizes the finished phase and offers what comes next
func (b *Bot) showPhaseEnd(chatID int64, messageID int, s *studySession) error {
	sess := s.session
	switch sess.Phase() {
	case session.PhaseReinforcing:
		text := "💪 Reinforcement complete!"
		if _, total := sess.Progress(); total == 0 {
			text = "📭 You haven't studied anything today yet."
		}
		return b.show(chatID, messageID, text, [][]MenuButton{
			{{Text: "❓ Quiz", CallbackData: callbackQuiz}},
			{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
		})

	case session.PhaseQuizzing:
		text := renderQuizResult(sess.QuizResult())
		if _, total := sess.QuizScore(); total == 0 {
			text = "📭 Not enough words for a quiz yet. Study at least 4 words with a meaning today."
		}
		return b.show(chatID, messageID, text, [][]MenuButton{
			{{Text: "💪 Reinforce", CallbackData: callbackReinforce}},
			{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
		})
	}

	if sess.Stats().Reviewed > 0 {
		return b.show(chatID, messageID, renderLearningSummary(sess.Stats()), afterPhaseButtons())
	}
	if sess.EmptyReason() == session.EmptyNoWords {
		return b.show(chatID, messageID, emptyQueueText(sess.EmptyReason()), [][]MenuButton{
			{{Text: "📝 Add words", CallbackData: callbackAddWords}},
			{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
		})
	}
	return b.show(chatID, messageID, emptyQueueText(sess.EmptyReason()), [][]MenuButton{
		afterPhaseButtons()[0],
		{{Text: "🔄 Learn new cards again", CallbackData: callbackRestartLearning}},
		{{Text: "« Back to Menu", CallbackData: callbackMainMenu}},
	})
}

// sendAudio sends the pronunciation of the current card
func (b *Bot) sendAudio(chatID int64, s *studySession) error {
	card, ok := s.session.Current()
	if !ok || card.Word.Audio == "" {
		return nil
	}
	return b.sendMessage(tgbotapi.NewAudio(chatID, tgbotapi.FileURL(card.Word.Audio)))
}
