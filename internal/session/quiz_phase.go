package session

import (
	"context"
	"fmt"
	"time"

	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/internal/quiz"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

// Quiz answers feed back into scheduling with these qualities
const (
	QuizCorrectQuality = spaced_repetition.RatingGood
	QuizWrongQuality   = spaced_repetition.RatingForget
)

type quizRun struct {
	questions []quiz.MCQQuestion
	index     int
	answered  bool
	correct   int
	wrong     []string
	startedAt time.Time
	result    *models.QuizResult
}

// AnswerResult describes a graded quiz answer
type AnswerResult struct {
	Correct       bool
	CorrectAnswer string
	// Review is nil when the word had no card state to update
	Review *spaced_repetition.Review
}

// StartQuiz builds multiple-choice questions from the words touched today.
// Buffered reviews are written first. With fewer than four usable words the
// quiz is empty and completes immediately without a result.
func (s *Session) StartQuiz(ctx context.Context) error {
	if !s.complete {
		return ErrPhaseIncomplete
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}

	touched, err := s.touchedToday(ctx)
	if err != nil {
		return err
	}
	words, err := s.touchedWords(ctx, touched)
	if err != nil {
		return err
	}

	count := s.cfg.QuizQuestionCount
	if count <= 0 {
		count = len(words)
	}

	s.phase = PhaseQuizzing
	s.quiz = quizRun{
		questions: s.quizGen.BuildMCQ(words, count),
		startedAt: s.now(),
		wrong:     []string{},
	}
	s.complete = len(s.quiz.questions) == 0
	metrics.RecordPhaseStart(string(PhaseQuizzing))
	return nil
}

// CurrentQuestion returns the question on display
func (s *Session) CurrentQuestion() (quiz.MCQQuestion, bool) {
	if s.phase != PhaseQuizzing || s.complete || s.quiz.index >= len(s.quiz.questions) {
		return quiz.MCQQuestion{}, false
	}
	return s.quiz.questions[s.quiz.index], true
}

// Answered reports whether the current question was answered
func (s *Session) Answered() bool {
	return s.quiz.answered
}

// QuizScore returns the correct answers so far and the number of questions
func (s *Session) QuizScore() (int, int) {
	return s.quiz.correct, len(s.quiz.questions)
}

// QuizResult returns the saved result of a finished quiz
func (s *Session) QuizResult() *models.QuizResult {
	return s.quiz.result
}

// Answer grades the chosen option and writes the rating through right away.
// On a write error the question stays unanswered so it can be retried.
func (s *Session) Answer(ctx context.Context, option string) (*AnswerResult, error) {
	if s.phase != PhaseQuizzing {
		return nil, ErrWrongPhase
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		return nil, ErrSessionComplete
	}
	if s.quiz.answered {
		return nil, ErrAlreadyAnswered
	}

	correct := q.IsCorrect(option)
	review, err := RecordQuizAnswer(ctx, s.store, s.model, q.WordID, correct, s.newID(), s.now())
	if err != nil {
		return nil, err
	}
	res := &AnswerResult{Correct: correct, CorrectAnswer: q.CorrectAnswer, Review: review}

	s.quiz.answered = true
	if correct {
		s.quiz.correct++
	} else {
		s.quiz.wrong = append(s.quiz.wrong, q.WordID)
	}
	metrics.RecordQuizAnswer(correct)
	s.notifyActivity()

	return res, nil
}

// nextQuestion advances the quiz. Leaving the last question saves the
// result; if that fails the quiz stays on the last question.
func (s *Session) nextQuestion(ctx context.Context) error {
	if s.complete {
		return ErrSessionComplete
	}
	if !s.quiz.answered {
		return ErrNotAnswered
	}

	if s.quiz.index+1 < len(s.quiz.questions) {
		s.quiz.index++
		s.quiz.answered = false
		return nil
	}

	result := models.QuizResult{
		ID:              s.newID(),
		Date:            s.now(),
		Mode:            models.QuizMultipleChoice,
		TotalQuestions:  len(s.quiz.questions),
		CorrectCount:    s.quiz.correct,
		WrongWordIDs:    s.quiz.wrong,
		DurationSeconds: QuizDuration(s.quiz.startedAt, s.now()),
	}
	if err := s.store.AppendQuizResult(ctx, result); err != nil {
		return fmt.Errorf("failed to save quiz result: %w", err)
	}

	s.quiz.result = &result
	s.complete = true
	return nil
}
