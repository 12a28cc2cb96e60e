package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/internal/quiz"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

// Phase is the current stage of a study session
type Phase string

const (
	PhaseLearning    Phase = "learning"
	PhaseReinforcing Phase = "reinforcing"
	PhaseQuizzing    Phase = "quizzing"
)

// EmptyReason explains why a learning phase had nothing to show
type EmptyReason string

const (
	EmptyNone        EmptyReason = ""
	EmptyNoWords     EmptyReason = "no_words"
	EmptyAllMastered EmptyReason = "all_mastered"
)

var (
	ErrWrongPhase      = errors.New("operation not allowed in the current phase")
	ErrPhaseIncomplete = errors.New("current phase is not complete")
	ErrSessionComplete = errors.New("phase already complete")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrNotAnswered     = errors.New("question not answered yet")
	ErrFlushFailed     = errors.New("failed to save reviews")
)

// Store is everything a session reads and writes
type Store interface {
	spaced_repetition.CardSource
	GetWordsByIDs(ctx context.Context, ids []string) (map[string]models.Word, error)
	ReviewSink
	AppendQuizResult(ctx context.Context, result models.QuizResult) error
	ListReviewLogsSince(ctx context.Context, date string) ([]models.ReviewLog, error)
}

// ActivityNotifier is told when the learner did something today
type ActivityNotifier interface {
	Touch(ctx context.Context) (models.StreakData, error)
}

// Config tunes flush retries and quiz length
type Config struct {
	FlushAttempts int
	FlushBackoff  time.Duration
	// QuizQuestionCount caps the quiz; zero asks every touched word
	QuizQuestionCount int
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{FlushAttempts: 3, FlushBackoff: 200 * time.Millisecond}
}

// Deps are the collaborators of a session
type Deps struct {
	Store   Store
	Model   *spaced_repetition.SM2
	Streak  ActivityNotifier
	Days    DayStateStore
	UserKey string

	Now   func() time.Time
	NewID func() string
	Rand  *rand.Rand
}

// Card is a card state together with the word it belongs to
type Card struct {
	State models.CardState
	Word  models.Word
}

// Stats counts the ratings given during the learning phase
type Stats struct {
	Reviewed  int
	Correct   int
	Incorrect int
}

// Accuracy returns the share of correct ratings in percent
func (s Stats) Accuracy() int {
	if s.Reviewed == 0 {
		return 0
	}
	return s.Correct * 100 / s.Reviewed
}

// RateResult describes what a rating did
type RateResult struct {
	Review    *spaced_repetition.Review
	Requeued  bool
	Completed bool
}

// Session drives one study session through learning, reinforcement and quiz.
// A session belongs to one user and is not safe for concurrent use.
type Session struct {
	store   Store
	model   *spaced_repetition.SM2
	quizGen *quiz.Generator
	streak  ActivityNotifier
	days    DayStateStore
	userKey string
	cfg     Config
	now     func() time.Time
	newID   func() string
	rng     *rand.Rand

	day          *DayState
	notifiedDate string

	phase       Phase
	complete    bool
	emptyReason EmptyReason
	queue       []Card
	index       int
	buffer      *WriteBuffer
	stats       Stats

	quiz quizRun

	wg sync.WaitGroup
}

// New creates a session. The day state is loaded from deps.Days when set.
func New(ctx context.Context, deps Deps, cfg Config) (*Session, error) {
	if deps.Model == nil {
		deps.Model = spaced_repetition.NewSM2()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.FlushAttempts <= 0 {
		cfg.FlushAttempts = 1
	}

	s := &Session{
		store:   deps.Store,
		model:   deps.Model,
		quizGen: quiz.NewGenerator(deps.Store).WithRand(deps.Rand),
		streak:  deps.Streak,
		days:    deps.Days,
		userKey: deps.UserKey,
		cfg:     cfg,
		now:     deps.Now,
		newID:   deps.NewID,
		rng:     deps.Rand,
		phase:   PhaseLearning,
		buffer:  NewWriteBuffer(),
	}

	today := models.DateOf(s.now())
	if s.days == nil {
		s.day = NewDayState(today)
		return s, nil
	}
	day, err := s.days.Load(ctx, s.userKey, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load day state: %w", err)
	}
	s.day = day
	return s, nil
}

// Phase returns the current phase
func (s *Session) Phase() Phase { return s.phase }

// Complete reports whether the current phase is finished
func (s *Session) Complete() bool { return s.complete }

// EmptyReason tells why the learning phase had no cards
func (s *Session) EmptyReason() EmptyReason { return s.emptyReason }

// Stats returns the learning phase counters
func (s *Session) Stats() Stats { return s.stats }

// Day returns today's state
func (s *Session) Day() *DayState { return s.day }

// Progress returns the 1-based position in the current card queue and its length
func (s *Session) Progress() (int, int) {
	if s.phase == PhaseQuizzing {
		return s.quiz.index + 1, len(s.quiz.questions)
	}
	return s.index + 1, len(s.queue)
}

// StartLearning selects today's due cards and enters the learning phase.
// New cards are offered only once per calendar day.
func (s *Session) StartLearning(ctx context.Context, settings models.UserSettings) error {
	s.rollDay(ctx)

	newLimit := settings.DailyNewCardLimit
	if s.day.NewCardsShown {
		newLimit = 0
	}

	selector := spaced_repetition.NewSelector(s.store, s.model).WithClock(s.now)
	scheduled, err := selector.SelectDueCards(ctx, newLimit, settings.DailyReviewLimit, settings.EnabledListIDs)
	if err != nil {
		return err
	}

	states := scheduled.All()
	ids := make([]string, 0, len(states))
	for _, st := range states {
		ids = append(ids, st.WordID)
	}

	words := map[string]models.Word{}
	if len(ids) > 0 {
		words, err = s.store.GetWordsByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to get words: %w", err)
		}
	}

	queue := make([]Card, 0, len(states))
	newShown := false
	for _, st := range states {
		w, ok := words[st.WordID]
		if !ok {
			log.Printf("Skipping card %s: word not found", st.WordID)
			continue
		}
		if st.Status == models.StatusNew {
			newShown = true
		}
		queue = append(queue, Card{State: st, Word: w})
	}

	s.phase = PhaseLearning
	s.queue = queue
	s.index = 0
	s.stats = Stats{}
	s.complete = len(queue) == 0
	s.emptyReason = EmptyNone
	metrics.RecordPhaseStart(string(PhaseLearning))

	if newShown {
		s.day.NewCardsShown = true
		s.saveDay(ctx)
	}

	if s.complete {
		s.emptyReason = s.detectEmptyReason(ctx)
	}
	return nil
}

// RestartLearning forgets today's state and starts the learning phase again
func (s *Session) RestartLearning(ctx context.Context, settings models.UserSettings) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.day.Restart()
	if s.days != nil {
		if err := s.days.Clear(ctx, s.userKey, s.day.Date); err != nil {
			log.Printf("Error clearing day state for %s: %v", s.userKey, err)
		}
	}
	return s.StartLearning(ctx, settings)
}

func (s *Session) detectEmptyReason(ctx context.Context) EmptyReason {
	states, err := s.store.FindCardStates(ctx, &models.FindCardState{})
	if err != nil {
		log.Printf("Error checking card states for %s: %v", s.userKey, err)
		return EmptyNone
	}
	if len(states) == 0 {
		return EmptyNoWords
	}
	for _, st := range states {
		if st.Status != models.StatusMastered && st.Status != models.StatusRetired {
			return EmptyNone
		}
	}
	return EmptyAllMastered
}

// Current returns the card on display in the learning or reinforcement phase
func (s *Session) Current() (Card, bool) {
	if s.phase == PhaseQuizzing || s.complete || s.index >= len(s.queue) {
		return Card{}, false
	}
	return s.queue[s.index], true
}

// ProjectedIntervals returns the unfuzzed interval each rating would give the current card
func (s *Session) ProjectedIntervals() map[int]int {
	c, ok := s.Current()
	if !ok || s.phase != PhaseLearning {
		return nil
	}
	out := make(map[int]int, len(spaced_repetition.Ratings))
	for _, r := range spaced_repetition.Ratings {
		out[r] = s.model.ProjectedInterval(c.State, r)
	}
	return out
}

// Rate rates the current card in the learning phase. In the reinforcement
// phase it only advances, since drilling never changes scheduling.
// A failed card goes to the end of the queue with its updated state.
func (s *Session) Rate(ctx context.Context, quality int) (*RateResult, error) {
	switch s.phase {
	case PhaseReinforcing:
		if s.complete {
			return nil, ErrSessionComplete
		}
		s.advance()
		return &RateResult{Completed: s.complete}, nil
	case PhaseQuizzing:
		return nil, ErrWrongPhase
	}

	card, ok := s.Current()
	if !ok {
		return nil, ErrSessionComplete
	}

	now := s.now()
	review := s.model.Apply(card.State, float64(quality), now)
	s.buffer.Add(review.Updated, review.Log(s.newID(), models.ModeReview, now))
	metrics.RecordRating(string(models.ModeReview), review.Quality)

	s.day.Touch(card.Word.ID, review.Quality)
	s.saveDay(ctx)

	res := &RateResult{Review: &review}
	s.stats.Reviewed++
	if review.Quality < s.model.PassThreshold {
		s.stats.Incorrect++
		s.queue = append(s.queue, Card{State: review.Updated, Word: card.Word})
		res.Requeued = true
	} else {
		s.stats.Correct++
	}

	if s.index+1 >= len(s.queue) {
		s.complete = true
		res.Completed = true
		err := s.Flush(ctx)
		s.notifyActivity()
		return res, err
	}
	s.index++
	return res, nil
}

func (s *Session) advance() {
	s.index++
	if s.index >= len(s.queue) {
		s.complete = true
	}
}

// Next moves past the current reinforcement card or answered quiz question
func (s *Session) Next(ctx context.Context) error {
	switch s.phase {
	case PhaseReinforcing:
		if s.complete {
			return ErrSessionComplete
		}
		s.advance()
		return nil
	case PhaseQuizzing:
		return s.nextQuestion(ctx)
	default:
		return ErrWrongPhase
	}
}

// Flush writes buffered reviews, retrying with a growing backoff.
// The buffer keeps everything that could not be written.
func (s *Session) Flush(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= s.cfg.FlushAttempts; attempt++ {
		if err = s.buffer.Flush(ctx, s.store); err == nil {
			return nil
		}
		log.Printf("Error saving reviews for %s (attempt %d/%d): %v", s.userKey, attempt, s.cfg.FlushAttempts, err)
		if attempt == s.cfg.FlushAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrFlushFailed, ctx.Err())
		case <-time.After(s.cfg.FlushBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", ErrFlushFailed, err)
}

// Pending reports whether reviews wait to be written
func (s *Session) Pending() bool {
	return !s.buffer.Empty()
}

// Close makes a last attempt to write buffered reviews and waits for
// background activity updates. A failed write is logged, not returned.
func (s *Session) Close(ctx context.Context) {
	if err := s.buffer.Flush(ctx, s.store); err != nil {
		log.Printf("Error saving reviews on close for %s: %v", s.userKey, err)
	}
	s.wg.Wait()
}

// rollDay starts a fresh day state once the calendar day changed
func (s *Session) rollDay(ctx context.Context) {
	today := models.DateOf(s.now())
	if s.day != nil && s.day.Date == today {
		return
	}
	s.day = NewDayState(today)
	if s.days == nil {
		return
	}
	day, err := s.days.Load(ctx, s.userKey, today)
	if err != nil {
		log.Printf("Error loading day state for %s: %v", s.userKey, err)
		return
	}
	s.day = day
}

func (s *Session) saveDay(ctx context.Context) {
	if s.days == nil {
		return
	}
	if err := s.days.Save(ctx, s.userKey, s.day); err != nil {
		log.Printf("Error saving day state for %s: %v", s.userKey, err)
	}
}

// notifyActivity updates the streak in the background, once per day
func (s *Session) notifyActivity() {
	if s.streak == nil {
		return
	}
	today := models.DateOf(s.now())
	if s.notifiedDate == today {
		return
	}
	s.notifiedDate = today

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.streak.Touch(ctx); err != nil {
			log.Printf("Error updating streak for %s: %v", s.userKey, err)
		}
	}()
}
