package spaced_repetition

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/example/wordsrs/pkg/models"
)

// Defaults of the review-strength model
const (
	DefaultInitialEF            = 2.5
	MinimumEF                   = 1.3
	DefaultMaxInterval          = 365
	MasteryThresholdDays        = 21
	RetireAfterEasy             = 5 // consecutive easy ratings that retire any card
	RetireAfterEasyWhenMastered = 3 // consecutive easy ratings that retire a mastered card
)

// SM2 implements a variant of the SuperMemo-2 algorithm for spaced repetition.
// One model is shared by every session and is safe for concurrent use.
type SM2 struct {
	// Ответы от этого значения и выше считаются успешными
	PassThreshold int
	// Максимальный интервал повторения в днях
	MaxInterval int
	// Начальный фактор легкости новой карточки
	InitialEF float64

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewSM2 создает новый экземпляр SM2 с настройками по умолчанию
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold: int(QualityCorrectDifficult),
		MaxInterval:   DefaultMaxInterval,
		InitialEF:     DefaultInitialEF,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the random source used for due date fuzz
func (sm *SM2) WithRand(rng *rand.Rand) *SM2 {
	sm.mu.Lock()
	sm.rng = rng
	sm.mu.Unlock()
	return sm
}

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// The four ratings offered to the learner during a review
const (
	RatingForget = int(QualityIncorrect)
	RatingHard   = int(QualityCorrectDifficult)
	RatingGood   = int(QualityCorrectHesitation)
	RatingEasy   = int(QualityPerfect)
)

// Ratings lists the learner-facing ratings in button order
var Ratings = []int{RatingForget, RatingHard, RatingGood, RatingEasy}

// SM2Result is the scheduling triple produced by a rating
type SM2Result struct {
	EaseFactor float64 `json:"easeFactor"`
	Interval   int     `json:"interval"`
	Repetition int     `json:"repetition"`
}

// ClampQuality rounds q to the nearest integer and clamps it to [0, 5]
func ClampQuality(q float64) int {
	if math.IsNaN(q) {
		return 0
	}
	r := int(math.Round(q))
	if r < 0 {
		return 0
	}
	if r > 5 {
		return 5
	}
	return r
}

// ComputeNextState вычисляет следующий фактор легкости, интервал и число повторений
func (sm *SM2) ComputeNextState(quality float64, repetition int, easeFactor float64, interval int) SM2Result {
	q := ClampQuality(quality)
	miss := float64(5 - q)

	newEF := easeFactor + (0.1 - miss*(0.08+miss*0.02))
	if newEF < MinimumEF {
		newEF = MinimumEF // Не опускаем ниже 1.3
	}

	if q < sm.PassThreshold {
		// Ответ был неправильным - карточка возвращается в краткосрочное обучение
		return SM2Result{EaseFactor: roundEF(newEF), Interval: 1, Repetition: 0}
	}

	newRepetition := repetition + 1
	var newInterval int

	switch newRepetition {
	case 1:
		newInterval = 1
	case 2:
		newInterval = secondStep(q)
	default:
		multiplier := newEF
		if q == int(QualityCorrectDifficult) {
			// "Hard" grows slower than the ease factor alone would
			multiplier = math.Max(1.2, newEF*0.8)
		}
		newInterval = int(math.Ceil(float64(interval) * multiplier))
		if sm.MaxInterval > 0 && newInterval > sm.MaxInterval {
			newInterval = sm.MaxInterval
		}
	}

	return SM2Result{EaseFactor: roundEF(newEF), Interval: newInterval, Repetition: newRepetition}
}

func secondStep(quality int) int {
	switch quality {
	case int(QualityCorrectDifficult):
		return 4
	case int(QualityPerfect):
		return 8
	default:
		return 6
	}
}

func roundEF(ef float64) float64 {
	return math.Round(ef*100) / 100
}

// DeriveStatus determines the lifecycle status after a rating.
// currentStatus is the status the card had before the rating.
func (sm *SM2) DeriveStatus(repetition, interval, consecutiveEasyCount int, currentStatus models.CardStatus) models.CardStatus {
	if consecutiveEasyCount >= RetireAfterEasy {
		return models.StatusRetired
	}
	if currentStatus == models.StatusMastered && consecutiveEasyCount >= RetireAfterEasyWhenMastered {
		return models.StatusRetired
	}

	if repetition == 0 {
		return models.StatusLearning
	}
	if interval >= MasteryThresholdDays {
		return models.StatusMastered
	}
	return models.StatusReview
}

// ComputeDueDate returns the fuzzed calendar date interval days after from
func (sm *SM2) ComputeDueDate(interval int, from time.Time) string {
	sm.mu.Lock()
	days := applyFuzz(interval, sm.rng)
	sm.mu.Unlock()
	return models.DateOf(from.AddDate(0, 0, days))
}

// CreateInitialState returns the state of a word that was never studied
func (sm *SM2) CreateInitialState(wordID string, today time.Time) models.CardState {
	ef := sm.InitialEF
	if ef == 0 {
		ef = DefaultInitialEF
	}
	return models.CardState{
		WordID:     wordID,
		EaseFactor: ef,
		Interval:   0,
		Repetition: 0,
		DueDate:    models.DateOf(today),
		Status:     models.StatusNew,
	}
}

// Review is the outcome of applying one rating to a card
type Review struct {
	Previous models.CardState
	Updated  models.CardState
	Quality  int
}

// Log builds the review log entry for the rating
func (r Review) Log(id string, mode models.ReviewMode, at time.Time) models.ReviewLog {
	return models.ReviewLog{
		ID:               id,
		WordID:           r.Updated.WordID,
		Quality:          r.Quality,
		ReviewedAt:       at,
		PreviousInterval: r.Previous.Interval,
		NewInterval:      r.Updated.Interval,
		PreviousEF:       r.Previous.EaseFactor,
		NewEF:            r.Updated.EaseFactor,
		Mode:             mode,
	}
}

// Apply rates a card and returns its updated copy with status and fuzzed due date
func (sm *SM2) Apply(card models.CardState, quality float64, now time.Time) Review {
	q := ClampQuality(quality)
	result := sm.ComputeNextState(float64(q), card.Repetition, card.EaseFactor, card.Interval)

	easy := 0
	if q == int(QualityPerfect) {
		easy = card.ConsecutiveEasyCount + 1
	}

	updated := card
	updated.EaseFactor = result.EaseFactor
	updated.Interval = result.Interval
	updated.Repetition = result.Repetition
	updated.ConsecutiveEasyCount = easy
	updated.DueDate = sm.ComputeDueDate(result.Interval, now)
	updated.LastReviewDate = models.DateOf(now)
	updated.Status = sm.DeriveStatus(result.Repetition, result.Interval, easy, card.Status)

	return Review{Previous: card, Updated: updated, Quality: q}
}

// ProjectedInterval returns the unfuzzed interval a rating would produce
func (sm *SM2) ProjectedInterval(card models.CardState, quality int) int {
	return sm.ComputeNextState(float64(quality), card.Repetition, card.EaseFactor, card.Interval).Interval
}
