package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

// UserStore is the storage of a single user. Every read and write is scoped
// to that user; builtin words are shared.
type UserStore struct {
	userID int64

	words    *WordRepository
	cards    *CardStateRepository
	logs     *ReviewLogRepository
	quizzes  *QuizResultRepository
	settings *SettingsRepository
	streaks  *StreakRepository
}

// NewUserStore creates a store for userID. Connect must have been called.
func NewUserStore(userID int64) *UserStore {
	return &UserStore{
		userID:   userID,
		words:    NewWordRepository(),
		cards:    NewCardStateRepository(),
		logs:     NewReviewLogRepository(),
		quizzes:  NewQuizResultRepository(),
		settings: NewSettingsRepository(),
		streaks:  NewStreakRepository(),
	}
}

// UserID returns the user the store is scoped to
func (s *UserStore) UserID() int64 {
	return s.userID
}

func (s *UserStore) EligibleWordIDs(ctx context.Context, enabledListIDs []string) ([]string, error) {
	return s.words.EligibleIDs(ctx, s.userID, enabledListIDs)
}

func (s *UserStore) FindCardStates(ctx context.Context, find *models.FindCardState) ([]models.CardState, error) {
	return s.cards.Find(ctx, s.userID, find)
}

func (s *UserStore) GetWordsByIDs(ctx context.Context, ids []string) (map[string]models.Word, error) {
	return s.words.GetByIDs(ctx, s.userID, ids)
}

// SaveReviews writes card states and their review logs in one transaction
func (s *UserStore) SaveReviews(ctx context.Context, states []models.CardState, logs []models.ReviewLog) error {
	return withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.cards.WithTx(tx).Upsert(ctx, s.userID, states...); err != nil {
			return err
		}
		return s.logs.WithTx(tx).Insert(ctx, s.userID, logs...)
	})
}

func (s *UserStore) AppendQuizResult(ctx context.Context, result models.QuizResult) error {
	return s.quizzes.Create(ctx, s.userID, result)
}

func (s *UserStore) ListReviewLogsSince(ctx context.Context, date string) ([]models.ReviewLog, error) {
	return s.logs.ListSince(ctx, s.userID, date)
}

// ListReviewLogs returns the whole review history
func (s *UserStore) ListReviewLogs(ctx context.Context) ([]models.ReviewLog, error) {
	return s.logs.ListAll(ctx, s.userID)
}

// ListQuizResults returns every quiz result, newest first
func (s *UserStore) ListQuizResults(ctx context.Context) ([]models.QuizResult, error) {
	return s.quizzes.GetAllByUserID(ctx, s.userID)
}

// ListUserWords returns the words the user authored
func (s *UserStore) ListUserWords(ctx context.Context) ([]models.Word, error) {
	return s.words.GetUserWords(ctx, s.userID)
}

func (s *UserStore) LoadSettings(ctx context.Context) (models.UserSettings, error) {
	return s.settings.Get(ctx, s.userID)
}

func (s *UserStore) SaveSettings(ctx context.Context, settings models.UserSettings) error {
	return s.settings.Save(ctx, s.userID, settings)
}

func (s *UserStore) LoadStreak(ctx context.Context) (models.StreakData, error) {
	return s.streaks.Get(ctx, s.userID)
}

func (s *UserStore) SaveStreak(ctx context.Context, streak models.StreakData) error {
	return s.streaks.Save(ctx, s.userID, streak)
}

// AddWord stores a user word together with its first card state
func (s *UserStore) AddWord(ctx context.Context, word *models.Word, state models.CardState) error {
	return withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.words.WithTx(tx).Create(ctx, s.userID, word); err != nil {
			return err
		}
		state.WordID = word.ID
		return s.cards.WithTx(tx).Upsert(ctx, s.userID, state)
	})
}

// UpdateWord changes a word the user authored
func (s *UserStore) UpdateWord(ctx context.Context, word *models.Word) error {
	return s.words.Update(ctx, s.userID, word)
}

// FindWordByText looks up one of the user's words by spelling
func (s *UserStore) FindWordByText(ctx context.Context, text string) (*models.Word, error) {
	return s.words.FindUserWordByText(ctx, s.userID, text)
}

// DeleteWord removes a user word and its card state. Review logs are history
// and stay.
func (s *UserStore) DeleteWord(ctx context.Context, id string) error {
	return withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.words.WithTx(tx).Delete(ctx, s.userID, id); err != nil {
			return err
		}
		return s.cards.WithTx(tx).DeleteByWord(ctx, id)
	})
}

// Snapshot is everything a user owns
type Snapshot struct {
	Words       []models.Word
	CardStates  []models.CardState
	ReviewLogs  []models.ReviewLog
	QuizResults []models.QuizResult
	Settings    models.UserSettings
	Streak      models.StreakData
}

// Replace swaps all of the user's data for snap in one transaction
func (s *UserStore) Replace(ctx context.Context, snap Snapshot) error {
	return withTx(ctx, func(tx *sqlx.Tx) error {
		words := s.words.WithTx(tx)
		cards := s.cards.WithTx(tx)
		logs := s.logs.WithTx(tx)
		quizzes := s.quizzes.WithTx(tx)

		if err := words.DeleteUserWords(ctx, s.userID); err != nil {
			return err
		}
		if err := cards.DeleteAll(ctx, s.userID); err != nil {
			return err
		}
		if err := logs.DeleteAll(ctx, s.userID); err != nil {
			return err
		}
		if err := quizzes.DeleteAll(ctx, s.userID); err != nil {
			return err
		}

		for i := range snap.Words {
			w := snap.Words[i]
			w.Source = models.SourceUser
			w.ListID = ""
			if err := words.Create(ctx, s.userID, &w); err != nil {
				return err
			}
		}
		if err := cards.Upsert(ctx, s.userID, snap.CardStates...); err != nil {
			return err
		}
		if err := logs.Insert(ctx, s.userID, snap.ReviewLogs...); err != nil {
			return err
		}
		for _, res := range snap.QuizResults {
			if err := quizzes.Create(ctx, s.userID, res); err != nil {
				return err
			}
		}
		if err := s.settings.WithTx(tx).Save(ctx, s.userID, snap.Settings); err != nil {
			return err
		}
		return s.streaks.WithTx(tx).Save(ctx, s.userID, snap.Streak)
	})
}

// Statistics summarises a user's progress
type Statistics struct {
	TotalCards    int                       `json:"totalCards"`
	StatusCounts  map[models.CardStatus]int `json:"statusCounts"`
	DueToday      int                       `json:"dueToday"`
	ReviewsPerDay []DayCount                `json:"reviewsPerDay"`
	DueForecast   []DayCount                `json:"dueForecast"`
}

// DayCount is a count attached to a calendar date
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// GetStatistics returns status counts, the reviews of the last days and the
// due forecast for the next days, both including today
func (s *UserStore) GetStatistics(ctx context.Context, today time.Time, days int) (*Statistics, error) {
	if days < 1 {
		days = 1
	}
	todayStr := models.DateOf(today)

	counts, err := s.cards.CountByStatus(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	first := models.DateOf(today.AddDate(0, 0, -(days - 1)))
	reviews, err := s.logs.CountPerDay(ctx, s.userID, first)
	if err != nil {
		return nil, err
	}
	last := models.DateOf(today.AddDate(0, 0, days-1))
	due, err := s.cards.CountDueByDate(ctx, s.userID, "", last)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{StatusCounts: counts}
	for _, c := range counts {
		stats.TotalCards += c
	}
	for i := days - 1; i >= 0; i-- {
		d := models.DateOf(today.AddDate(0, 0, -i))
		stats.ReviewsPerDay = append(stats.ReviewsPerDay, DayCount{Date: d, Count: reviews[d]})
	}
	for date, c := range due {
		if date <= todayStr {
			stats.DueToday += c
		}
	}
	for i := 0; i < days; i++ {
		d := models.DateOf(today.AddDate(0, 0, i))
		c := due[d]
		if i == 0 {
			// overdue cards are due today
			c = stats.DueToday
		}
		stats.DueForecast = append(stats.DueForecast, DayCount{Date: d, Count: c})
	}
	return stats, nil
}

func withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
