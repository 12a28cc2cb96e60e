package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/example/wordsrs/pkg/models"
)

// timestampLayout has a fixed width so stored timestamps sort as strings
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Rows mirror the tables. Conversion to and from pkg/models happens here and
// nowhere else.

type wordRow struct {
	ID                 string         `db:"id"`
	UserID             int64          `db:"user_id"`
	Word               string         `db:"word"`
	Phonetic           string         `db:"phonetic"`
	Audio              string         `db:"audio"`
	Definitions        types.JSONText `db:"definitions"`
	Example            string         `db:"example"`
	ExampleTranslation string         `db:"example_cn"`
	Tags               types.JSONText `db:"tags"`
	Source             string         `db:"source"`
	ListID             string         `db:"list_id"`
	CreatedAt          string         `db:"created_at"`
}

func (r wordRow) toModel() (models.Word, error) {
	w := models.Word{
		ID:                 r.ID,
		Text:               r.Word,
		Phonetic:           r.Phonetic,
		Audio:              r.Audio,
		Example:            r.Example,
		ExampleTranslation: r.ExampleTranslation,
		Source:             models.WordSource(r.Source),
		ListID:             r.ListID,
		Definitions:        []models.Definition{},
		Tags:               []string{},
	}
	if err := r.Definitions.Unmarshal(&w.Definitions); err != nil {
		return w, fmt.Errorf("failed to parse definitions of word %s: %w", r.ID, err)
	}
	if err := r.Tags.Unmarshal(&w.Tags); err != nil {
		return w, fmt.Errorf("failed to parse tags of word %s: %w", r.ID, err)
	}
	if w.Definitions == nil {
		w.Definitions = []models.Definition{}
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	return w, nil
}

type cardStateRow struct {
	UserID          int64   `db:"user_id"`
	WordID          string  `db:"word_id"`
	EaseFactor      float64 `db:"ease_factor"`
	Interval        int     `db:"interval_days"`
	Repetition      int     `db:"repetition"`
	DueDate         string  `db:"due_date"`
	LastReviewDate  string  `db:"last_review_date"`
	Status          string  `db:"status"`
	ConsecutiveEasy int     `db:"consecutive_easy"`
}

func newCardStateRow(userID int64, st models.CardState) cardStateRow {
	return cardStateRow{
		UserID:          userID,
		WordID:          st.WordID,
		EaseFactor:      st.EaseFactor,
		Interval:        st.Interval,
		Repetition:      st.Repetition,
		DueDate:         st.DueDate,
		LastReviewDate:  st.LastReviewDate,
		Status:          string(st.Status),
		ConsecutiveEasy: st.ConsecutiveEasyCount,
	}
}

func (r cardStateRow) toModel() models.CardState {
	return models.CardState{
		WordID:               r.WordID,
		EaseFactor:           r.EaseFactor,
		Interval:             r.Interval,
		Repetition:           r.Repetition,
		DueDate:              r.DueDate,
		LastReviewDate:       r.LastReviewDate,
		Status:               models.CardStatus(r.Status),
		ConsecutiveEasyCount: r.ConsecutiveEasy,
	}
}

type reviewLogRow struct {
	ID               string  `db:"id"`
	UserID           int64   `db:"user_id"`
	WordID           string  `db:"word_id"`
	Quality          int     `db:"quality"`
	ReviewedAt       string  `db:"reviewed_at"`
	ReviewDate       string  `db:"review_date"`
	PreviousInterval int     `db:"previous_interval"`
	NewInterval      int     `db:"new_interval"`
	PreviousEF       float64 `db:"previous_ef"`
	NewEF            float64 `db:"new_ef"`
	Mode             string  `db:"mode"`
}

func newReviewLogRow(userID int64, l models.ReviewLog) reviewLogRow {
	return reviewLogRow{
		ID:               l.ID,
		UserID:           userID,
		WordID:           l.WordID,
		Quality:          l.Quality,
		ReviewedAt:       l.ReviewedAt.Format(timestampLayout),
		ReviewDate:       models.DateOf(l.ReviewedAt),
		PreviousInterval: l.PreviousInterval,
		NewInterval:      l.NewInterval,
		PreviousEF:       l.PreviousEF,
		NewEF:            l.NewEF,
		Mode:             string(l.Mode),
	}
}

func (r reviewLogRow) toModel() (models.ReviewLog, error) {
	at, err := time.Parse(timestampLayout, r.ReviewedAt)
	if err != nil {
		return models.ReviewLog{}, fmt.Errorf("failed to parse review time of log %s: %w", r.ID, err)
	}
	return models.ReviewLog{
		ID:               r.ID,
		WordID:           r.WordID,
		Quality:          r.Quality,
		ReviewedAt:       at,
		PreviousInterval: r.PreviousInterval,
		NewInterval:      r.NewInterval,
		PreviousEF:       r.PreviousEF,
		NewEF:            r.NewEF,
		Mode:             models.ReviewMode(r.Mode),
	}, nil
}

type quizResultRow struct {
	ID              string         `db:"id"`
	UserID          int64          `db:"user_id"`
	TakenAt         string         `db:"taken_at"`
	Mode            string         `db:"mode"`
	TotalQuestions  int            `db:"total_questions"`
	CorrectCount    int            `db:"correct_count"`
	WrongWordIDs    types.JSONText `db:"wrong_word_ids"`
	DurationSeconds int            `db:"duration_seconds"`
}

func (r quizResultRow) toModel() (models.QuizResult, error) {
	res := models.QuizResult{
		ID:              r.ID,
		Mode:            models.QuizMode(r.Mode),
		TotalQuestions:  r.TotalQuestions,
		CorrectCount:    r.CorrectCount,
		DurationSeconds: r.DurationSeconds,
		WrongWordIDs:    []string{},
	}
	at, err := time.Parse(timestampLayout, r.TakenAt)
	if err != nil {
		return res, fmt.Errorf("failed to parse date of quiz result %s: %w", r.ID, err)
	}
	res.Date = at
	if err := r.WrongWordIDs.Unmarshal(&res.WrongWordIDs); err != nil {
		return res, fmt.Errorf("failed to parse wrong words of quiz result %s: %w", r.ID, err)
	}
	if res.WrongWordIDs == nil {
		res.WrongWordIDs = []string{}
	}
	return res, nil
}

type settingsRow struct {
	UserID           int64          `db:"user_id"`
	DailyNewLimit    int            `db:"daily_new_limit"`
	DailyReviewLimit int            `db:"daily_review_limit"`
	EnabledListIDs   types.JSONText `db:"enabled_list_ids"`
}

type streakRow struct {
	UserID         int64          `db:"user_id"`
	CurrentStreak  int            `db:"current_streak"`
	LongestStreak  int            `db:"longest_streak"`
	LastActiveDate string         `db:"last_active_date"`
	ActiveDates    types.JSONText `db:"active_dates"`
}

// jsonText encodes v for a TEXT column. Strings are bound instead of bytes so
// lib/pq does not send them as bytea.
func jsonText(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// stringsOrEmpty keeps nil slices from being stored as JSON null
func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// maxQueryIDs bounds the ids bound into one IN list. SQLite allows 32766
// variables per statement and Postgres 65535.
const maxQueryIDs = 500

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}
