// Package backup exports a user's data as a versioned JSON document and
// restores it again.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/pkg/models"
)

// FormatVersion is the only backup version Read accepts
const FormatVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported backup version")

// Source is what Export reads from
type Source interface {
	ListUserWords(ctx context.Context) ([]models.Word, error)
	FindCardStates(ctx context.Context, find *models.FindCardState) ([]models.CardState, error)
	ListReviewLogs(ctx context.Context) ([]models.ReviewLog, error)
	ListQuizResults(ctx context.Context) ([]models.QuizResult, error)
	LoadSettings(ctx context.Context) (models.UserSettings, error)
	LoadStreak(ctx context.Context) (models.StreakData, error)
}

// Target is what Restore writes to
type Target interface {
	Replace(ctx context.Context, snap database.Snapshot) error
}

// Envelope is the backup document. Only user-authored words are included;
// builtin list words ship with the app.
type Envelope struct {
	Version     int                  `json:"version"`
	ExportDate  time.Time            `json:"exportDate"`
	Words       []models.Word        `json:"words"`
	CardStates  []models.CardState   `json:"cardStates"`
	ReviewLogs  []models.ReviewLog   `json:"reviewLogs"`
	QuizResults []models.QuizResult  `json:"quizResults"`
	Settings    *models.UserSettings `json:"settings,omitempty"`
	Streak      *models.StreakData   `json:"streak,omitempty"`
}

// FileName returns the suggested file name of a backup taken at t
func FileName(t time.Time) string {
	return fmt.Sprintf("vocab-backup-%s.json", models.DateOf(t))
}

// Export collects everything the user owns
func Export(ctx context.Context, src Source, now time.Time) (*Envelope, error) {
	env := &Envelope{Version: FormatVersion, ExportDate: now.UTC()}
	var settings models.UserSettings
	var streak models.StreakData

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		env.Words, err = src.ListUserWords(ctx)
		return err
	})
	g.Go(func() (err error) {
		env.CardStates, err = src.FindCardStates(ctx, &models.FindCardState{})
		return err
	})
	g.Go(func() (err error) {
		env.ReviewLogs, err = src.ListReviewLogs(ctx)
		return err
	})
	g.Go(func() (err error) {
		env.QuizResults, err = src.ListQuizResults(ctx)
		return err
	})
	g.Go(func() (err error) {
		settings, err = src.LoadSettings(ctx)
		return err
	})
	g.Go(func() (err error) {
		streak, err = src.LoadStreak(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to export data: %w", err)
	}

	env.Settings = &settings
	env.Streak = &streak
	env.normalize()
	return env, nil
}

// Write encodes env as indented JSON
func Write(w io.Writer, env *Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// Read decodes a backup and rejects versions other than FormatVersion
func Read(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	env.normalize()
	return &env, nil
}

// Restore replaces all of the user's data with the backup. A backup without
// settings restores the default settings.
func Restore(ctx context.Context, target Target, env *Envelope) error {
	if env.Version != FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	snap := database.Snapshot{
		Words:       env.Words,
		CardStates:  env.CardStates,
		ReviewLogs:  env.ReviewLogs,
		QuizResults: env.QuizResults,
		Settings:    models.DefaultSettings(),
		Streak:      models.StreakData{ActiveDates: []string{}},
	}
	if env.Settings != nil {
		snap.Settings = *env.Settings
	}
	if env.Streak != nil {
		snap.Streak = *env.Streak
	}

	if err := target.Replace(ctx, snap); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

func (e *Envelope) normalize() {
	if e.Words == nil {
		e.Words = []models.Word{}
	}
	if e.CardStates == nil {
		e.CardStates = []models.CardState{}
	}
	if e.ReviewLogs == nil {
		e.ReviewLogs = []models.ReviewLog{}
	}
	if e.QuizResults == nil {
		e.QuizResults = []models.QuizResult{}
	}
}
