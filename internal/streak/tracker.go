// Package streak keeps the daily activity counter that every rating updates.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/example/wordsrs/pkg/models"
)

// MaxActiveDates is how many active days are remembered
const MaxActiveDates = 365

// Store loads and saves a user's streak
type Store interface {
	LoadStreak(ctx context.Context) (models.StreakData, error)
	SaveStreak(ctx context.Context, streak models.StreakData) error
}

// Tracker records study activity
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker creates a tracker backed by store
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// WithClock replaces the clock used to decide what "today" is
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Touch marks today as active and saves the streak when it changed
func (t *Tracker) Touch(ctx context.Context) (models.StreakData, error) {
	current, err := t.store.LoadStreak(ctx)
	if err != nil {
		return current, fmt.Errorf("failed to load streak: %w", err)
	}

	next, changed := Advance(current, t.now())
	if !changed {
		return next, nil
	}
	if err := t.store.SaveStreak(ctx, next); err != nil {
		return current, fmt.Errorf("failed to save streak: %w", err)
	}
	return next, nil
}

// Current returns the saved streak, reporting zero days when the last
// activity is older than yesterday
func (t *Tracker) Current(ctx context.Context) (models.StreakData, error) {
	s, err := t.store.LoadStreak(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to load streak: %w", err)
	}
	now := t.now()
	if s.LastActiveDate != models.DateOf(now) && s.LastActiveDate != models.DateOf(now.AddDate(0, 0, -1)) {
		s.CurrentStreak = 0
	}
	return s, nil
}

// Advance applies one day of activity to s. It reports false when today
// was already counted.
func Advance(s models.StreakData, now time.Time) (models.StreakData, bool) {
	today := models.DateOf(now)
	if s.LastActiveDate == today {
		return s, false
	}

	if s.LastActiveDate == models.DateOf(now.AddDate(0, 0, -1)) {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActiveDate = today

	dates := make([]string, 0, len(s.ActiveDates)+1)
	for _, d := range s.ActiveDates {
		if d != today {
			dates = append(dates, d)
		}
	}
	dates = append(dates, today)
	if len(dates) > MaxActiveDates {
		dates = dates[len(dates)-MaxActiveDates:]
	}
	s.ActiveDates = dates

	return s, true
}
