package scheduler

import (
	"context"
	"time"

	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

// SettingsCardSource is a card source that also knows the user's settings
type SettingsCardSource interface {
	spaced_repetition.CardSource
	LoadSettings(ctx context.Context) (models.UserSettings, error)
}

// CountDueReviews returns the review cards due today, capped at the user's
// daily review limit
func CountDueReviews(ctx context.Context, store SettingsCardSource, model *spaced_repetition.SM2, now time.Time) (int, error) {
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		return 0, err
	}
	queue, err := spaced_repetition.NewSelector(store, model).
		WithClock(func() time.Time { return now }).
		SelectDueCards(ctx, 0, settings.DailyReviewLimit, settings.EnabledListIDs)
	if err != nil {
		return 0, err
	}
	return len(queue.ReviewCards), nil
}
