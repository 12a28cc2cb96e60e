package spaced_repetition

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/wordsrs/pkg/models"
)

// CardSource is the part of the store the selector reads from
type CardSource interface {
	// EligibleWordIDs returns the user's own words plus the words of the enabled lists
	EligibleWordIDs(ctx context.Context, enabledListIDs []string) ([]string, error)
	// FindCardStates returns card states matching the filter
	FindCardStates(ctx context.Context, find *models.FindCardState) ([]models.CardState, error)
}

// ScheduledQueue holds today's review cards followed by never-studied cards
type ScheduledQueue struct {
	ReviewCards []models.CardState
	NewCards    []models.CardState
}

// Len returns the number of cards in both lists
func (q *ScheduledQueue) Len() int {
	return len(q.ReviewCards) + len(q.NewCards)
}

// All returns the review cards followed by the new cards
func (q *ScheduledQueue) All() []models.CardState {
	all := make([]models.CardState, 0, q.Len())
	all = append(all, q.ReviewCards...)
	return append(all, q.NewCards...)
}

// Selector picks the cards to study today
type Selector struct {
	source CardSource
	model  *SM2
	now    func() time.Time
}

// NewSelector creates a selector reading from source
func NewSelector(source CardSource, model *SM2) *Selector {
	return &Selector{source: source, model: model, now: time.Now}
}

// WithClock replaces the clock used to decide what "today" is
func (s *Selector) WithClock(now func() time.Time) *Selector {
	s.now = now
	return s
}

// SelectDueCards returns due review cards and new cards bounded by the daily limits
func (s *Selector) SelectDueCards(ctx context.Context, dailyNewLimit, dailyReviewLimit int, enabledListIDs []string) (*ScheduledQueue, error) {
	now := s.now()
	today := models.DateOf(now)

	eligible, err := s.source.EligibleWordIDs(ctx, enabledListIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve eligible words: %w", err)
	}
	queue := &ScheduledQueue{}
	if len(eligible) == 0 {
		return queue, nil
	}

	states, err := s.source.FindCardStates(ctx, &models.FindCardState{WordIDs: eligible})
	if err != nil {
		return nil, fmt.Errorf("failed to get card states: %w", err)
	}

	known := make(map[string]bool, len(states))
	for _, st := range states {
		known[st.WordID] = true
		switch {
		case st.Status == models.StatusNew:
			queue.NewCards = append(queue.NewCards, st)
		case st.Status == models.StatusRetired:
		case st.DueDate <= today:
			queue.ReviewCards = append(queue.ReviewCards, st)
		}
	}

	// Words without a card state are new as well
	for _, id := range eligible {
		if !known[id] {
			known[id] = true
			queue.NewCards = append(queue.NewCards, s.model.CreateInitialState(id, now))
		}
	}

	SortReviewCards(queue.ReviewCards)
	queue.ReviewCards = truncate(queue.ReviewCards, dailyReviewLimit)
	queue.NewCards = truncate(queue.NewCards, dailyNewLimit)

	return queue, nil
}

// SortReviewCards orders cards by due date, then by ease factor so that
// historically harder cards come first among equally overdue ones
func SortReviewCards(cards []models.CardState) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].DueDate != cards[j].DueDate {
			return cards[i].DueDate < cards[j].DueDate
		}
		return cards[i].EaseFactor < cards[j].EaseFactor
	})
}

func truncate(cards []models.CardState, limit int) []models.CardState {
	if limit <= 0 {
		return []models.CardState{}
	}
	if len(cards) > limit {
		return cards[:limit]
	}
	return cards
}
