package session

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/internal/quiz"
	"github.com/example/wordsrs/pkg/models"
)

// StartReinforcement drills every word touched today, worst rated first.
// Buffered reviews are written before the drill starts.
func (s *Session) StartReinforcement(ctx context.Context) error {
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

	cards := make([]Card, 0, len(words))
	for _, w := range quiz.Shuffle(s.rng, words) {
		cards = append(cards, Card{State: models.CardState{WordID: w.ID}, Word: w})
	}
	sort.SliceStable(cards, func(i, j int) bool {
		return touched[cards[i].Word.ID] < touched[cards[j].Word.ID]
	})

	s.phase = PhaseReinforcing
	s.queue = cards
	s.index = 0
	s.complete = len(cards) == 0
	metrics.RecordPhaseStart(string(PhaseReinforcing))
	return nil
}

// touchedToday returns the worst quality per word rated today. When the day
// state lost track of it the answer is rebuilt from today's review logs.
func (s *Session) touchedToday(ctx context.Context) (map[string]int, error) {
	s.rollDay(ctx)
	if len(s.day.Touched) > 0 {
		return s.day.Touched, nil
	}

	logs, err := s.store.ListReviewLogsSince(ctx, s.day.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list today's reviews: %w", err)
	}
	for _, l := range logs {
		s.day.Touch(l.WordID, l.Quality)
	}
	if len(s.day.Touched) > 0 {
		s.saveDay(ctx)
	}
	return s.day.Touched, nil
}

// touchedWords resolves the touched ids to words in a stable order, dropping missing ones
func (s *Session) touchedWords(ctx context.Context, touched map[string]int) ([]models.Word, error) {
	if len(touched) == 0 {
		return []models.Word{}, nil
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	found, err := s.store.GetWordsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}

	words := make([]models.Word, 0, len(ids))
	for _, id := range ids {
		w, ok := found[id]
		if !ok {
			log.Printf("Skipping touched word %s: word not found", id)
			continue
		}
		words = append(words, w)
	}
	return words, nil
}
