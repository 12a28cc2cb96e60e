package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/example/wordsrs/pkg/models"
)

// MinMCQWords is the number of studied words a multiple choice quiz needs:
// one correct answer plus three distractors
const MinMCQWords = 4

const distractorCount = MinMCQWords - 1

// DefaultQuestionCount is the length of a standalone quiz
const DefaultQuestionCount = 10

// WordSource is the part of the store the generator reads from
type WordSource interface {
	FindCardStates(ctx context.Context, find *models.FindCardState) ([]models.CardState, error)
	GetWordsByIDs(ctx context.Context, ids []string) (map[string]models.Word, error)
}

// MCQQuestion asks for the meaning of a word among four options
type MCQQuestion struct {
	WordID        string   `json:"wordId"`
	QuestionText  string   `json:"questionText"`
	Phonetic      string   `json:"phonetic,omitempty"`
	Audio         string   `json:"audio,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
	Options       []string `json:"options"`
}

// CorrectIndex returns the position of the correct answer in Options
func (q MCQQuestion) CorrectIndex() int {
	for i, o := range q.Options {
		if o == q.CorrectAnswer {
			return i
		}
	}
	return -1
}

// IsCorrect reports whether answer is the right option
func (q MCQQuestion) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}

// SpellingQuestion shows a meaning and asks for the word
type SpellingQuestion struct {
	WordID        string `json:"wordId"`
	Hint          string `json:"hint"`
	CorrectAnswer string `json:"correctAnswer"`
	Phonetic      string `json:"phonetic,omitempty"`
	Audio         string `json:"audio,omitempty"`
}

// IsCorrect compares the typed answer ignoring case and surrounding spaces
func (q SpellingQuestion) IsCorrect(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), q.CorrectAnswer)
}

// Generator builds quiz questions from studied words
type Generator struct {
	source WordSource
	rng    *rand.Rand
}

// NewGenerator creates a new quiz generator
func NewGenerator(source WordSource) *Generator {
	return &Generator{
		source: source,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the random source used for sampling
func (g *Generator) WithRand(rng *rand.Rand) *Generator {
	g.rng = rng
	return g
}

// StudiedWords returns every word whose card has left the new state
func (g *Generator) StudiedWords(ctx context.Context) ([]models.Word, error) {
	states, err := g.source.FindCardStates(ctx, &models.FindCardState{
		ExcludeStatuses: []models.CardStatus{models.StatusNew},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get studied cards: %w", err)
	}
	if len(states) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(states))
	for _, st := range states {
		ids = append(ids, st.WordID)
	}
	byID, err := g.source.GetWordsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get studied words: %w", err)
	}

	words := make([]models.Word, 0, len(byID))
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			words = append(words, w)
		}
	}
	return words, nil
}

// GenerateMCQ returns up to count multiple choice questions over studied words.
// The result is empty when fewer than MinMCQWords words were studied.
func (g *Generator) GenerateMCQ(ctx context.Context, count int) ([]MCQQuestion, error) {
	words, err := g.StudiedWords(ctx)
	if err != nil {
		return nil, err
	}
	return g.BuildMCQ(words, count), nil
}

// GenerateSpelling returns up to count spelling questions over studied words
func (g *Generator) GenerateSpelling(ctx context.Context, count int) ([]SpellingQuestion, error) {
	words, err := g.StudiedWords(ctx)
	if err != nil {
		return nil, err
	}
	return g.BuildSpelling(words, count), nil
}

// BuildMCQ samples count words without replacement and builds a question for
// each, drawing three distractor meanings from the other words
func (g *Generator) BuildMCQ(words []models.Word, count int) []MCQQuestion {
	pool := withMeaning(words)
	if len(pool) < MinMCQWords || count <= 0 {
		return []MCQQuestion{}
	}

	selected := Shuffle(g.rng, pool)
	if len(selected) > count {
		selected = selected[:count]
	}

	questions := make([]MCQQuestion, 0, len(selected))
	for _, word := range selected {
		others := make([]models.Word, 0, len(pool)-1)
		for _, w := range pool {
			if w.ID != word.ID {
				others = append(others, w)
			}
		}
		others = Shuffle(g.rng, others)

		options := make([]string, 0, MinMCQWords)
		options = append(options, word.FirstMeaning())
		for _, w := range others[:distractorCount] {
			options = append(options, w.FirstMeaning())
		}

		questions = append(questions, MCQQuestion{
			WordID:        word.ID,
			QuestionText:  word.Text,
			Phonetic:      word.Phonetic,
			Audio:         word.Audio,
			CorrectAnswer: word.FirstMeaning(),
			Options:       Shuffle(g.rng, options),
		})
	}
	return questions
}

// BuildSpelling samples count words and asks for their spelling
func (g *Generator) BuildSpelling(words []models.Word, count int) []SpellingQuestion {
	pool := withMeaning(words)
	if len(pool) == 0 || count <= 0 {
		return []SpellingQuestion{}
	}

	selected := Shuffle(g.rng, pool)
	if len(selected) > count {
		selected = selected[:count]
	}

	questions := make([]SpellingQuestion, 0, len(selected))
	for _, word := range selected {
		questions = append(questions, SpellingQuestion{
			WordID:        word.ID,
			Hint:          word.FirstMeaning(),
			CorrectAnswer: word.Text,
			Phonetic:      word.Phonetic,
			Audio:         word.Audio,
		})
	}
	return questions
}

// Shuffle returns a uniformly shuffled copy of items
func Shuffle[T any](rng *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// withMeaning drops words that have nothing to ask about
func withMeaning(words []models.Word) []models.Word {
	out := make([]models.Word, 0, len(words))
	for _, w := range words {
		if w.FirstMeaning() != "" && w.Text != "" {
			out = append(out, w)
		}
	}
	return out
}
