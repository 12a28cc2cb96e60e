package database

import (
	"context"

	"github.com/example/wordsrs/pkg/models"
)

// ListStore fills a shared word list. Its words have no card states; every
// user who enables the list meets them as new cards.
type ListStore struct {
	listID string
	words  *WordRepository
}

// NewListStore creates a store for the list with the given id
func NewListStore(listID string) *ListStore {
	return &ListStore{listID: listID, words: NewWordRepository()}
}

func (s *ListStore) FindWordByText(ctx context.Context, text string) (*models.Word, error) {
	return s.words.FindListWordByText(ctx, s.listID, text)
}

// AddWord stores a builtin word of the list. The card state is ignored.
func (s *ListStore) AddWord(ctx context.Context, word *models.Word, _ models.CardState) error {
	word.Source = models.SourceBuiltin
	word.ListID = s.listID
	return s.words.Create(ctx, 0, word)
}

func (s *ListStore) UpdateWord(ctx context.Context, word *models.Word) error {
	return s.words.Update(ctx, 0, word)
}

// Words returns every word of the list
func (s *ListStore) Words(ctx context.Context) ([]models.Word, error) {
	return s.words.GetByList(ctx, s.listID)
}
