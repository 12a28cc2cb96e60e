package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

// WordListRepository handles database operations for shared word lists
type WordListRepository struct {
	db sqlx.ExtContext
}

// NewWordListRepository creates a new repository instance
func NewWordListRepository() *WordListRepository {
	return &WordListRepository{db: DB}
}

// Create inserts a list, or returns the existing list with the same name
func (r *WordListRepository) Create(ctx context.Context, list *models.WordList) error {
	existing, err := r.GetByName(ctx, list.Name)
	if err == nil {
		*list = *existing
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	if list.ID == "" {
		list.ID = uuid.NewString()
	}
	query := r.db.Rebind("INSERT INTO word_lists (id, name, description) VALUES (?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, query, list.ID, list.Name, list.Description); err != nil {
		return fmt.Errorf("failed to create word list: %w", err)
	}
	return nil
}

// GetAll returns every list with its word count
func (r *WordListRepository) GetAll(ctx context.Context) ([]models.WordList, error) {
	lists := []models.WordList{}
	query := `
		SELECT l.id, l.name, l.description, COUNT(w.id) AS word_count
		FROM word_lists l
		LEFT JOIN words w ON w.list_id = l.id AND w.source = 'builtin'
		GROUP BY l.id, l.name, l.description
		ORDER BY l.name
	`
	var rows []struct {
		ID          string `db:"id"`
		Name        string `db:"name"`
		Description string `db:"description"`
		WordCount   int    `db:"word_count"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get word lists: %w", err)
	}
	for _, row := range rows {
		lists = append(lists, models.WordList{ID: row.ID, Name: row.Name, Description: row.Description, WordCount: row.WordCount})
	}
	return lists, nil
}

// GetByName retrieves a list by its name
func (r *WordListRepository) GetByName(ctx context.Context, name string) (*models.WordList, error) {
	var row struct {
		ID          string `db:"id"`
		Name        string `db:"name"`
		Description string `db:"description"`
	}
	err := sqlx.GetContext(ctx, r.db, &row, r.db.Rebind("SELECT id, name, description FROM word_lists WHERE name = ?"), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word list: %w", err)
	}
	return &models.WordList{ID: row.ID, Name: row.Name, Description: row.Description}, nil
}
