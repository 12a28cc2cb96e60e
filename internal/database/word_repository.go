package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/wordsrs/pkg/models"
)

const wordColumns = "id, user_id, word, phonetic, audio, definitions, example, example_cn, tags, source, list_id, created_at"

// WordRepository handles database operations for words
type WordRepository struct {
	db sqlx.ExtContext
}

// NewWordRepository creates a new repository instance
func NewWordRepository() *WordRepository {
	return &WordRepository{db: DB}
}

// WithTx returns a copy of the repository running inside tx
func (r *WordRepository) WithTx(tx *sqlx.Tx) *WordRepository {
	return &WordRepository{db: tx}
}

// Create inserts a word. User words belong to userID, builtin words to nobody.
func (r *WordRepository) Create(ctx context.Context, userID int64, word *models.Word) error {
	if word.ID == "" {
		word.ID = uuid.NewString()
	}
	if word.Source == "" {
		word.Source = models.SourceUser
	}
	owner := userID
	if word.Source == models.SourceBuiltin {
		owner = 0
	}

	defs, err := jsonText(definitionsOrEmpty(word.Definitions))
	if err != nil {
		return fmt.Errorf("failed to marshal definitions: %w", err)
	}
	tags, err := jsonText(stringsOrEmpty(word.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO words (` + wordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		word.ID,
		owner,
		word.Text,
		word.Phonetic,
		word.Audio,
		defs,
		word.Example,
		word.ExampleTranslation,
		tags,
		string(word.Source),
		word.ListID,
		time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create word: %w", err)
	}
	return nil
}

// Update modifies a word owned by userID
func (r *WordRepository) Update(ctx context.Context, userID int64, word *models.Word) error {
	defs, err := jsonText(definitionsOrEmpty(word.Definitions))
	if err != nil {
		return fmt.Errorf("failed to marshal definitions: %w", err)
	}
	tags, err := jsonText(stringsOrEmpty(word.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := r.db.Rebind(`
		UPDATE words SET
			word = ?, phonetic = ?, audio = ?, definitions = ?,
			example = ?, example_cn = ?, tags = ?
		WHERE id = ? AND user_id = ?
	`)
	result, err := r.db.ExecContext(ctx, query,
		word.Text,
		word.Phonetic,
		word.Audio,
		defs,
		word.Example,
		word.ExampleTranslation,
		tags,
		word.ID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update word: %w", err)
	}
	return expectRows(result, "word")
}

// Delete removes a word owned by userID
func (r *WordRepository) Delete(ctx context.Context, userID int64, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM words WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete word: %w", err)
	}
	return expectRows(result, "word")
}

// DeleteUserWords removes every word authored by userID
func (r *WordRepository) DeleteUserWords(ctx context.Context, userID int64) error {
	query := r.db.Rebind("DELETE FROM words WHERE user_id = ? AND source = ?")
	if _, err := r.db.ExecContext(ctx, query, userID, string(models.SourceUser)); err != nil {
		return fmt.Errorf("failed to delete user words: %w", err)
	}
	return nil
}

// GetByID returns a word visible to userID
func (r *WordRepository) GetByID(ctx context.Context, userID int64, id string) (*models.Word, error) {
	var row wordRow
	query := r.db.Rebind("SELECT " + wordColumns + " FROM words WHERE id = ? AND (user_id = ? OR source = ?)")
	err := sqlx.GetContext(ctx, r.db, &row, query, id, userID, string(models.SourceBuiltin))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word by ID: %w", err)
	}
	w, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetByIDs returns the words visible to userID keyed by id. Unknown ids are left out.
func (r *WordRepository) GetByIDs(ctx context.Context, userID int64, ids []string) (map[string]models.Word, error) {
	out := make(map[string]models.Word, len(ids))
	for _, chunk := range chunkIDs(ids, maxQueryIDs) {
		if err := r.getByIDs(ctx, userID, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *WordRepository) getByIDs(ctx context.Context, userID int64, ids []string, out map[string]models.Word) error {
	query, args, err := sqlx.In(
		"SELECT "+wordColumns+" FROM words WHERE id IN (?) AND (user_id = ? OR source = ?)",
		ids, userID, string(models.SourceBuiltin),
	)
	if err != nil {
		return fmt.Errorf("failed to build words query: %w", err)
	}

	var rows []wordRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to get words: %w", err)
	}
	for _, row := range rows {
		w, err := row.toModel()
		if err != nil {
			return err
		}
		out[w.ID] = w
	}
	return nil
}

// GetUserWords returns the words authored by userID in creation order
func (r *WordRepository) GetUserWords(ctx context.Context, userID int64) ([]models.Word, error) {
	query := r.db.Rebind("SELECT " + wordColumns + " FROM words WHERE user_id = ? AND source = ? ORDER BY created_at, id")
	return r.selectWords(ctx, query, userID, string(models.SourceUser))
}

// GetByList returns the builtin words of a list
func (r *WordRepository) GetByList(ctx context.Context, listID string) ([]models.Word, error) {
	query := r.db.Rebind("SELECT " + wordColumns + " FROM words WHERE list_id = ? AND source = ? ORDER BY created_at, id")
	return r.selectWords(ctx, query, listID, string(models.SourceBuiltin))
}

// FindUserWordByText looks up a user word by its spelling, ignoring case
func (r *WordRepository) FindUserWordByText(ctx context.Context, userID int64, text string) (*models.Word, error) {
	query := r.db.Rebind("SELECT " + wordColumns + " FROM words WHERE user_id = ? AND source = ? AND LOWER(word) = LOWER(?) LIMIT 1")
	words, err := r.selectWords(ctx, query, userID, string(models.SourceUser), text)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, ErrNotFound
	}
	return &words[0], nil
}

// FindListWordByText looks up a builtin word of a list by its spelling, ignoring case
func (r *WordRepository) FindListWordByText(ctx context.Context, listID, text string) (*models.Word, error) {
	query := r.db.Rebind("SELECT " + wordColumns + " FROM words WHERE list_id = ? AND source = ? AND LOWER(word) = LOWER(?) LIMIT 1")
	words, err := r.selectWords(ctx, query, listID, string(models.SourceBuiltin), text)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, ErrNotFound
	}
	return &words[0], nil
}

// EligibleIDs returns the ids of the user's own words followed by the words
// of the enabled lists
func (r *WordRepository) EligibleIDs(ctx context.Context, userID int64, enabledListIDs []string) ([]string, error) {
	var ids []string
	query := r.db.Rebind("SELECT id FROM words WHERE user_id = ? AND source = ? ORDER BY created_at, id")
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, userID, string(models.SourceUser)); err != nil {
		return nil, fmt.Errorf("failed to get user word ids: %w", err)
	}
	if len(enabledListIDs) == 0 {
		return ids, nil
	}

	listQuery, args, err := sqlx.In(
		"SELECT id FROM words WHERE source = ? AND list_id IN (?) ORDER BY created_at, id",
		string(models.SourceBuiltin), enabledListIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build list words query: %w", err)
	}
	var listIDs []string
	if err := sqlx.SelectContext(ctx, r.db, &listIDs, r.db.Rebind(listQuery), args...); err != nil {
		return nil, fmt.Errorf("failed to get list word ids: %w", err)
	}
	return append(ids, listIDs...), nil
}

func (r *WordRepository) selectWords(ctx context.Context, query string, args ...interface{}) ([]models.Word, error) {
	var rows []wordRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}
	words := make([]models.Word, 0, len(rows))
	for _, row := range rows {
		w, err := row.toModel()
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}

func definitionsOrEmpty(d []models.Definition) []models.Definition {
	if d == nil {
		return []models.Definition{}
	}
	return d
}

func expectRows(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return nil
}
