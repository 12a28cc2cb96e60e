package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

// WordStore is where imported words go
type WordStore interface {
	FindWordByText(ctx context.Context, text string) (*models.Word, error)
	AddWord(ctx context.Context, word *models.Word, state models.CardState) error
	UpdateWord(ctx context.Context, word *models.Word) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath           string // Path to the Excel or CSV file
	WordColumn         string // Column with the word
	PartOfSpeechColumn string // Column with the part of speech
	MeaningColumn      string // Column with the meaning; several meanings are separated by ';'
	ExampleColumn      string // Column with an example sentence
	TagsColumn         string // Column with tags separated by ',' or ';'
	PhoneticColumn     string // Optional column with the transcription
	SheetName          string // Name of the sheet to import
	StartRow           int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		WordColumn:         "A",
		PartOfSpeechColumn: "B",
		MeaningColumn:      "C",
		ExampleColumn:      "D",
		TagsColumn:         "E",
		PhoneticColumn:     "F",
		SheetName:          "Sheet1",
		StartRow:           2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Importer turns spreadsheet rows into user words with initial card states
type Importer struct {
	store WordStore
	model *spaced_repetition.SM2
	now   func() time.Time
}

// NewImporter creates an importer writing to store
func NewImporter(store WordStore, model *spaced_repetition.SM2) *Importer {
	return &Importer{store: store, model: model, now: time.Now}
}

// WithClock replaces the clock used for the initial due date
func (im *Importer) WithClock(now func() time.Time) *Importer {
	im.now = now
	return im
}

// ImportWords imports words from an Excel or CSV file
func (im *Importer) ImportWords(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))

	if ext == ".csv" {
		file, err := os.Open(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer file.Close()
		return im.ImportCSV(ctx, file, config)
	}

	return im.importFromExcel(ctx, config)
}

// importFromExcel imports words from an Excel file
func (im *Importer) importFromExcel(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		im.processRow(ctx, row, config, result, i+1)
	}
	return result, nil
}

// ImportCSV imports words from CSV data
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, config ImportConfig) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	rowNum := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("error reading CSV: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		im.processRow(ctx, row, config, result, rowNum)
	}
	return result, nil
}

// ImportText imports a pasted list with one "word - meaning" pair per line
func (im *Importer) ImportText(ctx context.Context, text string) *ImportResult {
	result := &ImportResult{Errors: make([]string, 0)}
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.TotalProcessed++

		word, meaning, ok := strings.Cut(line, " - ")
		if !ok {
			word, meaning, ok = strings.Cut(line, "-")
		}
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Line %d: invalid format: %s", i+1, strings.TrimSpace(line)))
			continue
		}

		parsed, err := parseRow([]string{word, "", meaning}, ImportConfig{WordColumn: "A", MeaningColumn: "C"})
		if err == nil {
			err = im.saveWord(ctx, parsed, result)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Line %d: %v", i+1, err))
		}
	}
	return result
}

func (im *Importer) processRow(ctx context.Context, row []string, config ImportConfig, result *ImportResult, rowNum int) {
	if isBlank(row) {
		result.Skipped++
		return
	}
	result.TotalProcessed++

	word, err := parseRow(row, config)
	if err == nil {
		err = im.saveWord(ctx, word, result)
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
	}
}

// saveWord creates the word, or updates the user's word with the same spelling
func (im *Importer) saveWord(ctx context.Context, word *models.Word, result *ImportResult) error {
	existing, err := im.store.FindWordByText(ctx, word.Text)
	switch {
	case err == nil:
		word.ID = existing.ID
		if word.Phonetic == "" {
			word.Phonetic = existing.Phonetic
		}
		word.Audio = existing.Audio
		if err := im.store.UpdateWord(ctx, word); err != nil {
			return fmt.Errorf("failed to update word: %w", err)
		}
		result.Updated++
		return nil
	case !errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("failed to search for existing word: %w", err)
	}

	state := im.model.CreateInitialState("", im.now())
	if err := im.store.AddWord(ctx, word, state); err != nil {
		return fmt.Errorf("failed to create word: %w", err)
	}
	result.Created++
	return nil
}

func parseRow(row []string, config ImportConfig) (*models.Word, error) {
	text := cleanWord(cell(row, config.WordColumn))
	if text == "" {
		return nil, fmt.Errorf("word cannot be empty")
	}

	pos := strings.TrimSpace(cell(row, config.PartOfSpeechColumn))
	var defs []models.Definition
	for _, meaning := range strings.Split(cell(row, config.MeaningColumn), ";") {
		if meaning = strings.TrimSpace(meaning); meaning != "" {
			defs = append(defs, models.Definition{PartOfSpeech: pos, Meaning: meaning})
		}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("meaning cannot be empty")
	}

	tags := strings.FieldsFunc(cell(row, config.TagsColumn), func(r rune) bool {
		return r == ',' || r == ';'
	})
	cleanTags := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			cleanTags = append(cleanTags, t)
		}
	}

	return &models.Word{
		Text:        text,
		Phonetic:    strings.TrimSpace(cell(row, config.PhoneticColumn)),
		Definitions: defs,
		Example:     strings.TrimSpace(cell(row, config.ExampleColumn)),
		Tags:        cleanTags,
		Source:      models.SourceUser,
	}, nil
}

// cell returns the value of a lettered column, or "" when the row is too short
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

// cleanWord removes extra information in parentheses, e.g. "go (went, gone)"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
