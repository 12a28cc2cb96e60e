package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Drivers accepted by Connect
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DefaultSQLitePath returns the database file used when no DSN is configured
func DefaultSQLitePath(dataDir string) string {
	return filepath.Join(dataDir, "wordsrs.db")
}

// Connect establishes a connection to the database and creates the schema
func Connect(driver, dsn string) error {
	switch driver {
	case "", "sqlite", DriverSQLite:
		driver = DriverSQLite
		// Create data directory if it doesn't exist
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case "postgresql", DriverPostgres:
		driver = DriverPostgres
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	DB = db

	return initializeSchema()
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// The schema sticks to types both SQLite and PostgreSQL accept
var schema = []struct {
	table string
	ddl   string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT false,
			notification_enabled BOOLEAN NOT NULL DEFAULT true,
			notification_hour INTEGER NOT NULL DEFAULT 9,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`},
	{"word_lists", `
		CREATE TABLE IF NOT EXISTS word_lists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT ''
		)`},
	{"words", `
		CREATE TABLE IF NOT EXISTS words (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL DEFAULT 0,
			word TEXT NOT NULL,
			phonetic TEXT NOT NULL DEFAULT '',
			audio TEXT NOT NULL DEFAULT '',
			definitions TEXT NOT NULL DEFAULT '[]',
			example TEXT NOT NULL DEFAULT '',
			example_cn TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			source TEXT NOT NULL,
			list_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`},
	{"card_states", `
		CREATE TABLE IF NOT EXISTS card_states (
			user_id BIGINT NOT NULL,
			word_id TEXT NOT NULL,
			ease_factor DOUBLE PRECISION NOT NULL,
			interval_days INTEGER NOT NULL,
			repetition INTEGER NOT NULL,
			due_date TEXT NOT NULL,
			last_review_date TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			consecutive_easy INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, word_id)
		)`},
	{"review_logs", `
		CREATE TABLE IF NOT EXISTS review_logs (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			word_id TEXT NOT NULL,
			quality INTEGER NOT NULL,
			reviewed_at TEXT NOT NULL,
			review_date TEXT NOT NULL,
			previous_interval INTEGER NOT NULL,
			new_interval INTEGER NOT NULL,
			previous_ef DOUBLE PRECISION NOT NULL,
			new_ef DOUBLE PRECISION NOT NULL,
			mode TEXT NOT NULL
		)`},
	{"quiz_results", `
		CREATE TABLE IF NOT EXISTS quiz_results (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			taken_at TEXT NOT NULL,
			mode TEXT NOT NULL,
			total_questions INTEGER NOT NULL,
			correct_count INTEGER NOT NULL,
			wrong_word_ids TEXT NOT NULL DEFAULT '[]',
			duration_seconds INTEGER NOT NULL
		)`},
	{"user_settings", `
		CREATE TABLE IF NOT EXISTS user_settings (
			user_id BIGINT PRIMARY KEY,
			daily_new_limit INTEGER NOT NULL,
			daily_review_limit INTEGER NOT NULL,
			enabled_list_ids TEXT NOT NULL DEFAULT '[]'
		)`},
	{"streaks", `
		CREATE TABLE IF NOT EXISTS streaks (
			user_id BIGINT PRIMARY KEY,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			last_active_date TEXT NOT NULL DEFAULT '',
			active_dates TEXT NOT NULL DEFAULT '[]'
		)`},
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_words_owner ON words (user_id, source)",
	"CREATE INDEX IF NOT EXISTS idx_words_list ON words (list_id)",
	"CREATE INDEX IF NOT EXISTS idx_card_states_due ON card_states (user_id, due_date)",
	"CREATE INDEX IF NOT EXISTS idx_review_logs_date ON review_logs (user_id, review_date)",
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	for _, t := range schema {
		if _, err := DB.Exec(t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.table, err)
		}
	}
	for _, idx := range indexes {
		if _, err := DB.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
