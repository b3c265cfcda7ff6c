// Package store provides storage backends for NeedlIntake.
//
// This file implements the SQLite-backed question bank.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/needl-health/NeedlIntake/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite question bank with the given DSN.
// The DSN is a file path; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveQuestion(category, source string, q models.Question) error {
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO categories (name, source) VALUES (?, ?)`, category, source); err != nil {
		slog.Error("SQLiteStore SaveQuestion category insert failed", "error", err, "category", category)
		return fmt.Errorf("failed to insert category %s: %w", category, err)
	}
	var categoryID int64
	if err := s.db.QueryRow(`SELECT id FROM categories WHERE name = ? AND source = ?`, category, source).Scan(&categoryID); err != nil {
		slog.Error("SQLiteStore SaveQuestion category lookup failed", "error", err, "category", category)
		return fmt.Errorf("failed to look up category %s: %w", category, err)
	}

	res, err := s.db.Exec(`INSERT INTO questions (category_id, question_text, question_type) VALUES (?, ?, ?)`,
		categoryID, q.Text, q.WireType())
	if err != nil {
		slog.Error("SQLiteStore SaveQuestion insert failed", "error", err, "question", q.Text)
		return fmt.Errorf("failed to insert question: %w", err)
	}
	questionID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to resolve question id: %w", err)
	}

	for _, opt := range q.Options {
		if _, err := s.db.Exec(`INSERT INTO options (question_id, option_text) VALUES (?, ?)`, questionID, opt); err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
	}
	for _, cond := range q.Conditionals {
		encoded, err := encodeCondition(cond.Condition)
		if err != nil {
			return fmt.Errorf("failed to encode condition: %w", err)
		}
		if _, err := s.db.Exec(`INSERT INTO conditionals (question_id, condition, conditional_question_text) VALUES (?, ?, ?)`,
			questionID, encoded, cond.FollowUp); err != nil {
			return fmt.Errorf("failed to insert conditional: %w", err)
		}
	}
	slog.Debug("SQLiteStore SaveQuestion succeeded", "category", category, "source", source)
	return nil
}

func (s *SQLiteStore) ListCategories(source string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM categories WHERE source = ? ORDER BY id`, source)
	if err != nil {
		slog.Error("SQLiteStore ListCategories query failed", "error", err, "source", source)
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category rows: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) QuestionsForCategory(category, source string) ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT q.id, q.question_text, q.question_type
		FROM questions q JOIN categories c ON q.category_id = c.id
		WHERE c.name = ? AND c.source = ? ORDER BY q.id`, category, source)
	if err != nil {
		slog.Error("SQLiteStore QuestionsForCategory query failed", "error", err, "category", category)
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	return s.collectQuestions(rows)
}

func (s *SQLiteStore) QuestionsBySource(source string) ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT q.id, q.question_text, q.question_type
		FROM questions q JOIN categories c ON q.category_id = c.id
		WHERE c.source = ? ORDER BY q.id`, source)
	if err != nil {
		slog.Error("SQLiteStore QuestionsBySource query failed", "error", err, "source", source)
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	return s.collectQuestions(rows)
}

// collectQuestions materializes question rows together with their options
// and conditionals.
func (s *SQLiteStore) collectQuestions(rows *sql.Rows) ([]models.Question, error) {
	defer rows.Close()

	type row struct {
		id   int64
		text string
	}
	var scanned []row
	for rows.Next() {
		var r row
		var typeTag string
		if err := rows.Scan(&r.id, &r.text, &typeTag); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}

	var questions []models.Question
	for _, r := range scanned {
		options, err := s.optionsFor(r.id)
		if err != nil {
			return nil, err
		}
		conditionals, err := s.conditionalsFor(r.id)
		if err != nil {
			return nil, err
		}
		questions = append(questions, models.QuestionFromWire(r.text, options, conditionals))
	}
	return questions, nil
}

func (s *SQLiteStore) optionsFor(questionID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT option_text FROM options WHERE question_id = ? ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	var options []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan option row: %w", err)
		}
		options = append(options, text)
	}
	return options, rows.Err()
}

func (s *SQLiteStore) conditionalsFor(questionID int64) ([]models.Conditional, error) {
	rows, err := s.db.Query(`SELECT condition, conditional_question_text FROM conditionals WHERE question_id = ? ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conditionals: %w", err)
	}
	defer rows.Close()

	var conditionals []models.Conditional
	for rows.Next() {
		var raw, followUp string
		if err := rows.Scan(&raw, &followUp); err != nil {
			return nil, fmt.Errorf("failed to scan conditional row: %w", err)
		}
		conditionals = append(conditionals, models.Conditional{Condition: decodeCondition(raw), FollowUp: followUp})
	}
	return conditionals, rows.Err()
}

// Reset deletes all question bank rows so the bank can be reseeded.
func (s *SQLiteStore) Reset() error {
	for _, table := range []string{"conditionals", "options", "questions", "categories"} {
		if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
			slog.Error("SQLiteStore Reset failed", "error", err, "table", table)
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	slog.Debug("SQLiteStore Reset succeeded")
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
