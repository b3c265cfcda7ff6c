// Package store provides storage backends for NeedlIntake.
//
// This file implements the PostgreSQL-backed question bank.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/needl-health/NeedlIntake/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres question bank based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveQuestion(category, source string, q models.Question) error {
	if _, err := s.db.Exec(`INSERT INTO categories (name, source) VALUES ($1, $2) ON CONFLICT (name, source) DO NOTHING`, category, source); err != nil {
		slog.Error("PostgresStore SaveQuestion category insert failed", "error", err, "category", category)
		return fmt.Errorf("failed to insert category %s: %w", category, err)
	}
	var categoryID int64
	if err := s.db.QueryRow(`SELECT id FROM categories WHERE name = $1 AND source = $2`, category, source).Scan(&categoryID); err != nil {
		slog.Error("PostgresStore SaveQuestion category lookup failed", "error", err, "category", category)
		return fmt.Errorf("failed to look up category %s: %w", category, err)
	}

	var questionID int64
	if err := s.db.QueryRow(`INSERT INTO questions (category_id, question_text, question_type) VALUES ($1, $2, $3) RETURNING id`,
		categoryID, q.Text, q.WireType()).Scan(&questionID); err != nil {
		slog.Error("PostgresStore SaveQuestion insert failed", "error", err, "question", q.Text)
		return fmt.Errorf("failed to insert question: %w", err)
	}

	for _, opt := range q.Options {
		if _, err := s.db.Exec(`INSERT INTO options (question_id, option_text) VALUES ($1, $2)`, questionID, opt); err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
	}
	for _, cond := range q.Conditionals {
		encoded, err := encodeCondition(cond.Condition)
		if err != nil {
			return fmt.Errorf("failed to encode condition: %w", err)
		}
		if _, err := s.db.Exec(`INSERT INTO conditionals (question_id, condition, conditional_question_text) VALUES ($1, $2, $3)`,
			questionID, encoded, cond.FollowUp); err != nil {
			return fmt.Errorf("failed to insert conditional: %w", err)
		}
	}
	slog.Debug("PostgresStore SaveQuestion succeeded", "category", category, "source", source)
	return nil
}

func (s *PostgresStore) ListCategories(source string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM categories WHERE source = $1 ORDER BY id`, source)
	if err != nil {
		slog.Error("PostgresStore ListCategories query failed", "error", err, "source", source)
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

func (s *PostgresStore) QuestionsForCategory(category, source string) ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT q.id, q.question_text, q.question_type
		FROM questions q JOIN categories c ON q.category_id = c.id
		WHERE c.name = $1 AND c.source = $2 ORDER BY q.id`, category, source)
	if err != nil {
		slog.Error("PostgresStore QuestionsForCategory query failed", "error", err, "category", category)
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	return s.collectQuestions(rows)
}

func (s *PostgresStore) QuestionsBySource(source string) ([]models.Question, error) {
	rows, err := s.db.Query(`SELECT q.id, q.question_text, q.question_type
		FROM questions q JOIN categories c ON q.category_id = c.id
		WHERE c.source = $1 ORDER BY q.id`, source)
	if err != nil {
		slog.Error("PostgresStore QuestionsBySource query failed", "error", err, "source", source)
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	return s.collectQuestions(rows)
}

func (s *PostgresStore) collectQuestions(rows *sql.Rows) ([]models.Question, error) {
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

func (s *PostgresStore) optionsFor(questionID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT option_text FROM options WHERE question_id = $1 ORDER BY id`, questionID)
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

func (s *PostgresStore) conditionalsFor(questionID int64) ([]models.Conditional, error) {
	rows, err := s.db.Query(`SELECT condition, conditional_question_text FROM conditionals WHERE question_id = $1 ORDER BY id`, questionID)
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
func (s *PostgresStore) Reset() error {
	if _, err := s.db.Exec(`TRUNCATE conditionals, options, questions, categories RESTART IDENTITY`); err != nil {
		slog.Error("PostgresStore Reset failed", "error", err)
		return fmt.Errorf("failed to clear question bank: %w", err)
	}
	slog.Debug("PostgresStore Reset succeeded")
	return nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
