// Package store provides question bank storage backends for NeedlIntake.
//
// The bank holds the category-scoped interview questions plus the secondary
// phase pool, keyed by the JSON file each row was seeded from. SQLite and
// PostgreSQL backends share the same schema; the in-memory store backs tests
// and DSN-less development runs.
package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// Question bank sources. The source column records which seed file a row
// came from; the secondary pool is everything seeded from the part2 file.
const (
	SourcePrimary   = "questions.json"
	SourceSecondary = "part2.json"
)

// Store is the question bank contract used by the intake engine and loader.
type Store interface {
	// SaveQuestion appends a question to a category under a source.
	SaveQuestion(category, source string, q models.Question) error
	// ListCategories returns the category names for a source in insertion order.
	ListCategories(source string) ([]string, error)
	// QuestionsForCategory returns a category's questions in insertion order.
	QuestionsForCategory(category, source string) ([]models.Question, error)
	// QuestionsBySource returns every question under a source, flattened
	// across categories in insertion order.
	QuestionsBySource(source string) ([]models.Question, error)
	// Reset clears the whole bank so it can be reseeded.
	Reset() error
	// Close releases the backend.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// bankEntry keeps a category's questions in insertion order.
type bankEntry struct {
	category  string
	questions []models.Question
}

// InMemoryStore is a mutex-guarded in-memory question bank.
type InMemoryStore struct {
	mu    sync.RWMutex
	banks map[string][]*bankEntry // keyed by source
}

// NewInMemoryStore creates an empty in-memory question bank.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{banks: make(map[string][]*bankEntry)}
}

// SaveQuestion appends a question to a category under a source.
func (s *InMemoryStore) SaveQuestion(category, source string, q models.Question) error {
	if category == "" || source == "" {
		return fmt.Errorf("category and source are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.banks[source] {
		if entry.category == category {
			entry.questions = append(entry.questions, q)
			return nil
		}
	}
	s.banks[source] = append(s.banks[source], &bankEntry{category: category, questions: []models.Question{q}})
	return nil
}

// ListCategories returns the category names for a source in insertion order.
func (s *InMemoryStore) ListCategories(source string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, entry := range s.banks[source] {
		names = append(names, entry.category)
	}
	return names, nil
}

// QuestionsForCategory returns a category's questions in insertion order.
func (s *InMemoryStore) QuestionsForCategory(category, source string) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.banks[source] {
		if entry.category == category {
			return append([]models.Question(nil), entry.questions...), nil
		}
	}
	return nil, nil
}

// QuestionsBySource returns every question under a source.
func (s *InMemoryStore) QuestionsBySource(source string) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var questions []models.Question
	for _, entry := range s.banks[source] {
		questions = append(questions, entry.questions...)
	}
	return questions, nil
}

// Reset clears the bank.
func (s *InMemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks = make(map[string][]*bankEntry)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
