// Package interview implements the adaptive questionnaire session controller.
//
// The controller owns the in-memory session aggregate and mutates it only
// through named transitions. The classification and question-generation
// backend is opaque; the controller depends on it solely through the Service
// interface defined here.
package interview

import (
	"context"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// AnswerResult is the authoritative outcome of an answer submission. Fields
// with zero values were absent from the response and the caller keeps its
// prior local state.
type AnswerResult struct {
	Context         string
	Category        string
	AskedCategories []string
	Question        models.Question
}

// Service is the remote collaborator contract for the interview. A returned
// empty category or zero question means "no value"; transport failures are
// reported as errors.
type Service interface {
	// ListCategories returns the static list of known topic categories.
	ListCategories(ctx context.Context) ([]string, error)
	// Suggest returns autocomplete options for a partial input. Best effort.
	Suggest(ctx context.Context, req models.AutocompleteRequest) ([]string, error)
	// PredictCategory maps a free-text complaint to a category, empty when
	// no category could be predicted.
	PredictCategory(ctx context.Context, complaint string) (string, error)
	// NextQuestion returns the next unanswered question for a category given
	// the accumulated context. The zero Question means the category is
	// exhausted. The secondary phase token is a valid category argument.
	NextQuestion(ctx context.Context, category, contextText string) (models.Question, error)
	// SubmitAnswer records an answer and returns the authoritative follow-up
	// state.
	SubmitAnswer(ctx context.Context, req models.SubmitAnswerRequest) (AnswerResult, error)
	// PredictNextCategory picks the next category to explore, empty when no
	// unasked category remains or none could be predicted.
	PredictNextCategory(ctx context.Context, contextText string, asked []string) (string, error)
	// GenerateSummary produces the narrative summary of the transcript.
	GenerateSummary(ctx context.Context, contextText string) (string, error)
}
