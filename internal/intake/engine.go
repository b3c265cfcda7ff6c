package intake

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/needl-health/NeedlIntake/internal/genai"
	"github.com/needl-health/NeedlIntake/internal/interview"
	"github.com/needl-health/NeedlIntake/internal/models"
	"github.com/needl-health/NeedlIntake/internal/store"
)

// Engine implements interview.Service on top of the question bank and the
// GenAI client. Question selection is deterministic; only category
// prediction, autocomplete and summaries go through the model. GenAI
// failures on predictions and autocomplete degrade to "no value" so the
// interview can fall back instead of stalling.
type Engine struct {
	store      store.Store
	ai         genai.ClientInterface
	summaryDir string
}

// Option configures the engine.
type Option func(*Engine)

// WithSummaryDir makes the engine archive each generated summary as a text
// file in the given directory.
func WithSummaryDir(dir string) Option {
	return func(e *Engine) { e.summaryDir = dir }
}

// NewEngine creates an intake engine over the given question bank and GenAI
// client.
func NewEngine(st store.Store, ai genai.ClientInterface, opts ...Option) *Engine {
	e := &Engine{store: st, ai: ai}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListCategories returns the primary question bank categories.
func (e *Engine) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := e.store.ListCategories(store.SourcePrimary)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Suggest returns autocomplete options for a partial input. Best effort:
// model failures are logged and yield no suggestions.
func (e *Engine) Suggest(ctx context.Context, req models.AutocompleteRequest) ([]string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, nil
	}
	options, err := e.ai.Autocomplete(ctx, req.Query, req.Question, req.Context, req.Conditional)
	if err != nil {
		slog.Warn("Engine autocomplete failed", "error", err)
		return nil, nil
	}
	return options, nil
}

// PredictCategory maps a complaint to a bank category. A prediction failure
// or an empty bank yields no category rather than an error, triggering the
// client's registry fallback.
func (e *Engine) PredictCategory(ctx context.Context, complaint string) (string, error) {
	categories, err := e.store.ListCategories(store.SourcePrimary)
	if err != nil {
		return "", fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		return "", nil
	}
	predicted, err := e.ai.PredictCategory(ctx, complaint, categories)
	if err != nil {
		slog.Warn("Engine category prediction failed", "error", err)
		return "", nil
	}
	return predicted, nil
}

// NextQuestion returns the next unanswered question for a category, or the
// zero question when the category is exhausted. The secondary phase token
// selects the secondary pool.
func (e *Engine) NextQuestion(ctx context.Context, category, contextText string) (models.Question, error) {
	if category == models.SecondaryPhaseCategory {
		return e.nextSecondary(contextText)
	}
	return e.nextForCategory(category, contextText)
}

// nextForCategory picks the first unanswered main question, then the first
// activated, unanswered conditional follow-up. Follow-ups are posed as free
// text.
func (e *Engine) nextForCategory(category, contextText string) (models.Question, error) {
	questions, err := e.store.QuestionsForCategory(category, store.SourcePrimary)
	if err != nil {
		return models.Question{}, fmt.Errorf("failed to load questions for %s: %w", category, err)
	}
	pairs := ParseContext(contextText)
	answered := answeredSet(pairs)

	for _, q := range questions {
		if !answered[strings.ToLower(q.Text)] {
			return q, nil
		}
	}

	for _, q := range questions {
		if q.Kind != models.QuestionKindConditional {
			continue
		}
		baseAnswer, ok := answerFor(pairs, q.Text)
		if !ok {
			continue
		}
		for _, cond := range q.Conditionals {
			if answered[strings.ToLower(cond.FollowUp)] {
				continue
			}
			if cond.Condition.Matches(baseAnswer) {
				return models.NewFreeTextQuestion(cond.FollowUp), nil
			}
		}
	}
	return models.Question{}, nil
}

// nextSecondary picks the first unanswered question from the secondary pool.
func (e *Engine) nextSecondary(contextText string) (models.Question, error) {
	questions, err := e.store.QuestionsBySource(store.SourceSecondary)
	if err != nil {
		return models.Question{}, fmt.Errorf("failed to load secondary questions: %w", err)
	}
	answered := answeredSet(ParseContext(contextText))
	for _, q := range questions {
		if !answered[strings.ToLower(q.Text)] {
			return q, nil
		}
	}
	return models.Question{}, nil
}

// SubmitAnswer appends the answer to the transcript and routes to the next
// question: same category first, then a predicted category, then the first
// remaining category, then the secondary pool, then done.
func (e *Engine) SubmitAnswer(ctx context.Context, req models.SubmitAnswerRequest) (interview.AnswerResult, error) {
	contextText := req.Context
	if req.CurrentQuestion != "" && req.Answer != "" {
		contextText += fmt.Sprintf(models.ContextEntryFormat, req.CurrentQuestion, req.Answer)
	}
	asked := append([]string(nil), req.AskedCategories...)

	if req.Category == models.SecondaryPhaseCategory {
		q, err := e.nextSecondary(contextText)
		if err != nil {
			return interview.AnswerResult{}, err
		}
		if q.IsActive() {
			return interview.AnswerResult{Context: contextText, Category: models.SecondaryPhaseCategory, AskedCategories: asked, Question: q}, nil
		}
		return interview.AnswerResult{Context: contextText, AskedCategories: asked}, nil
	}

	q, err := e.nextForCategory(req.Category, contextText)
	if err != nil {
		return interview.AnswerResult{}, err
	}
	if q.IsActive() {
		return interview.AnswerResult{Context: contextText, Category: req.Category, AskedCategories: asked, Question: q}, nil
	}

	asked = appendIfMissing(asked, req.Category)
	remaining, err := e.remainingCategories(asked)
	if err != nil {
		return interview.AnswerResult{}, err
	}
	if len(remaining) == 0 {
		return e.moveToSecondary(contextText, asked)
	}

	next, err := e.ai.PredictNextCategory(ctx, contextText, remaining)
	if err != nil {
		slog.Warn("Engine next category prediction failed", "error", err)
		next = ""
	}
	if next != "" {
		asked = appendIfMissing(asked, next)
		q, err := e.nextForCategory(next, contextText)
		if err != nil {
			return interview.AnswerResult{}, err
		}
		if q.IsActive() {
			return interview.AnswerResult{Context: contextText, Category: next, AskedCategories: asked, Question: q}, nil
		}
	}
	return e.fallbackNoPrediction(contextText, asked)
}

// fallbackNoPrediction walks the remaining categories in bank order until
// one still has questions, then falls through to the secondary pool.
func (e *Engine) fallbackNoPrediction(contextText string, asked []string) (interview.AnswerResult, error) {
	for {
		remaining, err := e.remainingCategories(asked)
		if err != nil {
			return interview.AnswerResult{}, err
		}
		if len(remaining) == 0 {
			return e.moveToSecondary(contextText, asked)
		}
		category := remaining[0]
		asked = appendIfMissing(asked, category)
		q, err := e.nextForCategory(category, contextText)
		if err != nil {
			return interview.AnswerResult{}, err
		}
		if q.IsActive() {
			return interview.AnswerResult{Context: contextText, Category: category, AskedCategories: asked, Question: q}, nil
		}
	}
}

// moveToSecondary enters the secondary pool, or ends the interview when it
// too is exhausted.
func (e *Engine) moveToSecondary(contextText string, asked []string) (interview.AnswerResult, error) {
	q, err := e.nextSecondary(contextText)
	if err != nil {
		return interview.AnswerResult{}, err
	}
	if q.IsActive() {
		return interview.AnswerResult{Context: contextText, Category: models.SecondaryPhaseCategory, AskedCategories: asked, Question: q}, nil
	}
	return interview.AnswerResult{Context: contextText, AskedCategories: asked}, nil
}

// PredictNextCategory picks the next category among those not yet asked.
// Prediction failures yield no category.
func (e *Engine) PredictNextCategory(ctx context.Context, contextText string, asked []string) (string, error) {
	remaining, err := e.remainingCategories(asked)
	if err != nil {
		return "", err
	}
	if len(remaining) == 0 {
		return "", nil
	}
	next, err := e.ai.PredictNextCategory(ctx, contextText, remaining)
	if err != nil {
		slog.Warn("Engine next category prediction failed", "error", err)
		return "", nil
	}
	return next, nil
}

// GenerateSummary produces the narrative summary and optionally archives it.
func (e *Engine) GenerateSummary(ctx context.Context, contextText string) (string, error) {
	if strings.TrimSpace(contextText) == "" {
		return "", models.ErrEmptyContext
	}
	summary, err := e.ai.Summarize(ctx, contextText)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	if e.summaryDir != "" {
		e.archiveSummary(summary)
	}
	return summary, nil
}

// archiveSummary writes the summary to a timestamped file. Archive failures
// are logged only; the summary is still returned to the caller.
func (e *Engine) archiveSummary(summary string) {
	if err := os.MkdirAll(e.summaryDir, 0755); err != nil {
		slog.Warn("Engine failed to create summary directory", "error", err, "dir", e.summaryDir)
		return
	}
	name := fmt.Sprintf("summary_%s.txt", time.Now().Format("20060102150405"))
	path := filepath.Join(e.summaryDir, name)
	if err := os.WriteFile(path, []byte(summary), 0644); err != nil {
		slog.Warn("Engine failed to archive summary", "error", err, "path", path)
		return
	}
	slog.Info("Engine archived summary", "path", path)
}

// remainingCategories returns bank categories not yet asked, in bank order.
func (e *Engine) remainingCategories(asked []string) ([]string, error) {
	categories, err := e.store.ListCategories(store.SourcePrimary)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	askedSet := make(map[string]bool, len(asked))
	for _, c := range asked {
		askedSet[c] = true
	}
	var remaining []string
	for _, c := range categories {
		if !askedSet[c] {
			remaining = append(remaining, c)
		}
	}
	return remaining, nil
}

// appendIfMissing adds a category to the asked list if absent.
func appendIfMissing(asked []string, category string) []string {
	for _, c := range asked {
		if c == category {
			return asked
		}
	}
	return append(asked, category)
}
