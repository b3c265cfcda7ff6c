// Package interview provides the session controller state machine.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// Controller orchestrates a single interview session: chief-complaint
// submission, question advancement, answer submission, category skips,
// conditional resolution and summary generation. At most one advancing call
// is in flight at a time; re-entrant triggers are rejected with
// models.ErrBusy rather than queued. Suggestion lookups are exempt from the
// guard and run through the two embedded suggesters.
type Controller struct {
	svc Service

	mu          sync.Mutex
	busy        bool
	categories  []string
	registryErr error
	session     *models.Session
	lastSummary string

	complaintSuggest   *Suggester
	conditionalSuggest *Suggester
}

// NewController creates a controller and fetches the category registry once.
// A registry fetch failure does not fail construction: the controller keeps
// an empty registry and exposes the error via RegistryError.
func NewController(ctx context.Context, svc Service) *Controller {
	c := &Controller{svc: svc}
	c.complaintSuggest = NewSuggester(svc, func(query string) models.AutocompleteRequest {
		return models.AutocompleteRequest{Query: query}
	})
	c.conditionalSuggest = NewSuggester(svc, c.conditionalRequest)

	categories, err := svc.ListCategories(ctx)
	if err != nil {
		slog.Error("Controller failed to fetch category registry", "error", err)
		c.registryErr = fmt.Errorf("failed to fetch categories: %w", err)
		return c
	}
	c.categories = categories
	slog.Debug("Controller category registry loaded", "count", len(categories))
	return c
}

// begin acquires the advancing-call guard.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return models.ErrBusy
	}
	c.busy = true
	return nil
}

// end releases the advancing-call guard.
func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Busy reports whether an advancing call is currently in flight. The UI uses
// this as the global busy indicator.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// RegistryError returns the persistent error recorded when the category
// registry could not be fetched at construction, nil otherwise.
func (c *Controller) RegistryError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registryErr
}

// Categories returns the registry contents.
func (c *Controller) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.categories...)
}

// Snapshot returns a copy of the session state and whether a session exists.
func (c *Controller) Snapshot() (models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.Session{}, false
	}
	return c.session.Snapshot(), true
}

// Summary returns the most recently generated narrative summary.
func (c *Controller) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSummary
}

// SubmitChiefComplaint starts the interview. An empty trimmed complaint is
// rejected locally. On a successful prediction (or registry fallback) the
// session is created with the seeded context and the first question for the
// category is fetched. On transport failure no session is created.
func (c *Controller) SubmitChiefComplaint(ctx context.Context, complaint string) error {
	trimmed := strings.TrimSpace(complaint)
	if trimmed == "" {
		return models.ErrEmptyComplaint
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	predicted, err := c.svc.PredictCategory(ctx, trimmed)
	if err != nil {
		slog.Error("Controller category prediction failed", "error", err)
		return fmt.Errorf("failed to predict category: %w", err)
	}
	if predicted == "" {
		c.mu.Lock()
		if len(c.categories) == 0 {
			c.mu.Unlock()
			slog.Warn("Controller has no fallback category", "complaint", trimmed)
			return models.ErrNoCategoryAvailable
		}
		predicted = c.categories[0]
		c.mu.Unlock()
		slog.Info("Controller falling back to first registry category", "category", predicted)
	}

	c.mu.Lock()
	session := models.NewSession(trimmed)
	session.MarkAsked(predicted)
	session.CurrentCategory = predicted
	c.session = session
	c.mu.Unlock()

	slog.Info("Controller interview started", "category", predicted)
	return c.askQuestions(ctx, predicted)
}

// askQuestions fetches the next question for a category and installs it as
// the current question; a zero question marks the category exhausted. The
// caller must hold the advancing-call guard. Transport failure leaves the
// prior question state untouched.
func (c *Controller) askQuestions(ctx context.Context, category string) error {
	c.mu.Lock()
	contextText := c.session.Context
	c.mu.Unlock()

	question, err := c.svc.NextQuestion(ctx, category, contextText)
	if err != nil {
		slog.Error("Controller next question fetch failed", "category", category, "error", err)
		return fmt.Errorf("failed to fetch next question: %w", err)
	}

	c.mu.Lock()
	c.session.CurrentQuestion = question
	c.mu.Unlock()
	if question.IsActive() {
		slog.Debug("Controller question posed", "category", category, "kind", question.Kind)
	} else {
		slog.Debug("Controller category exhausted", "category", category)
	}
	return nil
}

// SubmitAnswer records an answer for the current question. A no-op when no
// question is active. The response is authoritative: returned context,
// category and asked categories replace local state; absent fields keep
// their prior values. Transient conditional state is cleared unconditionally,
// on success and on failure alike.
func (c *Controller) SubmitAnswer(ctx context.Context, answer string) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return models.ErrNoActiveSession
	}
	if !c.session.CurrentQuestion.IsActive() {
		c.mu.Unlock()
		return nil
	}
	if c.busy {
		c.mu.Unlock()
		return models.ErrBusy
	}
	c.busy = true
	req := models.SubmitAnswerRequest{
		Answer:          answer,
		Category:        c.session.CurrentCategory,
		Context:         c.session.Context,
		CurrentQuestion: c.session.CurrentQuestion.Text,
		AskedCategories: append([]string(nil), c.session.AskedCategories...),
	}
	c.mu.Unlock()
	defer c.end()
	defer c.clearTransients()

	result, err := c.svc.SubmitAnswer(ctx, req)
	if err != nil {
		slog.Error("Controller answer submission failed", "error", err)
		return fmt.Errorf("failed to submit answer: %w", err)
	}

	c.mu.Lock()
	if result.Context != "" {
		c.session.Context = result.Context
	}
	if result.Category != "" {
		c.session.CurrentCategory = result.Category
	}
	if result.AskedCategories != nil {
		c.session.AskedCategories = result.AskedCategories
	}
	if result.Question.IsActive() {
		c.session.CurrentQuestion = result.Question
		c.mu.Unlock()
		return nil
	}
	if result.Category != "" {
		c.mu.Unlock()
		return c.askQuestions(ctx, result.Category)
	}
	c.session.CurrentQuestion = models.Question{}
	c.mu.Unlock()
	slog.Debug("Controller answer recorded, category exhausted")
	return nil
}

// SkipQuestion submits the skip sentinel for the current question. Identical
// semantics to SubmitAnswer.
func (c *Controller) SkipQuestion(ctx context.Context) error {
	return c.SubmitAnswer(ctx, models.AnswerSkipped)
}

// SkipCategory marks the current category asked and moves on: an unasked
// predicted category is adopted, otherwise the interview enters the
// secondary phase. The secondary phase token is passed to the question
// service like any category but never recorded in the asked set.
func (c *Controller) SkipCategory(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return models.ErrNoActiveSession
	}
	if c.busy {
		c.mu.Unlock()
		return models.ErrBusy
	}
	c.busy = true
	c.session.MarkAsked(c.session.CurrentCategory)
	contextText := c.session.Context
	asked := append([]string(nil), c.session.AskedCategories...)
	c.mu.Unlock()
	defer c.end()

	predicted, err := c.svc.PredictNextCategory(ctx, contextText, asked)
	if err != nil {
		slog.Error("Controller next category prediction failed", "error", err)
		return fmt.Errorf("failed to predict next category: %w", err)
	}

	c.mu.Lock()
	if predicted != "" && !c.session.HasAsked(predicted) {
		c.session.CurrentCategory = predicted
		c.mu.Unlock()
		slog.Info("Controller skipping to predicted category", "category", predicted)
		return c.askQuestions(ctx, predicted)
	}
	c.session.CurrentCategory = models.SecondaryPhaseCategory
	c.mu.Unlock()
	slog.Info("Controller entering secondary phase")
	return c.askQuestions(ctx, models.SecondaryPhaseCategory)
}

// ChooseConditional resolves the yes/no selection on a conditional question.
// No submits immediately; Yes transitions to pending detail capture.
func (c *Controller) ChooseConditional(ctx context.Context, choice models.ConditionalChoice) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return models.ErrNoActiveSession
	}
	if c.session.CurrentQuestion.Kind != models.QuestionKindConditional {
		c.mu.Unlock()
		return models.ErrNotConditional
	}
	if choice == models.ConditionalNo {
		// The pending choice must stay untouched when the submission is
		// rejected by the busy guard, so it is written only after the guard
		// would admit the call and rolled back if the guard races ahead.
		if c.busy {
			c.mu.Unlock()
			return models.ErrBusy
		}
		c.session.PendingConditionalChoice = models.ConditionalNo
		c.mu.Unlock()
		err := c.SubmitAnswer(ctx, models.AnswerNo)
		if errors.Is(err, models.ErrBusy) {
			c.mu.Lock()
			if c.session != nil {
				c.session.PendingConditionalChoice = ""
			}
			c.mu.Unlock()
		}
		return err
	}
	c.session.PendingConditionalChoice = models.ConditionalYes
	c.mu.Unlock()
	return nil
}

// SubmitConditionalDetail submits the yes branch with the supplied detail.
// Empty trimmed detail is rejected locally with no remote call.
func (c *Controller) SubmitConditionalDetail(ctx context.Context, detail string) error {
	trimmed := strings.TrimSpace(detail)
	if trimmed == "" {
		return models.ErrEmptyConditionalDetail
	}
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return models.ErrNoActiveSession
	}
	if c.session.CurrentQuestion.Kind != models.QuestionKindConditional {
		c.mu.Unlock()
		return models.ErrNotConditional
	}
	c.mu.Unlock()
	return c.SubmitAnswer(ctx, models.ConditionalAnswer(trimmed))
}

// GenerateSummary produces the narrative summary of the accumulated context.
// Side-effect only: session state is unchanged on success and failure.
func (c *Controller) GenerateSummary(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.session == nil || strings.TrimSpace(c.session.Context) == "" {
		c.mu.Unlock()
		return "", models.ErrEmptyContext
	}
	if c.busy {
		c.mu.Unlock()
		return "", models.ErrBusy
	}
	c.busy = true
	contextText := c.session.Context
	c.mu.Unlock()
	defer c.end()

	summary, err := c.svc.GenerateSummary(ctx, contextText)
	if err != nil {
		slog.Error("Controller summary generation failed", "error", err)
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	c.mu.Lock()
	c.lastSummary = summary
	c.mu.Unlock()
	slog.Info("Controller summary generated", "length", len(summary))
	return summary, nil
}

// clearTransients resets the pending conditional selection and the
// conditional detail suggestions. Runs after every answer submission.
func (c *Controller) clearTransients() {
	c.mu.Lock()
	if c.session != nil {
		c.session.ClearTransients()
	}
	c.mu.Unlock()
	c.conditionalSuggest.Clear()
}

// UpdateComplaintInput feeds the chief-complaint suggester with the latest
// typed value.
func (c *Controller) UpdateComplaintInput(ctx context.Context, input string) {
	c.complaintSuggest.Update(ctx, input)
}

// ComplaintSuggestions returns the current chief-complaint suggestions.
func (c *Controller) ComplaintSuggestions() []string {
	return c.complaintSuggest.Suggestions()
}

// SelectComplaintSuggestion accepts a suggestion and resets the suggester so
// the next distinct keystroke fires again.
func (c *Controller) SelectComplaintSuggestion() {
	c.complaintSuggest.Clear()
}

// UpdateConditionalInput feeds the conditional-detail suggester with the
// latest typed value.
func (c *Controller) UpdateConditionalInput(ctx context.Context, input string) {
	c.conditionalSuggest.Update(ctx, input)
}

// ConditionalSuggestions returns the current conditional-detail suggestions.
func (c *Controller) ConditionalSuggestions() []string {
	return c.conditionalSuggest.Suggestions()
}

// conditionalRequest tags conditional-detail lookups with the active
// question and context.
func (c *Controller) conditionalRequest(query string) models.AutocompleteRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := models.AutocompleteRequest{Query: query, Conditional: true}
	if c.session != nil {
		req.Question = c.session.CurrentQuestion.Text
		req.Context = c.session.Context
	}
	return req
}
