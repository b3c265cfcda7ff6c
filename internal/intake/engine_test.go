package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/needl-health/NeedlIntake/internal/models"
	"github.com/needl-health/NeedlIntake/internal/store"
)

// fakeAI is a scripted GenAI client for engine tests.
type fakeAI struct {
	category    string
	categoryErr error

	nextCategory    string
	nextCategoryErr error

	suggestions []string
	suggestErr  error

	summary    string
	summaryErr error
}

func (f *fakeAI) PredictCategory(ctx context.Context, complaint string, categories []string) (string, error) {
	return f.category, f.categoryErr
}

func (f *fakeAI) PredictNextCategory(ctx context.Context, contextText string, remaining []string) (string, error) {
	return f.nextCategory, f.nextCategoryErr
}

func (f *fakeAI) Autocomplete(ctx context.Context, query, question, contextText string, conditional bool) ([]string, error) {
	return f.suggestions, f.suggestErr
}

func (f *fakeAI) Summarize(ctx context.Context, contextText string) (string, error) {
	return f.summary, f.summaryErr
}

// seededStore builds an in-memory bank with two primary categories and a
// secondary pool.
func seededStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewInMemoryStore()

	cond, err := models.NewConditionalQuestion("Any allergies?", []models.Conditional{
		{Condition: models.ConditionValues{"Yes"}, FollowUp: "Which allergies do you have?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mcq, err := models.NewMultipleChoiceQuestion("Rate the pain", []string{"Mild", "Moderate", "Severe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	save := func(category, source string, q models.Question) {
		if err := st.SaveQuestion(category, source, q); err != nil {
			t.Fatalf("failed to seed question: %v", err)
		}
	}
	save("Cardiac", store.SourcePrimary, models.NewFreeTextQuestion("When did the pain start?"))
	save("Cardiac", store.SourcePrimary, cond)
	save("Respiratory", store.SourcePrimary, mcq)
	save("General", store.SourceSecondary, models.NewFreeTextQuestion("Any current medications?"))
	save("General", store.SourceSecondary, models.NewFreeTextQuestion("Any prior surgeries?"))
	return st
}

func TestEngineListCategories(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{})
	categories, err := e.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(categories) != 2 || categories[0] != "Cardiac" || categories[1] != "Respiratory" {
		t.Errorf("unexpected categories: %v", categories)
	}
}

func TestEngineNextQuestionFirstUnanswered(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{})

	q, err := e.NextQuestion(context.Background(), "Cardiac", "Chief complaint: chest pain. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text != "When did the pain start?" {
		t.Errorf("unexpected question: %q", q.Text)
	}

	q, err = e.NextQuestion(context.Background(), "Cardiac", "Chief complaint: chest pain. When did the pain start?: yesterday. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text != "Any allergies?" || q.Kind != models.QuestionKindConditional {
		t.Errorf("unexpected question: %+v", q)
	}
}

func TestEngineConditionalFollowUpActivation(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{})
	base := "Chief complaint: chest pain. When did the pain start?: yesterday. "

	// Yes answer activates the follow-up, posed as free text.
	q, err := e.NextQuestion(context.Background(), "Cardiac", base+"Any allergies?: Yes. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text != "Which allergies do you have?" || q.Kind != models.QuestionKindFreeText {
		t.Errorf("unexpected question: %+v", q)
	}

	// No answer does not activate it; category is exhausted.
	q, err = e.NextQuestion(context.Background(), "Cardiac", base+"Any allergies?: No. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.IsActive() {
		t.Errorf("expected exhausted category, got %q", q.Text)
	}

	// Answered follow-up is not posed again.
	q, err = e.NextQuestion(context.Background(), "Cardiac", base+"Any allergies?: Yes. Which allergies do you have?: penicillin. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.IsActive() {
		t.Errorf("expected exhausted category, got %q", q.Text)
	}
}

func TestEngineSecondaryPoolOrdering(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{})

	q, err := e.NextQuestion(context.Background(), models.SecondaryPhaseCategory, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text != "Any current medications?" {
		t.Errorf("unexpected question: %q", q.Text)
	}

	q, err = e.NextQuestion(context.Background(), models.SecondaryPhaseCategory, "Any current medications?: none. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text != "Any prior surgeries?" {
		t.Errorf("unexpected question: %q", q.Text)
	}
}

func TestEngineSubmitAnswerAppendsAndStaysInCategory(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{})

	result, err := e.SubmitAnswer(context.Background(), models.SubmitAnswerRequest{
		Answer:          "yesterday",
		Category:        "Cardiac",
		Context:         "Chief complaint: chest pain. ",
		CurrentQuestion: "When did the pain start?",
		AskedCategories: []string{"Cardiac"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Chief complaint: chest pain. When did the pain start?: yesterday. "
	if result.Context != want {
		t.Errorf("unexpected context: %q", result.Context)
	}
	if result.Category != "Cardiac" {
		t.Errorf("expected same category, got %q", result.Category)
	}
	if result.Question.Text != "Any allergies?" {
		t.Errorf("unexpected question: %q", result.Question.Text)
	}
}

func TestEngineSubmitAnswerMovesToPredictedCategory(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{nextCategory: "Respiratory"})

	// Cardiac exhausted by this transcript.
	result, err := e.SubmitAnswer(context.Background(), models.SubmitAnswerRequest{
		Answer:          "No",
		Category:        "Cardiac",
		Context:         "Chief complaint: chest pain. When did the pain start?: yesterday. ",
		CurrentQuestion: "Any allergies?",
		AskedCategories: []string{"Cardiac"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Category != "Respiratory" {
		t.Errorf("expected Respiratory, got %q", result.Category)
	}
	if result.Question.Text != "Rate the pain" || result.Question.Kind != models.QuestionKindMultipleChoice {
		t.Errorf("unexpected question: %+v", result.Question)
	}
	found := false
	for _, c := range result.AskedCategories {
		if c == "Respiratory" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected prediction recorded in asked categories: %v", result.AskedCategories)
	}
}

func TestEngineSubmitAnswerFallsBackWithoutPrediction(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{nextCategoryErr: errors.New("model unavailable")})

	result, err := e.SubmitAnswer(context.Background(), models.SubmitAnswerRequest{
		Answer:          "No",
		Category:        "Cardiac",
		Context:         "Chief complaint: chest pain. When did the pain start?: yesterday. ",
		CurrentQuestion: "Any allergies?",
		AskedCategories: []string{"Cardiac"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Category != "Respiratory" {
		t.Errorf("expected bank-order fallback to Respiratory, got %q", result.Category)
	}
}

func TestEngineSubmitAnswerEntersSecondaryThenEnds(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{})

	// All primary categories asked; the secondary pool takes over.
	result, err := e.SubmitAnswer(context.Background(), models.SubmitAnswerRequest{
		Answer:          "Moderate",
		Category:        "Respiratory",
		Context:         "Chief complaint: chest pain. When did the pain start?: yesterday. Any allergies?: No. ",
		CurrentQuestion: "Rate the pain",
		AskedCategories: []string{"Cardiac", "Respiratory"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Category != models.SecondaryPhaseCategory {
		t.Errorf("expected secondary phase, got %q", result.Category)
	}
	if result.Question.Text != "Any current medications?" {
		t.Errorf("unexpected question: %q", result.Question.Text)
	}

	// Exhausting the secondary pool ends the interview: no category, no
	// question, final context returned.
	finalContext := result.Context + "Any current medications?: none. "
	result, err = e.SubmitAnswer(context.Background(), models.SubmitAnswerRequest{
		Answer:          "knee surgery",
		Category:        models.SecondaryPhaseCategory,
		Context:         finalContext,
		CurrentQuestion: "Any prior surgeries?",
		AskedCategories: []string{"Cardiac", "Respiratory"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Category != "" {
		t.Errorf("expected interview done, got category %q", result.Category)
	}
	if result.Question.IsActive() {
		t.Errorf("expected no question, got %q", result.Question.Text)
	}
	if result.Context == "" {
		t.Error("expected final context returned")
	}
}

func TestEnginePredictCategoryDegradesGracefully(t *testing.T) {
	// Empty bank yields no category, not an error.
	e := NewEngine(store.NewInMemoryStore(), &fakeAI{category: "Cardiac"})
	category, err := e.PredictCategory(context.Background(), "chest pain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category != "" {
		t.Errorf("expected no category for empty bank, got %q", category)
	}

	// Model failure also yields no category.
	e = NewEngine(seededStore(t), &fakeAI{categoryErr: errors.New("model unavailable")})
	category, err = e.PredictCategory(context.Background(), "chest pain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category != "" {
		t.Errorf("expected no category on failure, got %q", category)
	}
}

func TestEngineSuggestBestEffort(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{suggestErr: errors.New("model unavailable")})
	options, err := e.Suggest(context.Background(), models.AutocompleteRequest{Query: "ches"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if options != nil {
		t.Errorf("expected no options on failure, got %v", options)
	}

	options, err = e.Suggest(context.Background(), models.AutocompleteRequest{Query: "  "})
	if err != nil || options != nil {
		t.Errorf("expected blank query short-circuit, got %v, %v", options, err)
	}
}

func TestEngineGenerateSummaryArchives(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(seededStore(t), &fakeAI{summary: "HISTORY AND PHYSICAL FINDINGS\n\nChief Complaint: chest pain"}, WithSummaryDir(dir))

	if _, err := e.GenerateSummary(context.Background(), "  "); err != models.ErrEmptyContext {
		t.Errorf("expected ErrEmptyContext, got %v", err)
	}

	summary, err := e.GenerateSummary(context.Background(), "Chief complaint: chest pain. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary == "" {
		t.Fatal("expected summary text")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 archived summary, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != summary {
		t.Error("archived summary does not match returned summary")
	}
}

func TestEnginePredictNextCategoryExhausted(t *testing.T) {
	e := NewEngine(seededStore(t), &fakeAI{nextCategory: "Respiratory"})
	next, err := e.PredictNextCategory(context.Background(), "ctx", []string{"Cardiac", "Respiratory"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != "" {
		t.Errorf("expected no category when all asked, got %q", next)
	}
}

func TestEngineContextEntryFormatRoundTrip(t *testing.T) {
	// Entries appended by SubmitAnswer must parse back out.
	contextText := "Chief complaint: chest pain. "
	contextText += fmt.Sprintf(models.ContextEntryFormat, "When did the pain start?", "yesterday")
	pairs := ParseContext(contextText)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[1].Question != "When did the pain start?" || pairs[1].Answer != "yesterday" {
		t.Errorf("unexpected pair: %+v", pairs[1])
	}
}
