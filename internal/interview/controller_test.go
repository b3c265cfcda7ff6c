package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// fakeService is a scripted Service implementation for controller tests.
type fakeService struct {
	mu sync.Mutex

	categories    []string
	categoriesErr error

	predictedCategory  string
	predictCategoryErr error

	// questions holds per-category queues consumed by NextQuestion.
	questions       map[string][]models.Question
	nextQuestionErr error

	answerResult AnswerResult
	answerErr    error

	nextCategory    string
	nextCategoryErr error

	summary    string
	summaryErr error

	suggestions []string
	suggestErr  error

	calls          []string
	lastAnswerReq  models.SubmitAnswerRequest
	lastSuggestReq models.AutocompleteRequest

	// answerGate, when set, blocks SubmitAnswer until released.
	answerGate chan struct{}
}

func (f *fakeService) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeService) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeService) ListCategories(ctx context.Context) ([]string, error) {
	f.record("ListCategories")
	return f.categories, f.categoriesErr
}

func (f *fakeService) Suggest(ctx context.Context, req models.AutocompleteRequest) ([]string, error) {
	f.record("Suggest")
	f.mu.Lock()
	f.lastSuggestReq = req
	f.mu.Unlock()
	return f.suggestions, f.suggestErr
}

func (f *fakeService) PredictCategory(ctx context.Context, complaint string) (string, error) {
	f.record("PredictCategory")
	return f.predictedCategory, f.predictCategoryErr
}

func (f *fakeService) NextQuestion(ctx context.Context, category, contextText string) (models.Question, error) {
	f.record("NextQuestion")
	if f.nextQuestionErr != nil {
		return models.Question{}, f.nextQuestionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.questions[category]
	if len(queue) == 0 {
		return models.Question{}, nil
	}
	q := queue[0]
	f.questions[category] = queue[1:]
	return q, nil
}

func (f *fakeService) SubmitAnswer(ctx context.Context, req models.SubmitAnswerRequest) (AnswerResult, error) {
	f.record("SubmitAnswer")
	f.mu.Lock()
	f.lastAnswerReq = req
	gate := f.answerGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.answerResult, f.answerErr
}

func (f *fakeService) PredictNextCategory(ctx context.Context, contextText string, asked []string) (string, error) {
	f.record("PredictNextCategory")
	return f.nextCategory, f.nextCategoryErr
}

func (f *fakeService) GenerateSummary(ctx context.Context, contextText string) (string, error) {
	f.record("GenerateSummary")
	return f.summary, f.summaryErr
}

func newFakeService() *fakeService {
	return &fakeService{
		categories:        []string{"Cardiac", "Respiratory", "Neurological"},
		predictedCategory: "Cardiac",
		questions: map[string][]models.Question{
			"Cardiac": {models.NewFreeTextQuestion("When did the pain start?")},
		},
	}
}

func startedController(t *testing.T, svc *fakeService) *Controller {
	t.Helper()
	c := NewController(context.Background(), svc)
	if err := c.SubmitChiefComplaint(context.Background(), "chest pain"); err != nil {
		t.Fatalf("unexpected error starting interview: %v", err)
	}
	return c
}

func TestSubmitChiefComplaintStartsInterview(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)

	sess, ok := c.Snapshot()
	if !ok {
		t.Fatal("expected an active session")
	}
	if sess.Context != "Chief complaint: chest pain. " {
		t.Errorf("unexpected context seed: %q", sess.Context)
	}
	if sess.CurrentCategory != "Cardiac" {
		t.Errorf("expected Cardiac, got %q", sess.CurrentCategory)
	}
	if len(sess.AskedCategories) != 1 || sess.AskedCategories[0] != "Cardiac" {
		t.Errorf("unexpected asked categories: %v", sess.AskedCategories)
	}
	if sess.CurrentQuestion.Text != "When did the pain start?" {
		t.Errorf("unexpected current question: %q", sess.CurrentQuestion.Text)
	}
}

func TestSubmitChiefComplaintRejectsEmptyWithoutRemoteCall(t *testing.T) {
	svc := newFakeService()
	c := NewController(context.Background(), svc)

	if err := c.SubmitChiefComplaint(context.Background(), "   "); err != models.ErrEmptyComplaint {
		t.Fatalf("expected ErrEmptyComplaint, got %v", err)
	}
	if svc.callCount("PredictCategory") != 0 {
		t.Error("expected no prediction call for empty complaint")
	}
	if _, ok := c.Snapshot(); ok {
		t.Error("expected no session")
	}
}

func TestSubmitChiefComplaintFallsBackToFirstCategory(t *testing.T) {
	svc := newFakeService()
	svc.predictedCategory = ""
	c := startedController(t, svc)

	sess, _ := c.Snapshot()
	if sess.CurrentCategory != "Cardiac" {
		t.Errorf("expected fallback to first registry category, got %q", sess.CurrentCategory)
	}
}

func TestSubmitChiefComplaintNoCategoryAvailable(t *testing.T) {
	svc := newFakeService()
	svc.categories = nil
	svc.predictedCategory = ""
	c := NewController(context.Background(), svc)

	if err := c.SubmitChiefComplaint(context.Background(), "chest pain"); err != models.ErrNoCategoryAvailable {
		t.Fatalf("expected ErrNoCategoryAvailable, got %v", err)
	}
	if _, ok := c.Snapshot(); ok {
		t.Error("expected no session after failed start")
	}
}

func TestSubmitChiefComplaintPredictionFailure(t *testing.T) {
	svc := newFakeService()
	svc.predictCategoryErr = errors.New("connection refused")
	c := NewController(context.Background(), svc)

	if err := c.SubmitChiefComplaint(context.Background(), "chest pain"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := c.Snapshot(); ok {
		t.Error("expected no session after transport failure")
	}
	if c.Busy() {
		t.Error("expected guard released after failure")
	}
}

func TestRegistryFailureKeepsControllerUsable(t *testing.T) {
	svc := newFakeService()
	svc.categoriesErr = errors.New("service down")
	c := NewController(context.Background(), svc)

	if c.RegistryError() == nil {
		t.Error("expected persistent registry error")
	}
	if len(c.Categories()) != 0 {
		t.Errorf("expected empty registry, got %v", c.Categories())
	}

	// With no registry the empty-prediction fallback has nothing to use.
	svc.predictedCategory = ""
	if err := c.SubmitChiefComplaint(context.Background(), "chest pain"); err != models.ErrNoCategoryAvailable {
		t.Errorf("expected ErrNoCategoryAvailable, got %v", err)
	}
}

func TestSubmitAnswerNoSession(t *testing.T) {
	svc := newFakeService()
	c := NewController(context.Background(), svc)
	if err := c.SubmitAnswer(context.Background(), "yesterday"); err != models.ErrNoActiveSession {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestSubmitAnswerNoActiveQuestionIsNoOp(t *testing.T) {
	svc := newFakeService()
	svc.questions = map[string][]models.Question{}
	c := startedController(t, svc)

	if err := c.SubmitAnswer(context.Background(), "yesterday"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.callCount("SubmitAnswer") != 0 {
		t.Error("expected no remote submission without an active question")
	}
}

func TestSubmitAnswerAdoptsAuthoritativeState(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)

	svc.answerResult = AnswerResult{
		Context:         "Chief complaint: chest pain. When did the pain start?: yesterday. ",
		Category:        "Respiratory",
		AskedCategories: []string{"Cardiac", "Respiratory"},
		Question:        models.NewFreeTextQuestion("Any shortness of breath?"),
	}
	if err := c.SubmitAnswer(context.Background(), "yesterday"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if svc.lastAnswerReq.Answer != "yesterday" {
		t.Errorf("unexpected submitted answer: %q", svc.lastAnswerReq.Answer)
	}
	if svc.lastAnswerReq.CurrentQuestion != "When did the pain start?" {
		t.Errorf("unexpected submitted question: %q", svc.lastAnswerReq.CurrentQuestion)
	}

	sess, _ := c.Snapshot()
	if sess.Context != svc.answerResult.Context {
		t.Errorf("context not adopted: %q", sess.Context)
	}
	if sess.CurrentCategory != "Respiratory" {
		t.Errorf("category not adopted: %q", sess.CurrentCategory)
	}
	if len(sess.AskedCategories) != 2 {
		t.Errorf("asked categories not adopted: %v", sess.AskedCategories)
	}
	if sess.CurrentQuestion.Text != "Any shortness of breath?" {
		t.Errorf("question not adopted: %q", sess.CurrentQuestion.Text)
	}
}

func TestSubmitAnswerKeepsLocalStateWhenFieldsAbsent(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)
	before, _ := c.Snapshot()

	svc.answerResult = AnswerResult{Question: models.NewFreeTextQuestion("Does it radiate?")}
	if err := c.SubmitAnswer(context.Background(), "yesterday"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := c.Snapshot()
	if sess.Context != before.Context {
		t.Errorf("context changed despite absent field: %q", sess.Context)
	}
	if sess.CurrentCategory != before.CurrentCategory {
		t.Errorf("category changed despite absent field: %q", sess.CurrentCategory)
	}
	if len(sess.AskedCategories) != len(before.AskedCategories) {
		t.Errorf("asked categories changed despite absent field: %v", sess.AskedCategories)
	}
}

func TestSubmitAnswerFetchesQuestionsWhenOnlyCategoryReturned(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)

	svc.mu.Lock()
	svc.questions["Respiratory"] = []models.Question{models.NewFreeTextQuestion("Any coughing?")}
	svc.mu.Unlock()
	svc.answerResult = AnswerResult{Category: "Respiratory"}
	if err := c.SubmitAnswer(context.Background(), "yesterday"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := c.Snapshot()
	if sess.CurrentQuestion.Text != "Any coughing?" {
		t.Errorf("expected follow-up fetch for returned category, got %q", sess.CurrentQuestion.Text)
	}
}

func TestSubmitAnswerClearsQuestionWhenInterviewDone(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)

	svc.answerResult = AnswerResult{Context: "final transcript"}
	if err := c.SubmitAnswer(context.Background(), "yesterday"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := c.Snapshot()
	if sess.CurrentQuestion.IsActive() {
		t.Errorf("expected no active question, got %q", sess.CurrentQuestion.Text)
	}
	if sess.Context != "final transcript" {
		t.Errorf("expected adopted context, got %q", sess.Context)
	}
}

func TestSubmitAnswerFailureClearsTransients(t *testing.T) {
	svc := newFakeService()
	cond, err := models.NewConditionalQuestion("Any allergies?", []models.Conditional{
		{Condition: models.ConditionValues{"Yes"}, FollowUp: "Which ones?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.questions = map[string][]models.Question{"Cardiac": {cond}}
	c := startedController(t, svc)

	if err := c.ChooseConditional(context.Background(), models.ConditionalYes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.answerErr = errors.New("connection reset")
	if err := c.SubmitConditionalDetail(context.Background(), "penicillin"); err == nil {
		t.Fatal("expected error")
	}

	sess, _ := c.Snapshot()
	if sess.PendingConditionalChoice != "" {
		t.Errorf("expected pending choice cleared on failure, got %q", sess.PendingConditionalChoice)
	}
	if !sess.CurrentQuestion.IsActive() {
		t.Error("expected question preserved on failure")
	}
	if c.Busy() {
		t.Error("expected guard released after failure")
	}
}

func TestSubmitAnswerRejectedWhileBusy(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)

	gate := make(chan struct{})
	svc.mu.Lock()
	svc.answerGate = gate
	svc.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- c.SubmitAnswer(context.Background(), "yesterday")
	}()

	// Wait for the in-flight call to take the guard.
	for !c.Busy() {
		time.Sleep(time.Millisecond)
	}
	if err := c.SubmitAnswer(context.Background(), "again"); err != models.ErrBusy {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if _, err := c.GenerateSummary(context.Background()); err != models.ErrBusy {
		t.Errorf("expected ErrBusy from summary, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from first submission: %v", err)
	}
	if c.Busy() {
		t.Error("expected guard released")
	}
}

func TestChooseConditionalNoRejectedWhileBusyLeavesSessionUntouched(t *testing.T) {
	svc := newFakeService()
	cond, err := models.NewConditionalQuestion("Any allergies?", []models.Conditional{
		{Condition: models.ConditionValues{"Yes"}, FollowUp: "Which ones?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.questions = map[string][]models.Question{"Cardiac": {cond}}
	c := startedController(t, svc)

	gate := make(chan struct{})
	svc.mu.Lock()
	svc.answerGate = gate
	svc.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- c.SubmitAnswer(context.Background(), "No")
	}()

	for !c.Busy() {
		time.Sleep(time.Millisecond)
	}
	if err := c.ChooseConditional(context.Background(), models.ConditionalNo); err != models.ErrBusy {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	sess, _ := c.Snapshot()
	if sess.PendingConditionalChoice != "" {
		t.Errorf("rejected call mutated session: pending choice %q", sess.PendingConditionalChoice)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from first submission: %v", err)
	}
}

func TestSkipQuestionSubmitsSentinel(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)

	if err := c.SkipQuestion(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.lastAnswerReq.Answer != models.AnswerSkipped {
		t.Errorf("expected %q, got %q", models.AnswerSkipped, svc.lastAnswerReq.Answer)
	}
}

func TestSkipCategoryAdoptsUnaskedPrediction(t *testing.T) {
	svc := newFakeService()
	svc.questions["Respiratory"] = []models.Question{models.NewFreeTextQuestion("Any coughing?")}
	c := startedController(t, svc)

	svc.nextCategory = "Respiratory"
	if err := c.SkipCategory(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := c.Snapshot()
	if sess.CurrentCategory != "Respiratory" {
		t.Errorf("expected Respiratory, got %q", sess.CurrentCategory)
	}
	if !sess.HasAsked("Cardiac") {
		t.Error("expected skipped category marked asked")
	}
	if sess.CurrentQuestion.Text != "Any coughing?" {
		t.Errorf("unexpected question: %q", sess.CurrentQuestion.Text)
	}
}

func TestSkipCategoryEntersSecondaryPhaseOnAskedPrediction(t *testing.T) {
	svc := newFakeService()
	svc.questions[models.SecondaryPhaseCategory] = []models.Question{models.NewFreeTextQuestion("Any current medications?")}
	c := startedController(t, svc)

	// Prediction returns the category that was just marked asked.
	svc.nextCategory = "Cardiac"
	if err := c.SkipCategory(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, _ := c.Snapshot()
	if sess.CurrentCategory != models.SecondaryPhaseCategory {
		t.Errorf("expected secondary phase, got %q", sess.CurrentCategory)
	}
	if sess.HasAsked(models.SecondaryPhaseCategory) {
		t.Error("secondary phase token must never enter the asked set")
	}
	if sess.CurrentQuestion.Text != "Any current medications?" {
		t.Errorf("unexpected question: %q", sess.CurrentQuestion.Text)
	}
}

func TestChooseConditionalNoSubmitsImmediately(t *testing.T) {
	svc := newFakeService()
	cond, err := models.NewConditionalQuestion("Any allergies?", []models.Conditional{
		{Condition: models.ConditionValues{"Yes"}, FollowUp: "Which ones?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.questions = map[string][]models.Question{"Cardiac": {cond}}
	c := startedController(t, svc)

	if err := c.ChooseConditional(context.Background(), models.ConditionalNo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.lastAnswerReq.Answer != models.AnswerNo {
		t.Errorf("expected %q, got %q", models.AnswerNo, svc.lastAnswerReq.Answer)
	}
}

func TestChooseConditionalYesDefersSubmission(t *testing.T) {
	svc := newFakeService()
	cond, err := models.NewConditionalQuestion("Any allergies?", []models.Conditional{
		{Condition: models.ConditionValues{"Yes"}, FollowUp: "Which ones?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.questions = map[string][]models.Question{"Cardiac": {cond}}
	c := startedController(t, svc)

	if err := c.ChooseConditional(context.Background(), models.ConditionalYes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.callCount("SubmitAnswer") != 0 {
		t.Error("expected no submission for a pending yes choice")
	}
	sess, _ := c.Snapshot()
	if sess.PendingConditionalChoice != models.ConditionalYes {
		t.Errorf("expected pending yes, got %q", sess.PendingConditionalChoice)
	}

	if err := c.SubmitConditionalDetail(context.Background(), "  penicillin  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.lastAnswerReq.Answer != "Yes - penicillin" {
		t.Errorf("unexpected submitted answer: %q", svc.lastAnswerReq.Answer)
	}
}

func TestSubmitConditionalDetailRejectsEmpty(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)
	if err := c.SubmitConditionalDetail(context.Background(), "   "); err != models.ErrEmptyConditionalDetail {
		t.Errorf("expected ErrEmptyConditionalDetail, got %v", err)
	}
}

func TestConditionalOperationsRejectNonConditionalQuestion(t *testing.T) {
	svc := newFakeService()
	c := startedController(t, svc)

	if err := c.ChooseConditional(context.Background(), models.ConditionalYes); err != models.ErrNotConditional {
		t.Errorf("expected ErrNotConditional, got %v", err)
	}
	if err := c.SubmitConditionalDetail(context.Background(), "detail"); err != models.ErrNotConditional {
		t.Errorf("expected ErrNotConditional, got %v", err)
	}
}

func TestGenerateSummary(t *testing.T) {
	svc := newFakeService()
	c := NewController(context.Background(), svc)

	if _, err := c.GenerateSummary(context.Background()); err != models.ErrEmptyContext {
		t.Errorf("expected ErrEmptyContext without a session, got %v", err)
	}

	c = startedController(t, svc)
	svc.summary = "HISTORY AND PHYSICAL FINDINGS"
	summary, err := c.GenerateSummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "HISTORY AND PHYSICAL FINDINGS" {
		t.Errorf("unexpected summary: %q", summary)
	}
	if c.Summary() != summary {
		t.Errorf("summary not retained: %q", c.Summary())
	}

	// Session state untouched by summary generation.
	sess, _ := c.Snapshot()
	if sess.CurrentQuestion.Text != "When did the pain start?" {
		t.Errorf("summary mutated session state: %q", sess.CurrentQuestion.Text)
	}
}
