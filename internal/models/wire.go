// Package models defines the wire types for the question service protocol.
//
// Field names follow the established backend contract; empty or omitted
// fields mean "no value" and clients fall back to their local state.
package models

// CategoriesResponse is the body of GET /get_categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// AutocompleteRequest is the body of POST /autocomplete. Question and Context
// are set only when completing an answer to a posed question; Conditional
// marks detail capture for the yes branch of a conditional question.
type AutocompleteRequest struct {
	Query       string `json:"query"`
	Question    string `json:"question,omitempty"`
	Context     string `json:"context,omitempty"`
	Conditional bool   `json:"conditional_question,omitempty"`
}

// AutocompleteResponse carries suggestion options for a partial input.
type AutocompleteResponse struct {
	Options []string `json:"options"`
}

// PredictCategoryRequest is the body of POST /predict_category.
type PredictCategoryRequest struct {
	Complaint string `json:"complaint"`
}

// PredictCategoryResponse carries the predicted category, empty when the
// predictor found no match.
type PredictCategoryResponse struct {
	Category string `json:"category"`
}

// AskQuestionsRequest is the body of POST /ask_questions.
type AskQuestionsRequest struct {
	Category string `json:"category"`
	Context  string `json:"context"`
}

// AskQuestionsResponse carries the next question for a category. An empty
// NextQuestion means the category is exhausted.
type AskQuestionsResponse struct {
	NextQuestion string        `json:"next_question"`
	Type         string        `json:"type,omitempty"`
	Options      []string      `json:"options,omitempty"`
	Conditionals []Conditional `json:"conditionals,omitempty"`
}

// Question converts the response into a question descriptor.
func (r AskQuestionsResponse) Question() Question {
	return QuestionFromWire(r.NextQuestion, r.Options, r.Conditionals)
}

// SubmitAnswerRequest is the body of POST /submit_answer.
type SubmitAnswerRequest struct {
	Answer          string   `json:"answer"`
	Category        string   `json:"category"`
	Context         string   `json:"context"`
	CurrentQuestion string   `json:"current_question"`
	AskedCategories []string `json:"asked_categories"`
}

// SubmitAnswerResponse is the authoritative outcome of an answer submission.
// Empty Context, Category or nil AskedCategories mean the server left that
// field untouched and the client keeps its local value.
type SubmitAnswerResponse struct {
	Context         string        `json:"context,omitempty"`
	Category        string        `json:"category,omitempty"`
	AskedCategories []string      `json:"asked_categories,omitempty"`
	NextQuestion    string        `json:"next_question,omitempty"`
	CurrentQuestion string        `json:"current_question,omitempty"`
	Type            string        `json:"type,omitempty"`
	Options         []string      `json:"options,omitempty"`
	Conditionals    []Conditional `json:"conditionals,omitempty"`
}

// Question converts the embedded next question, zero when none was returned.
func (r SubmitAnswerResponse) Question() Question {
	return QuestionFromWire(r.NextQuestion, r.Options, r.Conditionals)
}

// PredictNextCategoryRequest is the body of POST /predict_next_category.
type PredictNextCategoryRequest struct {
	Context         string   `json:"context"`
	AskedCategories []string `json:"asked_categories"`
}

// GenerateSummaryRequest is the body of POST /generate_summary.
type GenerateSummaryRequest struct {
	Context string `json:"context"`
}

// GenerateSummaryResponse reports the outcome of summary generation.
type GenerateSummaryResponse struct {
	Success bool   `json:"success"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}
