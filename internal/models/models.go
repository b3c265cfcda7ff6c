// Package models defines the core data structures for NeedlIntake.
//
// It includes the question descriptor variants, the interview session
// aggregate, and the wire types shared by the HTTP client and server.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// QuestionKind discriminates the supported question variants.
type QuestionKind string

const (
	// QuestionKindFreeText is answered with arbitrary typed text.
	QuestionKindFreeText QuestionKind = "free_text"
	// QuestionKindMultipleChoice is answered by selecting one of the options.
	QuestionKindMultipleChoice QuestionKind = "multiple_choice"
	// QuestionKindConditional is a yes/no question whose yes branch requires detail.
	QuestionKindConditional QuestionKind = "conditional"
)

// Reserved literals understood by the question service. These are part of the
// wire contract and must not be changed.
const (
	// SecondaryPhaseCategory is the reserved category token for the fallback
	// question pool used once no further category can be predicted. It is never
	// added to a session's asked categories.
	SecondaryPhaseCategory = "part2"
	// AnswerSkipped is the sentinel answer submitted when a question is skipped.
	AnswerSkipped = "Skipped"
	// AnswerNo is the answer submitted when declining a conditional question.
	AnswerNo = "No"
)

// Context templates. The seed template is the canonical opening of every
// session context and the entry format is how the question service appends
// answered questions.
const (
	ContextSeedFormat  = "Chief complaint: %s. "
	ContextEntryFormat = "%s: %s. "
)

// ConditionalAnswer formats the answer value for the yes branch of a
// conditional question.
func ConditionalAnswer(detail string) string {
	return fmt.Sprintf("Yes - %s", detail)
}

// Error variables for better error handling and testability
var (
	ErrEmptyComplaint         = errors.New("chief complaint cannot be empty")
	ErrEmptyConditionalDetail = errors.New("conditional detail cannot be empty")
	ErrEmptyContext           = errors.New("no context to summarize")
	ErrNoCategoryAvailable    = errors.New("no category available")
	ErrBusy                   = errors.New("another interview call is in flight")
	ErrNoActiveSession        = errors.New("no active interview session")
	ErrNotConditional         = errors.New("current question is not conditional")
	ErrMissingOptions         = errors.New("multiple choice question requires options")
	ErrMissingConditionals    = errors.New("conditional question requires conditional markers")
)

// ConditionValues is the set of base answers that activate a conditional
// follow-up. The wire encodes a single value as a bare string and multiple
// values as a JSON array; both forms decode into the same slice.
type ConditionValues []string

// UnmarshalJSON accepts either a string or an array of strings.
func (c *ConditionValues) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*c = ConditionValues{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("condition must be a string or array of strings: %w", err)
	}
	*c = ConditionValues(many)
	return nil
}

// MarshalJSON emits a bare string for a single value, an array otherwise.
func (c ConditionValues) MarshalJSON() ([]byte, error) {
	if len(c) == 1 {
		return json.Marshal(c[0])
	}
	return json.Marshal([]string(c))
}

// Matches reports whether the given base answer activates the condition.
func (c ConditionValues) Matches(answer string) bool {
	for _, v := range c {
		if v == answer {
			return true
		}
	}
	return false
}

// Conditional pairs an activating condition with its follow-up question text.
type Conditional struct {
	Condition ConditionValues `json:"condition"`
	FollowUp  string          `json:"question"`
}

// Question describes the question currently posed to the user. A zero Text
// signals that no question is active. Kind is derived at construction:
// conditionals take precedence over options, so a descriptor can never be
// both conditional and multiple choice.
type Question struct {
	Text         string        `json:"text"`
	Kind         QuestionKind  `json:"kind"`
	Options      []string      `json:"options,omitempty"`
	Conditionals []Conditional `json:"conditionals,omitempty"`
}

// NewFreeTextQuestion builds a free-text question descriptor.
func NewFreeTextQuestion(text string) Question {
	return Question{Text: text, Kind: QuestionKindFreeText}
}

// NewMultipleChoiceQuestion builds a multiple-choice descriptor. Options must
// be non-empty.
func NewMultipleChoiceQuestion(text string, options []string) (Question, error) {
	if len(options) == 0 {
		return Question{}, ErrMissingOptions
	}
	return Question{Text: text, Kind: QuestionKindMultipleChoice, Options: options}, nil
}

// NewConditionalQuestion builds a conditional descriptor. Conditionals must
// be non-empty.
func NewConditionalQuestion(text string, conditionals []Conditional) (Question, error) {
	if len(conditionals) == 0 {
		return Question{}, ErrMissingConditionals
	}
	return Question{Text: text, Kind: QuestionKindConditional, Conditionals: conditionals}, nil
}

// QuestionFromWire converts the wire representation (a question text plus
// optional options and conditionals) into a descriptor. The presence of
// conditionals wins over options; a descriptor with neither is free text.
// An empty text yields the zero Question, meaning no question is active.
func QuestionFromWire(text string, options []string, conditionals []Conditional) Question {
	if text == "" {
		return Question{}
	}
	if len(conditionals) > 0 {
		return Question{Text: text, Kind: QuestionKindConditional, Conditionals: conditionals}
	}
	if len(options) > 0 {
		return Question{Text: text, Kind: QuestionKindMultipleChoice, Options: options}
	}
	return Question{Text: text, Kind: QuestionKindFreeText}
}

// IsActive reports whether a question is currently posed.
func (q Question) IsActive() bool {
	return q.Text != ""
}

// WireType returns the legacy type tag used on the wire. Free text is "text"
// for compatibility with existing question banks.
func (q Question) WireType() string {
	switch q.Kind {
	case QuestionKindMultipleChoice:
		return "mcq"
	case QuestionKindConditional:
		return "conditional"
	default:
		return "text"
	}
}

// ConditionalChoice is the transient yes/no selection on a conditional
// question before the answer is submitted.
type ConditionalChoice string

const (
	// ConditionalYes marks the yes branch, which requires detail text.
	ConditionalYes ConditionalChoice = "Yes"
	// ConditionalNo marks the no branch, submitted immediately.
	ConditionalNo ConditionalChoice = "No"
)
