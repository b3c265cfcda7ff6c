// Package models defines the interview session aggregate.
package models

import (
	"fmt"
	"time"
)

// Session is the authoritative record of interview progress. It is created
// when the chief complaint is first submitted and lives in memory for the
// duration of the interview. All mutation happens through the interview
// controller's named transitions; callers observe it via Snapshot.
type Session struct {
	ChiefComplaint string `json:"chief_complaint"`
	// AskedCategories records categories that have been fully traversed or
	// explicitly skipped. Membership only; it never shrinks.
	AskedCategories []string `json:"asked_categories"`
	CurrentCategory string   `json:"current_category"`
	// Context is the accumulating narrative transcript. It is seeded from the
	// chief complaint and thereafter only overwritten wholesale by
	// authoritative values returned from the question service.
	Context         string   `json:"context"`
	CurrentQuestion Question `json:"current_question"`
	// PendingConditionalChoice holds the transient yes/no selection on a
	// conditional question; cleared on every answer submission.
	PendingConditionalChoice ConditionalChoice `json:"pending_conditional_choice,omitempty"`
	CreatedAt                time.Time         `json:"created_at"`
	UpdatedAt                time.Time         `json:"updated_at"`
}

// NewSession creates a session seeded with the given chief complaint. The
// context seed template is canonical and must match what the question service
// parses back out of the transcript.
func NewSession(complaint string) *Session {
	now := time.Now()
	return &Session{
		ChiefComplaint: complaint,
		Context:        fmt.Sprintf(ContextSeedFormat, complaint),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasAsked reports whether the category is already in the asked set.
func (s *Session) HasAsked(category string) bool {
	for _, c := range s.AskedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// MarkAsked adds the category to the asked set if absent. The secondary phase
// token is never recorded.
func (s *Session) MarkAsked(category string) {
	if category == "" || category == SecondaryPhaseCategory || s.HasAsked(category) {
		return
	}
	s.AskedCategories = append(s.AskedCategories, category)
	s.UpdatedAt = time.Now()
}

// ClearTransients resets the pending conditional selection. Invoked
// unconditionally at the end of every answer submission, including failures.
func (s *Session) ClearTransients() {
	s.PendingConditionalChoice = ""
}

// Snapshot returns a copy of the session safe to hand outside the controller.
func (s *Session) Snapshot() Session {
	copied := *s
	copied.AskedCategories = append([]string(nil), s.AskedCategories...)
	copied.CurrentQuestion.Options = append([]string(nil), s.CurrentQuestion.Options...)
	copied.CurrentQuestion.Conditionals = append([]Conditional(nil), s.CurrentQuestion.Conditionals...)
	return copied
}
