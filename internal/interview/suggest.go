// Package interview provides the debounced autocomplete client.
package interview

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// Suggester tracks a single text input and keeps its suggestion list
// consistent with in-flight edits. Lookups are deduplicated by the last
// issued query value rather than a timer, so every distinct typed value
// fires exactly once. Results arriving for a query that no longer matches
// the current input are discarded. Lookup failures are logged and otherwise
// silent; suggestions are best effort and never block the interview.
//
// All state is scoped to the owning controller instance, never process-wide.
type Suggester struct {
	svc     Service
	request func(query string) models.AutocompleteRequest

	mu          sync.Mutex
	input       string
	lastQuery   string
	suggestions []string
}

// NewSuggester creates a suggester whose lookups are shaped by the request
// function (plain chief-complaint queries or conditional-tagged queries).
func NewSuggester(svc Service, request func(query string) models.AutocompleteRequest) *Suggester {
	return &Suggester{svc: svc, request: request}
}

// Update records the latest typed value. An empty value clears the
// suggestions synchronously without a remote call; a value equal to the last
// issued query is ignored; anything else starts an asynchronous lookup.
func (s *Suggester) Update(ctx context.Context, input string) {
	s.mu.Lock()
	s.input = input
	if strings.TrimSpace(input) == "" {
		s.suggestions = nil
		s.mu.Unlock()
		return
	}
	if input == s.lastQuery {
		s.mu.Unlock()
		return
	}
	s.lastQuery = input
	s.mu.Unlock()

	go s.lookup(ctx, input)
}

// lookup performs the remote call for one query value and applies the result
// only if the input still matches.
func (s *Suggester) lookup(ctx context.Context, query string) {
	options, err := s.svc.Suggest(ctx, s.request(query))
	if err != nil {
		slog.Warn("Suggester lookup failed", "query", query, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input != query {
		slog.Debug("Suggester discarding stale result", "query", query, "input", s.input)
		return
	}
	s.suggestions = options
}

// Suggestions returns the current suggestion list.
func (s *Suggester) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suggestions...)
}

// Clear resets input, dedup state and suggestions. Called when a suggestion
// is accepted or the answer is submitted, so the next distinct value fires a
// fresh lookup.
func (s *Suggester) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = ""
	s.lastQuery = ""
	s.suggestions = nil
}
