// Package intake implements the question service behind the interview
// controller: deterministic next-question selection over the question bank
// plus GenAI-backed prediction, autocomplete and summary generation.
package intake

import "strings"

// QA is one answered question parsed back out of the context transcript.
type QA struct {
	Question string
	Answer   string
}

// ParseContext splits the transcript into answered question/answer pairs.
// Entries are separated by ". " and each entry holds "question: answer";
// the split on ": " is from the right so question texts containing colons
// survive. Malformed entries are dropped.
func ParseContext(contextText string) []QA {
	trimmed := strings.TrimSpace(contextText)
	if trimmed == "" {
		return nil
	}
	var pairs []QA
	for _, line := range strings.Split(trimmed, ". ") {
		line = strings.Trim(line, ". ")
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ": ")
		if idx < 0 {
			continue
		}
		pairs = append(pairs, QA{
			Question: strings.TrimSpace(line[:idx]),
			Answer:   strings.TrimSpace(line[idx+2:]),
		})
	}
	return pairs
}

// answeredSet returns the lowercased question texts already present in the
// transcript.
func answeredSet(pairs []QA) map[string]bool {
	answered := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		answered[strings.ToLower(p.Question)] = true
	}
	return answered
}

// answerFor returns the recorded answer for a question text, matched
// case-insensitively, and whether one was found.
func answerFor(pairs []QA, question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, p := range pairs {
		if strings.ToLower(p.Question) == lower {
			return p.Answer, true
		}
	}
	return "", false
}
