// Package store provides question bank seeding from JSON files.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// seedConditional mirrors a conditional entry in a seed file.
type seedConditional struct {
	Condition models.ConditionValues `json:"condition"`
	Question  string                 `json:"question"`
}

// seedQuestion mirrors a question entry in a seed file. Type defaults to
// "text"; options and conditionals are optional.
type seedQuestion struct {
	Question     string            `json:"question"`
	Type         string            `json:"type"`
	Options      []string          `json:"options"`
	Conditionals []seedConditional `json:"conditionals"`
}

// descriptor converts a seed entry into a question descriptor.
func (sq seedQuestion) descriptor() models.Question {
	var conditionals []models.Conditional
	for _, c := range sq.Conditionals {
		conditionals = append(conditionals, models.Conditional{Condition: c.Condition, FollowUp: c.Question})
	}
	return models.QuestionFromWire(sq.Question, sq.Options, conditionals)
}

// SeedAll seeds the bank from the primary and secondary question files.
// When reset is set the bank is cleared first. Missing files are skipped
// with a warning so a partial deployment can still start.
func SeedAll(st Store, questionsPath, part2Path string, reset bool) error {
	if reset {
		if err := st.Reset(); err != nil {
			return fmt.Errorf("failed to reset question bank: %w", err)
		}
	}
	if err := seedFile(st, SourcePrimary, questionsPath); err != nil {
		return err
	}
	return seedFile(st, SourceSecondary, part2Path)
}

// seedFile loads one JSON seed file into the bank under the given source.
// Each top-level key is a category mapping either to a question list or to
// subcategory lists; subcategory questions are prefixed "subcategory: ".
func seedFile(st Store, source, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Seed file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	categories, err := decodeOrderedObject(data)
	if err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	count := 0
	for _, entry := range categories {
		var questions []seedQuestion
		if err := json.Unmarshal(entry.raw, &questions); err == nil {
			for _, sq := range questions {
				if err := st.SaveQuestion(entry.key, source, sq.descriptor()); err != nil {
					return err
				}
				count++
			}
			continue
		}

		subcategories, err := decodeOrderedObject(entry.raw)
		if err != nil {
			return fmt.Errorf("failed to parse category %s in %s: %w", entry.key, path, err)
		}
		for _, sub := range subcategories {
			var questions []seedQuestion
			if err := json.Unmarshal(sub.raw, &questions); err != nil {
				return fmt.Errorf("failed to parse subcategory %s in %s: %w", sub.key, path, err)
			}
			for _, sq := range questions {
				sq.Question = fmt.Sprintf("%s: %s", sub.key, sq.Question)
				if err := st.SaveQuestion(entry.key, source, sq.descriptor()); err != nil {
					return err
				}
				count++
			}
		}
	}
	slog.Info("Seeded question bank", "source", source, "path", path, "questions", count)
	return nil
}

// orderedEntry is one key/value pair of a JSON object, in file order.
type orderedEntry struct {
	key string
	raw json.RawMessage
}

// decodeOrderedObject decodes a JSON object keeping the keys in the order
// they appear in the file. Seed files drive category and question ordering,
// so map iteration order is not acceptable here.
func decodeOrderedObject(data []byte) ([]orderedEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var entries []orderedEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		entries = append(entries, orderedEntry{key: key, raw: raw})
	}
	return entries, nil
}
