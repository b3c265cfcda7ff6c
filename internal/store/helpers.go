package store

import (
	"encoding/json"

	"github.com/needl-health/NeedlIntake/internal/models"
)

// encodeCondition serializes condition values for the conditionals table: a
// single value is stored raw, multiple values as a JSON array.
func encodeCondition(values models.ConditionValues) (string, error) {
	if len(values) == 1 {
		return values[0], nil
	}
	data, err := json.Marshal([]string(values))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeCondition reverses encodeCondition. A value that does not parse as a
// JSON string array is treated as a single raw condition value.
func decodeCondition(raw string) models.ConditionValues {
	var many []string
	if err := json.Unmarshal([]byte(raw), &many); err == nil {
		return models.ConditionValues(many)
	}
	return models.ConditionValues{raw}
}
