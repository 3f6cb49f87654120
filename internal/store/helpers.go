package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableVerdict(value Verdict) any {
	if value == "" {
		return nil
	}
	return string(value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func verdictOf(value sql.NullString) Verdict {
	if !value.Valid {
		return ""
	}
	return Verdict(value.String)
}

func encodeStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []string{}
	}
	return values
}

func encodeWeights(weights map[string]float64) any {
	if len(weights) == 0 {
		return nil
	}
	data, _ := json.Marshal(weights)
	return string(data)
}

func decodeWeights(raw sql.NullString) map[string]float64 {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	weights := map[string]float64{}
	if err := json.Unmarshal([]byte(raw.String), &weights); err != nil {
		return nil
	}
	return weights
}
