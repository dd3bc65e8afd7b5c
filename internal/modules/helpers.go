package modules

import (
	"encoding/json"
	"fmt"
	"math"
)

// ToJSON marshals any value to a JSON string.
// Used by module handlers to serialize query results.
func ToJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return string(b), nil
}

// StringParam returns params[key] as a string, or "" when absent.
func StringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// IntParam returns params[key] as an int. JSON numbers arrive as float64;
// ints are accepted for in-process callers. Numbers outside the int range
// are reported as absent.
func IntParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		if math.IsNaN(v) || v < math.MinInt || v >= math.MaxInt {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
