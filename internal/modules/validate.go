package modules

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/ogen-go/ogen/validate"
)

// ValidateParams checks params against InputSchema.
// - Required fields: returns error if missing
// - Defaults: absent optional fields receive the declared default
// - Type check: verifies value matches declared property type
// - Constraints: minimum, maximum, minLength and date format, reported as *validate.Error
// Returns validated params (shallow copy) or error.
func ValidateParams(schema InputSchema, params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params)+len(schema.Properties))
	for k, v := range params {
		out[k] = v
	}

	// Check required fields
	var missing []string
	for _, key := range schema.Required {
		val, exists := out[key]
		if !exists || val == nil {
			missing = append(missing, key)
			continue
		}
		// Check for zero-value strings on required fields
		if s, ok := val.(string); ok && s == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}

	for key, prop := range schema.Properties {
		if val, exists := out[key]; (!exists || val == nil) && prop.Default != nil {
			out[key] = prop.Default
		}
	}

	// Type check provided params against schema properties
	for key, val := range out {
		prop, declared := schema.Properties[key]
		if !declared {
			// Extra params not in schema are passed through (lenient)
			continue
		}
		if val == nil {
			continue
		}
		if err := checkType(key, val, prop.Type); err != nil {
			return nil, err
		}
	}

	var failures []validate.FieldError
	for _, key := range slices.Sorted(maps.Keys(schema.Properties)) {
		prop := schema.Properties[key]
		val, ok := out[key]
		if !ok || val == nil {
			continue
		}
		if err := checkConstraints(val, prop); err != nil {
			failures = append(failures, validate.FieldError{Name: key, Error: err})
		}
	}
	if len(failures) > 0 {
		return nil, &validate.Error{Fields: failures}
	}

	return out, nil
}

// checkType verifies that val matches the expected JSON Schema type.
func checkType(key string, val any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := val.(string); !ok {
			return fmt.Errorf("parameter %q: expected string, got %T", key, val)
		}
	case "number":
		// JSON numbers arrive as float64
		if _, ok := val.(float64); !ok {
			return fmt.Errorf("parameter %q: expected number, got %T", key, val)
		}
	case "integer":
		f, ok := val.(float64)
		if !ok {
			return fmt.Errorf("parameter %q: expected integer, got %T", key, val)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("parameter %q: expected integer, got %v", key, f)
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("parameter %q: expected boolean, got %T", key, val)
		}
	case "array":
		if _, ok := val.([]interface{}); !ok {
			return fmt.Errorf("parameter %q: expected array, got %T", key, val)
		}
	case "object":
		if _, ok := val.(map[string]interface{}); !ok {
			return fmt.Errorf("parameter %q: expected object, got %T", key, val)
		}
	// "" or unknown types: skip check (lenient)
	}
	return nil
}

// checkConstraints runs after checkType, so val has the declared type.
func checkConstraints(val any, prop Property) error {
	switch v := val.(type) {
	case float64:
		if prop.Minimum == nil && prop.Maximum == nil {
			return nil
		}
		if math.IsNaN(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return errors.Errorf("value %v out of range", v)
		}
		var c validate.Int
		if prop.Minimum != nil {
			c.MinSet, c.Min = true, *prop.Minimum
		}
		if prop.Maximum != nil {
			c.MaxSet, c.Max = true, *prop.Maximum
		}
		return c.Validate(int64(math.Floor(v)))
	case string:
		if prop.MinLength != nil {
			if err := (validate.String{MinLengthSet: true, MinLength: *prop.MinLength}).Validate(v); err != nil {
				return err
			}
		}
		if prop.Format == "date" {
			if _, err := time.Parse(time.DateOnly, v); err != nil {
				return errors.Errorf("expected date YYYY-MM-DD, got %q", v)
			}
		}
	}
	return nil
}

// findTool looks up a tool by name from a tool list.
func findTool(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
