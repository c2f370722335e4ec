package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoerceFloat converts a decoded JSON value to a float64, returning NaN when
// it is not numeric.
func CoerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// CoerceString converts a decoded JSON value to a trimmed string.
func CoerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// itemKeys name the field taken from an object-shaped list item.
var itemKeys = []string{"name", "title"}

// CoerceStrings converts a list (or a single comma separated string) into
// non-empty trimmed strings. An object item contributes its name or title;
// other nested values are skipped.
func CoerceStrings(v any) []string {
	var items []any
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		items = val
	case []string:
		for _, s := range val {
			items = append(items, s)
		}
	case string:
		for _, s := range strings.Split(val, ",") {
			items = append(items, s)
		}
	default:
		items = []any{val}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := listItem(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func listItem(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range itemKeys {
			if s, ok := val[key].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	case []any:
		return ""
	default:
		return CoerceString(v)
	}
}
