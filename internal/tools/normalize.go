package tools

import (
	"math"
	"strconv"
	"strings"

	"tradedesk/internal/domain"
)

// enumKeys are the argument names upper-cased in place before execution.
var enumKeys = []string{"transaction_type", "exchange", "product", "order_type"}

// Normalize coerces model-supplied arguments in place. Quantity gets a
// best-effort integer coercion: on failure the value is left unchanged so
// the executor rejects it with an explicit error instead of the turn
// aborting silently. Enum-like string values are upper-cased.
func Normalize(call *domain.ToolCall) {
	if call.Args == nil {
		call.Args = map[string]any{}
	}

	if raw, ok := call.Args["quantity"]; ok {
		if n, ok := coerceInt(raw); ok {
			call.Args["quantity"] = n
		}
	}

	for _, key := range enumKeys {
		if s, ok := call.Args[key].(string); ok {
			call.Args[key] = strings.ToUpper(s)
		}
	}
}

// coerceInt converts the JSON shapes a model emits for integers. Fractional
// floats and unparseable strings are rejected (fail-soft: caller keeps the
// original value).
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
		return 0, false
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// IntArg reads an argument as an int, reporting false for absent or
// uncoerced values.
func IntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	return coerceInt(v)
}

// StringArg reads an argument as a string; absent keys give "".
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// FloatArg reads a numeric argument; absent or non-numeric values give 0.
func FloatArg(args map[string]any, key string) float64 {
	switch n := args[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
