package visuals

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func hasParam(params map[string]any, key string) bool {
	if params == nil {
		return false
	}
	_, ok := params[key]
	return ok
}

// intParam reads an integer param, accepting JSON numbers and numeric strings.
func intParam(params map[string]any, effect, key string, def, min, max int) (int, error) {
	if !hasParam(params, key) {
		return def, nil
	}

	var v int
	switch raw := params[key].(type) {
	case int:
		v = raw
	case int64:
		v = int(raw)
	case float64:
		if math.Mod(raw, 1) != 0 {
			return 0, paramError(effect, "%s must be an integer, got %f", key, raw)
		}
		v = int(raw)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, paramError(effect, "invalid %s value %q", key, raw)
		}
		v = parsed
	default:
		return 0, paramError(effect, "unsupported type for %s: %T", key, raw)
	}

	if v < min || v > max {
		return 0, paramError(effect, "%s must be between %d and %d, got %d", key, min, max, v)
	}
	return v, nil
}

func floatParam(params map[string]any, effect, key string, def, min, max float64) (float64, error) {
	if !hasParam(params, key) {
		return def, nil
	}

	var v float64
	switch raw := params[key].(type) {
	case float64:
		v = raw
	case int:
		v = float64(raw)
	case int64:
		v = float64(raw)
	case decimal.Decimal:
		v = raw.InexactFloat64()
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, paramError(effect, "invalid %s value %q", key, raw)
		}
		v = parsed
	default:
		return 0, paramError(effect, "unsupported type for %s: %T", key, raw)
	}

	if math.IsNaN(v) || v < min || v > max {
		return 0, paramError(effect, "%s must be between %g and %g, got %g", key, min, max, v)
	}
	return v, nil
}

func stringParam(params map[string]any, effect, key, def string) (string, error) {
	if !hasParam(params, key) {
		return def, nil
	}
	s, ok := params[key].(string)
	if !ok {
		return "", paramError(effect, "unsupported type for %s: %T", key, params[key])
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return s, nil
}

// stringsParam reads a list of strings from a []string, a decoded JSON array
// or a comma separated string.
func stringsParam(params map[string]any, effect, key string, def []string) ([]string, error) {
	if !hasParam(params, key) {
		return def, nil
	}

	var out []string
	switch raw := params[key].(type) {
	case []string:
		out = append(out, raw...)
	case []any:
		out = make([]string, 0, len(raw))
		for i, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, paramError(effect, "%s[%d] must be a string, got %T", key, i, item)
			}
			out = append(out, s)
		}
	case string:
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		return nil, paramError(effect, "unsupported type for %s: %T", key, raw)
	}

	if len(out) == 0 {
		return nil, paramError(effect, "%s must not be empty", key)
	}
	return out, nil
}
