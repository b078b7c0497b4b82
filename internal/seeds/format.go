package seeds

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Separator joins namespace and fields.
const Separator = ":"

// listSeparator joins the elements of a []string field.
const listSeparator = ","

// FormatField renders one seed field. Output is stable across platforms and
// numbers follow JavaScript's String(number) so seeds built here match the
// ones built by the web client for the same outcome.
func FormatField(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return checkSeparator(x)
	case []string:
		for _, s := range x {
			if strings.Contains(s, listSeparator) {
				return "", fmt.Errorf("%w: %q", ErrAmbiguousField, s)
			}
		}
		return checkSeparator(strings.Join(x, listSeparator))
	case int:
		return strconv.Itoa(x), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return FormatNumber(float64(x)), nil
	case float64:
		return FormatNumber(x), nil
	case decimal.Decimal:
		// The web client holds payouts as JS numbers, so round through
		// float64 before formatting.
		return FormatNumber(x.InexactFloat64()), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time, *time.Time, Bucket:
		return "", fmt.Errorf("%w: %T", ErrWallClockField, v)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedField, v)
	}
}

func checkSeparator(s string) (string, error) {
	if strings.Contains(s, Separator) {
		return "", fmt.Errorf("%w: %q", ErrAmbiguousField, s)
	}
	return s, nil
}

// FormatNumber formats f the way JavaScript's Number.prototype.toString does
// for base 10: shortest round-trip digits, exponent form outside
// [1e-6, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + string(sign) + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func joinFields(prefix []string, fields []any) (string, error) {
	parts := make([]string, 0, len(prefix)+len(fields))
	parts = append(parts, prefix...)
	for i, f := range fields {
		s, err := FormatField(f)
		if err != nil {
			return "", fmt.Errorf("field %d: %w", i, err)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, Separator), nil
}
