package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// ToDecimal converts the numeric shapes broker payloads use (strings, ints,
// floats, decimals) into a decimal. Unparseable input yields zero.
func ToDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"mapper": "ToDecimal",
				"value":  val,
			}).WithError(err).Debug("Failed to parse decimal, defaulting to 0")
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int32:
		return decimal.NewFromInt32(val)
	case int64:
		return decimal.NewFromInt(val)
	case uint64:
		return ToDecimal(strconv.FormatUint(val, 10))
	case uint32:
		return decimal.NewFromInt(int64(val))
	case fmt.Stringer:
		return ToDecimal(val.String())
	default:
		return ToDecimal(fmt.Sprint(val))
	}
}

// ToTime accepts unix seconds (numeric or string), RFC3339 strings and
// time values. Zero time is returned for anything else.
func ToTime(v interface{}) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	case int64:
		return unixAuto(val)
	case int:
		return unixAuto(int64(val))
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return unixAuto(n)
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

// unixAuto treats values above 1e12 as milliseconds.
func unixAuto(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

// ToString flattens SDK enum types to their wire form.
func ToString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
