package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Int64 converts a driver value to an int64. Drivers disagree on how they
// hand back integers (int64, float64 or text), so every integer column read
// through a Row goes through here.
func Int64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", n)
		}
		return i, nil
	case []byte:
		return Int64(string(n))
	case nil:
		return 0, fmt.Errorf("invalid integer: NULL")
	default:
		return 0, fmt.Errorf("invalid integer of type %T", v)
	}
}

// String converts a driver value to a string; NULL becomes "".
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
