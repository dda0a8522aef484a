package script

import "math"

// AsInteger reports v as int64 when it is a Go integer that fits or a float
// with no fractional part.
func AsInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return fitUint(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return fitUint(n)
	case float32:
		return fitFloat(float64(n))
	case float64:
		return fitFloat(n)
	default:
		return 0, false
	}
}

func fitUint(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func fitFloat(f float64) (int64, bool) {
	if math.Trunc(f) != f || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
