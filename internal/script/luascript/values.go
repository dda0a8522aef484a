package luascript

import (
	"fmt"
	"math"
	"sort"

	"github.com/Shopify/go-lua"
	"github.com/danmuck/pyserve/internal/script"
)

// toGo converts the value at index to nil, bool, int64, float64, string,
// []any or map[string]any. Sequences with keys 1..n become slices.
func toGo(l *lua.State, index int) (any, error) {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil, nil
	case lua.TypeBoolean:
		return l.ToBoolean(index), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return normalizeNumber(n), nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s, nil
	case lua.TypeTable:
		return tableToGo(l, index)
	default:
		return nil, fmt.Errorf("%w: lua %s", script.ErrUnsupportedValue, lua.TypeNameOf(l, index))
	}
}

func normalizeNumber(n float64) any {
	if math.Trunc(n) == n && n >= math.MinInt64 && n < math.MaxInt64 {
		return int64(n)
	}
	return n
}

func tableToGo(l *lua.State, index int) (any, error) {
	index = l.AbsIndex(index)

	isArray := true
	count, maxIndex := 0, 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		out := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			v, err := toGo(l, -1)
			l.Pop(1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	out := map[string]any{}
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) != lua.TypeString {
			l.Pop(2)
			return nil, fmt.Errorf("%w: non-string table key", script.ErrUnsupportedValue)
		}
		key, _ := l.ToString(-2)
		v, err := toGo(l, -1)
		if err != nil {
			l.Pop(2)
			return nil, err
		}
		out[key] = v
		l.Pop(1)
	}
	return out, nil
}

// pushGo pushes v onto the stack. On error nothing is pushed.
func pushGo(l *lua.State, v any) error {
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case int:
		l.PushInteger(x)
	case int8:
		l.PushInteger(int(x))
	case int16:
		l.PushInteger(int(x))
	case int32:
		l.PushInteger(int(x))
	case int64:
		l.PushInteger(int(x))
	case uint8:
		l.PushInteger(int(x))
	case uint16:
		l.PushInteger(int(x))
	case uint32:
		l.PushInteger(int(x))
	case uint64:
		l.PushNumber(float64(x))
	case float32:
		l.PushNumber(float64(x))
	case float64:
		l.PushNumber(x)
	case string:
		l.PushString(x)
	case []byte:
		l.PushString(string(x))
	case []any:
		top := l.Top()
		l.CreateTable(len(x), 0)
		for i, elem := range x {
			if err := pushGo(l, elem); err != nil {
				l.SetTop(top)
				return err
			}
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		top := l.Top()
		l.CreateTable(0, len(x))
		for _, k := range keys {
			if err := pushGo(l, x[k]); err != nil {
				l.SetTop(top)
				return err
			}
			l.SetField(-2, k)
		}
	default:
		return fmt.Errorf("%w: %T", script.ErrUnsupportedValue, v)
	}
	return nil
}
