package calls

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// Builtins returns a registry holding the demo call set.
func Builtins() *Registry {
	return NewRegistry().MustRegister(
		Spec{Name: "hello", Arity: 0, Doc: "returns a greeting", Fn: hello},
		Spec{Name: "goodbye", Arity: 1, Doc: "returns a farewell to x", Fn: goodbye},
		Spec{Name: "add", Arity: 2, Doc: "returns x + y for numbers or strings", Fn: add},
		Spec{Name: "echo", Arity: 1, Doc: "logs x and returns nothing", Fn: echo},
	)
}

func hello(context.Context, []any) (any, error) {
	return "hello friend", nil
}

func goodbye(_ context.Context, args []any) (any, error) {
	return fmt.Sprintf("goodbye %v", args[0]), nil
}

func echo(_ context.Context, args []any) (any, error) {
	log.Info().Str("said", fmt.Sprint(args[0])).Msg("calls.echo")
	return nil, nil
}

func add(_ context.Context, args []any) (any, error) {
	return Add(args[0], args[1])
}

// Add sums two integers (with overflow check), two numbers as float64, or
// concatenates two strings.
func Add(x, y any) (any, error) {
	if xs, ok := x.(string); ok {
		ys, ok := y.(string)
		if !ok {
			return nil, fmt.Errorf("%w: cannot add %T to string", ErrBadArgument, y)
		}
		return xs + ys, nil
	}
	xi, xInt := AsInt64(x)
	yi, yInt := AsInt64(y)
	if xInt && yInt {
		sum := xi + yi
		if (yi > 0 && sum < xi) || (yi < 0 && sum > xi) {
			return nil, fmt.Errorf("%w: integer overflow", ErrBadArgument)
		}
		return sum, nil
	}
	xf, xNum := AsFloat64(x)
	yf, yNum := AsFloat64(y)
	if xNum && yNum {
		return xf + yf, nil
	}
	return nil, fmt.Errorf("%w: cannot add %T and %T", ErrBadArgument, x, y)
}

// AsInt64 reports v as int64 when it is any Go integer that fits.
func AsInt64(v any) (int64, bool) {
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
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// AsFloat64 reports v as float64 for any Go integer or float.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := AsInt64(v); ok {
		return float64(i), true
	}
	if u, ok := v.(uint64); ok {
		return float64(u), true
	}
	return 0, false
}
