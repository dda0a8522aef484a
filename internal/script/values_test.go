package script

import (
	"math"
	"testing"

	"github.com/danmuck/pyserve/internal/testutil/testlog"
)

func TestAsInteger(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{in: 98, want: 98, ok: true},
		{in: int8(-3), want: -3, ok: true},
		{in: uint32(7), want: 7, ok: true},
		{in: uint64(math.MaxInt64), want: math.MaxInt64, ok: true},
		{in: uint64(math.MaxUint64)},
		{in: 98.0, want: 98, ok: true},
		{in: float32(-2), want: -2, ok: true},
		{in: 98.5},
		{in: math.Inf(1)},
		{in: math.NaN()},
		{in: "98"},
		{in: nil},
	}
	for _, tc := range cases {
		got, ok := AsInteger(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("AsInteger(%#v) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
