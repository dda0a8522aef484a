package calls

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/danmuck/pyserve/internal/testutil/testlog"
)

func TestBuiltinAddIntegers(t *testing.T) {
	testlog.Start(t)

	got, err := Builtins().Invoke(context.Background(), "add", []any{int64(45), uint64(53)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got != int64(98) {
		t.Fatalf("expected int64(98), got %#v", got)
	}
}

func TestBuiltinAddMixedAndStrings(t *testing.T) {
	testlog.Start(t)

	got, err := Add(int64(1), 0.5)
	if err != nil || got != 1.5 {
		t.Fatalf("mixed add = %v, %v", got, err)
	}
	got, err = Add("py", "serve")
	if err != nil || got != "pyserve" {
		t.Fatalf("string add = %v, %v", got, err)
	}
	if _, err := Add("py", int64(1)); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}
	if _, err := Add(int64(math.MaxInt64), int64(1)); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestBuiltinGreetings(t *testing.T) {
	testlog.Start(t)

	r := Builtins()
	got, err := r.Invoke(context.Background(), "hello", nil)
	if err != nil || got != "hello friend" {
		t.Fatalf("hello = %v, %v", got, err)
	}
	got, err = r.Invoke(context.Background(), "goodbye", []any{"world"})
	if err != nil || got != "goodbye world" {
		t.Fatalf("goodbye = %v, %v", got, err)
	}
}

func TestBuiltinEchoReturnsNil(t *testing.T) {
	testlog.Start(t)

	got, err := Builtins().Invoke(context.Background(), "echo", []any{"testing text"})
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}
