package main

import (
	"testing"

	"github.com/danmuck/pyserve/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

func TestParseArgs(t *testing.T) {
	testlog.Start(t)

	got := parseArgs([]string{"45", "-3", "2.5", "true", "hello", "1e3"})
	want := []any{int64(45), int64(-3), 2.5, true, "hello", 1000.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}
