package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/pyserve/internal/host"
	"github.com/danmuck/pyserve/internal/testutil/testlog"
)

type closeRecorder struct {
	startErr error
	closeErr error
	closed   int
}

func (c *closeRecorder) Start(context.Context) error { return c.startErr }
func (c *closeRecorder) Tick(context.Context) error  { return nil }
func (c *closeRecorder) Close() error {
	c.closed++
	return c.closeErr
}

func TestRunHostClosesOnFailure(t *testing.T) {
	testlog.Start(t)

	boom := errors.New("boom")
	c := &closeRecorder{startErr: boom}
	loop := host.NewLoop(host.LoopConfig{FrameInterval: time.Millisecond, MaxFrames: 1})
	if err := runHost(context.Background(), loop, c); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.closed != 1 {
		t.Fatalf("expected one close after failed run, got %d", c.closed)
	}
}

func TestRunHostClosesOnCleanExit(t *testing.T) {
	testlog.Start(t)

	closeErr := errors.New("close failed")
	c := &closeRecorder{closeErr: closeErr}
	loop := host.NewLoop(host.LoopConfig{FrameInterval: time.Millisecond, MaxFrames: 2})
	if err := runHost(context.Background(), loop, c); !errors.Is(err, closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if c.closed != 1 {
		t.Fatalf("expected one close, got %d", c.closed)
	}
}
