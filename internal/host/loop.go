// Package host drives a Component through its lifecycle: Start once, then
// Tick once per frame on a single goroutine.
package host

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/pyserve/internal/observability"
	"github.com/rs/zerolog/log"
)

// Component is anything with host-agnostic start and per-frame entry points.
type Component interface {
	Start(ctx context.Context) error
	Tick(ctx context.Context) error
}

type LoopConfig struct {
	FrameInterval time.Duration
	// MaxFrames stops the loop after that many ticks. Zero runs until the
	// context is cancelled.
	MaxFrames uint64
	// TickTimeout bounds one Tick. Zero leaves the loop context in place.
	TickTimeout time.Duration
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		FrameInterval: time.Second,
	}
}

func (c LoopConfig) WithDefaults() LoopConfig {
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultLoopConfig().FrameInterval
	}
	return c
}

type Loop struct {
	cfg    LoopConfig
	frames atomic.Uint64
}

func NewLoop(cfg LoopConfig) *Loop {
	return &Loop{cfg: cfg.WithDefaults()}
}

// Frames reports completed ticks.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Run starts c and ticks it until ctx is done, MaxFrames is reached, or
// Start or Tick fails. Failures are returned and end the loop.
func (l *Loop) Run(ctx context.Context, c Component) error {
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("host start: %w", err)
	}
	log.Info().
		Dur("frame_interval", l.cfg.FrameInterval).
		Uint64("max_frames", l.cfg.MaxFrames).
		Msg("host.Loop started")

	ticker := time.NewTicker(l.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("frames", l.Frames()).Msg("host.Loop shutdown")
			return nil
		case <-ticker.C:
			if err := l.tick(ctx, c); err != nil {
				return fmt.Errorf("host tick %d: %w", l.Frames()+1, err)
			}
			if l.cfg.MaxFrames > 0 && l.Frames() >= l.cfg.MaxFrames {
				log.Info().Uint64("frames", l.Frames()).Msg("host.Loop reached max frames")
				return nil
			}
		}
	}
}

func (l *Loop) tick(ctx context.Context, c Component) error {
	tickCtx := ctx
	if l.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, l.cfg.TickTimeout)
		defer cancel()
	}
	start := time.Now()
	err := c.Tick(tickCtx)
	observability.RecordTick(time.Since(start), err == nil)
	if err != nil {
		return err
	}
	l.frames.Add(1)
	return nil
}
