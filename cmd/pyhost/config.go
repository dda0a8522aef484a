package main

import (
	"path/filepath"
	"strings"

	"github.com/danmuck/pyserve/internal/bridge"
	"github.com/danmuck/pyserve/internal/config"
	"github.com/danmuck/pyserve/internal/host"
	"github.com/danmuck/pyserve/internal/script"
)

// runtimeConfig is everything pyhost needs, derived from one HostConfig.
type runtimeConfig struct {
	Bridge bridge.Config
	Loop   host.LoopConfig
	Script script.Options
}

func buildRuntimeConfig(cfg config.HostConfig) (runtimeConfig, error) {
	out := runtimeConfig{
		Bridge: bridge.DefaultConfig(filepath.Clean(cfg.DataPath)),
		Loop:   host.DefaultLoopConfig(),
		Script: script.Options{DialAddr: cfg.DialAddr},
	}

	if v := strings.TrimSpace(cfg.ScriptPath); v != "" {
		out.Bridge.ScriptPath = v
	}
	if cfg.SearchPaths != nil {
		out.Bridge.SearchPaths = normalizePaths(cfg.SearchPaths)
	}
	if v := strings.TrimSpace(cfg.Constructor); v != "" {
		out.Bridge.Constructor = v
	}
	if v := strings.TrimSpace(cfg.Method); v != "" {
		out.Bridge.Method = v
	}
	if v := strings.TrimSpace(cfg.Call); v != "" {
		out.Bridge.Call = v
		out.Bridge.Args = []any{}
	}
	if cfg.Args != nil {
		out.Bridge.Args = append([]any(nil), cfg.Args...)
	}

	interval, err := config.ParseDuration("frame_interval", cfg.FrameInterval)
	if err != nil {
		return runtimeConfig{}, err
	}
	if interval > 0 {
		out.Loop.FrameInterval = interval
	}
	timeout, err := config.ParseDuration("tick_timeout", cfg.TickTimeout)
	if err != nil {
		return runtimeConfig{}, err
	}
	out.Loop.TickTimeout = timeout
	out.Loop.MaxFrames = cfg.MaxFrames
	return out, nil
}

func normalizePaths(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
