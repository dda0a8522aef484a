package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/danmuck/pyserve/internal/admin"
	"github.com/danmuck/pyserve/internal/bridge"
	"github.com/danmuck/pyserve/internal/config"
	"github.com/danmuck/pyserve/internal/host"
	"github.com/danmuck/pyserve/internal/observability"
	"github.com/danmuck/pyserve/internal/script"
	_ "github.com/danmuck/pyserve/internal/script/luascript"
	_ "github.com/danmuck/pyserve/internal/script/starscript"
	"github.com/rs/zerolog/log"
)

func main() {
	logger := observability.InitLogger("pyhost")
	configPath := flag.String("config", "", "host config path (env PYSERVE_* overrides)")
	flag.Parse()

	cfg, err := config.LoadHostConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load host config")
	}
	rt, err := buildRuntimeConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid host config")
	}
	log.Info().
		Str("path", *configPath).
		Str("script", rt.Bridge.ScriptPath).
		Strs("backends", script.Backends()).
		Msg("loaded host config")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := bridge.NewAdapter(rt.Bridge, bridge.BackendFactory(rt.Script), logger)

	if cfg.AdminAddr != "" {
		adm := admin.New(cfg.ID, "host", cfg.AdminAddr, cfg.CorsOrigins)
		adm.Ready = func() bool { return adapter.Status().Phase == bridge.PhaseInitialized }
		bridge.RegisterRoutes(adm.Router(), adapter)
		go func() {
			if err := adm.Serve(ctx); err != nil {
				log.Error().Err(err).Msg("admin stopped")
				stop()
			}
		}()
	}

	loop := host.NewLoop(rt.Loop)
	if err := runHost(ctx, loop, adapter); err != nil {
		stop()
		log.Fatal().Err(err).Uint64("frames", loop.Frames()).Msg("pyhost stopped")
	}
	log.Info().Uint64("frames", loop.Frames()).Msg("pyhost shutdown")
}

type closingComponent interface {
	host.Component
	Close() error
}

// runHost drives c on loop and always closes it, so script connections are
// released before the caller exits.
func runHost(ctx context.Context, loop *host.Loop, c closingComponent) error {
	runErr := loop.Run(ctx, c)
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("pyhost close")
		if runErr == nil {
			return err
		}
	}
	return runErr
}
