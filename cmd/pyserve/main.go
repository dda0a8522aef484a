package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/pyserve/internal/admin"
	"github.com/danmuck/pyserve/internal/calls"
	"github.com/danmuck/pyserve/internal/config"
	"github.com/danmuck/pyserve/internal/observability"
	"github.com/danmuck/pyserve/internal/protocol/frame"
	"github.com/danmuck/pyserve/internal/rpc"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("pyserve")
	configPath := flag.String("config", "", "server config path (env PYSERVE_* overrides)")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load server config")
	}
	log.Info().Str("path", *configPath).Str("addr", cfg.Addr).Msg("loaded server config")

	writeTimeout, _ := config.ParseDuration("write_timeout", cfg.WriteTimeout)
	registry := calls.Builtins()
	server := rpc.NewServer(rpc.ServerConfig{
		ID:           cfg.ID,
		Addr:         cfg.Addr,
		Limits:       frame.Limits{MaxPayloadBytes: cfg.MaxPayloadBytes},
		WriteTimeout: writeTimeout,
		QueueSize:    cfg.QueueSize,
	}, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AdminAddr != "" {
		adm := admin.New(cfg.ID, "server", cfg.AdminAddr, cfg.CorsOrigins)
		adm.Ready = func() bool { return server.Addr() != nil }
		rpc.RegisterRoutes(adm.Router(), registry)
		go func() {
			if err := adm.Serve(ctx); err != nil {
				log.Error().Err(err).Msg("admin stopped")
				stop()
			}
		}()
	}

	start := time.Now()
	if err := server.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("pyserve stopped")
	}
	log.Info().Dur("uptime", time.Since(start)).Msg("pyserve shutdown")
}
