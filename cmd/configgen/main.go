package main

import (
	"flag"

	"github.com/danmuck/pyserve/internal/config"
	"github.com/danmuck/pyserve/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("configgen")
	kind := flag.String("kind", config.KindServer, "config kind: server|host")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing files")
	scripts := flag.String("scripts", "", "write sample client scripts into this data dir")
	dialAddr := flag.String("dial-addr", config.DefaultAddr, "address the sample scripts dial")
	flag.Parse()

	if *scripts != "" {
		written, err := config.WriteSampleScripts(*scripts, *dialAddr, *force)
		if err != nil {
			log.Fatal().Err(err).Msg("write sample scripts")
		}
		log.Info().Strs("files", written).Msg("wrote sample scripts")
		return
	}

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		if err := config.CheckStrict(path, *kind); err != nil {
			log.Fatal().Err(err).Msg("strict check failed")
		}
		var err error
		switch *kind {
		case config.KindServer:
			_, err = config.LoadServerConfig(path)
		case config.KindHost:
			_, err = config.LoadHostConfig(path)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("validation failed")
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}

func defaultPath(kind string) string {
	switch kind {
	case config.KindServer:
		return "cmd/pyserve/config.toml"
	case config.KindHost:
		return "cmd/pyhost/config.toml"
	default:
		log.Fatal().Str("kind", kind).Msg("unknown kind")
		return ""
	}
}
