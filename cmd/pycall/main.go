package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danmuck/pyserve/internal/observability"
	"github.com/danmuck/pyserve/internal/protocol/session"
	"github.com/danmuck/pyserve/internal/rpc"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("pycall")
	addr := flag.String("addr", rpc.DefaultAddr, "call server address")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	attempts := flag.Int("attempts", 1, "connect attempts")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: pycall [flags] <call> [args...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := session.DefaultConfig()
	cfg.MaxConnectAttempts = *attempts
	client, err := rpc.Dial(ctx, *addr, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("dial failed")
	}
	defer client.Close()

	name := flag.Arg(0)
	args := parseArgs(flag.Args()[1:])
	ret, err := client.RemoteCall(ctx, name, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pycall: %v\n", err)
		os.Exit(1)
	}
	out, err := json.Marshal(ret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pycall: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// parseArgs reads integers, floats and booleans; anything else is a string.
func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, s := range raw {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			args = append(args, n)
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			args = append(args, f)
			continue
		}
		if b, err := strconv.ParseBool(s); err == nil {
			args = append(args, b)
			continue
		}
		args = append(args, s)
	}
	return args
}
