package rpctest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/pyserve/internal/calls"
	"github.com/danmuck/pyserve/internal/rpc"
)

// StartServer runs an rpc server on a loopback port until the test ends and
// returns its address.
func StartServer(t testing.TB, registry *calls.Registry) string {
	t.Helper()
	if registry == nil {
		registry = calls.Builtins()
	}
	srv := rpc.NewServer(rpc.ServerConfig{ID: "rpctest", Addr: "127.0.0.1:0"}, registry)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("rpc server did not stop")
		}
	})
	return srv.Addr().String()
}

// WriteFile writes body to dir/name, creating parents.
func WriteFile(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
