package luascript

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/danmuck/pyserve/internal/calls"
	"github.com/danmuck/pyserve/internal/protocol/session"
	"github.com/danmuck/pyserve/internal/rpc"
	"github.com/danmuck/pyserve/internal/script"
	"github.com/danmuck/pyserve/internal/testutil/rpctest"
	"github.com/danmuck/pyserve/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

const clientScript = `
local const = require("pyserveconst")

PyClient = function()
  local client = { conn = rpc.dial(const.ADDR) }
  function client:remote_call(name, ...)
    return self.conn:call(name, ...)
  end
  return client
end

Nothing = function() return nil end
VALUE = 3
`

func writeClient(t *testing.T, addr string) (lib string, path string) {
	t.Helper()
	dir := t.TempDir()
	lib = filepath.Join(dir, "Plugins", "Lib")
	rpctest.WriteFile(t, lib, "pyserveconst.lua", "return { ADDR = \""+addr+"\" }\n")
	path = rpctest.WriteFile(t, dir, "pyserve27.lua", clientScript)
	return lib, path
}

func newEngine(t *testing.T) script.Engine {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.MaxConnectAttempts = 1
	engine, err := New(script.Options{Dial: script.DialRPC(cfg)})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestRemoteCallAgainstServer(t *testing.T) {
	testlog.Start(t)

	addr := rpctest.StartServer(t, calls.Builtins())
	engine := newEngine(t)
	lib, path := writeClient(t, addr)
	engine.SetSearchPaths([]string{filepath.Dir(path), lib})

	ctx := context.Background()
	env, err := engine.ExecuteFile(ctx, path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	obj, err := env.Construct(ctx, "PyClient")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	client := script.Bind(obj, "remote_call")
	for i := 0; i < 3; i++ {
		got, err := client.RemoteCall(ctx, "add", 45, 53)
		if err != nil {
			t.Fatalf("remote call %d: %v", i, err)
		}
		if got != int64(98) {
			t.Fatalf("remote call %d: expected 98, got %#v", i, got)
		}
	}

	got, err := client.RemoteCall(ctx, "echo", "hi")
	if err != nil || got != nil {
		t.Fatalf("echo: got %#v, %v", got, err)
	}

	_, err = client.RemoteCall(ctx, "missing")
	var remote *rpc.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError through the script, got %v", err)
	}
}

func TestSearchPathsAreCopied(t *testing.T) {
	testlog.Start(t)

	engine := newEngine(t)
	if got := engine.SearchPaths(); len(got) != 0 {
		t.Fatalf("expected empty search paths, got %v", got)
	}
	engine.SetSearchPaths([]string{"/a", "/b"})
	got := engine.SearchPaths()
	got[0] = "/mutated"
	if diff := cmp.Diff([]string{"/a", "/b"}, engine.SearchPaths()); diff != "" {
		t.Fatalf("search paths mismatch (-want +got):\n%s", diff)
	}
}

func TestRequireWithoutSearchPathFails(t *testing.T) {
	testlog.Start(t)

	engine := newEngine(t)
	_, path := writeClient(t, "127.0.0.1:1")
	if _, err := engine.ExecuteFile(context.Background(), path); !errors.Is(err, script.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
}

func TestConstructErrors(t *testing.T) {
	testlog.Start(t)

	engine := newEngine(t)
	lib, path := writeClient(t, "127.0.0.1:1")
	engine.SetSearchPaths([]string{lib})
	ctx := context.Background()
	env, err := engine.ExecuteFile(ctx, path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	cases := map[string]error{
		"Missing": script.ErrMissingAttr,
		"VALUE":   script.ErrNotCallable,
		"Nothing": script.ErrNilObject,
	}
	for name, want := range cases {
		if _, err := env.Construct(ctx, name); !errors.Is(err, want) {
			t.Fatalf("construct %s: expected %v, got %v", name, want, err)
		}
	}

	// nothing listens on port 1, so the dial inside PyClient fails
	if _, err := env.Construct(ctx, "PyClient"); !errors.Is(err, rpc.ErrDialFailed) {
		t.Fatalf("expected ErrDialFailed, got %v", err)
	}
}

func TestExecuteFileMissing(t *testing.T) {
	testlog.Start(t)

	engine := newEngine(t)
	_, err := engine.ExecuteFile(context.Background(), filepath.Join(t.TempDir(), "nope.lua"))
	if !errors.Is(err, script.ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestInvokeConvertsTables(t *testing.T) {
	testlog.Start(t)

	engine := newEngine(t)
	path := rpctest.WriteFile(t, t.TempDir(), "shape.lua", `
Shape = function()
  local s = {}
  function s:describe(scale)
    return { name = "square", sides = { 1, 2, 3, 4 }, scale = scale }
  end
  return s
end
`)
	ctx := context.Background()
	env, err := engine.ExecuteFile(ctx, path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	obj, err := env.Construct(ctx, "Shape")
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	got, err := obj.Invoke(ctx, "describe", 1.5)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	want := map[string]any{
		"name":  "square",
		"sides": []any{int64(1), int64(2), int64(3), int64(4)},
		"scale": 1.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if _, err := obj.Invoke(ctx, "missing"); !errors.Is(err, script.ErrMissingMethod) {
		t.Fatalf("expected ErrMissingMethod, got %v", err)
	}
}

func TestBackendRegisteredForLuaFiles(t *testing.T) {
	testlog.Start(t)

	b, err := script.Lookup("pyserve27.lua")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if b.Name != "lua" {
		t.Fatalf("got backend %q", b.Name)
	}
}
