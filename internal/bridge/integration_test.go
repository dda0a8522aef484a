package bridge_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/pyserve/internal/bridge"
	"github.com/danmuck/pyserve/internal/calls"
	"github.com/danmuck/pyserve/internal/script"
	_ "github.com/danmuck/pyserve/internal/script/luascript"
	_ "github.com/danmuck/pyserve/internal/script/starscript"
	"github.com/danmuck/pyserve/internal/testutil/rpctest"
	"github.com/danmuck/pyserve/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

var scripts = map[string]string{
	"pyserve27.py": `
load("pyserveconst.star", "ADDR")

def PyClient():
    conn = rpc.dial(ADDR)

    def remote_call(name, *args):
        return conn.call(name, *args)

    return struct(remote_call = remote_call)
`,
	"pyserve27.lua": `
local const = require("pyserveconst")

function PyClient()
  local client = { conn = rpc.dial(const.ADDR) }
  function client:remote_call(name, ...)
    return self.conn:call(name, ...)
  end
  return client
end
`,
}

func TestAdapterAgainstServer(t *testing.T) {
	testlog.Start(t)

	addr := rpctest.StartServer(t, calls.Builtins())
	for name, body := range scripts {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			rpctest.WriteFile(t, dir, "Plugins/Lib/pyserveconst.star", "ADDR = \""+addr+"\"\n")
			rpctest.WriteFile(t, dir, "Plugins/Lib/pyserveconst.lua", "return { ADDR = \""+addr+"\" }\n")
			rpctest.WriteFile(t, dir, name, body)

			cfg := bridge.DefaultConfig(dir)
			cfg.ScriptPath = filepath.Join(dir, name)
			var buf bytes.Buffer
			a := bridge.NewAdapter(cfg, bridge.BackendFactory(script.Options{}), zerolog.New(&buf))
			defer a.Close()

			ctx := context.Background()
			if err := a.Start(ctx); err != nil {
				t.Fatalf("start: %v", err)
			}
			for i := 0; i < 3; i++ {
				if err := a.Tick(ctx); err != nil {
					t.Fatalf("tick %d: %v", i, err)
				}
			}
			if got := strings.Count(buf.String(), `"result":98`); got != 3 {
				t.Fatalf("expected 3 logged results, got %d in %s", got, buf.String())
			}
		})
	}
}
