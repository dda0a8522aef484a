package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	KindServer = "server"
	KindHost   = "host"
)

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func Template(kind string) (string, error) {
	switch normalizeKind(kind) {
	case KindServer:
		return serverTemplate, nil
	case KindHost:
		return hostTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	return writeFile(path, template, overwrite)
}

// SampleScripts returns the stock client scripts keyed by path relative to
// a data directory. Both dial addr.
func SampleScripts(addr string) map[string]string {
	if addr == "" {
		addr = DefaultAddr
	}
	return map[string]string{
		"pyserve27.py":                  pythonClient,
		"Plugins/Lib/pyserveconst.star": fmt.Sprintf("ADDR = %q\n", addr),
		"pyserve27.lua":                 luaClient,
		"Plugins/Lib/pyserveconst.lua":  fmt.Sprintf("return { ADDR = %q }\n", addr),
	}
}

// WriteSampleScripts writes SampleScripts(addr) under dir and returns the
// written paths in order.
func WriteSampleScripts(dir, addr string, overwrite bool) ([]string, error) {
	scripts := SampleScripts(addr)
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := writeFile(path, scripts[name], overwrite); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path, body string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(body), 0o600)
}

const serverTemplate = `id = "pyserve"
addr = "127.0.0.1:31775"
# admin_addr = "127.0.0.1:9310"
cors_origins = ["http://localhost:3000"]
max_payload_bytes = 8388608
queue_size = 256
write_timeout = "15s"
`

const hostTemplate = `id = "pyhost"
data_path = "data"
# script_path defaults to <data_path>/pyserve27.py; .lua runs on the lua backend
# script_path = "data/pyserve27.lua"
# search_paths default to [<data_path>, <data_path>/Plugins/Lib]
constructor = "PyClient"
method = "remote_call"
call = "add"
args = [45, 53]
dial_addr = "127.0.0.1:31775"
frame_interval = "1s"
max_frames = 0
tick_timeout = "5s"
# admin_addr = "127.0.0.1:9311"
`

const pythonClient = `load("pyserveconst.star", "ADDR")

def PyClient():
    conn = rpc.dial(ADDR)

    def remote_call(name, *args):
        return conn.call(name, *args)

    return struct(remote_call = remote_call, close = conn.close)
`

const luaClient = `local const = require("pyserveconst")

function PyClient()
  local client = { conn = rpc.dial(const.ADDR) }

  function client:remote_call(name, ...)
    return self.conn:call(name, ...)
  end

  function client:close()
    self.conn:close()
  end

  return client
end
`
