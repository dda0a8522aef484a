package starscript

import (
	"fmt"

	"github.com/danmuck/pyserve/internal/script"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// rpcModule exposes rpc.dial(addr="") to scripts. Builtins run while the
// engine lock is held by ExecuteFile, Construct or Invoke.
func (e *Engine) rpcModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "rpc",
		Members: starlark.StringDict{
			"dial": starlark.NewBuiltin("rpc.dial", e.dial),
		},
	}
}

func (e *Engine) dial(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var addr string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "addr?", &addr); err != nil {
		return nil, err
	}
	if addr == "" {
		addr = e.opts.DialAddr
	}
	conn, err := e.opts.Dial(threadContext(thread), addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	e.conns = append(e.conns, conn)
	log.Debug().Str("addr", addr).Msg("starscript dialed")
	return &connValue{conn: conn, addr: addr}, nil
}

// connValue is the script-side handle returned by rpc.dial.
type connValue struct {
	conn   script.Conn
	addr   string
	frozen bool
}

var (
	_ starlark.Value    = (*connValue)(nil)
	_ starlark.HasAttrs = (*connValue)(nil)
)

func (c *connValue) String() string        { return fmt.Sprintf("<rpc.conn %s>", c.addr) }
func (c *connValue) Type() string          { return "rpc.conn" }
func (c *connValue) Freeze()               { c.frozen = true }
func (c *connValue) Truth() starlark.Bool  { return starlark.True }
func (c *connValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", c.Type()) }

func (c *connValue) AttrNames() []string { return []string{"addr", "call", "close"} }

func (c *connValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "addr":
		return starlark.String(c.addr), nil
	case "call":
		return starlark.NewBuiltin("call", connCall).BindReceiver(c), nil
	case "close":
		return starlark.NewBuiltin("close", connClose).BindReceiver(c), nil
	}
	return nil, nil
}

func connCall(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c := b.Receiver().(*connValue)
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: missing call name", b.Name())
	}
	name, ok := starlark.AsString(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: call name must be a string, got %s", b.Name(), args[0].Type())
	}
	params := make([]any, 0, len(args)-1)
	for _, arg := range args[1:] {
		v, err := ToGo(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		params = append(params, v)
	}
	ret, err := c.conn.RemoteCall(threadContext(thread), name, params...)
	if err != nil {
		return nil, err
	}
	return FromGo(ret)
}

func connClose(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	c := b.Receiver().(*connValue)
	if err := c.conn.Close(); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func logModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "log",
		Members: starlark.StringDict{
			"info": starlark.NewBuiltin("log.info", logAt(zerolog.InfoLevel)),
			"warn": starlark.NewBuiltin("log.warn", logAt(zerolog.WarnLevel)),
		},
	}
}

func logAt(level zerolog.Level) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
			return nil, err
		}
		log.WithLevel(level).Str("script", thread.Name).Msg(msg)
		return starlark.None, nil
	}
}
