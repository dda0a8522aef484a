package luascript

import (
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/danmuck/pyserve/internal/script"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const connTypeName = "pyserve.conn"

type luaConn struct {
	conn script.Conn
	addr string
}

func (e *Engine) openModules() {
	l := e.state

	lua.NewMetaTable(l, connTypeName)
	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "call", Function: e.connCall},
		{Name: "close", Function: e.connClose},
		{Name: "addr", Function: e.connAddr},
	}, 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "dial", Function: e.dial},
	}, 0)
	l.SetGlobal("rpc")

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "info", Function: logAt(zerolog.InfoLevel)},
		{Name: "warn", Function: logAt(zerolog.WarnLevel)},
	}, 0)
	l.SetGlobal("log")

	l.Register("print", luaPrint)
}

// dial implements rpc.dial([addr]).
func (e *Engine) dial(l *lua.State) int {
	addr := lua.OptString(l, 1, "")
	if addr == "" {
		addr = e.opts.DialAddr
	}
	conn, err := e.opts.Dial(e.ctx, addr)
	if err != nil {
		return e.raise(l, fmt.Errorf("rpc.dial: %w", err))
	}
	e.conns = append(e.conns, conn)
	log.Debug().Str("addr", addr).Msg("luascript dialed")
	l.PushUserData(&luaConn{conn: conn, addr: addr})
	lua.SetMetaTableNamed(l, connTypeName)
	return 1
}

func checkConn(l *lua.State) *luaConn {
	ud := lua.CheckUserData(l, 1, connTypeName)
	if c, ok := ud.(*luaConn); ok && c != nil {
		return c
	}
	lua.ArgumentError(l, 1, "rpc connection expected")
	return nil
}

// connCall implements conn:call(name, ...).
func (e *Engine) connCall(l *lua.State) int {
	c := checkConn(l)
	name := lua.CheckString(l, 2)
	args := make([]any, 0, l.Top()-2)
	for i := 3; i <= l.Top(); i++ {
		v, err := toGo(l, i)
		if err != nil {
			return e.raise(l, err)
		}
		args = append(args, v)
	}
	ret, err := c.conn.RemoteCall(e.ctx, name, args...)
	if err != nil {
		return e.raise(l, err)
	}
	if err := pushGo(l, ret); err != nil {
		return e.raise(l, err)
	}
	return 1
}

func (e *Engine) connClose(l *lua.State) int {
	c := checkConn(l)
	if err := c.conn.Close(); err != nil {
		return e.raise(l, err)
	}
	return 0
}

func (e *Engine) connAddr(l *lua.State) int {
	l.PushString(checkConn(l).addr)
	return 1
}

func logAt(level zerolog.Level) lua.Function {
	return func(l *lua.State) int {
		log.WithLevel(level).Str("script", "lua").Msg(lua.CheckString(l, 1))
		return 0
	}
}

func luaPrint(l *lua.State) int {
	parts := make([]string, 0, l.Top())
	for i := 1; i <= l.Top(); i++ {
		if s, ok := l.ToString(i); ok {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, lua.TypeNameOf(l, i))
	}
	log.Info().Str("script", "lua").Msg(strings.Join(parts, "\t"))
	return 0
}
