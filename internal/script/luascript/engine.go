// Package luascript runs .lua client scripts on Shopify/go-lua.
package luascript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/danmuck/pyserve/internal/script"
	"github.com/rs/zerolog/log"
)

func init() {
	script.Register(script.Backend{
		Name:       "lua",
		Extensions: []string{".lua"},
		New:        New,
	})
}

// Engine owns a single Lua state. Every entry point takes mu, so Go
// callbacks invoked from Lua can read ctx and record goErr without locking.
type Engine struct {
	mu      sync.Mutex
	state   *lua.State
	opts    script.Options
	paths   []string
	conns   []script.Conn
	closed  bool
	nextRef int

	ctx   context.Context
	goErr error
}

func New(opts script.Options) (script.Engine, error) {
	e := &Engine{
		state: lua.NewState(),
		opts:  opts.WithDefaults(),
		paths: []string{},
		ctx:   context.Background(),
	}
	lua.OpenLibraries(e.state)
	e.openModules()
	e.applyPackagePath()
	return e, nil
}

func (e *Engine) SearchPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.paths...)
}

// SetSearchPaths rewrites package.path to "<dir>/?.lua;<dir>/?/init.lua" per
// directory, in order.
func (e *Engine) SetSearchPaths(paths []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths = append([]string(nil), paths...)
	if !e.closed {
		e.applyPackagePath()
	}
}

func (e *Engine) applyPackagePath() {
	patterns := make([]string, 0, 2*len(e.paths))
	for _, dir := range e.paths {
		patterns = append(patterns,
			filepath.Join(dir, "?.lua"),
			filepath.Join(dir, "?", "init.lua"),
		)
	}
	l := e.state
	l.Global("package")
	l.PushString(strings.Join(patterns, ";"))
	l.SetField(-2, "path")
	l.Pop(1)
}

func (e *Engine) ExecuteFile(ctx context.Context, path string) (script.Environment, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", script.ErrScriptNotFound, path)
	}
	release, err := e.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	l := e.state
	if err := lua.LoadFile(l, path, ""); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", script.ErrExecution, path, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, e.wrap(path, err)
	}
	log.Debug().Str("path", path).Msg("luascript executed file")
	return &environment{engine: e, path: path}, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var errs []error
	for _, c := range e.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.conns = nil
	return errors.Join(errs...)
}

// enter locks the engine for one operation and restores the stack on release.
func (e *Engine) enter(ctx context.Context) (func(), error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, script.ErrEngineClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.ctx = ctx
	e.goErr = nil
	top := e.state.Top()
	return func() {
		e.state.SetTop(top)
		e.ctx = context.Background()
		e.goErr = nil
		e.mu.Unlock()
	}, nil
}

// wrap prefers the Go error a callback raised over the Lua message.
func (e *Engine) wrap(what string, err error) error {
	if e.goErr != nil {
		return fmt.Errorf("%w: %s: %w", script.ErrExecution, what, e.goErr)
	}
	return fmt.Errorf("%w: %s: %v", script.ErrExecution, what, err)
}

// raise records err and unwinds the Lua stack. It does not return.
func (e *Engine) raise(l *lua.State, err error) int {
	e.goErr = err
	lua.Errorf(l, "%s", err.Error())
	return 0
}
