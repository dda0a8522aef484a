// Package starscript runs Python-dialect scripts (.py, .star) on Starlark.
package starscript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danmuck/pyserve/internal/script"
	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

const ctxLocal = "pyserve.ctx"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

func init() {
	script.Register(script.Backend{
		Name:       "starlark",
		Extensions: []string{".py", ".star"},
		New:        New,
	})
}

type loadEntry struct {
	globals starlark.StringDict
	err     error
}

// Engine is one Starlark interpreter with its own module cache.
type Engine struct {
	mu     sync.Mutex
	opts   script.Options
	paths  []string
	cache  map[string]*loadEntry
	conns  []script.Conn
	closed bool
}

func New(opts script.Options) (script.Engine, error) {
	return &Engine{
		opts:  opts.WithDefaults(),
		paths: []string{},
		cache: make(map[string]*loadEntry),
	}, nil
}

func (e *Engine) SearchPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.paths...)
}

func (e *Engine) SetSearchPaths(paths []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths = append([]string(nil), paths...)
	e.cache = make(map[string]*loadEntry)
}

func (e *Engine) ExecuteFile(ctx context.Context, path string) (script.Environment, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", script.ErrScriptNotFound, path)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, script.ErrEngineClosed
	}

	thread, done := e.newThread(ctx, path)
	defer done()
	globals, err := starlark.ExecFileOptions(fileOptions, thread, path, nil, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", script.ErrExecution, path, err)
	}
	log.Debug().Str("path", path).Int("globals", len(globals)).Msg("starscript executed file")
	return &environment{engine: e, path: path, globals: globals}, nil
}

// Close closes every connection scripts opened through rpc.dial.
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

// newThread binds ctx to a thread; cancelling ctx cancels the script.
func (e *Engine) newThread(ctx context.Context, name string) (*starlark.Thread, func()) {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			log.Info().Str("script", name).Msg(msg)
		},
		Load: e.load,
	}
	thread.SetLocal(ctxLocal, ctx)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	return thread, func() { stop() }
}

func (e *Engine) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"rpc":    e.rpcModule(),
		"log":    logModule(),
	}
}

// load resolves module against the search paths in order. Callers hold e.mu.
func (e *Engine) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	resolved, err := e.resolve(module)
	if err != nil {
		return nil, err
	}
	if entry, ok := e.cache[resolved]; ok {
		if entry == nil {
			return nil, fmt.Errorf("cycle in load graph at %s", module)
		}
		return entry.globals, entry.err
	}

	e.cache[resolved] = nil
	child := &starlark.Thread{Name: resolved, Print: thread.Print, Load: e.load}
	child.SetLocal(ctxLocal, threadContext(thread))
	globals, err := starlark.ExecFileOptions(fileOptions, child, resolved, nil, e.predeclared())
	e.cache[resolved] = &loadEntry{globals: globals, err: err}
	return globals, err
}

func (e *Engine) resolve(module string) (string, error) {
	if filepath.IsAbs(module) {
		if _, err := os.Stat(module); err == nil {
			return module, nil
		}
		return "", fmt.Errorf("%w: %s", script.ErrModuleNotFound, module)
	}
	for _, dir := range e.paths {
		candidate := filepath.Join(dir, module)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", script.ErrModuleNotFound, module)
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(ctxLocal).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}
