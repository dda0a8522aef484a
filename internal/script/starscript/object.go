package starscript

import (
	"context"
	"fmt"

	"github.com/danmuck/pyserve/internal/script"
	"go.starlark.net/starlark"
)

type environment struct {
	engine  *Engine
	path    string
	globals starlark.StringDict
}

func (env *environment) Construct(ctx context.Context, name string, args ...any) (script.Object, error) {
	fn, ok := env.globals[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q", script.ErrMissingAttr, env.path, name)
	}
	if _, ok := fn.(starlark.Callable); !ok {
		return nil, fmt.Errorf("%w: %q is %s", script.ErrNotCallable, name, fn.Type())
	}

	e := env.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, script.ErrEngineClosed
	}
	ret, err := e.call(ctx, name, fn, args)
	if err != nil {
		return nil, err
	}
	if ret == starlark.None {
		return nil, fmt.Errorf("%w: %s()", script.ErrNilObject, name)
	}
	return &object{engine: e, value: ret}, nil
}

type object struct {
	engine *Engine
	value  starlark.Value
}

func (o *object) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	attrs, ok := o.value.(starlark.HasAttrs)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no attributes", script.ErrMissingMethod, o.value.Type())
	}
	fn, err := attrs.Attr(method)
	if err != nil || fn == nil {
		return nil, fmt.Errorf("%w: %s.%s", script.ErrMissingMethod, o.value.Type(), method)
	}

	e := o.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, script.ErrEngineClosed
	}
	ret, err := e.call(ctx, method, fn, args)
	if err != nil {
		return nil, err
	}
	return ToGo(ret)
}

// call runs fn on a fresh thread. Callers hold e.mu.
func (e *Engine) call(ctx context.Context, name string, fn starlark.Value, args []any) (starlark.Value, error) {
	tuple := make(starlark.Tuple, 0, len(args))
	for _, arg := range args {
		v, err := FromGo(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		tuple = append(tuple, v)
	}
	thread, done := e.newThread(ctx, name)
	defer done()
	ret, err := starlark.Call(thread, fn, tuple, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", script.ErrExecution, name, err)
	}
	return ret, nil
}
