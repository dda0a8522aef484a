package luascript

import (
	"context"
	"fmt"

	"github.com/Shopify/go-lua"
	"github.com/danmuck/pyserve/internal/script"
)

type environment struct {
	engine *Engine
	path   string
}

// Construct calls the global function name and anchors the result in the
// Lua registry so it survives collection.
func (env *environment) Construct(ctx context.Context, name string, args ...any) (script.Object, error) {
	e := env.engine
	release, err := e.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	l := e.state
	l.Global(name)
	switch l.TypeOf(-1) {
	case lua.TypeNil:
		return nil, fmt.Errorf("%w: %s has no %q", script.ErrMissingAttr, env.path, name)
	case lua.TypeFunction:
	default:
		return nil, fmt.Errorf("%w: %q is %s", script.ErrNotCallable, name, lua.TypeNameOf(l, -1))
	}
	for _, arg := range args {
		if err := pushGo(l, arg); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := l.ProtectedCall(len(args), 1, 0); err != nil {
		return nil, e.wrap(name, err)
	}
	if l.IsNil(-1) {
		return nil, fmt.Errorf("%w: %s()", script.ErrNilObject, name)
	}

	e.nextRef++
	key := fmt.Sprintf("pyserve.object.%d", e.nextRef)
	l.SetField(lua.RegistryIndex, key)
	return &object{engine: e, key: key}, nil
}

type object struct {
	engine *Engine
	key    string
}

// Invoke calls obj:method(args...).
func (o *object) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	e := o.engine
	release, err := e.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	l := e.state
	l.Field(lua.RegistryIndex, o.key)
	if t := l.TypeOf(-1); t != lua.TypeTable && t != lua.TypeUserData {
		return nil, fmt.Errorf("%w: %s has no methods", script.ErrMissingMethod, lua.TypeNameOf(l, -1))
	}
	l.Field(-1, method)
	if !l.IsFunction(-1) {
		return nil, fmt.Errorf("%w: %s", script.ErrMissingMethod, method)
	}
	l.PushValue(-2)
	for _, arg := range args {
		if err := pushGo(l, arg); err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
	}
	if err := l.ProtectedCall(len(args)+1, 1, 0); err != nil {
		return nil, e.wrap(method, err)
	}
	return toGo(l, -1)
}
