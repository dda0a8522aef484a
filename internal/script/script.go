package script

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrScriptNotFound    = errors.New("script: script file not found")
	ErrModuleNotFound    = errors.New("script: module not found on search path")
	ErrUnsupportedScript = errors.New("script: no backend for script")
	ErrMissingAttr       = errors.New("script: missing attribute")
	ErrNotCallable       = errors.New("script: attribute not callable")
	ErrMissingMethod     = errors.New("script: missing method")
	ErrNilObject         = errors.New("script: constructor returned nil")
	ErrUnsupportedValue  = errors.New("script: unsupported value")
	ErrEngineClosed      = errors.New("script: engine closed")
	ErrExecution         = errors.New("script: execution failed")
)

// Engine is one embedded interpreter instance.
type Engine interface {
	// SearchPaths returns a copy of the ordered module search directories.
	SearchPaths() []string
	// SetSearchPaths replaces the module search directories.
	SetSearchPaths(paths []string)
	// ExecuteFile runs a script file and returns its top-level environment.
	ExecuteFile(ctx context.Context, path string) (Environment, error)
	// Close releases the interpreter and any connections scripts opened.
	Close() error
}

// Environment is the result of executing one script file.
type Environment interface {
	// Construct calls the global callable name with args and returns the
	// resulting object. A nil result is ErrNilObject.
	Construct(ctx context.Context, name string, args ...any) (Object, error)
}

// Object is a script value whose methods are resolved at call time.
type Object interface {
	Invoke(ctx context.Context, method string, args ...any) (any, error)
}

// RemoteCallable invokes a named operation with positional arguments and
// returns an optional result.
type RemoteCallable interface {
	RemoteCall(ctx context.Context, name string, args ...any) (any, error)
}

// Bind adapts a script object exposing method(name, *args) to RemoteCallable.
func Bind(obj Object, method string) RemoteCallable {
	return &boundObject{obj: obj, method: method}
}

type boundObject struct {
	obj    Object
	method string
}

func (b *boundObject) RemoteCall(ctx context.Context, name string, args ...any) (any, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, name)
	full = append(full, args...)
	ret, err := b.obj.Invoke(ctx, b.method, full...)
	if err != nil {
		return nil, fmt.Errorf("%s(%q): %w", b.method, name, err)
	}
	return ret, nil
}
