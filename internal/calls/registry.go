package calls

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownCall = errors.New("calls: unknown call")
	ErrArity       = errors.New("calls: wrong argument count")
	ErrBadArgument = errors.New("calls: bad argument")
	ErrInvalidSpec = errors.New("calls: invalid call spec")
	ErrDuplicate   = errors.New("calls: duplicate call")
)

// Variadic disables the arity check for a Spec.
const Variadic = -1

// Func executes one call with positional arguments.
type Func func(ctx context.Context, args []any) (any, error)

// Spec describes a registered call.
type Spec struct {
	Name  string
	Arity int
	Doc   string
	Fn    Func
}

// Registry stores calls by name.
type Registry struct {
	repo map[string]Spec
	mu   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{repo: make(map[string]Spec)}
}

// Register adds a call, rejecting empty names and duplicates.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" || spec.Fn == nil || spec.Arity < Variadic {
		return fmt.Errorf("%w: %q", ErrInvalidSpec, spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.repo[spec.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, spec.Name)
	}
	r.repo[spec.Name] = spec
	return nil
}

// MustRegister panics on registration errors; for static tables.
func (r *Registry) MustRegister(specs ...Spec) *Registry {
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.repo[name]
	return spec, ok
}

// List returns a snapshot of all specs sorted by name.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	out := make([]Spec, 0, len(r.repo))
	for _, spec := range r.repo {
		out = append(out, spec)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke resolves name and runs it after checking arity.
func (r *Registry) Invoke(ctx context.Context, name string, args []any) (any, error) {
	spec, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCall, name)
	}
	if spec.Arity != Variadic && len(args) != spec.Arity {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, name, spec.Arity, len(args))
	}
	return spec.Fn(ctx, args)
}
