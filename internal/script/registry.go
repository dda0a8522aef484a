package script

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Factory builds an engine.
type Factory func(opts Options) (Engine, error)

// Backend is a registered interpreter implementation.
type Backend struct {
	Name       string
	Extensions []string
	New        Factory
}

var (
	mu       sync.RWMutex
	registry = map[string]Backend{}
)

// Register maps each of b's extensions (".py", ".lua") to b.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	for _, ext := range b.Extensions {
		registry[strings.ToLower(ext)] = b
	}
}

// Lookup returns the backend registered for path's extension.
func Lookup(path string) (Backend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mu.RLock()
	defer mu.RUnlock()
	b, ok := registry[ext]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %q", ErrUnsupportedScript, path)
	}
	return b, nil
}

// Backends lists registered backend names.
func Backends() []string {
	mu.RLock()
	seen := map[string]bool{}
	for _, b := range registry {
		seen[b.Name] = true
	}
	mu.RUnlock()
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewForPath builds an engine from the backend matching path.
func NewForPath(path string, opts Options) (Engine, error) {
	b, err := Lookup(path)
	if err != nil {
		return nil, err
	}
	return b.New(opts.WithDefaults())
}
