package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/pyserve/internal/script"
	"github.com/rs/zerolog"
)

var (
	ErrNotStarted     = errors.New("bridge: tick before start")
	ErrAlreadyStarted = errors.New("bridge: already started")
	ErrNotInteger     = errors.New("bridge: result is not an integer")
)

type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseInitialized   Phase = "initialized"
)

// EngineFactory builds the engine that will run scriptPath.
type EngineFactory func(scriptPath string) (script.Engine, error)

// BackendFactory selects a registered backend by script extension.
func BackendFactory(opts script.Options) EngineFactory {
	return func(scriptPath string) (script.Engine, error) {
		return script.NewForPath(scriptPath, opts)
	}
}

// Status is a point-in-time view of the adapter.
type Status struct {
	Phase       Phase     `json:"phase"`
	ScriptPath  string    `json:"script_path"`
	SearchPaths []string  `json:"search_paths,omitempty"`
	Ticks       uint64    `json:"ticks"`
	LastValue   *int64    `json:"last_value,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// Adapter holds the engine, environment and client for its lifetime. Start
// and Tick are driven from one goroutine; mu only guards Status readers.
type Adapter struct {
	cfg       Config
	newEngine EngineFactory
	logger    zerolog.Logger

	mu          sync.RWMutex
	phase       Phase
	engine      script.Engine
	env         script.Environment
	client      script.RemoteCallable
	searchPaths []string
	startedAt   time.Time
	ticks       uint64
	lastValue   *int64
	lastErr     string
}

func NewAdapter(cfg Config, newEngine EngineFactory, logger zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:       cfg.WithDefaults(),
		newEngine: newEngine,
		logger:    logger,
		phase:     PhaseUninitialized,
	}
}

func (a *Adapter) Config() Config {
	return a.cfg
}

// Start builds the engine, extends its search path, executes the script and
// constructs the client. On failure the adapter stays uninitialized.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.RLock()
	phase := a.phase
	a.mu.RUnlock()
	if phase != PhaseUninitialized {
		return ErrAlreadyStarted
	}
	if a.newEngine == nil {
		return fmt.Errorf("bridge: no engine factory")
	}

	engine, err := a.newEngine(a.cfg.ScriptPath)
	if err != nil {
		return a.fail(fmt.Errorf("create engine: %w", err))
	}
	paths := append(engine.SearchPaths(), a.cfg.SearchPaths...)
	engine.SetSearchPaths(paths)
	env, err := engine.ExecuteFile(ctx, a.cfg.ScriptPath)
	if err != nil {
		_ = engine.Close()
		return a.fail(err)
	}
	obj, err := env.Construct(ctx, a.cfg.Constructor)
	if err != nil {
		_ = engine.Close()
		return a.fail(err)
	}
	client := script.Bind(obj, a.cfg.Method)

	a.mu.Lock()
	a.engine = engine
	a.env = env
	a.client = client
	a.searchPaths = paths
	a.startedAt = time.Now()
	a.phase = PhaseInitialized
	a.lastErr = ""
	a.mu.Unlock()

	a.logger.Info().
		Str("script", a.cfg.ScriptPath).
		Strs("search_paths", paths).
		Msg("script engine created")

	a.logger.Info().
		Str("constructor", a.cfg.Constructor).
		Str("method", a.cfg.Method).
		Msg("script client ready")
	return nil
}

// Tick performs one remote call. A non-nil result must be an integer and is
// logged; a nil result logs nothing.
func (a *Adapter) Tick(ctx context.Context) error {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()
	if client == nil {
		return ErrNotStarted
	}

	ret, err := client.RemoteCall(ctx, a.cfg.Call, a.cfg.Args...)
	if err != nil {
		return a.recordTick(nil, err)
	}
	if ret == nil {
		return a.recordTick(nil, nil)
	}
	n, ok := script.AsInteger(ret)
	if !ok {
		return a.recordTick(nil, fmt.Errorf("%w: %s returned %T(%v)", ErrNotInteger, a.cfg.Call, ret, ret))
	}
	a.logger.Info().Str("call", a.cfg.Call).Int64("result", n).Msg("remote call result")
	return a.recordTick(&n, nil)
}

func (a *Adapter) recordTick(value *int64, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ticks++
	if value != nil {
		a.lastValue = value
	}
	if err != nil {
		a.lastErr = err.Error()
	}
	return err
}

func (a *Adapter) fail(err error) error {
	a.mu.Lock()
	a.lastErr = err.Error()
	a.mu.Unlock()
	return err
}

func (a *Adapter) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := Status{
		Phase:       a.phase,
		ScriptPath:  a.cfg.ScriptPath,
		SearchPaths: append([]string(nil), a.searchPaths...),
		Ticks:       a.ticks,
		LastError:   a.lastErr,
		StartedAt:   a.startedAt,
	}
	if a.lastValue != nil {
		v := *a.lastValue
		st.LastValue = &v
	}
	return st
}

// Close releases the engine. The adapter does not return to uninitialized.
func (a *Adapter) Close() error {
	a.mu.Lock()
	engine := a.engine
	a.engine = nil
	a.mu.Unlock()
	if engine == nil {
		return nil
	}
	return engine.Close()
}
