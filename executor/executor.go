package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/caffeineduck/modhost/errors"
	"github.com/caffeineduck/modhost/hostfunc"
)

// Executor owns the wazero runtime extensions run in, the host function
// module, and compiled module caching.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	registry *hostfunc.Registry
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor exposing the given host function registry.
// A nil registry uses hostfunc.NewRegistry().
func New(registry *hostfunc.Registry, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if registry == nil {
		registry = hostfunc.NewRegistry()
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	if err := registry.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, err
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		registry: registry,
	}

	for _, src := range cfg.precompile {
		if _, err := e.Compile(ctx, src); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", src.Name(), err)
		}
	}

	Logger().Debug("executor ready",
		zap.Bool("disk_cache", cache != nil),
		zap.Uint32("memory_limit_pages", cfg.memoryLimitPages),
		zap.Strings("host_functions", registry.Names()))

	return e, nil
}

// Registry returns the host function registry exposed to extensions.
func (e *Executor) Registry() *hostfunc.Registry {
	return e.registry
}

// Compile returns a cached compiled module for src, compiling if necessary.
func (e *Executor) Compile(ctx context.Context, src Source) (wazero.CompiledModule, error) {
	bin, err := src.Module()
	if err != nil {
		return nil, err
	}
	key := digest(bin)

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, errors.Closed(errors.PhaseLoad, "executor")
	}
	if compiled, ok := e.compiled[key]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if compiled, ok := e.compiled[key]; ok {
		return compiled, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Load("compile "+src.Name(), err)
	}

	e.compiled[key] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor, including every
// module instantiated on its runtime.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "modhost")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "modhost")
	}
	return filepath.Join(os.TempDir(), "modhost-cache")
}

// DefaultCacheDir returns the directory WithDiskCache uses when none is given.
func DefaultCacheDir() string {
	return defaultCacheDir()
}
