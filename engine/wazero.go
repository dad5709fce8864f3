package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/shim"
)

// WazeroEngine compiles and instantiates compression modules on a wazero runtime.
type WazeroEngine struct {
	runtime     wazero.Runtime
	cache       wazero.CompilationCache
	envInitMu   sync.Mutex
	envInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CacheDir enables a compilation cache persisted in this directory.
	// Empty disables caching.
	CacheDir string
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	e := &WazeroEngine{}

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CacheDir != "" {
			cache, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
			if err != nil {
				return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
					Path("cache_dir").
					Value(cfg.CacheDir).
					Cause(err).
					Detail("open compilation cache").
					Build()
			}
			e.cache = cache
			runtimeCfg = runtimeCfg.WithCompilationCache(cache)
		}
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

// LoadModule compiles wasmBytes and checks it against the import and export
// contract of the compression module.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}

	if err := validateImports(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}
	optional, err := validateExports(compiled)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	Logger().Debug("module compiled",
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(compiled.ExportedFunctions())),
		zap.Strings("optional", optional))

	return &WazeroModule{
		engine:   e,
		compiled: compiled,
		optional: optional,
	}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// InitEnv instantiates the shim's "env" host module for this engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *WazeroEngine) InitEnv(ctx context.Context) error {
	if e.envInitDone.Load() {
		return nil
	}

	e.envInitMu.Lock()
	defer e.envInitMu.Unlock()

	if e.envInitDone.Load() {
		return nil
	}

	if e.runtime.Module(shim.ModuleName) != nil {
		e.envInitDone.Store(true)
		return nil
	}

	if _, err := shim.Instantiate(ctx, e.runtime); err != nil {
		if e.runtime.Module(shim.ModuleName) == nil {
			return errors.Instantiation(fmt.Errorf("instantiate %s host module: %w", shim.ModuleName, err))
		}
	}

	e.envInitDone.Store(true)
	return nil
}

// WazeroModule is a compiled compression module
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
	optional []string
}

// HasExport reports whether the module exports the optional function name.
func (m *WazeroModule) HasExport(name string) bool {
	for _, o := range m.optional {
		if o == name {
			return true
		}
	}
	return false
}

// Instantiate creates a fresh instance with its own linear memory.
// Start functions are not run; reactors call _initialize themselves.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	if err := m.engine.InitEnv(ctx); err != nil {
		return nil, err
	}

	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous for parallel instantiation
		WithStartFunctions()

	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	mem := instance.ExportedMemory(ExportMemory)
	if mem == nil {
		_ = instance.Close(ctx)
		return nil, errors.NotFound(errors.PhaseLoad, "memory export", ExportMemory)
	}

	return &WazeroInstance{
		instance:  instance,
		memory:    mem,
		funcCache: make(map[string]api.Function),
	}, nil
}

// Close releases the compiled module.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// WazeroInstance is a running compression module.
type WazeroInstance struct {
	instance  api.Module
	memory    api.Memory
	funcCache map[string]api.Function
	cacheMu   sync.RWMutex
}

func (i *WazeroInstance) getExportedFunction(name string) api.Function {
	i.cacheMu.RLock()
	fn, ok := i.funcCache[name]
	i.cacheMu.RUnlock()
	if ok {
		return fn
	}

	fn = i.instance.ExportedFunction(name)
	if fn != nil {
		i.cacheMu.Lock()
		i.funcCache[name] = fn
		i.cacheMu.Unlock()
	}
	return fn
}

// HasExport reports whether the instance exports the function name.
func (i *WazeroInstance) HasExport(name string) bool {
	return i.instance != nil && i.getExportedFunction(name) != nil
}

// Call invokes an exported function. Host faults raised by the shim come
// back wrapped by wazero; callers that hold the Env should check its Fault.
func (i *WazeroInstance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.instance == nil {
		return nil, errors.NotInitialized(errors.PhaseSession, "instance")
	}
	fn := i.getExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseSession, "export", name)
	}
	return fn.Call(ctx, args...)
}

// Memory returns the instance's linear memory.
func (i *WazeroInstance) Memory() api.Memory {
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if closed.
func (i *WazeroInstance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	var err error
	if i.instance != nil {
		err = i.instance.Close(ctx)
		i.instance = nil
	}
	// Clear references to help GC
	i.funcCache = nil
	i.memory = nil
	return err
}
