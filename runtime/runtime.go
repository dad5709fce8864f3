package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/mozjpeg-wasm/engine"
	"github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/memory"
	"github.com/wippyai/mozjpeg-wasm/metrics"
	"github.com/wippyai/mozjpeg-wasm/shim"
)

// RuntimeConfig configures a Runtime.
type RuntimeConfig struct {
	Engine  engine.Config
	Metrics *metrics.Metrics
}

type Runtime struct {
	engine  *engine.WazeroEngine
	metrics *metrics.Metrics
}

// New creates a runtime. A nil cfg uses engine defaults and no metrics.
func New(ctx context.Context, cfg *RuntimeConfig) (*Runtime, error) {
	var engCfg *engine.Config
	var m *metrics.Metrics
	if cfg != nil {
		engCfg = &cfg.Engine
		m = cfg.Metrics
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, engCfg)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{engine: eng, metrics: m}, nil
}

// Close releases all runtime resources.
// All modules must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Compile validates and compiles a compression module for repeated
// instantiation.
func (r *Runtime) Compile(ctx context.Context, wasm []byte) (*Compiled, error) {
	compiled, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, err
	}
	return &Compiled{runtime: r, compiled: compiled}, nil
}

// Load compiles wasm and instantiates it once. Closing the module also
// releases the compiled code.
func (r *Runtime) Load(ctx context.Context, wasm []byte, opts Options) (*Module, error) {
	c, err := r.Compile(ctx, wasm)
	if err != nil {
		return nil, err
	}
	mod, err := c.Instantiate(ctx, opts)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	mod.owned = c
	return mod, nil
}

// Compiled is a validated compression module.
type Compiled struct {
	runtime  *Runtime
	compiled *engine.WazeroModule
}

// Instantiate creates a module handle with its own linear memory.
func (c *Compiled) Instantiate(ctx context.Context, opts Options) (*Module, error) {
	inst, err := c.compiled.Instantiate(ctx)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	m := &Module{
		inst:    inst,
		mem:     memory.New(inst.Memory()),
		metrics: c.runtime.metrics,
		log:     log,
	}
	m.env = shim.New(m.mem, m.shimOptions(opts))

	if c.compiled.HasExport(engine.ExportInitialize) {
		if _, err := m.call(ctx, engine.ExportInitialize); err != nil {
			_ = inst.Close(ctx)
			return nil, err
		}
	}

	log.Debug("module instantiated",
		zap.Uint32("memory_pages", m.mem.Pages()),
		zap.Bool("channel_samp_factor", c.compiled.HasExport(engine.ExportSetChannelSampFactor)))
	return m, nil
}

// Close releases the compiled code. Instances stay usable.
func (c *Compiled) Close(ctx context.Context) error {
	return c.compiled.Close(ctx)
}
