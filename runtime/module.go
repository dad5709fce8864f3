package runtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/mozjpeg-wasm/chunk"
	"github.com/wippyai/mozjpeg-wasm/colorspace"
	"github.com/wippyai/mozjpeg-wasm/engine"
	"github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/memory"
	"github.com/wippyai/mozjpeg-wasm/metrics"
	"github.com/wippyai/mozjpeg-wasm/shim"
)

// Options configures a module handle.
type Options struct {
	// Stdout and Stderr receive the module's text output. When nil the
	// text is logged.
	Stdout func(msg string)
	Stderr func(msg string)

	// OnMemGrow observes linear memory growth.
	OnMemGrow func(shim.GrowEvent)

	// RejectPutChar turns the module's fputc calls into fatal errors.
	RejectPutChar bool

	Logger *zap.Logger
}

// Module is an instantiated compression module. It runs one session at a
// time and must not be shared between goroutines without coordination;
// overlapping calls fail with a protocol error.
type Module struct {
	inst    *engine.WazeroInstance
	mem     *memory.Linear
	env     *shim.Env
	metrics *metrics.Metrics
	log     *zap.Logger
	session *Session
	owned   *Compiled
	busy    atomic.Bool
	closed  bool
}

func (m *Module) shimOptions(opts Options) shim.Options {
	log := m.log
	stdout := opts.Stdout
	if stdout == nil {
		stdout = shim.LogSink(log, shim.Stdout)
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = shim.LogSink(log, shim.Stderr)
	}

	return shim.Options{
		Stdout: func(msg string) {
			m.metrics.StreamMessage(shim.Stdout.String())
			stdout(msg)
		},
		Stderr: func(msg string) {
			m.metrics.StreamMessage(shim.Stderr.String())
			stderr(msg)
		},
		OnMemGrow: func(ev shim.GrowEvent) {
			m.metrics.MemoryGrown(ev.TotalBytes)
			if opts.OnMemGrow != nil {
				opts.OnMemGrow(ev)
			}
		},
		RejectPutChar: opts.RejectPutChar,
		Logger:        log,
	}
}

// Memory returns the module's linear memory.
func (m *Module) Memory() *memory.Linear {
	return m.mem
}

// Session returns the current session, or nil.
func (m *Module) Session() *Session {
	return m.session
}

// call invokes an entry point with the Env bound. A fault recorded by the
// shim takes precedence over the trap wazero reports for it.
func (m *Module) call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if m.closed {
		return nil, errors.NotInitialized(errors.PhaseSession, "module")
	}
	if !m.busy.CompareAndSwap(false, true) {
		return nil, busyError(name)
	}
	defer m.busy.Store(false)

	m.env.ClearFault()
	results, err := m.inst.Call(shim.WithEnv(ctx, m.env), name, args...)
	if err != nil {
		if fault := m.env.Fault(); fault != nil {
			return nil, fault
		}
		if errors.HasKind(err, errors.KindNotFound) {
			return nil, err
		}
		return nil, errors.Trap(name, err)
	}
	return results, nil
}

// busyError rejects a call made while another entry point is running,
// typically from inside an output or growth callback.
func busyError(name string) error {
	return errors.New(errors.PhaseSession, errors.KindProtocol).
		Call(name).
		Detail("module is busy with another call").
		Build()
}

// InitCompress starts a session for an image of cfg's geometry and binds
// sink to receive the codestream. A session still in progress on this
// module is superseded.
func (m *Module) InitCompress(ctx context.Context, cfg Config, sink chunk.Sink, opts SessionOptions) (*Session, error) {
	if m.closed {
		return nil, errors.NotInitialized(errors.PhaseSession, "module")
	}
	if m.busy.Load() {
		return nil, busyError(engine.ExportInitCompress)
	}
	if sink == nil {
		return nil, errors.InvalidInput(errors.PhaseSession, "nil sink")
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	if prev := m.session; prev != nil && !prev.state.Terminal() {
		prev.supersede()
	}

	s := &Session{
		mod:   m,
		cfg:   cfg,
		opts:  opts,
		start: now(),
	}
	s.sink = &countingSink{inner: sink, metrics: m.metrics}
	m.session = s

	m.env.Reset()
	m.env.BindSink(s.sink)

	results, err := m.call(ctx, engine.ExportInitCompress,
		uint64(cfg.Width), uint64(cfg.Height), uint64(cfg.InColorSpace), uint64(cfg.Channels))
	if err != nil {
		return nil, s.abort(err)
	}

	s.loc = memory.Location{Start: uint32(results[0]), Length: uint32(cfg.Width * cfg.Channels)}
	if s.loc.Start == 0 {
		return nil, s.abort(errors.New(errors.PhaseSession, errors.KindInvalidData).
			Call(engine.ExportInitCompress).
			Detail("module returned a null row buffer").
			Build())
	}
	if _, err := m.mem.View(s.loc.Start, s.loc.Length); err != nil {
		return nil, s.abort(err)
	}

	s.state = Configuring
	m.log.Debug("session initialized",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Stringer("color_space", cfg.InColorSpace),
		zap.Uint32("row_buffer", s.loc.Start))
	return s, nil
}

// Close releases the instance and its linear memory.
func (m *Module) Close(ctx context.Context) error {
	if m.closed {
		return nil
	}
	if s := m.session; s != nil && !s.state.Terminal() {
		s.supersede()
	}
	m.closed = true
	m.env.ReleaseSink()

	err := m.inst.Close(ctx)
	if m.owned != nil {
		if cerr := m.owned.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Config describes the input image of a session.
type Config struct {
	Width        int
	Height       int
	InColorSpace colorspace.ColorSpace
	// Channels is the number of bytes per pixel. Zero derives it from
	// InColorSpace.
	Channels int
}

const maxDimension = 65500

func (c Config) normalize() (Config, error) {
	if c.Width <= 0 || c.Height <= 0 || c.Width > maxDimension || c.Height > maxDimension {
		return c, errors.InvalidInput(errors.PhaseSession,
			fmt.Sprintf("image size %dx%d outside 1..%d", c.Width, c.Height, maxDimension))
	}
	if !c.InColorSpace.Valid() {
		return c, errors.InvalidInput(errors.PhaseSession,
			fmt.Sprintf("invalid input color space %v", c.InColorSpace))
	}
	if c.Channels == 0 {
		c.Channels = c.InColorSpace.Channels()
	}
	if c.Channels < 1 || c.Channels > 4 {
		return c, errors.InvalidInput(errors.PhaseSession, fmt.Sprintf("invalid channel count %d", c.Channels))
	}
	return c, nil
}

// countingSink feeds the output byte counter.
type countingSink struct {
	inner   chunk.Sink
	metrics *metrics.Metrics
	n       int64
}

func (c *countingSink) Capture(v memory.View) error {
	if err := c.inner.Capture(v); err != nil {
		return err
	}
	c.n += int64(v.Len())
	c.metrics.Output(v.Len())
	return nil
}
