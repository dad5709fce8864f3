package shim

import (
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/mozjpeg-wasm/chunk"
	"github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/format"
	"github.com/wippyai/mozjpeg-wasm/memory"
)

// maxPending bounds the unterminated stderr text kept for LastError.
const maxPending = 4096

// Options configures an Env.
type Options struct {
	// Stdout receives text the module writes to its standard output.
	// Defaults to LogSink.
	Stdout func(msg string)

	// Stderr receives text the module writes to its standard error.
	// Defaults to LogSink.
	Stderr func(msg string)

	// OnMemGrow is called after each memory growth, once the memory
	// reference has been refreshed.
	OnMemGrow func(GrowEvent)

	// RejectPutChar makes fputc a fatal protocol violation instead of
	// emitting the byte as text.
	RejectPutChar bool

	// Logger overrides the package logger for this Env.
	Logger *zap.Logger
}

// Env is the per-module state behind the "env" imports.
type Env struct {
	mem     *memory.Linear
	opts    Options
	log     *zap.Logger
	sink    chunk.Sink
	fault   error
	lastErr string
	pending string
	mu      sync.Mutex
}

// New creates an Env over the module's linear memory.
func New(mem *memory.Linear, opts Options) *Env {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	if opts.Stdout == nil {
		opts.Stdout = LogSink(log, Stdout)
	}
	if opts.Stderr == nil {
		opts.Stderr = LogSink(log, Stderr)
	}
	return &Env{mem: mem, opts: opts, log: log}
}

// LogSink returns a text callback that logs each message, at info level for
// stdout and warn level otherwise.
func LogSink(log *zap.Logger, stream StreamID) func(string) {
	level := log.Warn
	if stream == Stdout {
		level = log.Info
	}
	return func(msg string) {
		level(strings.TrimRight(msg, "\n"), zap.Stringer("stream", stream))
	}
}

// Memory returns the linear memory the Env operates on.
func (e *Env) Memory() *memory.Linear {
	return e.mem
}

// BindSink routes image bytes to s until ReleaseSink.
func (e *Env) BindSink(s chunk.Sink) {
	e.mu.Lock()
	e.sink = s
	e.mu.Unlock()
}

// ReleaseSink detaches the bound sink. Image bytes written afterwards are
// a protocol violation.
func (e *Env) ReleaseSink() {
	e.mu.Lock()
	e.sink = nil
	e.mu.Unlock()
}

// Fault returns the first fatal error raised since the last ClearFault.
func (e *Env) Fault() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fault
}

// ClearFault forgets the recorded fault. Called before each entry-point call.
func (e *Env) ClearFault() {
	e.mu.Lock()
	e.fault = nil
	e.mu.Unlock()
}

// LastError returns the most recent non-empty line written to stderr.
func (e *Env) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := strings.TrimSpace(e.pending); p != "" {
		return p
	}
	return e.lastErr
}

// Reset clears per-session state: sink, fault and stderr history.
func (e *Env) Reset() {
	e.mu.Lock()
	e.sink = nil
	e.fault = nil
	e.lastErr = ""
	e.pending = ""
	e.mu.Unlock()
}

func (e *Env) fail(err error) error {
	e.mu.Lock()
	if e.fault == nil {
		e.fault = err
	}
	e.mu.Unlock()
	return err
}

// Write implements fwrite. Image bytes go to the bound sink as a view;
// anything else is decoded as text. Returns count.
func (e *Env) Write(ptr, size, count uint32, stream StreamID) (uint32, error) {
	n := uint64(size) * uint64(count)
	if n > math.MaxUint32 {
		return 0, e.fail(errors.OutOfBounds(errors.PhaseShim, ptr, n, e.mem.Size()))
	}

	if stream == ImageOut {
		e.mu.Lock()
		sink := e.sink
		e.mu.Unlock()
		if sink == nil {
			return 0, e.fail(errors.New(errors.PhaseShim, errors.KindProtocol).
				Call("fwrite").
				Detail("image bytes written with no active session").
				Build())
		}
		v, err := e.mem.View(ptr, uint32(n))
		if err != nil {
			return 0, e.fail(err)
		}
		if err := sink.Capture(v); err != nil {
			return 0, e.fail(err)
		}
		return count, nil
	}

	text, err := e.mem.Read(ptr, uint32(n))
	if err != nil {
		return 0, e.fail(err)
	}
	if err := e.print("fwrite", stream, string(text)); err != nil {
		return 0, err
	}
	return count, nil
}

// Printf implements fiprintf. Returns 0.
func (e *Env) Printf(stream StreamID, fmtPtr, argsPtr uint32) (uint32, error) {
	text, err := e.sprintf(fmtPtr, argsPtr)
	if err != nil {
		return 0, err
	}
	if err := e.print("fiprintf", stream, text); err != nil {
		return 0, err
	}
	return 0, nil
}

// PutChar implements fputc. Returns the byte.
func (e *Env) PutChar(c uint32, stream StreamID) (uint32, error) {
	if e.opts.RejectPutChar {
		return 0, e.fail(errors.New(errors.PhaseShim, errors.KindProtocol).
			Call("fputc").
			Value(c).
			Detail("put-char is not supported").
			Build())
	}
	if err := e.print("fputc", stream, string(rune(byte(c)))); err != nil {
		return 0, err
	}
	return c, nil
}

// Flush implements fflush.
func (e *Env) Flush(StreamID) uint32 { return 0 }

// ErrorCheck implements ferror.
func (e *Env) ErrorCheck(StreamID) uint32 { return 0 }

// Sprintf implements siprintf: formats into dst and returns the bytes
// written including the terminator.
func (e *Env) Sprintf(dst, fmtPtr, argsPtr uint32) (uint32, error) {
	text, err := e.sprintf(fmtPtr, argsPtr)
	if err != nil {
		return 0, err
	}
	n, err := e.mem.PutCString(dst, text)
	if err != nil {
		return 0, e.fail(err)
	}
	return n, nil
}

// Sscanf implements sscanf and returns the number of values filled.
func (e *Env) Sscanf(bufPtr, fmtPtr, argsPtr uint32) (uint32, error) {
	input, err := e.mem.CString(bufPtr)
	if err != nil {
		return 0, e.fail(err)
	}
	f, err := e.mem.CString(fmtPtr)
	if err != nil {
		return 0, e.fail(err)
	}
	args, err := format.LoadArgs(e.mem, argsPtr, format.CountArgs(f))
	if err != nil {
		return 0, e.fail(err)
	}
	n, err := format.Sscanf(e.mem, input, f, args)
	if err != nil {
		return 0, e.fail(err)
	}
	return uint32(n), nil
}

// Pow implements math_pow.
func (e *Env) Pow(x, y float64) float64 {
	return math.Pow(x, y)
}

// Grow implements after_memory_grow. The memory reference is refreshed
// before the observer runs.
func (e *Env) Grow(pages, lastAlloc uint32) {
	gen := e.mem.Refresh()
	ev := GrowEvent{Pages: pages, TotalBytes: e.mem.Size(), LastAlloc: lastAlloc}
	e.log.Debug("memory grown",
		zap.Uint32("pages", ev.Pages),
		zap.Uint32("total_bytes", ev.TotalBytes),
		zap.Uint32("last_alloc", ev.LastAlloc),
		zap.Uint64("generation", gen))
	if e.opts.OnMemGrow != nil {
		e.opts.OnMemGrow(ev)
	}
}

// Exit implements exit. It always returns the abort error.
func (e *Env) Exit(code int32) error {
	err := errors.Abort(code, e.LastError())
	e.log.Debug("module exit", zap.Int32("code", code), zap.String("last_error", err.Detail))
	return e.fail(err)
}

func (e *Env) sprintf(fmtPtr, argsPtr uint32) (string, error) {
	f, err := e.mem.CString(fmtPtr)
	if err != nil {
		return "", e.fail(err)
	}
	args, err := format.LoadArgs(e.mem, argsPtr, format.CountArgs(f))
	if err != nil {
		return "", e.fail(err)
	}
	return format.Sprintf(e.mem, f, args), nil
}

func (e *Env) print(call string, stream StreamID, text string) error {
	switch stream {
	case Stdout:
		e.opts.Stdout(text)
	case Stderr:
		e.noteStderr(text)
		e.opts.Stderr(text)
	default:
		return e.fail(errors.New(errors.PhaseShim, errors.KindProtocol).
			Call(call).
			Value(uint32(stream)).
			Detail("text written to %s", stream).
			Build())
	}
	return nil
}

func (e *Env) noteStderr(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending += text
	for {
		i := strings.IndexByte(e.pending, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(e.pending[:i]); line != "" {
			e.lastErr = line
		}
		e.pending = e.pending[i+1:]
	}
	if len(e.pending) > maxPending {
		e.pending = e.pending[len(e.pending)-maxPending:]
	}
}
