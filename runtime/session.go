package runtime

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/mozjpeg-wasm/chunk"
	"github.com/wippyai/mozjpeg-wasm/colorspace"
	"github.com/wippyai/mozjpeg-wasm/engine"
	"github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/memory"
	"github.com/wippyai/mozjpeg-wasm/metrics"
)

var now = time.Now

// State is the lifecycle state of a compression session.
type State int

const (
	Unconfigured State = iota
	Configuring
	Compressing
	Finished
	Aborted
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configuring:
		return "configuring"
	case Compressing:
		return "compressing"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further calls are accepted in s.
func (s State) Terminal() bool {
	return s == Finished || s == Aborted
}

// SessionOptions configures a session.
type SessionOptions struct {
	// Progress is called after each row with the rows written so far.
	Progress func(done, total int)
}

// Session drives one image through the module: configuration setters,
// start, one write_scanlines call per row, finish.
type Session struct {
	mod        *Module
	sink       *countingSink
	err        error
	start      time.Time
	opts       SessionOptions
	cfg        Config
	loc        memory.Location
	rows       int
	state      State
	superseded bool
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Config returns the normalized image configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// RowBuffer returns the location of the module's row scratch buffer.
func (s *Session) RowBuffer() memory.Location {
	return s.loc
}

// Rows returns the number of rows written.
func (s *Session) Rows() int {
	return s.rows
}

// OutputBytes returns the number of codestream bytes captured so far.
func (s *Session) OutputBytes() int64 {
	return s.sink.n
}

// Err returns the error that aborted the session.
func (s *Session) Err() error {
	return s.err
}

// guard runs before a session touches module memory. A busy module is
// rejected without aborting: the call in progress still owns the session.
func (s *Session) guard(op string, want State) error {
	if s.mod.busy.Load() {
		return busyError(op)
	}
	if s.superseded {
		return errors.New(errors.PhaseSession, errors.KindProtocol).
			Call(op).
			Detail("session was superseded by a newer init_compress").
			Build()
	}
	if s.state != want {
		return errors.New(errors.PhaseSession, errors.KindProtocol).
			Call(op).
			Value(s.state).
			Detail("not allowed in state %s", s.state).
			Build()
	}
	return nil
}

// abort moves the session to Aborted and returns err.
func (s *Session) abort(err error) error {
	if s.state == Aborted {
		return err
	}
	s.state = Aborted
	s.err = err
	s.mod.env.ReleaseSink()

	result := metrics.ResultFailed
	if code, ok := errors.AbortCode(err); ok {
		result = metrics.ResultAborted
		s.mod.metrics.Abort(code)
	}
	s.mod.metrics.SessionDone(result, s.start)
	s.mod.log.Debug("session aborted", zap.Int("rows", s.rows), zap.Error(err))
	return err
}

func (s *Session) supersede() {
	s.superseded = true
	s.state = Aborted
	s.err = errors.Protocol(errors.PhaseSession, "superseded")
	s.mod.metrics.SessionDone(metrics.ResultFailed, s.start)
}

// configure calls a setter export while Configuring.
func (s *Session) configure(ctx context.Context, name string, args ...uint64) error {
	if err := s.guard(name, Configuring); err != nil {
		return err
	}
	if _, err := s.mod.call(ctx, name, args...); err != nil {
		return s.abort(err)
	}
	return nil
}

func i32(v int) uint64 {
	return uint64(uint32(int32(v)))
}

func flag(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// SetOutColorSpace selects the JPEG color space.
func (s *Session) SetOutColorSpace(ctx context.Context, cs colorspace.ColorSpace) error {
	if !cs.IsOutput() {
		return errors.InvalidInput(errors.PhaseSession, fmt.Sprintf("%v is not an output color space", cs))
	}
	return s.configure(ctx, engine.ExportSetOutColorSpace, i32(int(cs)))
}

// SetQuantTable selects the base quantization table index.
func (s *Session) SetQuantTable(ctx context.Context, index int) error {
	return s.configure(ctx, engine.ExportSetQuantTable, i32(index))
}

// SetOptimizeCoding toggles optimal Huffman table computation.
func (s *Session) SetOptimizeCoding(ctx context.Context, on bool) error {
	return s.configure(ctx, engine.ExportSetOptimizeCoding, flag(on))
}

// SetSmoothingFactor sets input smoothing, 0 to 100.
func (s *Session) SetSmoothingFactor(ctx context.Context, factor int) error {
	return s.configure(ctx, engine.ExportSetSmoothingFactor, i32(factor))
}

// Trellis configures trellis quantization.
type Trellis struct {
	Loops              int
	Multipass          bool
	OptimizeZeroBlocks bool
	OptimizeTable      bool
}

// SetTrellis enables trellis quantization with t's passes and options.
func (s *Session) SetTrellis(ctx context.Context, t Trellis) error {
	return s.configure(ctx, engine.ExportSetTrellis,
		i32(t.Loops), flag(t.Multipass), flag(t.OptimizeZeroBlocks), flag(t.OptimizeTable))
}

// SetQuality sets luma and chroma quality. A negative chroma uses luma.
// The module also picks chroma subsampling from the quality, so explicit
// subsampling must come after this call.
func (s *Session) SetQuality(ctx context.Context, luma, chroma int) error {
	return s.configure(ctx, engine.ExportSetQuality, i32(luma), i32(chroma))
}

// SetChromaSubsample sets the sampling factors of the luma component,
// which downsamples chroma by the same ratio.
func (s *Session) SetChromaSubsample(ctx context.Context, h, v int) error {
	return s.configure(ctx, engine.ExportSetChromaSubsample, i32(h), i32(v))
}

// SetChannelSampFactor sets the sampling factors of one component.
// Not every build of the module exports it.
func (s *Session) SetChannelSampFactor(ctx context.Context, component, h, v int) error {
	if err := s.guard(engine.ExportSetChannelSampFactor, Configuring); err != nil {
		return err
	}
	if !s.mod.inst.HasExport(engine.ExportSetChannelSampFactor) {
		return errors.Unsupported(errors.PhaseSession, engine.ExportSetChannelSampFactor+" not exported")
	}
	if component < 0 || component > 3 {
		return errors.InvalidInput(errors.PhaseSession, fmt.Sprintf("component %d outside 0..3", component))
	}
	return s.configure(ctx, engine.ExportSetChannelSampFactor, i32(component), i32(h), i32(v))
}

// DisableProgression produces a sequential JPEG.
func (s *Session) DisableProgression(ctx context.Context) error {
	return s.configure(ctx, engine.ExportDisableProgression)
}

// Start ends configuration and writes the stream header.
func (s *Session) Start(ctx context.Context) error {
	if err := s.guard(engine.ExportStartCompress, Configuring); err != nil {
		return err
	}
	if _, err := s.mod.call(ctx, engine.ExportStartCompress); err != nil {
		return s.abort(err)
	}
	s.state = Compressing
	return nil
}

// WriteRow copies one row into the module's row buffer and compresses it.
// row must hold at least RowBuffer().Length bytes.
func (s *Session) WriteRow(ctx context.Context, row []byte) error {
	if err := s.guard(engine.ExportWriteScanlines, Compressing); err != nil {
		return err
	}
	if s.rows >= s.cfg.Height {
		return errors.New(errors.PhaseSession, errors.KindProtocol).
			Call(engine.ExportWriteScanlines).
			Detail("all %d rows already written", s.cfg.Height).
			Build()
	}
	if len(row) < int(s.loc.Length) {
		return errors.InvalidInput(errors.PhaseSession,
			fmt.Sprintf("row of %d bytes, need %d", len(row), s.loc.Length))
	}

	// the previous call may have grown memory, so the view is taken fresh
	view, err := s.mod.mem.View(s.loc.Start, s.loc.Length)
	if err != nil {
		return s.abort(err)
	}
	if err := view.CopyIn(row); err != nil {
		return s.abort(err)
	}

	results, err := s.mod.call(ctx, engine.ExportWriteScanlines)
	if err != nil {
		return s.abort(err)
	}
	s.rows++
	s.mod.metrics.Row()

	done := results[0] != 0
	if want := s.rows == s.cfg.Height; done != want {
		return s.abort(errors.New(errors.PhaseSession, errors.KindProtocol).
			Call(engine.ExportWriteScanlines).
			Value(done).
			Detail("module reported complete=%t after row %d of %d", done, s.rows, s.cfg.Height).
			Build())
	}

	if s.opts.Progress != nil {
		s.opts.Progress(s.rows, s.cfg.Height)
	}
	return nil
}

// WriteRows writes rows rows from pix, top to bottom, each starting
// stride bytes after the previous one.
func (s *Session) WriteRows(ctx context.Context, pix []byte, rows, stride int) error {
	length := int(s.loc.Length)
	if rows < 0 {
		return errors.InvalidInput(errors.PhaseSession, fmt.Sprintf("negative row count %d", rows))
	}
	if stride < length {
		return errors.InvalidInput(errors.PhaseSession, fmt.Sprintf("stride %d shorter than row %d", stride, length))
	}
	if rows > 0 && len(pix) < (rows-1)*stride+length {
		return errors.InvalidInput(errors.PhaseSession,
			fmt.Sprintf("%d bytes of pixels do not cover %d rows at stride %d", len(pix), rows, stride))
	}

	for i := 0; i < rows; i++ {
		off := i * stride
		if err := s.WriteRow(ctx, pix[off:off+length]); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes the codestream after the last row and releases the sink.
func (s *Session) Finish(ctx context.Context) error {
	if err := s.guard(engine.ExportFinishCompress, Compressing); err != nil {
		return err
	}
	if s.rows != s.cfg.Height {
		return errors.New(errors.PhaseSession, errors.KindProtocol).
			Call(engine.ExportFinishCompress).
			Detail("%d of %d rows written", s.rows, s.cfg.Height).
			Build()
	}
	if _, err := s.mod.call(ctx, engine.ExportFinishCompress); err != nil {
		return s.abort(err)
	}

	s.state = Finished
	s.mod.env.ReleaseSink()
	s.mod.metrics.SessionDone(metrics.ResultFinished, s.start)
	s.mod.log.Debug("session finished",
		zap.Int("rows", s.rows),
		zap.Int64("output_bytes", s.sink.n),
		zap.Duration("elapsed", time.Since(s.start)))
	return nil
}

var _ chunk.Sink = (*countingSink)(nil)
