// Package runtime drives the compression module: loading, the session
// lifecycle and streaming rows through the module's row buffer.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes, runtime.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mod.Close(ctx)
//
//	jpeg, err := runtime.Compress(ctx, mod, runtime.Image{
//	    Width: w, Height: h, ColorSpace: colorspace.ExtRGBA, Pixels: pix,
//	}, runtime.DefaultSettings())
//
// # Session Lifecycle
//
//	Unconfigured --InitCompress--> Configuring --Start--> Compressing
//	Compressing --WriteRow x Height--> Compressing --Finish--> Finished
//	any state --module exit or trap--> Aborted
//
// Setters are valid only while Configuring. Calls out of order fail with
// an errors.KindProtocol error and leave the session unchanged. A module
// exit or trap aborts the session; the error carries the exit code and the
// last line the module wrote to stderr (see errors.AbortCode). The module
// itself stays usable: the next InitCompress resets its state.
//
// # Row Streaming
//
// InitCompress returns the location of the module's row buffer. Each
// WriteRow re-derives a view of it, because the module grows its memory
// while compressing and any earlier view is stale by then. Codestream bytes
// are captured by the session's chunk.Sink while write_scanlines and
// finish_compress run.
package runtime
