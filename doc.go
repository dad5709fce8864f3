// Package mozjpeg hosts a mozjpeg build compiled to WebAssembly and streams
// pixel rows through it to produce a JPEG codestream.
//
// The compression logic lives entirely inside the wasm module. This library
// is the host side: it emulates the small slice of the C runtime the module
// imports, keeps its view of the module's growable linear memory valid across
// growth events, and drives the call-order protocol of the module's exports.
//
// # Architecture Overview
//
//	mozjpeg/             Root package with the Memory interface
//	├── runtime/         Module facade, compression sessions, row driver
//	├── engine/          wazero integration and import/export contract checks
//	├── shim/            Host implementations of the module's "env" imports
//	├── format/          printf/scanf emulation over argument word arrays
//	├── memory/          Generation-checked views over linear memory
//	├── chunk/           Output chunk collection
//	├── colorspace/      libjpeg color space identifiers
//	├── metrics/         Prometheus instrumentation
//	├── config/          TOML compression profiles
//	└── errors/          Structured error types
//
// # Quick Start
//
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
//	jpg, err := runtime.Compress(ctx, mod, runtime.Image{
//	    Width: w, Height: h, ColorSpace: colorspace.ExtRGBA, Pixels: pix,
//	}, runtime.DefaultSettings())
//
// # Memory Growth
//
// The module grows its memory from inside malloc and reports it through the
// after_memory_grow import. Every growth moves the memory to a new
// generation and invalidates all views taken before it; a stale view fails
// with a stale_view error instead of reading freed bytes.
//
// # Thread Safety
//
// Runtime is safe for concurrent use. A Module and its Sessions are not:
// each module has a single owner, and concurrent entry point calls are
// rejected with a protocol error.
package mozjpeg
