// Package errors provides structured error types for the mozjpeg-wasm host.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the module call it happened in, an offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseShim, errors.KindProtocol).
//		Call("fwrite").
//		Value(streamID).
//		Detail("unknown stream %d", streamID).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Protocol(errors.PhaseSession, "write row before start")
//	err := errors.OutOfBounds(errors.PhaseMemory, offset, length, size)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
