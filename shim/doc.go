// Package shim implements the C runtime subset imported by the compression
// module under the wasm module name "env".
//
// An Env carries the per-module state the imports need: the module's linear
// memory, the sink that receives image bytes, the text callbacks for the
// standard streams and the first fatal fault raised during the current call.
// A single host module built by Instantiate serves every module instance in a
// wazero runtime; each entry-point call selects its Env through the context
// (see WithEnv).
//
// # Streams
//
// The module addresses three streams by fixed pointer values: Stdout (1),
// Stderr (2) and ImageOut (10042). Bytes written to ImageOut are handed to
// the bound chunk.Sink as a memory.View; text written to the other two is
// decoded and forwarded to the configured callbacks. Any other stream value
// is a protocol violation.
//
// # Faults
//
// Host functions cannot return errors to wasm. A fatal condition is recorded
// on the Env (see Env.Fault) and raised as a panic, which wazero recovers and
// returns from the entry-point call. Callers should prefer Env.Fault over the
// wrapped error wazero returns.
package shim
