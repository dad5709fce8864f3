// Package engine compiles and instantiates the compression module on wazero.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Owns the wazero runtime and the shared "env" host module
//	WazeroModule   - A compiled module that passed contract validation
//	WazeroInstance - A running module with its own linear memory
//
// # Contract Validation
//
// LoadModule rejects modules that cannot run against the shim before any
// instance exists:
//
//   - every function import must be one of shim.Names() in module "env",
//     with the host's signature; unknown imports are reported together in
//     an errors.MissingImportsError
//   - "memory" and every required entry point must be exported with the
//     expected signature
//   - cinfo_set_channel_samp_factor and _initialize are optional
//
// # Memory Limits
//
// Config.MemoryLimitPages caps every instance's memory. The compression
// module grows its memory while encoding; a growth beyond the limit fails
// inside the module and surfaces as a trap.
package engine
