// Package wasmtest provides test fixtures: a Go-backed linear memory and a
// minimal wasm binary encoder used to build fake compression modules.
package wasmtest
