package shim

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mozjpeg-wasm/errors"
)

// ModuleName is the import module the compression module expects.
const ModuleName = "env"

// Import names provided by the host module.
const (
	FuncExit            = "exit"
	FuncFwrite          = "fwrite"
	FuncFiprintf        = "fiprintf"
	FuncFputc           = "fputc"
	FuncFflush          = "fflush"
	FuncFerror          = "ferror"
	FuncSiprintf        = "siprintf"
	FuncSscanf          = "sscanf"
	FuncMathPow         = "math_pow"
	FuncAfterMemoryGrow = "after_memory_grow"
)

type envKey struct{}

// WithEnv binds env to ctx. Entry-point calls made with the returned context
// dispatch their imports to env.
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// FromContext returns the Env bound by WithEnv.
func FromContext(ctx context.Context) (*Env, bool) {
	env, ok := ctx.Value(envKey{}).(*Env)
	return env, ok && env != nil
}

func mustEnv(ctx context.Context, name string) *Env {
	env, ok := FromContext(ctx)
	if !ok {
		panic(errors.New(errors.PhaseShim, errors.KindNotInitialized).
			Call(name).
			Detail("import called without a bound env").
			Build())
	}
	return env
}

// Instantiate instantiates the "env" host module into r.
//
// Closing the wazero.Runtime has the same effect as closing the result.
func Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleName)
	NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}

// FunctionExporter exports the shim's functions into a host module builder,
// so callers can add their own "env" functions next to them.
type FunctionExporter interface {
	ExportFunctions(builder wazero.HostModuleBuilder)
}

// NewFunctionExporter returns the default FunctionExporter.
func NewFunctionExporter() FunctionExporter {
	return &functionExporter{}
}

type functionExporter struct{}

type hostFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
	names   []string
	fn      api.GoModuleFunc
}

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

// ExportFunctions implements FunctionExporter.ExportFunctions
func (e *functionExporter) ExportFunctions(builder wazero.HostModuleBuilder) {
	for _, hf := range hostFuncs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(hf.fn, hf.params, hf.results).
			WithParameterNames(hf.names...).
			Export(hf.name)
	}
}

// Names returns the import names provided by the host module.
func Names() []string {
	names := make([]string, len(hostFuncs))
	for i, hf := range hostFuncs {
		names[i] = hf.name
	}
	return names
}

// Signature returns the wasm signature of the named import.
func Signature(name string) (params, results []api.ValueType, ok bool) {
	for _, hf := range hostFuncs {
		if hf.name == name {
			return hf.params, hf.results, true
		}
	}
	return nil, nil, false
}

func raise(err error) {
	if err != nil {
		panic(err)
	}
}

var hostFuncs = []hostFunc{
	{
		name:   FuncExit,
		params: []api.ValueType{i32},
		names:  []string{"code"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			raise(mustEnv(ctx, FuncExit).Exit(api.DecodeI32(stack[0])))
		},
	},
	{
		name:    FuncFwrite,
		params:  []api.ValueType{i32, i32, i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"ptr", "size", "count", "stream"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			n, err := mustEnv(ctx, FuncFwrite).Write(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
				api.DecodeU32(stack[2]), StreamID(api.DecodeU32(stack[3])))
			raise(err)
			stack[0] = api.EncodeU32(n)
		},
	},
	{
		name:    FuncFiprintf,
		params:  []api.ValueType{i32, i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"stream", "format", "args"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			n, err := mustEnv(ctx, FuncFiprintf).Printf(StreamID(api.DecodeU32(stack[0])),
				api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
			raise(err)
			stack[0] = api.EncodeU32(n)
		},
	},
	{
		name:    FuncFputc,
		params:  []api.ValueType{i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"c", "stream"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			n, err := mustEnv(ctx, FuncFputc).PutChar(api.DecodeU32(stack[0]), StreamID(api.DecodeU32(stack[1])))
			raise(err)
			stack[0] = api.EncodeU32(n)
		},
	},
	{
		name:    FuncFflush,
		params:  []api.ValueType{i32},
		results: []api.ValueType{i32},
		names:   []string{"stream"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeU32(mustEnv(ctx, FuncFflush).Flush(StreamID(api.DecodeU32(stack[0]))))
		},
	},
	{
		name:    FuncFerror,
		params:  []api.ValueType{i32},
		results: []api.ValueType{i32},
		names:   []string{"stream"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeU32(mustEnv(ctx, FuncFerror).ErrorCheck(StreamID(api.DecodeU32(stack[0]))))
		},
	},
	{
		name:    FuncSiprintf,
		params:  []api.ValueType{i32, i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"dst", "format", "args"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			n, err := mustEnv(ctx, FuncSiprintf).Sprintf(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
				api.DecodeU32(stack[2]))
			raise(err)
			stack[0] = api.EncodeU32(n)
		},
	},
	{
		name:    FuncSscanf,
		params:  []api.ValueType{i32, i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"buf", "format", "args"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			n, err := mustEnv(ctx, FuncSscanf).Sscanf(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
				api.DecodeU32(stack[2]))
			raise(err)
			stack[0] = api.EncodeU32(n)
		},
	},
	{
		name:    FuncMathPow,
		params:  []api.ValueType{f64, f64},
		results: []api.ValueType{f64},
		names:   []string{"x", "y"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			stack[0] = api.EncodeF64(mustEnv(ctx, FuncMathPow).Pow(api.DecodeF64(stack[0]), api.DecodeF64(stack[1])))
		},
	},
	{
		name:   FuncAfterMemoryGrow,
		params: []api.ValueType{i32, i32},
		names:  []string{"pages", "last_alloc"},
		fn: func(ctx context.Context, _ api.Module, stack []uint64) {
			mustEnv(ctx, FuncAfterMemoryGrow).Grow(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
		},
	},
}
