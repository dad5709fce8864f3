package engine

import (
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/shim"
)

// Export names of the compression module.
const (
	ExportMemory               = "memory"
	ExportInitialize           = "_initialize"
	ExportInitCompress         = "init_compress"
	ExportSetOutColorSpace     = "cinfo_set_out_color_space"
	ExportSetQuantTable        = "cinfo_set_quant_table"
	ExportSetOptimizeCoding    = "cinfo_set_optimize_coding"
	ExportSetSmoothingFactor   = "cinfo_set_smoothing_factor"
	ExportSetTrellis           = "cinfo_set_trellis"
	ExportSetQuality           = "cinfo_set_quality"
	ExportSetChromaSubsample   = "cinfo_set_chroma_subsample"
	ExportSetChannelSampFactor = "cinfo_set_channel_samp_factor"
	ExportDisableProgression   = "cinfo_disable_progression"
	ExportStartCompress        = "start_compress"
	ExportWriteScanlines       = "write_scanlines"
	ExportFinishCompress       = "finish_compress"
)

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

func sig(params int, results int) signature {
	s := signature{
		params:  make([]api.ValueType, params),
		results: make([]api.ValueType, results),
	}
	for i := range s.params {
		s.params[i] = api.ValueTypeI32
	}
	for i := range s.results {
		s.results[i] = api.ValueTypeI32
	}
	return s
}

var requiredExports = map[string]signature{
	ExportInitCompress:       sig(4, 1),
	ExportSetOutColorSpace:   sig(1, 0),
	ExportSetQuantTable:      sig(1, 0),
	ExportSetOptimizeCoding:  sig(1, 0),
	ExportSetSmoothingFactor: sig(1, 0),
	ExportSetTrellis:         sig(4, 0),
	ExportSetQuality:         sig(2, 0),
	ExportSetChromaSubsample: sig(2, 0),
	ExportDisableProgression: sig(0, 0),
	ExportStartCompress:      sig(0, 0),
	ExportWriteScanlines:     sig(0, 1),
	ExportFinishCompress:     sig(0, 0),
}

var optionalExports = map[string]signature{
	ExportSetChannelSampFactor: sig(3, 0),
	ExportInitialize:           sig(0, 0),
}

// validateImports checks that every function import is one the shim provides
// with the same signature.
func validateImports(compiled wazero.CompiledModule) error {
	var missing []errors.MissingImport
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		params, results, ok := shim.Signature(name)
		if mod != shim.ModuleName || !ok {
			missing = append(missing, errors.MissingImport{Module: mod, Function: name})
			continue
		}
		if !slices.Equal(params, def.ParamTypes()) || !slices.Equal(results, def.ResultTypes()) {
			return errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Path(mod, name).
				Detail("import signature %s does not match host %s",
					formatSig(def.ParamTypes(), def.ResultTypes()), formatSig(params, results)).
				Build()
		}
	}
	if len(missing) > 0 {
		return errors.MissingImports(missing...)
	}
	return nil
}

// validateExports checks the required exports and returns the optional
// exports the module provides.
func validateExports(compiled wazero.CompiledModule) ([]string, error) {
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "memory export", ExportMemory)
	}

	exports := compiled.ExportedFunctions()
	names := make([]string, 0, len(requiredExports))
	for name := range requiredExports {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		def, ok := exports[name]
		if !ok {
			return nil, errors.NotFound(errors.PhaseLoad, "export", name)
		}
		if err := checkExport(name, def, requiredExports[name]); err != nil {
			return nil, err
		}
	}

	var optional []string
	for name, want := range optionalExports {
		def, ok := exports[name]
		if !ok {
			continue
		}
		if err := checkExport(name, def, want); err != nil {
			return nil, err
		}
		optional = append(optional, name)
	}
	slices.Sort(optional)
	return optional, nil
}

func checkExport(name string, def api.FunctionDefinition, want signature) error {
	if slices.Equal(want.params, def.ParamTypes()) && slices.Equal(want.results, def.ResultTypes()) {
		return nil
	}
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).
		Path(name).
		Detail("export signature %s, expected %s",
			formatSig(def.ParamTypes(), def.ResultTypes()), formatSig(want.params, want.results)).
		Build()
}

func formatSig(params, results []api.ValueType) string {
	return fmt.Sprintf("(%s) -> (%s)", typeNames(params), typeNames(results))
}

func typeNames(types []api.ValueType) string {
	s := ""
	for i, t := range types {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	return s
}
