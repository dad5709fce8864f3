// Package config loads compression profiles from TOML files.
//
// A profile holds both runtime limits and compression settings:
//
//	[runtime]
//	memory_limit = "64MB"
//	cache_dir = "/var/cache/cjpeg"
//
//	[compress]
//	quality = 82
//	chroma_subsample = "2x1"
//	out_color_space = "ycbcr"
//
//	[compress.trellis]
//	loops = 2
//	multipass = true
//
// Keys left out keep the values of Default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/c2h5oh/datasize"

	"github.com/wippyai/mozjpeg-wasm/colorspace"
	"github.com/wippyai/mozjpeg-wasm/engine"
	"github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/memory"
	"github.com/wippyai/mozjpeg-wasm/runtime"
)

// maxMemory is the wasm32 address space.
const maxMemory = 4 * datasize.GB

// Profile is a parsed configuration file.
type Profile struct {
	Runtime  Runtime  `toml:"runtime"`
	Compress Compress `toml:"compress"`

	// Path is the file the profile was loaded from (set at load time).
	Path string `toml:"-"`
}

// Runtime configures the engine and module handles.
type Runtime struct {
	MemoryLimit   datasize.ByteSize `toml:"memory_limit"`
	CacheDir      string            `toml:"cache_dir"`
	RejectPutChar bool              `toml:"reject_putchar"`
}

// Compress mirrors runtime.Settings in file form.
type Compress struct {
	Trellis         *Trellis `toml:"trellis"`
	OutColorSpace   string   `toml:"out_color_space"`
	ChromaSubsample string   `toml:"chroma_subsample"`
	Quality         int      `toml:"quality"`
	ChromaQuality   int      `toml:"chroma_quality"`
	QuantTable      int      `toml:"quant_table"`
	Smoothing       int      `toml:"smoothing"`
	OptimizeCoding  bool     `toml:"optimize_coding"`
	Progressive     bool     `toml:"progressive"`
}

// Trellis configures trellis quantization.
type Trellis struct {
	Loops              int  `toml:"loops"`
	Multipass          bool `toml:"multipass"`
	OptimizeZeroBlocks bool `toml:"optimize_zero_blocks"`
	OptimizeTable      bool `toml:"optimize_table"`
}

// Default returns the profile used when no file is given.
func Default() Profile {
	st := runtime.DefaultSettings()
	return Profile{
		Compress: Compress{
			Quality:        st.Quality,
			ChromaQuality:  st.ChromaQuality,
			QuantTable:     st.QuantTable,
			Smoothing:      st.SmoothingFactor,
			OptimizeCoding: st.OptimizeCoding,
			Progressive:    st.Progressive,
		},
	}
}

// Load reads and validates the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Path(path).
			Cause(err).
			Detail("cannot read profile").
			Build()
	}

	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.Path = path
	return p, nil
}

// Parse decodes and validates a profile.
func Parse(data []byte) (*Profile, error) {
	p := Default()
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Cause(err).
			Detail("parse error").
			Build()
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Value(keys).
			Detail("unknown keys: %s", strings.Join(keys, ", ")).
			Build()
	}

	if p.Runtime.MemoryLimit > maxMemory {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("runtime", "memory_limit").
			Value(p.Runtime.MemoryLimit.HumanReadable()).
			Detail("exceeds %s", maxMemory.HumanReadable()).
			Build()
	}
	if _, err := p.Settings(); err != nil {
		return nil, err
	}
	return &p, nil
}

// EngineConfig converts the runtime section, rounding the memory limit up
// to whole pages.
func (p *Profile) EngineConfig() engine.Config {
	limit := p.Runtime.MemoryLimit.Bytes()
	pages := (limit + memory.PageSize - 1) / memory.PageSize
	return engine.Config{
		MemoryLimitPages: uint32(pages),
		CacheDir:         p.Runtime.CacheDir,
	}
}

// Options returns the module options the profile sets.
func (p *Profile) Options() runtime.Options {
	return runtime.Options{RejectPutChar: p.Runtime.RejectPutChar}
}

// Settings converts the compress section to validated settings.
func (p *Profile) Settings() (runtime.Settings, error) {
	c := p.Compress
	st := runtime.Settings{
		Quality:         c.Quality,
		ChromaQuality:   c.ChromaQuality,
		QuantTable:      c.QuantTable,
		SmoothingFactor: c.Smoothing,
		OptimizeCoding:  c.OptimizeCoding,
		Progressive:     c.Progressive,
	}

	if c.OutColorSpace != "" {
		cs, err := colorspace.Parse(c.OutColorSpace)
		if err != nil {
			return st, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("compress", "out_color_space").
				Cause(err).
				Build()
		}
		st.OutColorSpace = cs
	}

	if c.ChromaSubsample != "" {
		h, v, err := parseSubsample(c.ChromaSubsample)
		if err != nil {
			return st, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("compress", "chroma_subsample").
				Value(c.ChromaSubsample).
				Cause(err).
				Build()
		}
		st.ChromaH, st.ChromaV = h, v
	}

	if c.Trellis != nil {
		st.Trellis = &runtime.Trellis{
			Loops:              c.Trellis.Loops,
			Multipass:          c.Trellis.Multipass,
			OptimizeZeroBlocks: c.Trellis.OptimizeZeroBlocks,
			OptimizeTable:      c.Trellis.OptimizeTable,
		}
	}

	if err := st.Validate(); err != nil {
		return st, err
	}
	return st, nil
}

// parseSubsample reads "HxV", for example "2x1".
func parseSubsample(s string) (int, int, error) {
	hs, vs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("want HxV, got %q", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("horizontal factor: %w", err)
	}
	v, err := strconv.Atoi(vs)
	if err != nil {
		return 0, 0, fmt.Errorf("vertical factor: %w", err)
	}
	return h, v, nil
}
