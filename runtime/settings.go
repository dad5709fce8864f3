package runtime

import (
	"context"

	"github.com/wippyai/mozjpeg-wasm/colorspace"
	"github.com/wippyai/mozjpeg-wasm/errors"
)

// Settings is a complete compression configuration applied between
// InitCompress and Start.
type Settings struct {
	// Trellis overrides the module's trellis defaults when set.
	Trellis *Trellis

	// OutColorSpace selects the JPEG color space. Unknown keeps the module's
	// choice for the input color space.
	OutColorSpace colorspace.ColorSpace

	// Quality is the luma quality, 0 to 100.
	Quality int
	// ChromaQuality is the chroma quality; -1 uses Quality.
	ChromaQuality int

	// QuantTable is the base quantization table index, 0 to 8.
	QuantTable int

	// SmoothingFactor is 0 (off) to 100.
	SmoothingFactor int

	// ChromaH and ChromaV set chroma subsampling explicitly. Zero keeps the
	// module's quality-derived choice: 2x2 below quality 80, 2x1 below 90,
	// 1x1 above.
	ChromaH int
	ChromaV int

	OptimizeCoding bool
	Progressive    bool
}

// DefaultSettings returns the module's base configuration.
func DefaultSettings() Settings {
	return Settings{
		Quality:        75,
		ChromaQuality:  -1,
		QuantTable:     3,
		OptimizeCoding: true,
		Progressive:    true,
	}
}

// Validate checks value ranges without touching a module.
func (st Settings) Validate() error {
	check := func(field string, v, lo, hi int) error {
		if v < lo || v > hi {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path(field).
				Value(v).
				Detail("%d outside %d..%d", v, lo, hi).
				Build()
		}
		return nil
	}

	if err := check("quality", st.Quality, 0, 100); err != nil {
		return err
	}
	if err := check("chroma_quality", st.ChromaQuality, -1, 100); err != nil {
		return err
	}
	if err := check("quant_table", st.QuantTable, 0, 8); err != nil {
		return err
	}
	if err := check("smoothing", st.SmoothingFactor, 0, 100); err != nil {
		return err
	}
	if (st.ChromaH == 0) != (st.ChromaV == 0) {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("chroma_subsample").
			Detail("set both factors or neither, got %dx%d", st.ChromaH, st.ChromaV).
			Build()
	}
	if st.ChromaH != 0 {
		if err := check("chroma_subsample", st.ChromaH, 1, 4); err != nil {
			return err
		}
		if err := check("chroma_subsample", st.ChromaV, 1, 4); err != nil {
			return err
		}
	}
	if st.OutColorSpace != colorspace.Unknown && !st.OutColorSpace.IsOutput() {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("out_color_space").
			Detail("%v is not an output color space", st.OutColorSpace).
			Build()
	}
	if st.Trellis != nil {
		if err := check("trellis_loops", st.Trellis.Loops, 1, 100); err != nil {
			return err
		}
	}
	return nil
}

// Apply runs the setters on a Configuring session. The color space goes
// first because it resets component sampling, and quality precedes explicit
// subsampling because it picks its own.
func (st Settings) Apply(ctx context.Context, s *Session) error {
	if err := st.Validate(); err != nil {
		return err
	}

	if st.OutColorSpace != colorspace.Unknown {
		if err := s.SetOutColorSpace(ctx, st.OutColorSpace); err != nil {
			return err
		}
	}
	if err := s.SetQuantTable(ctx, st.QuantTable); err != nil {
		return err
	}
	if err := s.SetQuality(ctx, st.Quality, st.ChromaQuality); err != nil {
		return err
	}
	if err := s.SetOptimizeCoding(ctx, st.OptimizeCoding); err != nil {
		return err
	}
	if err := s.SetSmoothingFactor(ctx, st.SmoothingFactor); err != nil {
		return err
	}
	if st.Trellis != nil {
		if err := s.SetTrellis(ctx, *st.Trellis); err != nil {
			return err
		}
	}
	if st.ChromaH != 0 {
		if err := s.SetChromaSubsample(ctx, st.ChromaH, st.ChromaV); err != nil {
			return err
		}
	}
	if !st.Progressive {
		if err := s.DisableProgression(ctx); err != nil {
			return err
		}
	}
	return nil
}
