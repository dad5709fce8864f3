package runtime

import (
	"context"
	"testing"

	"github.com/wippyai/mozjpeg-wasm/chunk"
	"github.com/wippyai/mozjpeg-wasm/colorspace"
	mjerrors "github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/internal/wasmtest"
)

func TestDefaultSettings(t *testing.T) {
	st := DefaultSettings()
	if st.Quality != 75 || st.ChromaQuality != -1 || st.QuantTable != 3 || !st.OptimizeCoding || !st.Progressive {
		t.Errorf("unexpected defaults: %+v", st)
	}
	if err := st.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		path   string
	}{
		{"quality high", func(s *Settings) { s.Quality = 101 }, "quality"},
		{"quality low", func(s *Settings) { s.Quality = -1 }, "quality"},
		{"chroma", func(s *Settings) { s.ChromaQuality = -2 }, "chroma_quality"},
		{"quant table", func(s *Settings) { s.QuantTable = 9 }, "quant_table"},
		{"smoothing", func(s *Settings) { s.SmoothingFactor = 101 }, "smoothing"},
		{"half subsample", func(s *Settings) { s.ChromaH = 2 }, "chroma_subsample"},
		{"subsample range", func(s *Settings) { s.ChromaH, s.ChromaV = 5, 1 }, "chroma_subsample"},
		{"input-only color space", func(s *Settings) { s.OutColorSpace = colorspace.ExtBGRA }, "out_color_space"},
		{"trellis loops", func(s *Settings) { s.Trellis = &Trellis{} }, "trellis_loops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := DefaultSettings()
			tt.mutate(&st)
			err := st.Validate()

			e, ok := err.(*mjerrors.Error)
			if !ok {
				t.Fatalf("expected *errors.Error, got %T: %v", err, err)
			}
			if e.Kind != mjerrors.KindInvalidInput || len(e.Path) != 1 || e.Path[0] != tt.path {
				t.Errorf("got kind %s path %v, want invalid_input at %s", e.Kind, e.Path, tt.path)
			}
		})
	}
}

func TestSettings_ApplyFull(t *testing.T) {
	mod, _ := loadFake(t, wasmtest.FakeConfig{}, nil)
	ctx := context.Background()

	s, err := mod.InitCompress(ctx, Config{Width: 1, Height: 1, InColorSpace: colorspace.RGB}, chunk.NewCollector(), SessionOptions{})
	if err != nil {
		t.Fatalf("InitCompress failed: %v", err)
	}

	st := Settings{
		OutColorSpace:   colorspace.YCbCr,
		Quality:         85,
		ChromaQuality:   70,
		QuantTable:      2,
		SmoothingFactor: 10,
		ChromaH:         1,
		ChromaV:         1,
		Trellis:         &Trellis{Loops: 1, OptimizeTable: true},
	}
	if err := st.Apply(ctx, s); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if s.State() != Configuring {
		t.Errorf("state = %v, want configuring", s.State())
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := st.Apply(ctx, s); !isProtocol(err) {
		t.Errorf("Apply after Start: expected protocol error, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		Unconfigured: "unconfigured",
		Configuring:  "configuring",
		Compressing:  "compressing",
		Finished:     "finished",
		Aborted:      "aborted",
		State(9):     "state(9)",
	} {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
	if !Finished.Terminal() || !Aborted.Terminal() || Compressing.Terminal() {
		t.Error("Terminal mismatch")
	}
}
