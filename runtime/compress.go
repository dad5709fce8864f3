package runtime

import (
	"context"
	"fmt"

	"github.com/wippyai/mozjpeg-wasm/chunk"
	"github.com/wippyai/mozjpeg-wasm/colorspace"
	"github.com/wippyai/mozjpeg-wasm/errors"
)

// Image is an uncompressed pixel buffer.
type Image struct {
	Pixels     []byte
	Width      int
	Height     int
	ColorSpace colorspace.ColorSpace
	// Channels defaults to the color space's channel count.
	Channels int
	// Stride is the distance between row starts; 0 means tightly packed.
	Stride int
}

// Compress encodes img with st and returns the JPEG bytes.
func Compress(ctx context.Context, mod *Module, img Image, st Settings) ([]byte, error) {
	c := chunk.NewCollector()
	if err := CompressTo(ctx, mod, img, st, c, SessionOptions{}); err != nil {
		return nil, err
	}
	return c.Bytes(), nil
}

// CompressTo encodes img with st, streaming the codestream into sink.
func CompressTo(ctx context.Context, mod *Module, img Image, st Settings, sink chunk.Sink, opts SessionOptions) error {
	if err := st.Validate(); err != nil {
		return err
	}

	cfg, err := Config{
		Width:        img.Width,
		Height:       img.Height,
		InColorSpace: img.ColorSpace,
		Channels:     img.Channels,
	}.normalize()
	if err != nil {
		return err
	}

	rowLen := cfg.Width * cfg.Channels
	stride := img.Stride
	if stride == 0 {
		stride = rowLen
	}
	if stride < rowLen {
		return errors.InvalidInput(errors.PhaseSession, fmt.Sprintf("stride %d shorter than row %d", stride, rowLen))
	}
	if need := (cfg.Height-1)*stride + rowLen; len(img.Pixels) < need {
		return errors.InvalidInput(errors.PhaseSession,
			fmt.Sprintf("%d bytes of pixels, need %d", len(img.Pixels), need))
	}

	s, err := mod.InitCompress(ctx, cfg, sink, opts)
	if err != nil {
		return err
	}

	if err := st.Apply(ctx, s); err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	if err := s.WriteRows(ctx, img.Pixels, img.Height, stride); err != nil {
		return err
	}
	return s.Finish(ctx)
}

// CompressSimpleRGBA encodes tightly packed RGBA pixels at the given quality
// and returns the codestream chunks in output order.
func CompressSimpleRGBA(ctx context.Context, mod *Module, width, height, quality int, pix []byte) ([][]byte, error) {
	c := chunk.NewCollector()
	s, err := mod.InitCompress(ctx, Config{
		Width:        width,
		Height:       height,
		InColorSpace: colorspace.ExtRGBA,
		Channels:     4,
	}, c, SessionOptions{})
	if err != nil {
		return nil, err
	}
	if err := s.SetQuality(ctx, quality, -1); err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	if err := s.WriteRows(ctx, pix, height, width*4); err != nil {
		return nil, err
	}
	if err := s.Finish(ctx); err != nil {
		return nil, err
	}
	return c.Chunks(), nil
}
