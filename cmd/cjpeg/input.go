package main

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/mozjpeg-wasm/colorspace"
	"github.com/wippyai/mozjpeg-wasm/runtime"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// readImage loads a PNG, or raw pixels when width and height are set.
func readImage(path string, width, height int, inColor string) (runtime.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runtime.Image{}, fmt.Errorf("read input: %w", err)
	}
	if bytes.HasPrefix(data, pngMagic) {
		return decodePNG(data)
	}
	if width <= 0 || height <= 0 {
		return runtime.Image{}, fmt.Errorf("%s is not a PNG; raw input needs -width and -height", path)
	}
	return rawImage(data, width, height, inColor)
}

func decodePNG(data []byte) (runtime.Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return runtime.Image{}, fmt.Errorf("decode png: %w", err)
	}

	b := src.Bounds()
	if g, ok := src.(*image.Gray); ok {
		return runtime.Image{
			Pixels:     g.Pix,
			Width:      b.Dx(),
			Height:     b.Dy(),
			ColorSpace: colorspace.Grayscale,
			Stride:     g.Stride,
		}, nil
	}

	rgba, ok := src.(*image.NRGBA)
	if !ok {
		rgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	return runtime.Image{
		Pixels:     rgba.Pix,
		Width:      b.Dx(),
		Height:     b.Dy(),
		ColorSpace: colorspace.ExtRGBA,
		Stride:     rgba.Stride,
	}, nil
}

func rawImage(data []byte, width, height int, inColor string) (runtime.Image, error) {
	cs, err := colorspace.Parse(inColor)
	if err != nil {
		return runtime.Image{}, err
	}
	want := width * height * cs.Channels()
	if len(data) != want {
		return runtime.Image{}, fmt.Errorf("raw input is %d bytes, %dx%d %s needs %d", len(data), width, height, cs, want)
	}
	return runtime.Image{
		Pixels:     data,
		Width:      width,
		Height:     height,
		ColorSpace: cs,
	}, nil
}

// outputName swaps the input extension for .jpg.
func outputName(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".jpg"
}
