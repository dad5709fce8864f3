package memory

import (
	"bytes"

	"github.com/wippyai/mozjpeg-wasm/errors"
)

// Location is a stable logical address in linear memory, such as the
// row scratch buffer returned by init_compress. Unlike a View it survives
// growth; views are re-derived from it.
type Location struct {
	Start  uint32
	Length uint32
}

// View is a bounds-checked window into linear memory tagged with the
// generation it was derived from.
type View struct {
	lin *Linear
	gen uint64
	loc Location
}

// Location returns the logical address the view covers.
func (v View) Location() Location {
	return v.loc
}

// Generation returns the memory generation the view was taken at.
func (v View) Generation() uint64 {
	return v.gen
}

// Len returns the view length in bytes.
func (v View) Len() int {
	return int(v.loc.Length)
}

// Valid reports whether the memory has not grown since the view was taken.
func (v View) Valid() bool {
	return v.lin != nil && v.lin.Generation() == v.gen
}

// Bytes returns the live bytes of the view. The slice aliases linear memory
// and must not be retained past the next module call.
func (v View) Bytes() ([]byte, error) {
	if v.lin == nil {
		return nil, errors.NotInitialized(errors.PhaseMemory, "view")
	}
	if cur := v.lin.Generation(); cur != v.gen {
		return nil, errors.StaleView(v.gen, cur)
	}
	return v.lin.slice(v.loc.Start, uint64(v.loc.Length))
}

// Clone copies the view's bytes into an owned buffer.
func (v View) Clone() ([]byte, error) {
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// CopyIn fills the view from src. src must be at least as long as the view;
// extra bytes are ignored.
func (v View) CopyIn(src []byte) error {
	b, err := v.Bytes()
	if err != nil {
		return err
	}
	if len(src) < len(b) {
		return errors.InvalidInput(errors.PhaseMemory, "source shorter than view")
	}
	copy(b, src)
	return nil
}
