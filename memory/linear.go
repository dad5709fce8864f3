package memory

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/wippyai/mozjpeg-wasm/errors"
)

// PageSize is the size of a wasm memory page.
const PageSize = 65536

// Buffer is the raw growable byte store behind a module's memory.
// wazero's api.Memory satisfies it.
type Buffer interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
}

// Linear is the host's reference to a module's linear memory.
type Linear struct {
	buf  Buffer
	root []byte
	gen  uint64
}

// New wraps buf and derives the initial root reference.
func New(buf Buffer) *Linear {
	l := &Linear{buf: buf}
	l.Refresh()
	return l
}

// Refresh re-derives the root reference and starts a new generation.
// Must run before any other access after the module grew its memory.
func (l *Linear) Refresh() uint64 {
	size := l.buf.Size()
	root, ok := l.buf.Read(0, size)
	if !ok {
		root = nil
	}
	l.root = root
	l.gen++
	return l.gen
}

// Generation returns the current generation.
func (l *Linear) Generation() uint64 {
	l.current()
	return l.gen
}

// Size returns the memory size in bytes.
func (l *Linear) Size() uint32 {
	return uint32(len(l.current()))
}

// Pages returns the memory size in pages.
func (l *Linear) Pages() uint32 {
	return l.Size() / PageSize
}

// current returns the root, refreshing it if the store changed size
// without a growth notification.
func (l *Linear) current() []byte {
	if uint32(len(l.root)) != l.buf.Size() {
		l.Refresh()
	}
	return l.root
}

func (l *Linear) slice(offset uint32, length uint64) ([]byte, error) {
	root := l.current()
	end := uint64(offset) + length
	if end > uint64(len(root)) {
		return nil, errors.OutOfBounds(errors.PhaseMemory, offset, length, uint32(len(root)))
	}
	return root[offset:end:end], nil
}

// View returns a window over [offset, offset+length) valid until the next growth.
func (l *Linear) View(offset, length uint32) (View, error) {
	if _, err := l.slice(offset, uint64(length)); err != nil {
		return View{}, err
	}
	return View{lin: l, gen: l.gen, loc: Location{Start: offset, Length: length}}, nil
}

// Read copies length bytes starting at offset.
func (l *Linear) Read(offset uint32, length uint32) ([]byte, error) {
	b, err := l.slice(offset, uint64(length))
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// Write copies data into memory at offset.
func (l *Linear) Write(offset uint32, data []byte) error {
	b, err := l.slice(offset, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (l *Linear) ReadU32(offset uint32) (uint32, error) {
	b, err := l.slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// WriteU8 writes a single byte.
func (l *Linear) WriteU8(offset uint32, value uint8) error {
	b, err := l.slice(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (l *Linear) WriteU32(offset uint32, value uint32) error {
	b, err := l.slice(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

// WriteF32 writes an IEEE 754 single precision little-endian value.
func (l *Linear) WriteF32(offset uint32, value float32) error {
	return l.WriteU32(offset, math.Float32bits(value))
}

// CString reads a NUL-terminated string. Without a terminator the string
// runs to the end of memory.
func (l *Linear) CString(offset uint32) (string, error) {
	root := l.current()
	if uint64(offset) > uint64(len(root)) {
		return "", errors.OutOfBounds(errors.PhaseMemory, offset, 1, uint32(len(root)))
	}
	tail := root[offset:]
	if n := bytes.IndexByte(tail, 0); n >= 0 {
		tail = tail[:n]
	}
	return string(tail), nil
}

// PutCString writes s and a NUL terminator at offset.
func (l *Linear) PutCString(offset uint32, s string) (uint32, error) {
	n := uint64(len(s)) + 1
	b, err := l.slice(offset, n)
	if err != nil {
		return 0, err
	}
	copy(b, s)
	b[len(s)] = 0
	return uint32(n), nil
}
