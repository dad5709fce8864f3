package wasmtest

// PageSize is the size of a wasm memory page.
const PageSize = 65536

// SliceBuffer is a Go-backed stand-in for a module's linear memory.
// Grow always reallocates so that stale slices are detectable.
type SliceBuffer struct {
	data  []byte
	grows int
}

// NewSliceBuffer returns a buffer of the given number of pages.
func NewSliceBuffer(pages uint32) *SliceBuffer {
	return &SliceBuffer{data: make([]byte, pages*PageSize)}
}

func (b *SliceBuffer) Size() uint32 {
	return uint32(len(b.data))
}

func (b *SliceBuffer) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(b.data)) {
		return nil, false
	}
	return b.data[offset:end:end], true
}

// Grow appends pages to the buffer, moving it to a fresh allocation.
func (b *SliceBuffer) Grow(pages uint32) {
	next := make([]byte, len(b.data)+int(pages)*PageSize)
	copy(next, b.data)
	// poison the old store so reads through stale slices are visible
	for i := range b.data {
		b.data[i] = 0xAA
	}
	b.data = next
	b.grows++
}

// Grows returns how many times Grow was called.
func (b *SliceBuffer) Grows() int {
	return b.grows
}

// Put writes data at offset, panicking when out of range. Test setup only.
func (b *SliceBuffer) Put(offset uint32, data []byte) {
	copy(b.data[offset:offset+uint32(len(data))], data)
}

// PutString writes s and a NUL terminator at offset.
func (b *SliceBuffer) PutString(offset uint32, s string) {
	b.Put(offset, append([]byte(s), 0))
}

// PutWords writes little-endian 32-bit words at offset.
func (b *SliceBuffer) PutWords(offset uint32, words ...uint32) {
	for i, w := range words {
		o := offset + uint32(i)*4
		b.data[o] = byte(w)
		b.data[o+1] = byte(w >> 8)
		b.data[o+2] = byte(w >> 16)
		b.data[o+3] = byte(w >> 24)
	}
}

// Bytes returns the live contents. Test assertions only.
func (b *SliceBuffer) Bytes() []byte {
	return b.data
}
