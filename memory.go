package mozjpeg

// Memory is the module's linear memory as seen by the host shim.
// Offsets are module addresses; every accessor is bounds checked.
type Memory interface {
	Size() uint32
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	WriteF32(offset uint32, value float32) error
	// CString reads a NUL-terminated string starting at offset.
	CString(offset uint32) (string, error)
	// PutCString writes s followed by a NUL byte and returns the bytes written
	// including the terminator.
	PutCString(offset uint32, s string) (uint32, error)
}
