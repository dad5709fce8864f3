package wasmtest

const (
	opUnreachable = 0x00
	opIf          = 0x04
	opEnd         = 0x0B
	opCall        = 0x10
	opDrop        = 0x1A
	opLocalGet    = 0x20
	opI32Load     = 0x28
	opI32Store    = 0x36
	opMemoryGrow  = 0x40
	opI32Const    = 0x41
	opI32GtS      = 0x4A
	opI32GeS      = 0x4E
	opI32Add      = 0x6A
	opI32Mul      = 0x6C

	blockEmpty = 0x40
)

// Instruction encoders. Each returns the bytes of one instruction.

func LocalGet(idx uint32) []byte { return appendULEB([]byte{opLocalGet}, uint64(idx)) }

func I32Const(v int32) []byte { return appendSLEB([]byte{opI32Const}, int64(v)) }

func Call(idx uint32) []byte { return appendULEB([]byte{opCall}, uint64(idx)) }

func Drop() []byte { return []byte{opDrop} }

func Unreachable() []byte { return []byte{opUnreachable} }

// MemoryGrow pops a page delta and pushes the previous size in pages.
func MemoryGrow() []byte { return []byte{opMemoryGrow, 0x00} }

// I32Load and I32Store use 4-byte alignment and a zero static offset.
func I32Load() []byte { return []byte{opI32Load, 0x02, 0x00} }

func I32Store() []byte { return []byte{opI32Store, 0x02, 0x00} }

func I32Add() []byte { return []byte{opI32Add} }

func I32Mul() []byte { return []byte{opI32Mul} }

func I32GtS() []byte { return []byte{opI32GtS} }

func I32GeS() []byte { return []byte{opI32GeS} }

// If opens a block with no result; close it with End.
func If() []byte { return []byte{opIf, blockEmpty} }

func End() []byte { return []byte{opEnd} }
