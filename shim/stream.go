package shim

import "strconv"

// StreamID is the FILE pointer value the module passes to the stream imports.
type StreamID uint32

const (
	Stdout   StreamID = 1
	Stderr   StreamID = 2
	ImageOut StreamID = 10042
)

func (s StreamID) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	case ImageOut:
		return "image"
	default:
		return "stream(" + strconv.FormatUint(uint64(s), 10) + ")"
	}
}

// GrowEvent describes one after_memory_grow notification.
type GrowEvent struct {
	Pages      uint32 // pages added by the growth
	TotalBytes uint32 // memory size after the growth
	LastAlloc  uint32 // size of the allocation that triggered it
}
