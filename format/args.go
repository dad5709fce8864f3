package format

import (
	mozjpeg "github.com/wippyai/mozjpeg-wasm"
)

// WordSize is the stride of the argument word array.
const WordSize = 4

// Args is a cursor over the argument words of one variadic call.
type Args struct {
	words []uint32
	pos   int
}

// NewArgs returns a cursor over words.
func NewArgs(words ...uint32) *Args {
	return &Args{words: words}
}

// LoadArgs reads n argument words starting at ptr.
func LoadArgs(mem mozjpeg.Memory, ptr uint32, n int) (*Args, error) {
	words := make([]uint32, n)
	for i := range words {
		w, err := mem.ReadU32(ptr + uint32(i)*WordSize)
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return &Args{words: words}, nil
}

// Next returns the next word. An exhausted cursor yields 0.
func (a *Args) Next() uint32 {
	if a.pos >= len(a.words) {
		a.pos++
		return 0
	}
	w := a.words[a.pos]
	a.pos++
	return w
}

// Consumed returns how many words were taken, including reads past the end.
func (a *Args) Consumed() int {
	return a.pos
}

// Len returns the number of loaded words.
func (a *Args) Len() int {
	return len(a.words)
}
