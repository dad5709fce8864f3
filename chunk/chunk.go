// Package chunk captures the compressed output the module writes to its
// image stream.
package chunk

import (
	"io"

	"github.com/wippyai/mozjpeg-wasm/memory"
)

// Sink receives output ranges as the module reports them. The view is only
// valid for the duration of Capture; implementations must copy or fully
// consume it before returning.
type Sink interface {
	Capture(v memory.View) error
}

// Collector copies every captured range into an owned buffer and keeps them
// in capture order.
type Collector struct {
	chunks [][]byte
	size   int
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Capture copies the view's bytes and appends them.
func (c *Collector) Capture(v memory.View) error {
	b, err := v.Clone()
	if err != nil {
		return err
	}
	c.Append(b)
	return nil
}

// Append adds an owned chunk. b must not be modified afterwards.
func (c *Collector) Append(b []byte) {
	if len(b) == 0 {
		return
	}
	c.chunks = append(c.chunks, b)
	c.size += len(b)
}

// Chunks returns the captured chunks in order.
func (c *Collector) Chunks() [][]byte {
	return c.chunks
}

// Count returns the number of chunks.
func (c *Collector) Count() int {
	return len(c.chunks)
}

// Len returns the total number of captured bytes.
func (c *Collector) Len() int {
	return c.size
}

// Bytes returns the concatenation of all chunks.
func (c *Collector) Bytes() []byte {
	out := make([]byte, 0, c.size)
	for _, ch := range c.chunks {
		out = append(out, ch...)
	}
	return out
}

// WriteTo writes all chunks to w in order.
func (c *Collector) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, ch := range c.chunks {
		m, err := w.Write(ch)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reset drops all captured chunks.
func (c *Collector) Reset() {
	c.chunks = nil
	c.size = 0
}

// WriterSink streams each range straight to an io.Writer.
type WriterSink struct {
	W io.Writer
	N int64
}

// Capture writes the view's bytes to the underlying writer.
func (s *WriterSink) Capture(v memory.View) error {
	b, err := v.Bytes()
	if err != nil {
		return err
	}
	n, err := s.W.Write(b)
	s.N += int64(n)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return err
}

var (
	_ Sink = (*Collector)(nil)
	_ Sink = (*WriterSink)(nil)
	_ io.WriterTo = (*Collector)(nil)
)
