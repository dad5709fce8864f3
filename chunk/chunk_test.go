package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	mjerrors "github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/internal/wasmtest"
	"github.com/wippyai/mozjpeg-wasm/memory"
)

func capture(t *testing.T, s Sink, lin *memory.Linear, off uint32, n uint32) {
	t.Helper()
	v, err := lin.View(off, n)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if err := s.Capture(v); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
}

func TestCollector_OrderPreserving(t *testing.T) {
	buf := wasmtest.NewSliceBuffer(1)
	lin := memory.New(buf)

	a := []byte{0xFF, 0xD8, 0xFF}
	b := []byte("segment-b")
	c := []byte{0x00, 0x01, 0xFF, 0xD9}

	c1 := NewCollector()

	// the module reuses one output buffer for every write
	for _, part := range [][]byte{a, b, c} {
		buf.Put(4096, part)
		capture(t, c1, lin, 4096, uint32(len(part)))
	}

	want := append(append(append([]byte{}, a...), b...), c...)
	if diff := cmp.Diff(want, c1.Bytes()); diff != "" {
		t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]byte{a, b, c}, c1.Chunks()); diff != "" {
		t.Errorf("Chunks mismatch (-want +got):\n%s", diff)
	}
	if c1.Count() != 3 {
		t.Errorf("Count = %d, want 3", c1.Count())
	}
	if c1.Len() != len(want) {
		t.Errorf("Len = %d, want %d", c1.Len(), len(want))
	}

	var out bytes.Buffer
	n, err := c1.WriteTo(&out)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != int64(len(want)) || !bytes.Equal(out.Bytes(), want) {
		t.Errorf("WriteTo wrote %d bytes %x, want %x", n, out.Bytes(), want)
	}
}

func TestCollector_CopiesEagerly(t *testing.T) {
	buf := wasmtest.NewSliceBuffer(1)
	lin := memory.New(buf)
	c := NewCollector()

	buf.Put(0, []byte("first"))
	capture(t, c, lin, 0, 5)

	// overwrite the source and grow memory; the captured chunk is unaffected
	buf.Put(0, []byte("XXXXX"))
	buf.Grow(1)
	lin.Refresh()

	if got := string(c.Bytes()); got != "first" {
		t.Errorf("captured chunk changed to %q", got)
	}
}

func TestCollector_StaleView(t *testing.T) {
	buf := wasmtest.NewSliceBuffer(1)
	lin := memory.New(buf)

	v, err := lin.View(0, 4)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	buf.Grow(1)
	lin.Refresh()

	c := NewCollector()
	err = c.Capture(v)
	if !errors.Is(err, &mjerrors.Error{Phase: mjerrors.PhaseMemory, Kind: mjerrors.KindStaleView}) {
		t.Errorf("expected stale view error, got %v", err)
	}
	if c.Count() != 0 {
		t.Errorf("Count = %d, want 0", c.Count())
	}
}

func TestCollector_EmptyAndReset(t *testing.T) {
	buf := wasmtest.NewSliceBuffer(1)
	lin := memory.New(buf)
	c := NewCollector()

	capture(t, c, lin, 0, 0)
	if c.Count() != 0 {
		t.Errorf("empty range should not add a chunk")
	}

	capture(t, c, lin, 0, 8)
	c.Reset()
	if c.Count() != 0 || c.Len() != 0 || len(c.Bytes()) != 0 {
		t.Error("Reset did not clear the collector")
	}
}

func TestWriterSink(t *testing.T) {
	buf := wasmtest.NewSliceBuffer(1)
	lin := memory.New(buf)

	var out bytes.Buffer
	s := &WriterSink{W: &out}

	buf.Put(10, []byte("abc"))
	capture(t, s, lin, 10, 3)
	buf.Put(10, []byte("def"))
	capture(t, s, lin, 10, 3)

	if out.String() != "abcdef" {
		t.Errorf("written = %q, want abcdef", out.String())
	}
	if s.N != 6 {
		t.Errorf("N = %d, want 6", s.N)
	}
}
