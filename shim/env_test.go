package shim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/mozjpeg-wasm/chunk"
	mjerrors "github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/internal/wasmtest"
	"github.com/wippyai/mozjpeg-wasm/memory"
)

type recorder struct {
	stdout []string
	stderr []string
	grows  []GrowEvent
}

func newEnv(t *testing.T, mutate func(*Options)) (*Env, *wasmtest.SliceBuffer, *recorder) {
	t.Helper()
	buf := wasmtest.NewSliceBuffer(1)
	rec := &recorder{}
	opts := Options{
		Stdout:    func(s string) { rec.stdout = append(rec.stdout, s) },
		Stderr:    func(s string) { rec.stderr = append(rec.stderr, s) },
		OnMemGrow: func(ev GrowEvent) { rec.grows = append(rec.grows, ev) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(memory.New(buf), opts), buf, rec
}

func isKind(err error, phase mjerrors.Phase, kind mjerrors.Kind) bool {
	return errors.Is(err, &mjerrors.Error{Phase: phase, Kind: kind})
}

func TestEnv_WriteImageBytes(t *testing.T) {
	env, buf, _ := newEnv(t, nil)
	c := chunk.NewCollector()
	env.BindSink(c)

	buf.Put(100, []byte{1, 2, 3, 4, 5, 6})
	n, err := env.Write(100, 2, 3, ImageOut)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Write returned %d, want count 3", n)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 5, 6}, c.Bytes()); diff != "" {
		t.Errorf("captured bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestEnv_WriteImageWithoutSink(t *testing.T) {
	env, _, _ := newEnv(t, nil)

	_, err := env.Write(0, 1, 1, ImageOut)
	if !isKind(err, mjerrors.PhaseShim, mjerrors.KindProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if env.Fault() != err {
		t.Errorf("Fault() = %v, want %v", env.Fault(), err)
	}
}

func TestEnv_WriteText(t *testing.T) {
	env, buf, rec := newEnv(t, nil)

	buf.Put(0, []byte("hello\n"))
	if _, err := env.Write(0, 1, 6, Stdout); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := env.Write(0, 6, 1, Stderr); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if diff := cmp.Diff([]string{"hello\n"}, rec.stdout); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"hello\n"}, rec.stderr); diff != "" {
		t.Errorf("stderr mismatch (-want +got):\n%s", diff)
	}
}

func TestEnv_UnknownStream(t *testing.T) {
	env, buf, _ := newEnv(t, nil)
	buf.PutString(0, "x")

	_, err := env.Write(0, 1, 1, StreamID(3))
	if !isKind(err, mjerrors.PhaseShim, mjerrors.KindProtocol) {
		t.Errorf("fwrite to stream 3: expected protocol error, got %v", err)
	}

	env.ClearFault()
	if env.Fault() != nil {
		t.Fatal("ClearFault did not clear")
	}

	_, err = env.Printf(ImageOut, 0, 0)
	if !isKind(err, mjerrors.PhaseShim, mjerrors.KindProtocol) {
		t.Errorf("fiprintf to image stream: expected protocol error, got %v", err)
	}
}

func TestEnv_WriteOutOfBounds(t *testing.T) {
	env, _, _ := newEnv(t, nil)
	env.BindSink(chunk.NewCollector())

	_, err := env.Write(wasmtest.PageSize-2, 1, 4, ImageOut)
	if !mjerrors.HasKind(err, mjerrors.KindOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}

	_, err = env.Write(0, 0x10000, 0x10000, Stdout)
	if !mjerrors.HasKind(err, mjerrors.KindOutOfBounds) {
		t.Errorf("expected out of bounds for overflowing size, got %v", err)
	}
}

func TestEnv_Printf(t *testing.T) {
	env, buf, rec := newEnv(t, nil)

	buf.PutString(0, "got %d items: %s")
	buf.PutString(64, "ok")
	buf.PutWords(128, 3, 64)

	n, err := env.Printf(Stdout, 0, 128)
	if err != nil {
		t.Fatalf("Printf failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Printf returned %d, want 0", n)
	}
	if diff := cmp.Diff([]string{"got 3 items: ok"}, rec.stdout); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestEnv_Sprintf(t *testing.T) {
	env, buf, _ := newEnv(t, nil)

	buf.PutString(0, "%d/%u")
	buf.PutWords(64, 0xFFFFFFFF, 0xFFFFFFFF)

	n, err := env.Sprintf(256, 0, 64)
	if err != nil {
		t.Fatalf("Sprintf failed: %v", err)
	}
	want := "-1/4294967295"
	if n != uint32(len(want)+1) {
		t.Errorf("Sprintf returned %d, want %d", n, len(want)+1)
	}
	got, _ := env.Memory().CString(256)
	if got != want {
		t.Errorf("dst = %q, want %q", got, want)
	}
}

func TestEnv_Sscanf(t *testing.T) {
	env, buf, _ := newEnv(t, nil)

	buf.PutString(0, "12,34")
	buf.PutString(32, "%d,%d")
	buf.PutWords(64, 200, 204)

	n, err := env.Sscanf(0, 32, 64)
	if err != nil {
		t.Fatalf("Sscanf failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Sscanf returned %d, want 2", n)
	}
	a, _ := env.Memory().ReadU32(200)
	b, _ := env.Memory().ReadU32(204)
	if a != 12 || b != 34 {
		t.Errorf("scanned (%d, %d), want (12, 34)", a, b)
	}

	buf.PutString(32, "%s")
	_, err = env.Sscanf(0, 32, 64)
	if !mjerrors.HasKind(err, mjerrors.KindProtocol) {
		t.Errorf("expected protocol error for %%s, got %v", err)
	}
}

func TestEnv_PutChar(t *testing.T) {
	env, _, rec := newEnv(t, nil)

	n, err := env.PutChar('A', Stderr)
	if err != nil {
		t.Fatalf("PutChar failed: %v", err)
	}
	if n != 'A' {
		t.Errorf("PutChar returned %d, want %d", n, 'A')
	}
	if diff := cmp.Diff([]string{"A"}, rec.stderr); diff != "" {
		t.Errorf("stderr mismatch (-want +got):\n%s", diff)
	}

	strict, _, _ := newEnv(t, func(o *Options) { o.RejectPutChar = true })
	_, err = strict.PutChar('A', Stderr)
	if !isKind(err, mjerrors.PhaseShim, mjerrors.KindProtocol) {
		t.Errorf("expected protocol error under reject policy, got %v", err)
	}
}

func TestEnv_ExitCarriesLastStderrLine(t *testing.T) {
	env, buf, _ := newEnv(t, nil)

	buf.PutString(0, "first problem\nQuality must be 0..100\n")
	if _, err := env.Write(0, 1, 37, Stderr); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	err := env.Exit(1)
	if code, ok := mjerrors.AbortCode(err); !ok || code != 1 {
		t.Fatalf("AbortCode = %d, %v; want 1, true", code, ok)
	}
	if !strings.Contains(err.Error(), "after: Quality must be 0..100") {
		t.Errorf("abort error %q does not carry the last stderr line", err.Error())
	}
	if env.Fault() != err {
		t.Error("Exit did not record the fault")
	}

	// the first fault wins
	_, _ = env.PutChar('x', StreamID(9))
	if env.Fault() != err {
		t.Error("a later fault replaced the first one")
	}
}

func TestEnv_LastErrorFragments(t *testing.T) {
	env, _, _ := newEnv(t, nil)

	for _, c := range "bad thing" {
		if _, err := env.PutChar(uint32(c), Stderr); err != nil {
			t.Fatal(err)
		}
	}
	if got := env.LastError(); got != "bad thing" {
		t.Errorf("LastError = %q, want %q", got, "bad thing")
	}

	_, _ = env.PutChar('\n', Stderr)
	_, _ = env.PutChar(' ', Stderr)
	if got := env.LastError(); got != "bad thing" {
		t.Errorf("LastError = %q after blank tail, want %q", got, "bad thing")
	}

	env.Reset()
	if got := env.LastError(); got != "" {
		t.Errorf("LastError = %q after Reset", got)
	}
}

func TestEnv_GrowRefreshesBeforeObserver(t *testing.T) {
	buf := wasmtest.NewSliceBuffer(1)
	lin := memory.New(buf)

	var seen []uint32
	env := New(lin, Options{OnMemGrow: func(ev GrowEvent) {
		seen = append(seen, lin.Size())
		if ev.TotalBytes != lin.Size() {
			t.Errorf("TotalBytes = %d, memory is %d", ev.TotalBytes, lin.Size())
		}
	}})

	before := lin.Generation()
	buf.Grow(2)
	env.Grow(2, 70000)

	if lin.Generation() == before {
		t.Error("generation did not move")
	}
	if diff := cmp.Diff([]uint32{3 * wasmtest.PageSize}, seen); diff != "" {
		t.Errorf("observer sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestEnv_DefaultSinksLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	buf := wasmtest.NewSliceBuffer(1)
	env := New(memory.New(buf), Options{Logger: zap.New(core)})

	buf.PutString(0, "note\n")
	if _, err := env.Write(0, 1, 5, Stdout); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Write(0, 1, 5, Stderr); err != nil {
		t.Fatal(err)
	}

	if n := logs.FilterMessage("note").FilterLevelExact(zapcore.InfoLevel).Len(); n != 1 {
		t.Errorf("expected 1 info entry, got %d", n)
	}
	if n := logs.FilterMessage("note").FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Errorf("expected 1 warn entry, got %d", n)
	}
}

func TestEnv_Pow(t *testing.T) {
	env, _, _ := newEnv(t, nil)
	if got := env.Pow(2, 10); got != 1024 {
		t.Errorf("Pow(2, 10) = %v", got)
	}
}

func TestContextBinding(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should not carry an env")
	}
	env, _, _ := newEnv(t, nil)
	got, ok := FromContext(WithEnv(context.Background(), env))
	if !ok || got != env {
		t.Error("env not bound")
	}
}

func TestHostFuncTable(t *testing.T) {
	want := []string{
		FuncExit, FuncFwrite, FuncFiprintf, FuncFputc, FuncFflush,
		FuncFerror, FuncSiprintf, FuncSscanf, FuncMathPow, FuncAfterMemoryGrow,
	}
	if diff := cmp.Diff(want, Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	params, results, ok := Signature(FuncFwrite)
	if !ok || len(params) != 4 || len(results) != 1 {
		t.Errorf("fwrite signature = %v -> %v", params, results)
	}
	if _, _, ok := Signature("fopen"); ok {
		t.Error("fopen should not be provided")
	}
}
