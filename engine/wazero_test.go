package engine

import (
	"context"
	"errors"
	"testing"

	mjerrors "github.com/wippyai/mozjpeg-wasm/errors"
	"github.com/wippyai/mozjpeg-wasm/internal/wasmtest"
	"github.com/wippyai/mozjpeg-wasm/shim"
)

func newEngine(t *testing.T, cfg *Config) *WazeroEngine {
	t.Helper()
	ctx := context.Background()
	engine, err := NewWazeroEngineWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close(ctx) })
	return engine
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{CacheDir: t.TempDir()}, "compilation cache"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			defer engine.Close(ctx)

			if engine.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
		})
	}
}

func TestLoadModule_Valid(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, nil)

	mod, err := engine.LoadModule(ctx, wasmtest.FakeMozJPEG(wasmtest.FakeConfig{}))
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	defer mod.Close(ctx)

	if !mod.HasExport(ExportSetChannelSampFactor) {
		t.Error("channel sampling factor export should be detected")
	}
	if mod.HasExport(ExportInitialize) {
		t.Error("_initialize is not exported by a command module")
	}
}

func TestLoadModule_Empty(t *testing.T) {
	engine := newEngine(t, nil)

	_, err := engine.LoadModule(context.Background(), nil)
	if !mjerrors.HasKind(err, mjerrors.KindInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestLoadModule_Garbage(t *testing.T) {
	engine := newEngine(t, nil)

	_, err := engine.LoadModule(context.Background(), []byte("not wasm"))
	if !errors.Is(err, &mjerrors.Error{Phase: mjerrors.PhaseLoad, Kind: mjerrors.KindInvalidData}) {
		t.Errorf("expected load error, got %v", err)
	}
}

func TestLoadModule_UnknownImport(t *testing.T) {
	engine := newEngine(t, nil)

	_, err := engine.LoadModule(context.Background(), wasmtest.FakeMozJPEG(wasmtest.FakeConfig{ExtraImport: "fopen"}))

	var missing *mjerrors.MissingImportsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingImportsError, got %v", err)
	}
	if len(missing.Imports) != 1 || missing.Imports[0].Module != "env" || missing.Imports[0].Function != "fopen" {
		t.Errorf("unexpected missing imports: %+v", missing.Imports)
	}
}

func TestLoadModule_ImportSignatureMismatch(t *testing.T) {
	b := wasmtest.NewBuilder()
	b.Import(shim.ModuleName, shim.FuncExit, nil, nil)
	b.Memory(1, "memory")

	engine := newEngine(t, nil)
	_, err := engine.LoadModule(context.Background(), b.Bytes())
	if !errors.Is(err, &mjerrors.Error{Phase: mjerrors.PhaseLoad, Kind: mjerrors.KindInvalidData}) {
		t.Errorf("expected signature error, got %v", err)
	}
}

func TestLoadModule_MissingExport(t *testing.T) {
	engine := newEngine(t, nil)

	for _, name := range []string{ExportWriteScanlines, ExportInitCompress, ExportDisableProgression} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.LoadModule(context.Background(), wasmtest.FakeMozJPEG(wasmtest.FakeConfig{SkipExport: name}))
			if !errors.Is(err, &mjerrors.Error{Phase: mjerrors.PhaseLoad, Kind: mjerrors.KindNotFound}) {
				t.Errorf("expected not found, got %v", err)
			}
		})
	}
}

func TestLoadModule_MissingMemory(t *testing.T) {
	b := wasmtest.NewBuilder()
	b.Func(ExportStartCompress, nil, nil, nil)

	engine := newEngine(t, nil)
	_, err := engine.LoadModule(context.Background(), b.Bytes())
	if !mjerrors.HasKind(err, mjerrors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestInstantiate(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, nil)

	mod, err := engine.LoadModule(ctx, wasmtest.FakeMozJPEG(wasmtest.FakeConfig{Reactor: true}))
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	// two instances of one compiled module, each with its own memory
	a, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer a.Close(ctx)
	b, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("second Instantiate failed: %v", err)
	}
	defer b.Close(ctx)

	if a.Memory() == b.Memory() {
		t.Error("instances share memory")
	}
	if a.MemorySize() != wasmtest.PageSize {
		t.Errorf("MemorySize = %d, want %d", a.MemorySize(), wasmtest.PageSize)
	}

	// _initialize does not touch imports, so no env binding is needed
	if _, err := a.Call(ctx, ExportInitialize); err != nil {
		t.Fatalf("Call(_initialize) failed: %v", err)
	}
	v, ok := a.Memory().ReadUint32Le(wasmtest.AddrInit)
	if !ok || v != 1 {
		t.Errorf("_initialize marker = %d, %v", v, ok)
	}

	_, err = a.Call(ctx, "no_such_export")
	if !mjerrors.HasKind(err, mjerrors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	if !a.HasExport(ExportWriteScanlines) || a.HasExport("no_such_export") {
		t.Error("HasExport mismatch")
	}
}

func TestInitEnv_Idempotent(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, nil)

	for i := 0; i < 3; i++ {
		if err := engine.InitEnv(ctx); err != nil {
			t.Fatalf("InitEnv #%d failed: %v", i, err)
		}
	}
	if engine.runtime.Module(shim.ModuleName) == nil {
		t.Error("env host module not instantiated")
	}
}

func TestWazeroInstance_ClosedCall(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, nil)

	mod, err := engine.LoadModule(ctx, wasmtest.FakeMozJPEG(wasmtest.FakeConfig{}))
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if err := inst.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = inst.Call(ctx, ExportStartCompress)
	if !mjerrors.HasKind(err, mjerrors.KindNotInitialized) {
		t.Errorf("expected not initialized, got %v", err)
	}
	if inst.MemorySize() != 0 {
		t.Error("closed instance should report no memory")
	}
}
