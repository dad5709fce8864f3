package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseShim,
				Kind:   KindProtocol,
				Call:   "fwrite",
				Path:   []string{"stream"},
				Detail: "unknown stream 7",
			},
			contains: []string{"[shim]", "protocol", "in fwrite", "at stream", "unknown stream 7"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseSession,
				Kind:   KindTrap,
				Detail: "module trapped",
				Cause:  errors.New("unreachable"),
			},
			contains: []string{"[session]", "trap", "module trapped", "caused by", "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseFormat,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Protocol(PhaseFormat, "can not scan %x")

	if !err.Is(&Error{Phase: PhaseFormat, Kind: KindProtocol}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseShim, Kind: KindProtocol}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseFormat, Kind: KindAbort}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("scan: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseFormat, Kind: KindProtocol}) {
		t.Error("errors.Is should match through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseShim, KindProtocol).
		Call("fiprintf").
		Path("stream").
		Value(uint32(7)).
		Cause(cause).
		Detail("unknown stream %d", 7).
		Build()

	if err.Phase != PhaseShim {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseShim)
	}
	if err.Kind != KindProtocol {
		t.Errorf("Kind = %v, want %v", err.Kind, KindProtocol)
	}
	if err.Call != "fiprintf" {
		t.Errorf("Call = %q, want fiprintf", err.Call)
	}
	if len(err.Path) != 1 || err.Path[0] != "stream" {
		t.Errorf("Path = %v, want [stream]", err.Path)
	}
	if err.Value != uint32(7) {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "unknown stream 7" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestAbort(t *testing.T) {
	t.Run("with last line", func(t *testing.T) {
		err := Abort(1, "fail: wrong quality value")
		if !strings.Contains(err.Error(), "exit(1) after: fail: wrong quality value") {
			t.Errorf("unexpected message: %s", err.Error())
		}
		code, ok := AbortCode(fmt.Errorf("compress: %w", err))
		if !ok || code != 1 {
			t.Errorf("AbortCode = %d, %v; want 1, true", code, ok)
		}
	})

	t.Run("without last line", func(t *testing.T) {
		err := Abort(3, "")
		if strings.Contains(err.Error(), "after") {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})

	t.Run("nested in trap", func(t *testing.T) {
		err := Trap("start_compress", Abort(2, ""))
		if !HasKind(err, KindAbort) {
			t.Error("HasKind should find abort in cause chain")
		}
		if code, ok := AbortCode(err); !ok || code != 2 {
			t.Errorf("AbortCode = %d, %v; want 2, true", code, ok)
		}
	})

	t.Run("not an abort", func(t *testing.T) {
		if _, ok := AbortCode(errors.New("plain")); ok {
			t.Error("plain error should not carry an abort code")
		}
		if _, ok := AbortCode(Protocol(PhaseSession, "x")); ok {
			t.Error("protocol error should not carry an abort code")
		}
	})
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("StaleView", func(t *testing.T) {
		err := StaleView(1, 3)
		if err.Kind != KindStaleView {
			t.Errorf("Kind = %v, want %v", err.Kind, KindStaleView)
		}
		if !strings.Contains(err.Detail, "generation 1") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseMemory, 65530, 16, 65536)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if !strings.Contains(err.Detail, "[65530, 65546)") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseFormat, "%x")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseLoad, "export", "start_compress")
		if !strings.Contains(err.Error(), `export "start_compress" not found`) {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})
}

func TestMissingImportsError(t *testing.T) {
	err := MissingImports(
		MissingImport{Module: "env", Function: "fopen"},
		MissingImport{Module: "env", Function: "fclose"},
		MissingImport{Module: "wasi_snapshot_preview1", Function: "fd_write"},
	)

	want := []string{"env.fclose", "env.fopen", "wasi_snapshot_preview1.fd_write"}
	for i, imp := range err.Imports {
		if imp.String() != want[i] {
			t.Errorf("Imports[%d] = %s, want %s", i, imp, want[i])
		}
	}

	msg := err.Error()
	if !strings.Contains(msg, "3 function(s)") {
		t.Errorf("message should contain count, got: %s", msg)
	}
	if !strings.Contains(msg, "env.fclose, env.fopen, wasi_snapshot_preview1.fd_write") {
		t.Errorf("message should list sorted imports, got: %s", msg)
	}

	wrapped := fmt.Errorf("load: %w", err)
	if !errors.Is(wrapped, &MissingImportsError{}) {
		t.Error("errors.Is should match MissingImportsError")
	}
	if !errors.Is(wrapped, &Error{Phase: PhaseLoad, Kind: KindMissingImport}) {
		t.Error("errors.Is should match the missing_import template")
	}
	if !HasKind(wrapped, KindMissingImport) {
		t.Error("HasKind should report missing_import")
	}
}

func TestMessage_Verbatim(t *testing.T) {
	err := Protocol(PhaseFormat, "can not scan '%x'")
	if err.Detail != "can not scan '%x'" {
		t.Errorf("Detail = %q", err.Detail)
	}
}
