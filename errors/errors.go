package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Phase is the layer of the host an error comes from.
type Phase string

const (
	PhaseLoad    Phase = "load"    // compile, import/export validation
	PhaseMemory  Phase = "memory"  // linear memory access
	PhaseFormat  Phase = "format"  // printf/scanf emulation
	PhaseShim    Phase = "shim"    // host import implementations
	PhaseSession Phase = "session" // compression lifecycle
	PhaseConfig  Phase = "config"  // profile loading
)

// Kind says what went wrong.
type Kind string

const (
	KindAbort          Kind = "abort"
	KindProtocol       Kind = "protocol"
	KindTrap           Kind = "trap"
	KindStaleView      Kind = "stale_view"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindUnsupported    Kind = "unsupported"
	KindInvalidData    Kind = "invalid_data"
	KindInvalidInput   Kind = "invalid_input"
	KindMissingImport  Kind = "missing_import"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInstantiation  Kind = "instantiation"
)

// Error is a failure in the host or in the module it drives.
//
// Two errors match under errors.Is when phase and kind agree, so callers
// can test with a template:
//
//	errors.Is(err, &Error{Phase: PhaseShim, Kind: KindAbort})
type Error struct {
	// Value is the offending value: an exit code, an offset, a setting.
	Value any
	Cause error
	Phase Phase
	Kind  Kind
	// Call is the import or export running when the error was raised.
	Call   string
	Detail string
	// Path locates a bad field, e.g. ["compress", "quality"].
	Path []string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Phase, e.Kind)
	if e.Call != "" {
		fmt.Fprintf(&b, " in %s", e.Call)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " at %s", strings.Join(e.Path, "."))
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on phase and kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

// New starts an error of the given phase and kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Call(name string) *Builder {
	b.err.Call = name
	return b
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message, formatting it when args are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.err.Detail = msg
	return b
}

// Message sets the message verbatim.
func (b *Builder) Message(msg string) *Builder {
	b.err.Detail = msg
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}

// find returns the first *Error in err's chain matching pred.
func find(err error, pred func(*Error) bool) *Error {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return nil
		}
		if pred(e) {
			return e
		}
		err = e.Cause
	}
	return nil
}

// HasKind reports whether an *Error of the given kind is in err's chain.
func HasKind(err error, kind Kind) bool {
	if find(err, func(e *Error) bool { return e.Kind == kind }) != nil {
		return true
	}
	var missing *MissingImportsError
	return kind == KindMissingImport && stderrors.As(err, &missing)
}

// Abort is the error for a module that called exit. lastLine is the most
// recent line the module wrote to stderr, usually the reason.
func Abort(code int32, lastLine string) *Error {
	b := New(PhaseShim, KindAbort).Call("exit").Value(code)
	if lastLine != "" {
		return b.Detail("module terminated with exit(%d) after: %s", code, lastLine).Build()
	}
	return b.Detail("module terminated with exit(%d)", code).Build()
}

// AbortCode returns the exit code of the abort in err's chain.
func AbortCode(err error) (int32, bool) {
	e := find(err, func(e *Error) bool { return e.Kind == KindAbort })
	if e == nil {
		return 0, false
	}
	code, ok := e.Value.(int32)
	return code, ok
}

// Protocol is a broken host/module contract: wrong call order, an
// unsupported conversion, text on the image stream.
func Protocol(phase Phase, detail string) *Error {
	return New(phase, KindProtocol).Message(detail).Build()
}

// Trap wraps a module trap the host did not cause.
func Trap(call string, cause error) *Error {
	return New(PhaseSession, KindTrap).Call(call).Cause(cause).Detail("module trapped").Build()
}

// StaleView is returned when a view is used after the memory grew.
func StaleView(viewGen, memGen uint64) *Error {
	return New(PhaseMemory, KindStaleView).
		Value(viewGen).
		Detail("view from generation %d used at generation %d", viewGen, memGen).
		Build()
}

func OutOfBounds(phase Phase, offset uint32, length uint64, size uint32) *Error {
	return New(phase, KindOutOfBounds).
		Value(offset).
		Detail("range [%d, %d) outside memory of %d bytes", offset, uint64(offset)+length, size).
		Build()
}

func Unsupported(phase Phase, what string) *Error {
	return New(phase, KindUnsupported).Message(what).Build()
}

func InvalidData(phase Phase, detail string) *Error {
	return New(phase, KindInvalidData).Message(detail).Build()
}

func InvalidInput(phase Phase, detail string) *Error {
	return New(phase, KindInvalidInput).Message(detail).Build()
}

// Wrap attaches phase, kind and a message to cause.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return New(phase, kind).Cause(cause).Message(detail).Build()
}

func NotInitialized(phase Phase, what string) *Error {
	return New(phase, KindNotInitialized).Detail("%s not initialized", what).Build()
}

func NotFound(phase Phase, what, name string) *Error {
	return New(phase, KindNotFound).Value(name).Detail("%s %q not found", what, name).Build()
}

func Instantiation(cause error) *Error {
	return New(PhaseLoad, KindInstantiation).Cause(cause).Detail("instantiate module").Build()
}

// Load is a module that failed to decode or compile.
func Load(detail string, cause error) *Error {
	return New(PhaseLoad, KindInvalidData).Cause(cause).Message(detail).Build()
}

// MissingImport is a function the module imports and the host lacks.
type MissingImport struct {
	Module   string
	Function string
}

func (m MissingImport) String() string {
	return m.Module + "." + m.Function
}

// MissingImportsError lists every import the host cannot satisfy, so a
// module built against a different runtime is rejected in one pass.
type MissingImportsError struct {
	Imports []MissingImport
}

// MissingImports builds the error, sorted by module then function.
func MissingImports(imports ...MissingImport) *MissingImportsError {
	sorted := append([]MissingImport(nil), imports...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Module != sorted[j].Module {
			return sorted[i].Module < sorted[j].Module
		}
		return sorted[i].Function < sorted[j].Function
	})
	return &MissingImportsError{Imports: sorted}
}

func (e *MissingImportsError) Error() string {
	names := make([]string, len(e.Imports))
	for i, imp := range e.Imports {
		names[i] = imp.String()
	}
	return fmt.Sprintf("[%s] %s: module imports %d function(s) the host does not provide: %s",
		PhaseLoad, KindMissingImport, len(e.Imports), strings.Join(names, ", "))
}

// Is matches another *MissingImportsError or an *Error template of phase
// load and kind missing_import.
func (e *MissingImportsError) Is(target error) bool {
	switch t := target.(type) {
	case *MissingImportsError:
		return true
	case *Error:
		return t.Phase == PhaseLoad && t.Kind == KindMissingImport
	}
	return false
}
