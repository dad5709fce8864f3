package wasmtest

import "bytes"

// ValType is a wasm value type.
type ValType = byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	externFunc   = 0x00
	externMemory = 0x02
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importEntry struct {
	module, name string
	typeIdx      uint32
}

type funcEntry struct {
	export  string
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type dataEntry struct {
	offset uint32
	data   []byte
}

// Builder assembles a core wasm module with a single memory.
// Imports must be declared before any function.
type Builder struct {
	types     []funcType
	imports   []importEntry
	funcs     []funcEntry
	data      []dataEntry
	memExport string
	memPages  uint32
	hasMemory bool
}

// NewBuilder returns an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) typeIndex(params, results []ValType) uint32 {
	for i, t := range b.types {
		if bytes.Equal(t.params, params) && bytes.Equal(t.results, results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// Import declares a function import and returns its function index.
func (b *Builder) Import(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: imports must be declared before functions")
	}
	b.imports = append(b.imports, importEntry{module: module, name: name, typeIdx: b.typeIndex(params, results)})
	return uint32(len(b.imports) - 1)
}

// Func defines a function and returns its index. A non-empty export name
// exports it. body is the instruction sequence without the final end.
func (b *Builder) Func(export string, params, results, locals []ValType, body ...[]byte) uint32 {
	b.funcs = append(b.funcs, funcEntry{
		export:  export,
		typeIdx: b.typeIndex(params, results),
		locals:  locals,
		body:    bytes.Join(body, nil),
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Memory declares the module memory with minPages initial pages and no
// maximum. A non-empty export name exports it.
func (b *Builder) Memory(minPages uint32, export string) *Builder {
	b.hasMemory = true
	b.memPages = minPages
	b.memExport = export
	return b
}

// Data adds an active data segment at offset.
func (b *Builder) Data(offset uint32, data []byte) *Builder {
	b.data = append(b.data, dataEntry{offset: offset, data: data})
	return b
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	if len(b.types) > 0 {
		var s []byte
		s = appendULEB(s, uint64(len(b.types)))
		for _, t := range b.types {
			s = append(s, 0x60)
			s = appendVec(s, t.params)
			s = appendVec(s, t.results)
		}
		out = appendSection(out, sectionType, s)
	}

	if len(b.imports) > 0 {
		var s []byte
		s = appendULEB(s, uint64(len(b.imports)))
		for _, imp := range b.imports {
			s = appendName(s, imp.module)
			s = appendName(s, imp.name)
			s = append(s, externFunc)
			s = appendULEB(s, uint64(imp.typeIdx))
		}
		out = appendSection(out, sectionImport, s)
	}

	if len(b.funcs) > 0 {
		var s []byte
		s = appendULEB(s, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			s = appendULEB(s, uint64(f.typeIdx))
		}
		out = appendSection(out, sectionFunction, s)
	}

	if b.hasMemory {
		s := []byte{1, 0x00}
		s = appendULEB(s, uint64(b.memPages))
		out = appendSection(out, sectionMemory, s)
	}

	var exports []byte
	var exportCount uint64
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		exports = appendName(exports, f.export)
		exports = append(exports, externFunc)
		exports = appendULEB(exports, uint64(len(b.imports)+i))
		exportCount++
	}
	if b.hasMemory && b.memExport != "" {
		exports = appendName(exports, b.memExport)
		exports = append(exports, externMemory, 0)
		exportCount++
	}
	if exportCount > 0 {
		out = appendSection(out, sectionExport, append(appendULEB(nil, exportCount), exports...))
	}

	if len(b.funcs) > 0 {
		var s []byte
		s = appendULEB(s, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			var body []byte
			body = appendULEB(body, uint64(len(f.locals)))
			for _, l := range f.locals {
				body = append(body, 1, l)
			}
			body = append(body, f.body...)
			body = append(body, opEnd)
			s = appendULEB(s, uint64(len(body)))
			s = append(s, body...)
		}
		out = appendSection(out, sectionCode, s)
	}

	if len(b.data) > 0 {
		var s []byte
		s = appendULEB(s, uint64(len(b.data)))
		for _, d := range b.data {
			s = append(s, 0x00)
			s = append(s, I32Const(int32(d.offset))...)
			s = append(s, opEnd)
			s = appendULEB(s, uint64(len(d.data)))
			s = append(s, d.data...)
		}
		out = appendSection(out, sectionData, s)
	}

	return out
}

func appendSection(out []byte, id byte, contents []byte) []byte {
	out = append(out, id)
	out = appendULEB(out, uint64(len(contents)))
	return append(out, contents...)
}

func appendVec(out []byte, vals []ValType) []byte {
	out = appendULEB(out, uint64(len(vals)))
	return append(out, vals...)
}

func appendName(out []byte, name string) []byte {
	out = appendULEB(out, uint64(len(name)))
	return append(out, name...)
}

func appendULEB(out []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			out = append(out, c|0x80)
			continue
		}
		return append(out, c)
	}
}

func appendSLEB(out []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}
