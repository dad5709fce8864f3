package wasmtest

// Addresses used by the fake compression module.
const (
	AddrHeight  = 0
	AddrRows    = 4
	AddrRowLen  = 8
	AddrInit    = 12
	AddrArgs    = 16
	AddrSOI     = 32
	AddrEOI     = 34
	AddrDoneFmt = 64
	AddrBadQual = 96
	AddrScratch = 1024
)

// ImageStream is the stream pointer the fake writes codestream bytes to.
const ImageStream = 10042

// Stdout text printed by the fake's finish_compress for n rows.
const DoneFormat = "done %d rows\n"

// Stderr line printed before the fake aborts on a bad quality.
const BadQualityMessage = "quality out of range"

// FakeConfig alters the fake module for error-path tests.
type FakeConfig struct {
	// SkipExport omits the named export.
	SkipExport string
	// ExtraImport adds an "env" import of type () -> () with this name.
	ExtraImport string
	// EarlyComplete makes write_scanlines report completion after every row.
	EarlyComplete bool
	// Reactor exports _initialize, which stores 1 at AddrInit.
	Reactor bool
}

// FakeMozJPEG builds a module honoring the compression module's import and
// export contract. Its codestream is the SOI marker, every row verbatim, then
// the EOI marker. start_compress and each write_scanlines grow memory by one
// page and report it through after_memory_grow. cinfo_set_quality aborts
// with exit(1) when luma quality exceeds 100.
func FakeMozJPEG(cfg FakeConfig) []byte {
	b := NewBuilder()

	exit := b.Import("env", "exit", []ValType{I32}, nil)
	fwrite := b.Import("env", "fwrite", []ValType{I32, I32, I32, I32}, []ValType{I32})
	fiprintf := b.Import("env", "fiprintf", []ValType{I32, I32, I32}, []ValType{I32})
	grown := b.Import("env", "after_memory_grow", []ValType{I32, I32}, nil)
	if cfg.ExtraImport != "" {
		b.Import("env", cfg.ExtraImport, nil, nil)
	}

	b.Memory(1, "memory")
	b.Data(AddrSOI, []byte{0xFF, 0xD8, 0xFF, 0xD9})
	b.Data(AddrDoneFmt, append([]byte(DoneFormat), 0))
	b.Data(AddrBadQual, append([]byte(BadQualityMessage+"\n"), 0))

	store := func(addr int32, value ...[]byte) []byte {
		code := I32Const(addr)
		for _, v := range value {
			code = append(code, v...)
		}
		return append(code, I32Store()...)
	}
	load := func(addr int32) []byte {
		return append(I32Const(addr), I32Load()...)
	}
	emit := func(ptr []byte, n []byte) []byte {
		code := append([]byte{}, ptr...)
		code = append(code, I32Const(1)...)
		code = append(code, n...)
		code = append(code, I32Const(ImageStream)...)
		code = append(code, Call(fwrite)...)
		return append(code, Drop()...)
	}
	growPage := [][]byte{
		I32Const(1), MemoryGrow(), Drop(),
		I32Const(1), I32Const(PageSize), Call(grown),
	}

	fn := func(name string, params, results []ValType, body ...[]byte) {
		if name == cfg.SkipExport {
			return
		}
		b.Func(name, params, results, nil, body...)
	}

	if cfg.Reactor {
		fn("_initialize", nil, nil, store(AddrInit, I32Const(1)))
	}

	fn("init_compress", []ValType{I32, I32, I32, I32}, []ValType{I32},
		store(AddrHeight, LocalGet(1)),
		store(AddrRows, I32Const(0)),
		store(AddrRowLen, LocalGet(0), LocalGet(3), I32Mul()),
		I32Const(AddrScratch),
	)

	fn("cinfo_set_out_color_space", []ValType{I32}, nil)
	fn("cinfo_set_quant_table", []ValType{I32}, nil)
	fn("cinfo_set_optimize_coding", []ValType{I32}, nil)
	fn("cinfo_set_smoothing_factor", []ValType{I32}, nil)
	fn("cinfo_set_trellis", []ValType{I32, I32, I32, I32}, nil)
	fn("cinfo_set_quality", []ValType{I32, I32}, nil,
		LocalGet(0), I32Const(100), I32GtS(), If(),
		I32Const(2), I32Const(AddrBadQual), I32Const(0), Call(fiprintf), Drop(),
		I32Const(1), Call(exit),
		End(),
	)
	fn("cinfo_set_chroma_subsample", []ValType{I32, I32}, nil)
	fn("cinfo_set_channel_samp_factor", []ValType{I32, I32, I32}, nil)
	fn("cinfo_disable_progression", nil, nil)

	start := append([][]byte{}, growPage...)
	start = append(start, emit(I32Const(AddrSOI), I32Const(2)))
	fn("start_compress", nil, nil, start...)

	scan := [][]byte{emit(I32Const(AddrScratch), load(AddrRowLen))}
	scan = append(scan, growPage...)
	scan = append(scan, store(AddrRows, load(AddrRows), I32Const(1), I32Add()))
	if cfg.EarlyComplete {
		scan = append(scan, I32Const(1))
	} else {
		scan = append(scan, load(AddrRows), load(AddrHeight), I32GeS())
	}
	fn("write_scanlines", nil, []ValType{I32}, scan...)

	fn("finish_compress", nil, nil,
		emit(I32Const(AddrEOI), I32Const(2)),
		store(AddrArgs, load(AddrRows)),
		I32Const(1), I32Const(AddrDoneFmt), I32Const(AddrArgs), Call(fiprintf), Drop(),
	)

	return b.Bytes()
}
