package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/mozjpeg-wasm/chunk"
	"github.com/wippyai/mozjpeg-wasm/config"
	"github.com/wippyai/mozjpeg-wasm/engine"
	"github.com/wippyai/mozjpeg-wasm/metrics"
	"github.com/wippyai/mozjpeg-wasm/runtime"
	"github.com/wippyai/mozjpeg-wasm/shim"
)

type options struct {
	wasmFile    string
	inFile      string
	outFile     string
	inColor     string
	profile     string
	subsample   string
	width       int
	height      int
	quality     int
	interactive bool
	verbose     bool
	stats       bool
}

func main() {
	var o options
	flag.StringVar(&o.wasmFile, "wasm", "", "Path to the mozjpeg wasm module")
	flag.StringVar(&o.inFile, "in", "", "Input image (PNG, or raw pixels with -width/-height)")
	flag.StringVar(&o.outFile, "out", "", "Output JPEG file (default: input name with .jpg)")
	flag.StringVar(&o.inColor, "in-color", "rgba", "Color space of raw input pixels")
	flag.StringVar(&o.profile, "profile", "", "TOML compression profile")
	flag.StringVar(&o.subsample, "subsample", "", "Chroma subsampling as HxV, e.g. 2x2")
	flag.IntVar(&o.width, "width", 0, "Raw input width")
	flag.IntVar(&o.height, "height", 0, "Raw input height")
	flag.IntVar(&o.quality, "quality", -1, "Luma quality 0-100 (overrides profile)")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&o.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&o.stats, "stats", false, "Print session statistics")
	flag.Parse()

	if o.wasmFile == "" || o.inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: cjpeg -wasm <mozjpeg.wasm> -in <image.png> [-out file.jpg] [-quality N]")
		fmt.Fprintln(os.Stderr, "       cjpeg -wasm <mozjpeg.wasm> -in <pixels.raw> -width W -height H [-in-color rgba]")
		fmt.Fprintln(os.Stderr, "       cjpeg -wasm <mozjpeg.wasm> -in <image.png> -i  (interactive mode)")
		os.Exit(1)
	}
	if o.outFile == "" {
		o.outFile = outputName(o.inFile)
	}

	if o.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = logger.Sync() }()
		shim.SetLogger(logger)
		engine.SetLogger(logger)
		runtime.SetLogger(logger)
	}

	if o.interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(o); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// job is everything a compression run needs, resolved from flags.
type job struct {
	profile *config.Profile
	img     runtime.Image
	wasm    []byte
}

func prepare(o options) (*job, error) {
	p := config.Default()
	profile := &p
	if o.profile != "" {
		var err error
		if profile, err = config.Load(o.profile); err != nil {
			return nil, err
		}
	}
	if o.quality >= 0 {
		profile.Compress.Quality = o.quality
	}
	if o.subsample != "" {
		profile.Compress.ChromaSubsample = o.subsample
	}

	wasm, err := os.ReadFile(o.wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	img, err := readImage(o.inFile, o.width, o.height, o.inColor)
	if err != nil {
		return nil, err
	}
	return &job{profile: profile, img: img, wasm: wasm}, nil
}

// compress runs one session, streaming the codestream to outFile.
func compress(ctx context.Context, j *job, outFile string, m *metrics.Metrics, progress func(done, total int)) (int64, error) {
	st, err := j.profile.Settings()
	if err != nil {
		return 0, err
	}

	rt, err := runtime.New(ctx, &runtime.RuntimeConfig{Engine: j.profile.EngineConfig(), Metrics: m})
	if err != nil {
		return 0, fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.Load(ctx, j.wasm, j.profile.Options())
	if err != nil {
		return 0, err
	}
	defer mod.Close(ctx)

	f, err := os.Create(outFile)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	sink := &chunk.WriterSink{W: f}
	err = runtime.CompressTo(ctx, mod, j.img, st, sink, runtime.SessionOptions{Progress: progress})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(outFile)
		return 0, err
	}
	return sink.N, nil
}

func run(o options) error {
	ctx := context.Background()

	j, err := prepare(o)
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	var m *metrics.Metrics
	if o.stats {
		reg = prometheus.NewRegistry()
		m = metrics.NewMetrics(reg)
	}

	var progress func(done, total int)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progress = func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rrows %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	start := time.Now()
	n, err := compress(ctx, j, o.outFile, m, progress)
	if err != nil {
		return err
	}

	in := uint64(len(j.img.Pixels))
	fmt.Printf("%s: %dx%d, %s -> %s (%.1f%%) in %s\n",
		o.outFile, j.img.Width, j.img.Height,
		humanize.IBytes(in), humanize.IBytes(uint64(n)),
		100*float64(n)/float64(max(in, 1)),
		time.Since(start).Round(time.Millisecond))

	if reg != nil {
		return printStats(reg)
	}
	return nil
}

// printStats dumps the counters a single run produced.
func printStats(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, mt := range mf.GetMetric() {
			var v float64
			switch {
			case mt.GetCounter() != nil:
				v = mt.GetCounter().GetValue()
			case mt.GetGauge() != nil:
				v = mt.GetGauge().GetValue()
			case mt.GetHistogram() != nil:
				v = mt.GetHistogram().GetSampleSum()
			}
			label := ""
			for _, lp := range mt.GetLabel() {
				label += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			fmt.Printf("  %-40s%s %s\n", mf.GetName(), label, humanize.Commaf(v))
		}
	}
	return nil
}
