package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/imagepress/internal/batch"
	"github.com/dunamismax/imagepress/internal/pipeline"
	"github.com/dunamismax/imagepress/internal/preset"
)

func main() {
	defaults := preset.DefaultValues()

	var (
		inputRoot  = flag.String("in", "", "input directory to clean (required)")
		outputRoot = flag.String("out", "", "output directory for cleaned images (required)")
		brightness = flag.Float64("brightness", defaults.Brightness, "brightness factor (1.0 = unchanged)")
		contrast   = flag.Float64("contrast", defaults.Contrast, "contrast factor (1.0 = unchanged)")
		sharpness  = flag.Float64("sharpness", defaults.Sharpness, "sharpness factor (1.0 = unchanged)")
		maxWidth   = flag.Int("max-width", defaults.MaxWidth, "fit box width in pixels")
		maxHeight  = flag.Int("max-height", defaults.MaxHeight, "fit box height in pixels")
		scale      = flag.Float64("scale", 0, "enlargement factor; replaces the fit box when > 0")
		binarize   = flag.Bool("binarize", false, "reduce to pure black and white (requires -scale)")
		threshold  = flag.Int("threshold", defaults.Threshold, "binarization cutoff 0-255")
		dither     = flag.Bool("dither", false, "apply error diffusion when binarizing")
		format     = flag.String("format", "", "rewrite the output extension (e.g. jpg); empty keeps each source format")
		match      = flag.String("match", "", "glob for source file names (e.g. *.png); empty takes any raster file")
		presetPath = flag.String("preset", "", "TOML preset overriding the flag values")
		workers    = flag.Int("workers", 1, "number of files cleaned in parallel")
		keepGoing  = flag.Bool("keep-going", false, "log per-file failures and continue instead of stopping")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[imagepress] ", log.LstdFlags|log.Lmsgprefix)

	if *inputRoot == "" || *outputRoot == "" {
		flag.Usage()
		os.Exit(2)
	}

	values := preset.Values{
		Brightness: *brightness,
		Contrast:   *contrast,
		Sharpness:  *sharpness,
		MaxWidth:   *maxWidth,
		MaxHeight:  *maxHeight,
		Scale:      *scale,
		Binarize:   *binarize,
		Threshold:  *threshold,
		Dither:     *dither,
		Format:     *format,
	}
	if *presetPath != "" {
		p, err := preset.Load(*presetPath)
		if err != nil {
			logger.Fatalf("load preset: %v", err)
		}
		values = p.Apply(values)
	}

	params, err := values.Params()
	if err != nil {
		logger.Fatalf("invalid parameters: %v", err)
	}

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("start image runtime: %v", err)
	}
	defer pipeline.Shutdown()

	runner, err := batch.NewRunner(logger, batch.Options{
		InputRoot:  *inputRoot,
		OutputRoot: *outputRoot,
		Format:     values.Format,
		Match:      *match,
		Workers:    *workers,
		KeepGoing:  *keepGoing,
		Params:     params,
	})
	if err != nil {
		logger.Fatalf("configure batch run: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("cleaning in=%s out=%s mode=%s workers=%d", *inputRoot, *outputRoot, params.Mode, *workers)

	summary, err := runner.Run(ctx)
	logger.Printf("done processed=%d failed=%d duration=%s", summary.Processed, summary.Failed, summary.Duration.Round(time.Millisecond))
	if err != nil {
		logger.Fatalf("batch run failed: %v", err)
	}
}
