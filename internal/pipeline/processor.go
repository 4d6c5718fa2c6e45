package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/imagepress/internal/domain"
)

const SourceTypeLocalFile = "local_file"

var (
	ErrUnsupportedSourceType = errors.New("unsupported source_type")
	ErrSourceNotFound        = errors.New("source image not found")
)

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Renditions []domain.Rendition
}

type Output struct {
	RenditionID string
	Format      string
	Path        string
	Bytes       int
	Width       int
	Height      int
	Success     bool
}

type Result struct {
	SourceBytes int
	Outputs     []Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, rendition domain.Rendition, data []byte, summary Summary) (Output, error)
}

type Processor struct {
	fetcher Fetcher
	emitter Emitter
}

func NewProcessor(fetcher Fetcher, emitter Emitter) *Processor {
	return &Processor{fetcher: fetcher, emitter: emitter}
}

func NewLocalProcessor(outputDir string) *Processor {
	return &Processor{
		fetcher: LocalFileFetcher{},
		emitter: LocalFileEmitter{OutputDir: outputDir},
	}
}

// Process fetches the source once and produces every rendition from it.
// Renditions run strictly in order; the first failure aborts the job with
// no further outputs. Cancellation is observed between renditions only.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if len(req.Renditions) == 0 {
		return Result{}, errors.New("job must contain at least one rendition")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	out := Result{
		SourceBytes: len(sourceBytes),
		Outputs:     make([]Output, 0, len(req.Renditions)),
	}
	for _, rendition := range req.Renditions {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		params, err := renditionParams(rendition)
		if err != nil {
			return Result{}, fmt.Errorf("rendition %s: %w", rendition.ID, err)
		}

		data, summary, err := Transform(ctx, sourceBytes, params, rendition.Format)
		if err != nil {
			return Result{}, fmt.Errorf("transform stage rendition=%s: %w", rendition.ID, err)
		}

		written, err := p.emitter.Emit(ctx, req, rendition, data, summary)
		if err != nil {
			return Result{}, fmt.Errorf("emit stage rendition=%s: %w", rendition.ID, err)
		}
		out.Outputs = append(out.Outputs, written)
	}

	return out, nil
}

// ProcessFile runs the pipeline for a single file on disk. The source is
// never modified; the destination and its parent directories are created
// only when the whole transform succeeds. The destination extension picks
// the output encoding.
func ProcessFile(ctx context.Context, sourcePath, destPath string, params Params) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := os.Stat(sourcePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return fmt.Errorf("stat source image: %w", err)
	}
	if err := params.Validate(); err != nil {
		return err
	}

	input, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read source image %s: %w", sourcePath, err)
	}

	data, _, err := Transform(ctx, input, params, destPath)
	if err != nil {
		return err
	}

	if err := EnsureDir(filepath.Dir(destPath)); err != nil {
		return err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// EnsureDir creates a directory tree. An already existing directory counts
// as success.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

const defaultThreshold = 128

func renditionParams(r domain.Rendition) (Params, error) {
	params := Params{
		Brightness: factorOrIdentity(r.Adjust.Brightness),
		Contrast:   factorOrIdentity(r.Adjust.Contrast),
		Sharpness:  factorOrIdentity(r.Adjust.Sharpness),
	}
	if r.ScaleFactor != 0 {
		params.Mode = ScaleBy(r.ScaleFactor)
	} else {
		params.Mode = FitWithin(r.MaxWidth, r.MaxHeight)
	}
	if r.Binarize {
		params.Binarize = true
		params.Threshold = renditionThreshold(r.Threshold)
		params.Dither = r.Dither
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

func factorOrIdentity(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

func renditionThreshold(t *int) uint8 {
	if t == nil {
		return defaultThreshold
	}
	if *t < 0 {
		return 0
	}
	if *t > 255 {
		return 255
	}
	return uint8(*t)
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if _, err := os.Stat(req.ObjectKey); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, req.ObjectKey)
		}
		return nil, fmt.Errorf("stat input file %s: %w", req.ObjectKey, err)
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, rendition domain.Rendition, data []byte, summary Summary) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(rendition.ID) == "" {
		return Output{}, errors.New("rendition id is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := EnsureDir(jobDir); err != nil {
		return Output{}, err
	}

	filename := fmt.Sprintf("%s.%s", sanitizePathToken(rendition.ID), summary.Format)
	fullPath := filepath.Join(jobDir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		RenditionID: rendition.ID,
		Format:      summary.Format,
		Path:        fullPath,
		Bytes:       len(data),
		Width:       summary.Width,
		Height:      summary.Height,
		Success:     true,
	}, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
