package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dunamismax/imagepress/internal/pipeline"
)

type Options struct {
	InputRoot  string
	OutputRoot string
	// Format rewrites the output extension (e.g. "jpg"). Empty keeps each
	// source file's extension.
	Format string
	// Match restricts sources to file names matching this glob, e.g.
	// "*.png" or "scan_*". Matching is case-insensitive. Empty selects
	// every file with a known raster extension.
	Match     string
	Workers   int
	KeepGoing bool
	Params    pipeline.Params
}

type Summary struct {
	Processed int
	Failed    int
	Duration  time.Duration
}

// Runner walks an input tree and writes a cleaned mirror of it under the
// output root. Sources are never modified.
type Runner struct {
	logger *log.Logger
	opts   Options
}

func NewRunner(logger *log.Logger, opts Options) (*Runner, error) {
	if strings.TrimSpace(opts.InputRoot) == "" {
		return nil, errors.New("input root is required")
	}
	if strings.TrimSpace(opts.OutputRoot) == "" {
		return nil, errors.New("output root is required")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	opts.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(opts.Format)), ".")
	opts.Match = strings.ToLower(strings.TrimSpace(opts.Match))
	if opts.Match != "" {
		if _, err := path.Match(opts.Match, "probe"); err != nil {
			return nil, fmt.Errorf("match pattern %q: %w", opts.Match, err)
		}
	}

	return &Runner{logger: logger, opts: opts}, nil
}

func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	rels, err := r.collect()
	if err != nil {
		return Summary{Duration: time.Since(start)}, err
	}

	var summary Summary
	if r.opts.Workers > 1 {
		summary, err = r.runParallel(ctx, rels)
	} else {
		summary, err = r.runSequential(ctx, rels)
	}
	summary.Duration = time.Since(start)
	return summary, err
}

// collect gathers every raster file under the input root up front, so files
// written to the output root during the run are never picked up as sources.
func (r *Runner) collect() ([]string, error) {
	var rels []string
	err := filepath.WalkDir(r.opts.InputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !r.matchesSource(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(r.opts.InputRoot, path)
		if err != nil {
			return err
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input root: %w", err)
	}
	return rels, nil
}

func (r *Runner) runSequential(ctx context.Context, rels []string) (Summary, error) {
	var summary Summary
	for _, rel := range rels {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if err := r.processOne(ctx, rel); err != nil {
			summary.Failed++
			if !r.opts.KeepGoing {
				return summary, fmt.Errorf("clean %s: %w", rel, err)
			}
			r.logger.Printf("cleanup failed file=%s err=%v", rel, err)
			continue
		}
		summary.Processed++
	}
	return summary, nil
}

func (r *Runner) runParallel(ctx context.Context, rels []string) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		summary  Summary
		firstErr error
		firstRel string
	)

	sem := make(chan struct{}, r.opts.Workers)
	for _, rel := range rels {
		if runCtx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(rel string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := r.processOne(runCtx, rel); err != nil {
				mu.Lock()
				summary.Failed++
				if firstErr == nil {
					firstErr = err
					firstRel = rel
				}
				mu.Unlock()

				if r.opts.KeepGoing {
					r.logger.Printf("cleanup failed file=%s err=%v", rel, err)
				} else {
					cancel()
				}
				return
			}

			mu.Lock()
			summary.Processed++
			mu.Unlock()
		}(rel)
	}
	wg.Wait()

	if !r.opts.KeepGoing && firstErr != nil {
		return summary, fmt.Errorf("clean %s: %w", firstRel, firstErr)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *Runner) processOne(ctx context.Context, rel string) error {
	src := filepath.Join(r.opts.InputRoot, rel)
	dst := r.destFor(rel)
	if err := pipeline.ProcessFile(ctx, src, dst, r.opts.Params); err != nil {
		return err
	}
	r.logger.Printf("cleaned src=%s dst=%s", src, dst)
	return nil
}

func (r *Runner) destFor(rel string) string {
	if r.opts.Format != "" {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + "." + r.opts.Format
	}
	return filepath.Join(r.opts.OutputRoot, rel)
}

func (r *Runner) matchesSource(name string) bool {
	if r.opts.Match == "" {
		return isRasterPath(name)
	}
	ok, err := path.Match(r.opts.Match, strings.ToLower(name))
	return err == nil && ok
}

var rasterExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func isRasterPath(name string) bool {
	return rasterExtensions[strings.ToLower(filepath.Ext(name))]
}
