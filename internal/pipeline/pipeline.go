package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidParam = errors.New("invalid pipeline parameter")

const (
	StageGrayscale  = "grayscale"
	StageBrightness = "brightness"
	StageContrast   = "contrast"
	StageSharpness  = "sharpness"
	StageResize     = "resize"
	StageThreshold  = "threshold"
	StageMono       = "mono"
)

type resizeKind int

const (
	resizeFit resizeKind = iota
	resizeScale
)

// ResizeMode selects between shrinking into a bounding box and scaling by a
// fixed factor. The two are mutually exclusive; use one of the constructors.
type ResizeMode struct {
	kind      resizeKind
	maxWidth  int
	maxHeight int
	factor    float64
}

// FitWithin shrinks the image to fit inside maxWidth x maxHeight, keeping
// aspect ratio. Images already inside the box are left at their size; this
// mode never upscales.
func FitWithin(maxWidth, maxHeight int) ResizeMode {
	return ResizeMode{kind: resizeFit, maxWidth: maxWidth, maxHeight: maxHeight}
}

// ScaleBy multiplies both dimensions by factor. Factors above 1 enlarge,
// below 1 shrink; each output dimension is at least 1.
func ScaleBy(factor float64) ResizeMode {
	return ResizeMode{kind: resizeScale, factor: factor}
}

func (m ResizeMode) IsScale() bool { return m.kind == resizeScale }

func (m ResizeMode) String() string {
	if m.kind == resizeScale {
		return fmt.Sprintf("scale(%g)", m.factor)
	}
	return fmt.Sprintf("fit(%dx%d)", m.maxWidth, m.maxHeight)
}

func (m ResizeMode) validate() error {
	switch m.kind {
	case resizeScale:
		if m.factor <= 0 || math.IsNaN(m.factor) || math.IsInf(m.factor, 0) {
			return fmt.Errorf("%w: scale factor must be > 0", ErrInvalidParam)
		}
	default:
		if m.maxWidth < 1 || m.maxHeight < 1 {
			return fmt.Errorf("%w: fit bounds must be at least 1x1", ErrInvalidParam)
		}
	}
	return nil
}

func (m ResizeMode) targetSize(width, height int) (int, int) {
	if m.kind == resizeScale {
		return scaleDim(width, m.factor), scaleDim(height, m.factor)
	}

	ratio := math.Min(float64(m.maxWidth)/float64(width), float64(m.maxHeight)/float64(height))
	if ratio >= 1 {
		return width, height
	}
	return boundDim(width, ratio, m.maxWidth), boundDim(height, ratio, m.maxHeight)
}

func scaleDim(dim int, factor float64) int {
	out := int(math.Round(float64(dim) * factor))
	if out < 1 {
		return 1
	}
	return out
}

func boundDim(dim int, ratio float64, max int) int {
	out := int(math.Round(float64(dim) * ratio))
	if out < 1 {
		return 1
	}
	if out > max {
		return max
	}
	return out
}

// Params is the full parameter set for one transform. Enhancement factors
// are multiplicative with 1.0 as the identity and no upper bound. Binarize
// is only valid together with a ScaleBy mode; Threshold and Dither are
// ignored unless Binarize is set.
type Params struct {
	Brightness float64
	Contrast   float64
	Sharpness  float64
	Mode       ResizeMode
	Binarize   bool
	Threshold  uint8
	Dither     bool
}

// DefaultParams carries the stock presentation cleanup: mild brightening,
// slightly reduced contrast, mild sharpening, bounded to 1600x1600.
func DefaultParams() Params {
	return Params{
		Brightness: 1.2,
		Contrast:   0.9,
		Sharpness:  1.3,
		Mode:       FitWithin(1600, 1600),
	}
}

func (p Params) Validate() error {
	if p.Brightness <= 0 || math.IsNaN(p.Brightness) {
		return fmt.Errorf("%w: brightness must be > 0", ErrInvalidParam)
	}
	if p.Contrast <= 0 || math.IsNaN(p.Contrast) {
		return fmt.Errorf("%w: contrast must be > 0", ErrInvalidParam)
	}
	if p.Sharpness <= 0 || math.IsNaN(p.Sharpness) {
		return fmt.Errorf("%w: sharpness must be > 0", ErrInvalidParam)
	}
	if err := p.Mode.validate(); err != nil {
		return err
	}
	if p.Binarize && !p.Mode.IsScale() {
		return fmt.Errorf("%w: binarize requires a scale resize", ErrInvalidParam)
	}
	return nil
}

// Stage is one named step of the transform sequence.
type Stage struct {
	Name  string
	apply func(Raster) error
}

// Stages returns the ordered transform sequence for the parameter set.
// Enhancement always applies to grayscale pixels. The fit variant sharpens
// before resizing; the scale variant resizes first, then sharpens, then
// optionally binarizes (hard threshold followed by 1-bit conversion).
func (p Params) Stages() []Stage {
	stages := []Stage{
		{Name: StageGrayscale, apply: func(r Raster) error { return r.Grayscale() }},
		{Name: StageBrightness, apply: func(r Raster) error { return r.AdjustBrightness(p.Brightness) }},
		{Name: StageContrast, apply: func(r Raster) error { return r.AdjustContrast(p.Contrast) }},
	}

	sharpen := Stage{Name: StageSharpness, apply: func(r Raster) error { return r.AdjustSharpness(p.Sharpness) }}
	resize := Stage{Name: StageResize, apply: func(r Raster) error {
		width, height := r.Size()
		targetW, targetH := p.Mode.targetSize(width, height)
		if targetW == width && targetH == height {
			return nil
		}
		return r.ResizeTo(targetW, targetH)
	}}

	if p.Mode.IsScale() {
		stages = append(stages, resize, sharpen)
		if p.Binarize {
			stages = append(stages,
				Stage{Name: StageThreshold, apply: func(r Raster) error { return r.Threshold(p.Threshold) }},
				Stage{Name: StageMono, apply: func(r Raster) error { return r.Mono(p.Dither) }},
			)
		}
		return stages
	}
	return append(stages, sharpen, resize)
}

// Summary describes one finished transform.
type Summary struct {
	SourceFormat string
	Format       string
	Width        int
	Height       int
	Bytes        int
}

// Transform runs the full stage sequence over an encoded source image and
// returns the encoded result. destFormat selects the output encoding and
// accepts a file name, path, or bare extension; when empty the source
// format is kept. The input slice is never modified. Cancellation is only
// observed before work starts, never between stages.
func Transform(ctx context.Context, input []byte, params Params, destFormat string) ([]byte, Summary, error) {
	select {
	case <-ctx.Done():
		return nil, Summary{}, ctx.Err()
	default:
	}

	if err := params.Validate(); err != nil {
		return nil, Summary{}, err
	}

	raster, err := newCodec().Decode(input)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("decode source image: %w", err)
	}
	defer raster.Close()

	format := strings.TrimSpace(destFormat)
	if format == "" {
		format = raster.Format()
	}
	opts := OptionsForDestination(format)

	for _, stage := range params.Stages() {
		if err := stage.apply(raster); err != nil {
			return nil, Summary{}, fmt.Errorf("%s stage: %w", stage.Name, err)
		}
	}

	data, err := raster.Encode(opts)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("encode %s: %w", opts.Format, err)
	}

	width, height := raster.Size()
	return data, Summary{
		SourceFormat: raster.Format(),
		Format:       opts.Format,
		Width:        width,
		Height:       height,
		Bytes:        len(data),
	}, nil
}
