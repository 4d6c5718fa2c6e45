// Package preset loads reusable cleanup recipes from TOML files.
package preset

import (
	"fmt"
	"os"

	"github.com/dunamismax/imagepress/internal/pipeline"
	"github.com/pelletier/go-toml/v2"
)

// Preset is a partial cleanup recipe. Only keys present in the file are
// applied, so a preset can override a single knob and inherit the rest.
// Threshold 0 is a legal explicit value, hence the pointer fields.
type Preset struct {
	Brightness *float64 `toml:"brightness"`
	Contrast   *float64 `toml:"contrast"`
	Sharpness  *float64 `toml:"sharpness"`
	MaxWidth   *int     `toml:"max_width"`
	MaxHeight  *int     `toml:"max_height"`
	Scale      *float64 `toml:"scale"`
	Binarize   *bool    `toml:"binarize"`
	Threshold  *int     `toml:"threshold"`
	Dither     *bool    `toml:"dither"`
	Format     *string  `toml:"format"`
}

// Values is the fully resolved recipe a batch run executes.
type Values struct {
	Brightness float64
	Contrast   float64
	Sharpness  float64
	MaxWidth   int
	MaxHeight  int
	Scale      float64
	Binarize   bool
	Threshold  int
	Dither     bool
	Format     string
}

// DefaultValues returns the standard cleanup recipe: mild brighten, soften
// contrast, sharpen, and fit within a 1600x1600 box.
func DefaultValues() Values {
	return Values{
		Brightness: 1.2,
		Contrast:   0.9,
		Sharpness:  1.3,
		MaxWidth:   1600,
		MaxHeight:  1600,
		Threshold:  128,
	}
}

func Load(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read preset: %w", err)
	}

	var p Preset
	if err := toml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parse preset: %w", err)
	}
	return p, nil
}

// Apply overlays every key present in the preset onto v.
func (p Preset) Apply(v Values) Values {
	if p.Brightness != nil {
		v.Brightness = *p.Brightness
	}
	if p.Contrast != nil {
		v.Contrast = *p.Contrast
	}
	if p.Sharpness != nil {
		v.Sharpness = *p.Sharpness
	}
	if p.MaxWidth != nil {
		v.MaxWidth = *p.MaxWidth
	}
	if p.MaxHeight != nil {
		v.MaxHeight = *p.MaxHeight
	}
	if p.Scale != nil {
		v.Scale = *p.Scale
	}
	if p.Binarize != nil {
		v.Binarize = *p.Binarize
	}
	if p.Threshold != nil {
		v.Threshold = *p.Threshold
	}
	if p.Dither != nil {
		v.Dither = *p.Dither
	}
	if p.Format != nil {
		v.Format = *p.Format
	}
	return v
}

// Params converts the resolved recipe into pipeline parameters. A positive
// Scale selects enlargement mode; otherwise the fit box applies.
func (v Values) Params() (pipeline.Params, error) {
	params := pipeline.Params{
		Brightness: v.Brightness,
		Contrast:   v.Contrast,
		Sharpness:  v.Sharpness,
	}
	if v.Scale > 0 {
		params.Mode = pipeline.ScaleBy(v.Scale)
	} else {
		params.Mode = pipeline.FitWithin(v.MaxWidth, v.MaxHeight)
	}
	if v.Binarize {
		params.Binarize = true
		params.Threshold = clampThreshold(v.Threshold)
		params.Dither = v.Dither
	}
	if err := params.Validate(); err != nil {
		return pipeline.Params{}, err
	}
	return params, nil
}

func clampThreshold(t int) uint8 {
	if t < 0 {
		return 0
	}
	if t > 255 {
		return 255
	}
	return uint8(t)
}
