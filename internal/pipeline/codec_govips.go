//go:build govips && cgo

package pipeline

import (
	"fmt"
	"math"

	"github.com/davidbyttow/govips/v2/vips"
)

type vipsCodec struct{}

func (vipsCodec) Decode(input []byte) (Raster, error) {
	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, err
	}
	if err := img.AutoRotate(); err != nil {
		img.Close()
		return nil, err
	}
	return &vipsRaster{img: img, format: vipsFormatName(vips.DetermineImageType(input))}, nil
}

func vipsFormatName(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypeWEBP:
		return "webp"
	case vips.ImageTypeGIF:
		return "gif"
	case vips.ImageTypeTIFF:
		return "tiff"
	case vips.ImageTypeBMP:
		return "bmp"
	default:
		return "png"
	}
}

type vipsRaster struct {
	img    *vips.ImageRef
	format string
	mono   bool
	dither bool
}

func (r *vipsRaster) Size() (int, int) { return r.img.Width(), r.img.Height() }

func (r *vipsRaster) Format() string { return r.format }

func (r *vipsRaster) Grayscale() error {
	if err := r.img.ToColorSpace(vips.InterpretationBW); err != nil {
		return fmt.Errorf("grayscale: %w", err)
	}
	if r.img.Bands() > 1 {
		if err := r.img.ExtractBand(0, 1); err != nil {
			return fmt.Errorf("grayscale: %w", err)
		}
	}
	return nil
}

func (r *vipsRaster) AdjustBrightness(factor float64) error {
	if factor == 1 {
		return nil
	}
	return r.linearStage("brightness", factor, 0)
}

func (r *vipsRaster) AdjustContrast(factor float64) error {
	if factor == 1 {
		return nil
	}
	avg, err := r.img.Average()
	if err != nil {
		return fmt.Errorf("contrast: %w", err)
	}
	mean := math.Floor(avg + 0.5)
	return r.linearStage("contrast", factor, mean*(1-factor))
}

func (r *vipsRaster) AdjustSharpness(factor float64) error {
	if factor == 1 {
		return nil
	}
	smooth, err := r.img.Copy()
	if err != nil {
		return fmt.Errorf("sharpness: %w", err)
	}
	defer smooth.Close()

	if err := smooth.GaussianBlur(0.8); err != nil {
		return fmt.Errorf("sharpness: %w", err)
	}
	if err := smooth.Linear1(1-factor, 0); err != nil {
		return fmt.Errorf("sharpness: %w", err)
	}
	if err := r.img.Linear1(factor, 0); err != nil {
		return fmt.Errorf("sharpness: %w", err)
	}
	if err := r.img.Add(smooth); err != nil {
		return fmt.Errorf("sharpness: %w", err)
	}
	if err := r.img.Cast(vips.BandFormatUchar); err != nil {
		return fmt.Errorf("sharpness: %w", err)
	}
	return nil
}

func (r *vipsRaster) ResizeTo(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: resize target %dx%d", ErrInvalidParam, width, height)
	}
	hscale := float64(width) / float64(r.img.Width())
	vscale := float64(height) / float64(r.img.Height())
	if err := r.img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	return nil
}

func (r *vipsRaster) Threshold(cutoff uint8) error {
	// Steep ramp centered half a level below the cutoff; the uchar cast
	// saturates the result to exactly 0 or 255.
	const slope = 1e9
	return r.linearStage("threshold", slope, -slope*(float64(cutoff)-0.5))
}

func (r *vipsRaster) Mono(dither bool) error {
	// Pixels are already 0/255 after the threshold pass; the 1-bit layout
	// is applied at png export time.
	r.mono = true
	r.dither = dither
	return nil
}

func (r *vipsRaster) Encode(opts EncodeOptions) ([]byte, error) {
	switch opts.Format {
	case "jpeg":
		params := vips.NewJpegExportParams()
		if opts.Quality > 0 && opts.Quality <= 100 {
			params.Quality = opts.Quality
		}
		if opts.FullChroma {
			params.SubsampleMode = vips.VipsForeignSubsampleOff
		}
		params.OptimizeCoding = opts.Optimize
		params.StripMetadata = !opts.KeepMetadata
		data, _, err := r.img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case "png":
		params := vips.NewPngExportParams()
		if opts.Optimize {
			params.Compression = 9
		}
		if r.mono {
			params.Bitdepth = 1
			if r.dither {
				params.Dither = 1
			}
		}
		data, _, err := r.img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case "webp":
		params := vips.NewWebpExportParams()
		if opts.Quality > 0 && opts.Quality <= 100 {
			params.Quality = opts.Quality
		}
		if opts.Effort > 0 {
			params.ReductionEffort = opts.Effort
		}
		data, _, err := r.img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func (r *vipsRaster) Close() { r.img.Close() }

func (r *vipsRaster) linearStage(name string, a, b float64) error {
	if err := r.img.Linear1(a, b); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := r.img.Cast(vips.BandFormatUchar); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
