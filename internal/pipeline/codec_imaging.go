package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// imagingCodec is the pure-Go backend, always compiled. Builds with the
// govips tag use libvips instead.
type imagingCodec struct{}

func (imagingCodec) Decode(input []byte) (Raster, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	r := &imagingRaster{src: img, format: normalizeOutputFormat(format)}
	if r.format == "jpeg" {
		r.exif = neutralizedExifSegment(input)
	}
	return r, nil
}

type imagingRaster struct {
	src    image.Image
	gray   *image.Gray
	mono   *image.Paletted
	format string
	exif   []byte
}

func (r *imagingRaster) Size() (int, int) {
	b := r.image().Bounds()
	return b.Dx(), b.Dy()
}

func (r *imagingRaster) Format() string { return r.format }

func (r *imagingRaster) image() image.Image {
	if r.mono != nil {
		return r.mono
	}
	if r.gray != nil {
		return r.gray
	}
	return r.src
}

func (r *imagingRaster) ensureGray() *image.Gray {
	if r.gray == nil {
		bounds := r.src.Bounds()
		gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(gray, gray.Bounds(), r.src, bounds.Min, draw.Src)
		r.gray = gray
		r.src = nil
	}
	return r.gray
}

func (r *imagingRaster) Grayscale() error {
	r.ensureGray()
	return nil
}

func (r *imagingRaster) AdjustBrightness(factor float64) error {
	gray := r.ensureGray()
	if factor == 1 {
		return nil
	}
	for i, v := range gray.Pix {
		gray.Pix[i] = clampUint8(float64(v) * factor)
	}
	return nil
}

func (r *imagingRaster) AdjustContrast(factor float64) error {
	gray := r.ensureGray()
	if factor == 1 {
		return nil
	}
	mean := math.Floor(meanGray(gray) + 0.5)
	for i, v := range gray.Pix {
		gray.Pix[i] = clampUint8(mean + (float64(v)-mean)*factor)
	}
	return nil
}

func (r *imagingRaster) AdjustSharpness(factor float64) error {
	gray := r.ensureGray()
	if factor == 1 {
		return nil
	}
	smooth := smoothGray(gray)
	for i, v := range gray.Pix {
		s := float64(smooth.Pix[i])
		gray.Pix[i] = clampUint8(s + (float64(v)-s)*factor)
	}
	return nil
}

func (r *imagingRaster) ResizeTo(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: resize target %dx%d", ErrInvalidParam, width, height)
	}
	resized := imaging.Resize(r.ensureGray(), width, height, imaging.Lanczos)
	gray := image.NewGray(resized.Bounds())
	draw.Draw(gray, gray.Bounds(), resized, resized.Bounds().Min, draw.Src)
	r.gray = gray
	return nil
}

func (r *imagingRaster) Threshold(cutoff uint8) error {
	gray := r.ensureGray()
	for i, v := range gray.Pix {
		if v >= cutoff {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return nil
}

var monoPalette = color.Palette{color.Gray{Y: 0}, color.Gray{Y: 255}}

func (r *imagingRaster) Mono(dither bool) error {
	gray := r.ensureGray()
	pal := image.NewPaletted(gray.Bounds(), monoPalette)
	if dither {
		draw.FloydSteinberg.Draw(pal, pal.Bounds(), gray, gray.Bounds().Min)
	} else {
		draw.Draw(pal, pal.Bounds(), gray, gray.Bounds().Min, draw.Src)
	}
	r.mono = pal

	// Keep the gray plane current for encoders without palette support.
	flat := image.NewGray(pal.Bounds())
	draw.Draw(flat, flat.Bounds(), pal, pal.Bounds().Min, draw.Src)
	r.gray = flat
	return nil
}

func (r *imagingRaster) Encode(opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer

	switch opts.Format {
	case "jpeg":
		quality := opts.Quality
		if quality <= 0 || quality > 100 {
			quality = 80
		}
		if err := imaging.Encode(&buf, r.grayImage(), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}
		if opts.KeepMetadata && len(r.exif) > 0 {
			return spliceExifSegment(buf.Bytes(), r.exif), nil
		}
	case "png":
		level := png.DefaultCompression
		if opts.Optimize {
			level = png.BestCompression
		}
		if err := imaging.Encode(&buf, r.image(), imaging.PNG, imaging.PNGCompressionLevel(level)); err != nil {
			return nil, err
		}
	case "webp":
		quality := float32(opts.Quality)
		if quality <= 0 || quality > 100 {
			quality = 80
		}
		if err := webp.Encode(&buf, r.grayImage(), &webp.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case "gif":
		if err := imaging.Encode(&buf, r.image(), imaging.GIF); err != nil {
			return nil, err
		}
	case "tiff":
		if err := imaging.Encode(&buf, r.image(), imaging.TIFF); err != nil {
			return nil, err
		}
	case "bmp":
		if err := imaging.Encode(&buf, r.grayImage(), imaging.BMP); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}

	return buf.Bytes(), nil
}

// grayImage prefers the 8-bit gray plane over the palette plane. Grayscale
// JPEGs carry no chroma channels, which satisfies the no-subsampling
// directive structurally.
func (r *imagingRaster) grayImage() image.Image {
	if r.gray != nil {
		return r.gray
	}
	return r.image()
}

func (r *imagingRaster) Close() {}

func clampUint8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}

func meanGray(gray *image.Gray) float64 {
	if len(gray.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range gray.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(gray.Pix))
}

// smoothGray applies the 3x3 kernel {1 1 1; 1 5 1; 1 1 1}/13. Border pixels
// keep their original value.
func smoothGray(gray *image.Gray) *image.Gray {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(bounds)
	copy(out.Pix, gray.Pix)
	if w < 3 || h < 3 {
		return out
	}

	stride := gray.Stride
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*stride + x
			sum := float64(gray.Pix[i-stride-1]) + float64(gray.Pix[i-stride]) + float64(gray.Pix[i-stride+1]) +
				float64(gray.Pix[i-1]) + 5*float64(gray.Pix[i]) + float64(gray.Pix[i+1]) +
				float64(gray.Pix[i+stride-1]) + float64(gray.Pix[i+stride]) + float64(gray.Pix[i+stride+1])
			out.Pix[i] = clampUint8(sum / 13)
		}
	}
	return out
}
