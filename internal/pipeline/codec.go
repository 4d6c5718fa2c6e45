package pipeline

// Raster is one decoded image owned by a single transform invocation.
// Decoding applies any EXIF orientation to the pixels and neutralizes the
// tag; every later operation mutates the raster in place. Implementations
// are not safe for concurrent use.
type Raster interface {
	Size() (width, height int)
	Format() string

	// The three Adjust operations rescale each pixel's deviation from a
	// baseline: out = baseline + (in-baseline)*factor, saturated to uint8.
	// The baseline is black for brightness, the mean gray level for
	// contrast, and a smoothed copy of the image for sharpness. Factor 1.0
	// leaves the pixels untouched.
	Grayscale() error
	AdjustBrightness(factor float64) error
	AdjustContrast(factor float64) error
	AdjustSharpness(factor float64) error

	// ResizeTo resamples to the exact target size with a Lanczos filter.
	ResizeTo(width, height int) error

	// Threshold maps every pixel at or above cutoff to 255 and the rest to
	// 0. Mono then converts to 1-bit black/white, with Floyd-Steinberg
	// error diffusion when dither is set and flat quantization otherwise.
	Threshold(cutoff uint8) error
	Mono(dither bool) error

	Encode(opts EncodeOptions) ([]byte, error)
	Close()
}

// Codec decodes source bytes into a workable raster.
type Codec interface {
	Decode(input []byte) (Raster, error)
}
