package pipeline

import (
	"path/filepath"
	"strings"
)

// EncodeOptions is the encoding directive for one output format. Directives
// are resolved once per transform from the destination extension; formats
// without a table entry encode with plain codec defaults.
type EncodeOptions struct {
	Format       string
	Quality      int
	FullChroma   bool
	Optimize     bool
	Lossless     bool
	Effort       int
	KeepMetadata bool
}

var encodeDirectives = map[string]EncodeOptions{
	"jpeg": {Format: "jpeg", Quality: 90, FullChroma: true, Optimize: true, KeepMetadata: true},
	"png":  {Format: "png", Lossless: true, Optimize: true},
	"webp": {Format: "webp", Quality: 95, Effort: 6},
}

// OptionsForDestination resolves the encoding directive for a destination.
// It accepts a file name, a path, or a bare extension, case-insensitively;
// unrecognized extensions fall back to png.
func OptionsForDestination(name string) EncodeOptions {
	format := normalizeOutputFormat(extToken(name))
	if opts, ok := encodeDirectives[format]; ok {
		return opts
	}
	return EncodeOptions{Format: format}
}

func extToken(name string) string {
	name = strings.TrimSpace(name)
	if ext := filepath.Ext(name); ext != "" {
		return strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	return strings.ToLower(name)
}

func normalizeOutputFormat(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "jpeg"
	case "tif", "tiff":
		return "tiff"
	case "png", "webp", "gif", "bmp":
		return format
	default:
		return "png"
	}
}
