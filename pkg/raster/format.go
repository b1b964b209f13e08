package raster

import "strings"

// Format describes one output encoding and the hard limits a single
// encoded raster must respect. MaxDim bounds each axis independently;
// MaxPixels bounds the area.
type Format struct {
	Name      string
	MIME      string
	Ext       string
	Quality   int // lossy quality; zero for lossless encoders
	MaxDim    int
	MaxPixels int64
}

const maxArea = 64 * 1024 * 1024 // pixels, bounds working buffers

// formats is the built-in format table. Dimension ceilings are the real
// limits of each encoder: PNG stays within 15-bit dimensions, JPEG is
// capped at 65500 per axis, the lossless WebP encoder at 16383, GIF at
// 16-bit dimensions.
var formats = map[string]Format{
	"png": {
		Name:      "png",
		MIME:      "image/png",
		Ext:       "png",
		MaxDim:    32768,
		MaxPixels: maxArea,
	},
	"jpeg": {
		Name:      "jpeg",
		MIME:      "image/jpeg",
		Ext:       "jpg",
		Quality:   90,
		MaxDim:    65500,
		MaxPixels: maxArea,
	},
	"webp": {
		Name:      "webp",
		MIME:      "image/webp",
		Ext:       "webp",
		MaxDim:    16383,
		MaxPixels: maxArea,
	},
	"gif": {
		Name:      "gif",
		MIME:      "image/gif",
		Ext:       "gif",
		MaxDim:    65535,
		MaxPixels: maxArea,
	},
	"avif": {
		Name:      "avif",
		MIME:      "image/avif",
		Ext:       "avif",
		Quality:   85,
		MaxDim:    32768,
		MaxPixels: maxArea,
	},
}

// Fallback is the lossless format every build can encode. Unsupported or
// unknown formats downgrade to it.
var Fallback = formats["png"]

// LookupFormat returns the Format for a name. Common aliases ("jpg",
// "image/jpeg") normalize to their canonical entry.
func LookupFormat(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "image/")
	if name == "jpg" {
		name = "jpeg"
	}
	f, ok := formats[name]
	return f, ok
}

// Formats returns the names of all built-in formats in stable order.
func Formats() []string {
	return []string{"png", "jpeg", "webp", "gif", "avif"}
}
