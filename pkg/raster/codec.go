package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"

	_ "golang.org/x/image/webp" // webp decoding
)

// Common errors.
var (
	ErrUnsupportedFormat = errors.New("raster: no encoder for format")
)

type encoderFunc func(w io.Writer, img image.Image, f Format) error

// encoders maps format names to their encoders. avif is intentionally
// absent: requesting it exercises the downgrade path.
var encoders = map[string]encoderFunc{
	"png": func(w io.Writer, img image.Image, _ Format) error {
		return png.Encode(w, img)
	},
	"jpeg": func(w io.Writer, img image.Image, f Format) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: f.Quality})
	},
	"webp": func(w io.Writer, img image.Image, _ Format) error {
		return nativewebp.Encode(w, img, nil)
	},
	"gif": func(w io.Writer, img image.Image, _ Format) error {
		return gif.Encode(w, img, &gif.Options{NumColors: 256})
	},
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, f Format) error {
	enc, ok := encoders[f.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Name)
	}
	if err := enc(w, img, f); err != nil {
		return fmt.Errorf("encode %s: %w", f.Name, err)
	}
	return nil
}

// EncodeBytes encodes img into a fresh buffer.
func EncodeBytes(img image.Image, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decodes any registered image encoding.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeConfig reads the dimensions of an encoded image without decoding
// pixel data.
func DecodeConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("decode image config: %w", err)
	}
	return cfg, nil
}

// decodable lists the variant extensions this build can decode. avif has
// no Go decoder.
var decodable = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// CanDecode reports whether a variant extension is decodable.
func CanDecode(variant string) bool {
	return decodable[variant]
}
