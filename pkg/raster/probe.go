package raster

import (
	"image"
	"io"

	"go.uber.org/zap"
)

// Probe returns the Format that will actually be used for a requested
// format name. It encodes a 1x1 raster with the requested encoder; any
// unknown name, missing encoder, or encode failure silently downgrades to
// the lossless Fallback. Callers probe once per export session and reuse
// the result.
func Probe(name string, logger *zap.Logger) Format {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, ok := LookupFormat(name)
	if !ok {
		logger.Debug("unknown format, using fallback",
			zap.String("requested", name),
			zap.String("fallback", Fallback.Name),
		)
		return Fallback
	}

	tiny := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := Encode(io.Discard, tiny, f); err != nil {
		logger.Debug("format not encodable, using fallback",
			zap.String("requested", f.Name),
			zap.String("fallback", Fallback.Name),
			zap.Error(err),
		)
		return Fallback
	}
	return f
}
