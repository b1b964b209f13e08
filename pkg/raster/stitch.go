package raster

import (
	"context"
	"errors"
	"image"
	"math"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Common errors.
var (
	ErrNoSources = errors.New("raster: no drawable sources")
)

// Source supplies one image for composition. Declared dimensions may be
// zero; the stitcher then fetches and decodes the image up front to learn
// them, and keeps the decoded handle for the drawing pass rather than
// fetching twice.
type Source struct {
	Width  int
	Height int
	Fetch  func(ctx context.Context) (image.Image, error)
}

// StitchOptions configures Combine.
type StitchOptions struct {
	// Format provides the encoder and the dimension and pixel ceilings
	// every chunk must respect.
	Format Format

	// Logger for per-source and per-chunk events.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

// Chunk is one encoded segment of the composite. Index is the chunk's
// position in the planned sequence; when a chunk fails to encode its
// index is skipped in the result.
type Chunk struct {
	Index  int
	Width  int
	Height int
	Data   []byte
}

// CombineResult is the outcome of one composition.
type CombineResult struct {
	Chunks []Chunk // encoded chunks in order, failed ones omitted
	Total  int     // planned chunk count
	Drawn  int     // sources successfully drawn
}

// stitcher tracks the streaming state of one composition: the open chunk,
// the write position inside it, and how much of the total height has been
// emitted.
type stitcher struct {
	format   Format
	logger   *zap.Logger
	outW     int
	chunkH   int
	totalH   int
	emittedH int

	chunk     *image.RGBA
	chunkIdx  int
	destY     int
	result    *CombineResult
}

// Combine draws the sources top to bottom into one or more composite
// images, each within the format's ceilings.
//
// The composite width is the widest natural width; every source scales by
// the single factor that fits that width within the dimension ceiling
// (never upscaled). Chunk height is further bounded so no chunk exceeds
// the pixel ceiling. A source crossing a chunk boundary is split across
// the flush: the fitting rows are drawn, the chunk is encoded, and the
// remainder continues at the top of the next chunk.
//
// Failed fetches skip the source, leaving its budgeted rows blank; failed
// chunk encodes skip the chunk. Combine fails only when the context is
// canceled or no source could be drawn at all.
func Combine(ctx context.Context, sources []Source, opts StitchOptions) (*CombineResult, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	type slot struct {
		src     Source
		decoded image.Image
		w, h    int
		skip    bool
	}

	slots := make([]*slot, len(sources))
	for i, src := range sources {
		s := &slot{src: src, w: src.Width, h: src.Height}
		slots[i] = s
		if s.w > 0 && s.h > 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := src.Fetch(ctx)
		if err != nil {
			opts.Logger.Warn("source fetch failed, skipping",
				zap.Int("index", i),
				zap.Error(err),
			)
			s.skip = true
			continue
		}
		s.decoded = img
		b := img.Bounds()
		s.w, s.h = b.Dx(), b.Dy()
	}

	combinedW := 0
	for _, s := range slots {
		if !s.skip && s.w > combinedW {
			combinedW = s.w
		}
	}
	if combinedW == 0 {
		return nil, ErrNoSources
	}

	f := opts.Format
	scale := 1.0
	if combinedW > f.MaxDim {
		scale = float64(f.MaxDim) / float64(combinedW)
	}

	st := &stitcher{
		format: f,
		logger: opts.Logger,
		outW:   scaledSize(combinedW, scale),
		result: &CombineResult{},
	}
	st.chunkH = int(f.MaxPixels / int64(st.outW))
	if st.chunkH > f.MaxDim {
		st.chunkH = f.MaxDim
	}
	if st.chunkH < 1 {
		st.chunkH = 1
	}

	type placed struct {
		*slot
		scaledW, scaledH int
	}
	plan := make([]placed, 0, len(slots))
	for _, s := range slots {
		if s.skip {
			continue
		}
		p := placed{slot: s, scaledW: scaledSize(s.w, scale), scaledH: scaledSize(s.h, scale)}
		plan = append(plan, p)
		st.totalH += p.scaledH
	}
	st.result.Total = ceilDiv(st.totalH, st.chunkH)

	for i, p := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img := p.decoded
		p.slot.decoded = nil // release the retained handle once consumed
		if img == nil {
			var err error
			img, err = p.src.Fetch(ctx)
			if err != nil {
				opts.Logger.Warn("source fetch failed, leaving gap",
					zap.Int("index", i),
					zap.Error(err),
				)
				st.advance(p.scaledH)
				continue
			}
		}

		scaled := scaleTo(img, p.scaledW, p.scaledH)

		x := (st.outW - p.scaledW) / 2
		srcY := 0
		remaining := p.scaledH
		for remaining > 0 {
			st.ensureChunk()
			take := min(remaining, st.openHeight()-st.destY)
			draw.Draw(st.chunk,
				image.Rect(x, st.destY, x+p.scaledW, st.destY+take),
				scaled, image.Pt(0, srcY), draw.Over)
			st.destY += take
			srcY += take
			remaining -= take
			if st.destY == st.openHeight() {
				st.flush()
			}
		}
		st.result.Drawn++
	}
	st.flush()

	if st.result.Drawn == 0 {
		return nil, ErrNoSources
	}
	return st.result, nil
}

// openHeight returns the height of the currently open chunk.
func (st *stitcher) openHeight() int {
	return st.chunk.Bounds().Dy()
}

// ensureChunk opens a new chunk if none is open. The final chunk is
// allocated at only the height still unemitted.
func (st *stitcher) ensureChunk() {
	if st.chunk != nil {
		return
	}
	h := min(st.chunkH, st.totalH-st.emittedH)
	st.chunk = image.NewRGBA(image.Rect(0, 0, st.outW, h))
	draw.Draw(st.chunk, st.chunk.Bounds(), image.White, image.Point{}, draw.Src)
	st.destY = 0
}

// advance moves the write position by h rows without drawing, flushing
// chunks as they fill. Skipped sources keep their budgeted rows so the
// remaining geometry is unchanged.
func (st *stitcher) advance(h int) {
	for h > 0 {
		st.ensureChunk()
		step := min(h, st.openHeight()-st.destY)
		st.destY += step
		h -= step
		if st.destY == st.openHeight() {
			st.flush()
		}
	}
}

// flush encodes and appends the open chunk. An encode failure drops the
// chunk and the composition continues.
func (st *stitcher) flush() {
	if st.chunk == nil || st.destY == 0 {
		return
	}
	idx := st.chunkIdx
	h := st.openHeight()

	data, err := EncodeBytes(st.chunk, st.format)
	if err != nil {
		st.logger.Warn("chunk encode failed, skipping",
			zap.Int("chunk", idx),
			zap.Error(err),
		)
	} else {
		st.result.Chunks = append(st.result.Chunks, Chunk{
			Index:  idx,
			Width:  st.outW,
			Height: h,
			Data:   data,
		})
	}

	st.emittedH += h
	st.chunkIdx++
	st.chunk = nil
	st.destY = 0
}

// scaledSize scales a dimension, keeping at least one pixel.
func scaledSize(v int, scale float64) int {
	if scale == 1 {
		return v
	}
	s := int(math.Round(float64(v) * scale))
	if s < 1 {
		s = 1
	}
	return s
}

// scaleTo renders img at w by h over a white background. A same-size
// source is copied without resampling.
func scaleTo(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
