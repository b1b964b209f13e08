package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func solidSource(w, h int, c color.RGBA) Source {
	return Source{
		Width:  w,
		Height: h,
		Fetch: func(ctx context.Context) (image.Image, error) {
			img := image.NewRGBA(image.Rect(0, 0, w, h))
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					img.SetRGBA(x, y, c)
				}
			}
			return img, nil
		},
	}
}

// stitchFormat keeps the chunk geometry tractable: width 100 composites
// get 6000-row chunks.
var stitchFormat = Format{Name: "png", MaxDim: 10000, MaxPixels: 600000}

func decodeChunk(t *testing.T, c Chunk) image.Image {
	t.Helper()
	img, err := Decode(c.Data)
	if err != nil {
		t.Fatalf("decode chunk %d: %v", c.Index, err)
	}
	b := img.Bounds()
	if b.Dx() != c.Width || b.Dy() != c.Height {
		t.Fatalf("chunk %d decoded %dx%d, recorded %dx%d", c.Index, b.Dx(), b.Dy(), c.Width, c.Height)
	}
	return img
}

func TestCombineHeightConservation(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	sources := []Source{
		solidSource(100, 4000, red),
		solidSource(100, 4000, green),
		solidSource(100, 4000, blue),
	}

	res, err := Combine(context.Background(), sources, StitchOptions{Format: stitchFormat})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	if res.Total != 2 || len(res.Chunks) != 2 {
		t.Fatalf("chunks = %d planned %d, want 2 and 2", len(res.Chunks), res.Total)
	}
	if res.Drawn != 3 {
		t.Errorf("Drawn = %d, want 3", res.Drawn)
	}

	sum := 0
	for _, c := range res.Chunks {
		if c.Width != 100 {
			t.Errorf("chunk %d width = %d, want 100", c.Index, c.Width)
		}
		sum += c.Height
	}
	if sum != 12000 {
		t.Errorf("total chunk height = %d, want exactly 12000", sum)
	}
	if res.Chunks[0].Height != 6000 || res.Chunks[1].Height != 6000 {
		t.Errorf("chunk heights = %d, %d, want 6000, 6000",
			res.Chunks[0].Height, res.Chunks[1].Height)
	}
}

func TestCombineSpansChunkBoundary(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	sources := []Source{
		solidSource(100, 4000, red),
		solidSource(100, 4000, green),
		solidSource(100, 4000, blue),
	}

	res, err := Combine(context.Background(), sources, StitchOptions{Format: stitchFormat})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	first := decodeChunk(t, res.Chunks[0])
	second := decodeChunk(t, res.Chunks[1])

	// The middle image occupies rows 4000-7999 of the composite: the
	// bottom third of chunk 0 and the top third of chunk 1.
	checks := []struct {
		img  image.Image
		y    int
		want color.RGBA
	}{
		{first, 0, red},
		{first, 3999, red},
		{first, 4000, green},
		{first, 5999, green},
		{second, 0, green},
		{second, 1999, green},
		{second, 2000, blue},
		{second, 5999, blue},
	}
	for _, c := range checks {
		r, g, b, _ := c.img.At(50, c.y).RGBA()
		wr, wg, wb, _ := c.want.RGBA()
		if r != wr || g != wg || b != wb {
			t.Errorf("pixel at y=%d = (%d,%d,%d), want %v", c.y, r>>8, g>>8, b>>8, c.want)
		}
	}
}

func TestCombineScalesToWidestWithinCeiling(t *testing.T) {
	f := Format{Name: "png", MaxDim: 100, MaxPixels: 600000}
	red := color.RGBA{R: 255, A: 255}

	sources := []Source{
		solidSource(200, 100, red), // twice the ceiling: forces scale 0.5
		solidSource(100, 100, red), // scales to 50, centered at x=25
	}

	res, err := Combine(context.Background(), sources, StitchOptions{Format: f})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(res.Chunks))
	}

	c := res.Chunks[0]
	if c.Width != 100 || c.Height != 100 {
		t.Fatalf("chunk = %dx%d, want 100x100", c.Width, c.Height)
	}

	img := decodeChunk(t, c)

	// Second image band: rows 50-99. Narrow image centered over white.
	r, g, b, _ := img.At(10, 75).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("margin pixel = (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
	r, _, _, _ = img.At(50, 75).RGBA()
	if r>>8 != 255 {
		t.Errorf("centered pixel red = %d, want 255", r>>8)
	}
	_, g, _, _ = img.At(50, 75).RGBA()
	if g>>8 == 255 {
		t.Error("centered pixel should not be white")
	}
}

func TestCombineNeverUpscales(t *testing.T) {
	f := Format{Name: "png", MaxDim: 10000, MaxPixels: 600000}

	sources := []Source{solidSource(40, 30, color.RGBA{R: 9, A: 255})}
	res, err := Combine(context.Background(), sources, StitchOptions{Format: f})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if res.Chunks[0].Width != 40 || res.Chunks[0].Height != 30 {
		t.Errorf("chunk = %dx%d, want natural 40x30",
			res.Chunks[0].Width, res.Chunks[0].Height)
	}
}

func TestCombineLazyDimensionsFetchOnce(t *testing.T) {
	var fetches atomic.Int32
	src := Source{
		// Dimensions unknown: the stitcher must decode during planning
		// and reuse the handle while drawing.
		Fetch: func(ctx context.Context) (image.Image, error) {
			fetches.Add(1)
			img := image.NewRGBA(image.Rect(0, 0, 60, 40))
			return img, nil
		},
	}

	res, err := Combine(context.Background(), []Source{src}, StitchOptions{Format: stitchFormat})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if res.Drawn != 1 {
		t.Errorf("Drawn = %d, want 1", res.Drawn)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestCombineFetchFailureLeavesGap(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	failing := Source{
		Width:  100,
		Height: 50,
		Fetch: func(ctx context.Context) (image.Image, error) {
			return nil, errors.New("fetch failed")
		},
	}

	sources := []Source{
		solidSource(100, 50, red),
		failing,
		solidSource(100, 50, blue),
	}

	res, err := Combine(context.Background(), sources, StitchOptions{Format: stitchFormat, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if res.Drawn != 2 {
		t.Errorf("Drawn = %d, want 2", res.Drawn)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(res.Chunks))
	}
	if res.Chunks[0].Height != 150 {
		t.Errorf("chunk height = %d, want budgeted 150", res.Chunks[0].Height)
	}

	img := decodeChunk(t, res.Chunks[0])
	r, g, b, _ := img.At(50, 75).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("gap pixel = (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
	_, _, b, _ = img.At(50, 125).RGBA()
	if b>>8 != 255 {
		t.Errorf("third image missing below the gap")
	}
}

func TestCombineAllSourcesFail(t *testing.T) {
	failing := Source{
		Fetch: func(ctx context.Context) (image.Image, error) {
			return nil, errors.New("fetch failed")
		},
	}

	_, err := Combine(context.Background(), []Source{failing, failing},
		StitchOptions{Format: stitchFormat, Logger: zap.NewNop()})
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("expected ErrNoSources, got %v", err)
	}
}

func TestCombineEncodeFailureSkipsChunk(t *testing.T) {
	// avif has no encoder, so every chunk flush fails while drawing
	// still succeeds.
	f, _ := LookupFormat("avif")
	f.MaxDim = 10000
	f.MaxPixels = 600000

	sources := []Source{solidSource(10, 10, color.RGBA{R: 1, A: 255})}
	res, err := Combine(context.Background(), sources, StitchOptions{Format: f, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if res.Drawn != 1 {
		t.Errorf("Drawn = %d, want 1", res.Drawn)
	}
	if res.Total != 1 {
		t.Errorf("Total = %d, want 1", res.Total)
	}
	if len(res.Chunks) != 0 {
		t.Errorf("chunks = %d, want 0 after encode failures", len(res.Chunks))
	}
}

func TestCombineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sources := []Source{solidSource(10, 10, color.RGBA{A: 255})}
	_, err := Combine(ctx, sources, StitchOptions{Format: stitchFormat})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
