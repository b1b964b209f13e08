package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"

	"github.com/ligustah/collate/internal/gallery"
	"github.com/ligustah/collate/internal/imageurl"
	"github.com/ligustah/collate/internal/relay"
	"github.com/ligustah/collate/internal/shardmap"
	"github.com/ligustah/collate/pkg/raster"
)

// Common errors.
var (
	ErrBusy                      = errors.New("export: session already in progress")
	ErrNoImages                  = errors.New("export: no images available")
	ErrDocumentExportUnavailable = errors.New("export: document export not configured")
	ErrUnknownKind               = errors.New("export: unknown request kind")

	errUnavailable = errors.New("export: no usable candidate")
)

// Kind selects what an export request produces.
type Kind string

const (
	// KindImages runs the full raster pipeline: decode, optionally tile
	// or combine, re-encode in the session format.
	KindImages Kind = "images"

	// KindOriginal packages the fetched bytes untouched, preferring each
	// image's native variant.
	KindOriginal Kind = "original"

	// KindPDF dispatches to the injected DocumentExporter.
	KindPDF Kind = "pdf"
)

// Request describes one export invocation.
type Request struct {
	// Gallery is the gallery id to export.
	Gallery string

	// Kind selects the pipeline. Default: KindImages.
	Kind Kind

	// Format is the requested output format name for KindImages. The
	// session uses the probed format, which may downgrade.
	Format string

	// Packaging selects zip or files output.
	Packaging Packaging

	// Split tiles pages that exceed the format ceilings. Ignored when
	// Combine is set.
	Split bool

	// Combine stitches all pages into one vertical composite, chunked to
	// the format ceilings.
	Combine bool
}

// Result is the outcome of a successful export.
type Result struct {
	Session string // session id, correlates logs and manifest
	Gallery string
	Label   string
	Count   int    // images that contributed output
	Outputs int    // outputs handed to the packager
	Format  string // probed format name; empty for original and pdf kinds
}

// Fetcher retrieves upstream objects.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*relay.Result, error)
}

var _ Fetcher = (*relay.Client)(nil)

// DocumentExporter renders a gallery as a single document. Document
// rendering itself is outside this module; callers may inject one.
type DocumentExporter interface {
	// ExportDocument returns the number of pages rendered.
	ExportDocument(ctx context.Context, g *gallery.Gallery) (int, error)
}

// Options configures an Exporter.
type Options struct {
	// Metadata fetches gallery descriptor lists. Required.
	Metadata *gallery.Client

	// Maps resolves the routing table. Required.
	Maps *shardmap.Resolver

	// Fetcher retrieves image bytes. Required.
	Fetcher Fetcher

	// Bucket is the output destination. Required.
	Bucket *blob.Bucket

	// ImageHost is the image domain suffix for URL resolution.
	ImageHost string

	// Workers bounds per-image overlap in non-combine modes.
	// Default: 4
	Workers int

	// Notifier receives session notices.
	// Default: NopNotifier
	Notifier Notifier

	// Sink receives per-image progress events. Optional.
	Sink ProgressSink

	// Documents handles KindPDF requests. Optional; requests fail with
	// ErrDocumentExportUnavailable when unset.
	Documents DocumentExporter

	// Logger for session events.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

// Exporter runs export sessions. At most one session is active at a
// time; the busy flag is the only state shared between requests.
type Exporter struct {
	opts Options
	busy atomic.Bool
}

// NewExporter creates an Exporter.
func NewExporter(opts Options) *Exporter {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Exporter{opts: opts}
}

// Export runs one session. A request arriving while another session is
// active is rejected with ErrBusy immediately, leaving the active
// session untouched. The outcome is both returned and mirrored to the
// Notifier: Loading on entry, then exactly one of Success or Failure.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.opts.Notifier.Busy(req.Gallery)
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	if req.Kind == "" {
		req.Kind = KindImages
	}

	session := uuid.NewString()
	logger := e.opts.Logger.With(
		zap.String("session", session),
		zap.String("gallery", req.Gallery),
		zap.String("kind", string(req.Kind)),
	)
	logger.Info("export started")
	e.opts.Notifier.Loading(req.Gallery)

	res, err := e.run(ctx, req, session, logger)
	if err != nil {
		logger.Warn("export failed", zap.Error(err))
		e.opts.Notifier.Failure(req.Gallery, err)
		return nil, err
	}

	logger.Info("export finished",
		zap.Int("images", res.Count),
		zap.Int("outputs", res.Outputs),
	)
	e.opts.Notifier.Success(req.Gallery, res.Count)
	return res, nil
}

func (e *Exporter) run(ctx context.Context, req Request, session string, logger *zap.Logger) (*Result, error) {
	g, err := e.opts.Metadata.Gallery(ctx, req.Gallery)
	if err != nil {
		return nil, err
	}
	if len(g.Files) == 0 {
		return nil, ErrNoImages
	}

	res := &Result{Session: session, Gallery: g.ID, Label: g.Label()}

	if req.Kind == KindPDF {
		if e.opts.Documents == nil {
			return nil, ErrDocumentExportUnavailable
		}
		count, err := e.opts.Documents.ExportDocument(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("document export: %w", err)
		}
		res.Count = count
		return res, nil
	}

	m, err := e.opts.Maps.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var f raster.Format
	if req.Kind == KindImages {
		f = raster.Probe(req.Format, logger)
		res.Format = f.Name
	}

	pack := NewPackager(PackagerOptions{
		Bucket:  e.opts.Bucket,
		Mode:    req.Packaging,
		Label:   g.Label(),
		Session: session,
		Gallery: g.ID,
		Format:  res.Format,
		Logger:  logger,
		Sink:    e.opts.Sink,
	})

	var count int
	switch req.Kind {
	case KindImages:
		if req.Combine {
			count, err = e.exportCombined(ctx, g, m, f, pack, logger)
		} else {
			count, err = e.exportPages(ctx, g, m, f, req.Split, pack, logger)
		}
	case KindOriginal:
		count, err = e.exportOriginals(ctx, g, m, pack, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if err != nil {
		return nil, err
	}
	if count == 0 || pack.Count() == 0 {
		return nil, ErrNoImages
	}
	if err := pack.Close(ctx); err != nil {
		return nil, err
	}

	res.Count = count
	res.Outputs = pack.Count()
	return res, nil
}

// exportPages converts each page independently, with bounded overlap.
// Output order is carried entirely by filenames, so completion order
// does not matter.
func (e *Exporter) exportPages(ctx context.Context, g *gallery.Gallery, m *shardmap.Map, f raster.Format, split bool, pack *Packager, logger *zap.Logger) (int, error) {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.opts.Workers)

	var count atomic.Int32
	total := len(g.Files)

	for i, img := range g.Files {
		group.Go(func() error {
			e.imageStarted()
			decoded, size, err := e.fetchDecoded(gctx, img, m)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("image unavailable, skipping",
					zap.Int("page", i+1),
					zap.String("hash", img.Hash),
					zap.Error(err),
				)
				e.imageFailed()
				return nil
			}

			wrote := false
			for _, out := range pageOutputs(decoded, f, pageName(i+1, total), split, logger) {
				if err := pack.Add(gctx, out); err != nil {
					e.imageFailed()
					return err
				}
				wrote = true
			}
			if wrote {
				count.Add(1)
				e.imageCompleted(size)
			} else {
				e.imageFailed()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	return int(count.Load()), nil
}

// exportOriginals packages fetched bytes untouched, preferring each
// image's native variant.
func (e *Exporter) exportOriginals(ctx context.Context, g *gallery.Gallery, m *shardmap.Map, pack *Packager, logger *zap.Logger) (int, error) {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.opts.Workers)

	var count atomic.Int32
	total := len(g.Files)

	for i, img := range g.Files {
		group.Go(func() error {
			e.imageStarted()
			res, variant, err := e.fetchRaw(gctx, img, m)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("image unavailable, skipping",
					zap.Int("page", i+1),
					zap.String("hash", img.Hash),
					zap.Error(err),
				)
				e.imageFailed()
				return nil
			}

			mime := res.ContentType
			if mime == "" {
				mime = "application/octet-stream"
			}
			out := Output{
				Name: pageName(i+1, total) + "." + variant,
				MIME: mime,
				Data: res.Body,
			}
			if err := pack.Add(gctx, out); err != nil {
				e.imageFailed()
				return err
			}
			count.Add(1)
			e.imageCompleted(int64(len(res.Body)))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	return int(count.Load()), nil
}

// exportCombined stitches every page into one vertical composite,
// chunked to the format ceilings. Stacking order matters, so sources are
// fetched strictly in sequence by the stitcher.
func (e *Exporter) exportCombined(ctx context.Context, g *gallery.Gallery, m *shardmap.Map, f raster.Format, pack *Packager, logger *zap.Logger) (int, error) {
	sources := make([]raster.Source, len(g.Files))
	for i, img := range g.Files {
		sources[i] = raster.Source{
			Width:  img.Width,
			Height: img.Height,
			Fetch: func(ctx context.Context) (image.Image, error) {
				e.imageStarted()
				decoded, size, err := e.fetchDecoded(ctx, img, m)
				if err != nil {
					e.imageFailed()
					return nil, err
				}
				e.imageCompleted(size)
				return decoded, nil
			},
		}
	}

	res, err := raster.Combine(ctx, sources, raster.StitchOptions{Format: f, Logger: logger})
	if err != nil {
		if errors.Is(err, raster.ErrNoSources) {
			return 0, ErrNoImages
		}
		return 0, err
	}

	label := g.Label()
	for _, c := range res.Chunks {
		out := Output{
			Name: combinedName(label, f.Ext, c.Index, res.Total),
			MIME: f.MIME,
			Data: c.Data,
		}
		if err := pack.Add(ctx, out); err != nil {
			return 0, err
		}
	}
	return res.Drawn, nil
}

// fetchDecoded retrieves and decodes one image, trying candidates in
// compact-first order. Candidates this build cannot decode are filtered
// up front; a fetched-but-undecodable payload counts as a failed
// candidate and the next one is tried.
func (e *Exporter) fetchDecoded(ctx context.Context, img gallery.Image, m *shardmap.Map) (image.Image, int64, error) {
	candidates := imageurl.Resolve(img, m, e.opts.ImageHost, imageurl.OrderCompactFirst)

	var lastErr error
	for _, c := range candidates {
		if !raster.CanDecode(c.Variant) {
			continue
		}
		res, err := e.opts.Fetcher.Fetch(ctx, c.URL)
		if err != nil {
			lastErr = err
			continue
		}
		decoded, err := raster.Decode(res.Body)
		if err != nil {
			lastErr = err
			continue
		}
		return decoded, int64(len(res.Body)), nil
	}
	if lastErr == nil {
		lastErr = errUnavailable
	}
	return nil, 0, lastErr
}

// fetchRaw retrieves one image's bytes untouched, native variant first.
func (e *Exporter) fetchRaw(ctx context.Context, img gallery.Image, m *shardmap.Map) (*relay.Result, string, error) {
	candidates := imageurl.Resolve(img, m, e.opts.ImageHost, imageurl.OrderNativeFirst)

	var lastErr error
	for _, c := range candidates {
		res, err := e.opts.Fetcher.Fetch(ctx, c.URL)
		if err != nil {
			lastErr = err
			continue
		}
		return res, c.Variant, nil
	}
	if lastErr == nil {
		lastErr = errUnavailable
	}
	return nil, "", lastErr
}

func (e *Exporter) imageStarted() {
	if e.opts.Sink != nil {
		e.opts.Sink.ImageStarted()
	}
}

func (e *Exporter) imageCompleted(size int64) {
	if e.opts.Sink != nil {
		e.opts.Sink.ImageCompleted(size)
	}
}

func (e *Exporter) imageFailed() {
	if e.opts.Sink != nil {
		e.opts.Sink.ImageFailed()
	}
}

// pageOutputs encodes one decoded page. With split set, pages exceeding
// the format ceilings are cropped into the planned tile grid and each
// tile encoded independently; the part suffix appears only when the plan
// has more than one tile. Encode failures skip that unit.
func pageOutputs(img image.Image, f raster.Format, base string, split bool, logger *zap.Logger) []Output {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	plan := raster.TilePlan{Cols: 1, Rows: 1, TileW: w, TileH: h}
	if split {
		plan = raster.PlanTiles(w, h, f)
	}

	if plan.Count() == 1 {
		data, err := raster.EncodeBytes(img, f)
		if err != nil {
			logger.Warn("page encode failed, skipping",
				zap.String("page", base),
				zap.Error(err),
			)
			return nil
		}
		return []Output{{Name: base + "." + f.Ext, MIME: f.MIME, Data: data}}
	}

	outputs := make([]Output, 0, plan.Count())
	for row := 0; row < plan.Rows; row++ {
		for col := 0; col < plan.Cols; col++ {
			rect := plan.Rect(row, col, w, h).Add(b.Min)
			data, err := raster.EncodeBytes(crop(img, rect), f)
			if err != nil {
				logger.Warn("tile encode failed, skipping",
					zap.String("page", base),
					zap.Int("row", row+1),
					zap.Int("col", col+1),
					zap.Error(err),
				)
				continue
			}
			outputs = append(outputs, Output{
				Name: fmt.Sprintf("%s-part-%d-%d.%s", base, row+1, col+1, f.Ext),
				MIME: f.MIME,
				Data: data,
			})
		}
	}
	return outputs
}

type subImager interface {
	SubImage(image.Rectangle) image.Image
}

// crop returns the rectangle of img, sharing pixels when the decoded
// type supports SubImage.
func crop(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
