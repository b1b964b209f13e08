package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/collate/internal/config"
	"github.com/ligustah/collate/internal/export"
	"github.com/ligustah/collate/internal/gallery"
	"github.com/ligustah/collate/internal/progress"
	"github.com/ligustah/collate/internal/relay"
	"github.com/ligustah/collate/internal/shardmap"
)

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)

	galleryID := fs.String("gallery", "", "Gallery id to export (required)")
	configPath := fs.String("config", "", "Path to YAML config file")
	metadataURL := fs.String("metadata-url", "", "Gallery metadata endpoint")
	routingURL := fs.String("routing-url", "", "Routing script endpoint")
	imageHost := fs.String("image-host", "", "Image domain suffix")
	bucketURL := fs.String("bucket", "", "Destination bucket URL (file://, s3://, gs://, mem://)")
	kind := fs.String("kind", "images", "Export kind: images, original, or pdf")
	format := fs.String("format", "", "Output format for images kind (png, jpeg, webp, gif, avif)")
	packaging := fs.String("packaging", "", "Packaging mode: zip or files")
	split := fs.Bool("split", false, "Tile pages that exceed the format limits")
	combine := fs.Bool("combine", false, "Stitch all pages into one vertical composite")
	workers := fs.Int("workers", 0, "Parallel image workers (non-combine modes)")
	allowHTTP := fs.Bool("allow-http", false, "Permit plain http endpoints (test fixtures, private mirrors)")
	showProgress := fs.Bool("progress", false, "Show progress output")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: collate export [options]

Export every image of a gallery to object storage: individual pages,
per-tile splits of oversized pages, or stitched composites, packaged as
one zip archive or as separate files with a manifest.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *galleryID == "" {
		fmt.Fprintln(os.Stderr, "Error: -gallery is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{
		MetadataURL: *metadataURL,
		RoutingURL:  *routingURL,
		ImageHost:   *imageHost,
		Bucket:      *bucketURL,
		Format:      *format,
		Packaging:   *packaging,
		Split:       *split,
		Combine:     *combine,
		Workers:     *workers,
		AllowHTTP:   *allowHTTP,
		Progress:    *showProgress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return ExitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	logger, err := buildLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return ExitGeneralError
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[collate] Received interrupt, shutting down...")
		cancel()
	}()

	bucket, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	client := relay.NewClient(relayOptions(cfg))

	var sink export.ProgressSink
	if cfg.Progress {
		reporter := progress.NewReporter(progress.Options{
			Label:   *galleryID,
			Workers: cfg.Workers,
		})
		reporter.Start()
		defer reporter.Stop()
		sink = reporter
	}

	exporter := export.NewExporter(export.Options{
		Metadata: gallery.NewClient(gallery.Options{
			BaseURL: cfg.MetadataURL,
			Fetcher: client,
			Logger:  logger,
		}),
		Maps: shardmap.NewResolver(shardmap.Options{
			URL:     cfg.RoutingURL,
			Fetcher: client,
			Logger:  logger,
		}),
		Fetcher:   client,
		Bucket:    bucket,
		ImageHost: cfg.ImageHost,
		Workers:   cfg.Workers,
		Notifier:  cliNotifier{out: os.Stderr},
		Sink:      sink,
		Logger:    logger,
	})

	res, err := exporter.Export(ctx, export.Request{
		Gallery:   *galleryID,
		Kind:      export.Kind(*kind),
		Format:    cfg.Format,
		Packaging: export.Packaging(cfg.Packaging),
		Split:     cfg.Split,
		Combine:   cfg.Combine,
	})
	if err != nil {
		return exportExitCode(err)
	}

	fmt.Fprintf(os.Stderr, "[collate] Wrote %d outputs for %s (session %s)\n",
		res.Outputs, res.Label, res.Session)
	return ExitSuccess
}

// exportExitCode maps export failures to exit codes.
func exportExitCode(err error) int {
	switch {
	case errors.Is(err, export.ErrUnknownKind):
		return ExitInvalidArgs
	case errors.Is(err, shardmap.ErrNoBasePath):
		return ExitRoutingError
	case errors.Is(err, gallery.ErrNotFound), errors.Is(err, export.ErrNoImages):
		return ExitExportError
	default:
		return ExitGeneralError
	}
}

// cliNotifier prints session notices to the terminal.
type cliNotifier struct {
	out io.Writer
}

func (n cliNotifier) Loading(g string) {
	fmt.Fprintf(n.out, "[collate] Exporting gallery %s...\n", g)
}

func (n cliNotifier) Success(g string, count int) {
	fmt.Fprintf(n.out, "[collate] Exported %d images from gallery %s\n", count, g)
}

func (n cliNotifier) Failure(g string, err error) {
	fmt.Fprintf(n.out, "[collate] Export of gallery %s failed: %v\n", g, err)
}

func (n cliNotifier) Busy(g string) {
	fmt.Fprintf(n.out, "[collate] An export is already in progress\n")
}
