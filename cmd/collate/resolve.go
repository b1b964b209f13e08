package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/collate/internal/config"
	"github.com/ligustah/collate/internal/gallery"
	"github.com/ligustah/collate/internal/imageurl"
	"github.com/ligustah/collate/internal/relay"
	"github.com/ligustah/collate/internal/shardmap"
)

func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)

	galleryID := fs.String("gallery", "", "Gallery id to resolve (required)")
	configPath := fs.String("config", "", "Path to YAML config file")
	metadataURL := fs.String("metadata-url", "", "Gallery metadata endpoint")
	routingURL := fs.String("routing-url", "", "Routing script endpoint")
	imageHost := fs.String("image-host", "", "Image domain suffix")
	order := fs.String("order", "compact", "Candidate order: compact or native")
	allowHTTP := fs.Bool("allow-http", false, "Permit plain http endpoints")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: collate resolve [options]

Print the resolved candidate URLs for every image of a gallery, in the
order an export would try them. Nothing is downloaded beyond the gallery
metadata and the routing script.

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

	var ord imageurl.Order
	switch *order {
	case "compact":
		ord = imageurl.OrderCompactFirst
	case "native":
		ord = imageurl.OrderNativeFirst
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown order %q\n", *order)
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{
		MetadataURL: *metadataURL,
		RoutingURL:  *routingURL,
		ImageHost:   *imageHost,
		AllowHTTP:   *allowHTTP,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return ExitConfigError
	}
	if cfg.MetadataURL == "" || cfg.RoutingURL == "" || cfg.ImageHost == "" {
		fmt.Fprintln(os.Stderr, "Error: metadata_url, routing_url, and image_host are required")
		return ExitConfigError
	}

	logger, err := buildLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return ExitGeneralError
	}
	defer logger.Sync()

	ctx := context.Background()
	client := relay.NewClient(relayOptions(cfg))

	metadata := gallery.NewClient(gallery.Options{
		BaseURL: cfg.MetadataURL,
		Fetcher: client,
		Logger:  logger,
	})
	g, err := metadata.Gallery(ctx, *galleryID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching gallery: %v\n", err)
		return ExitExportError
	}

	resolver := shardmap.NewResolver(shardmap.Options{
		URL:     cfg.RoutingURL,
		Fetcher: client,
		Logger:  logger,
	})
	m, err := resolver.Resolve(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving routing map: %v\n", err)
		return ExitRoutingError
	}

	fmt.Printf("gallery %s: %s (%d images)\n", g.ID, g.Title, len(g.Files))
	for i, img := range g.Files {
		candidates := imageurl.Resolve(img, m, cfg.ImageHost, ord)
		if len(candidates) == 0 {
			fmt.Printf("page %d  hash %s  unavailable\n", i+1, img.Hash)
			continue
		}
		bucket, _ := imageurl.Bucket(img.Hash)
		fmt.Printf("page %d  hash %s  bucket %d\n", i+1, img.Hash, bucket)
		for _, c := range candidates {
			fmt.Printf("  %-5s %s\n", c.Variant, c.URL)
		}
	}
	return ExitSuccess
}
