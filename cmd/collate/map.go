package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/ligustah/collate/internal/config"
	"github.com/ligustah/collate/internal/relay"
	"github.com/ligustah/collate/internal/shardmap"
)

func runMap(args []string) int {
	fs := flag.NewFlagSet("map", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	routingURL := fs.String("routing-url", "", "Routing script endpoint")
	allowHTTP := fs.Bool("allow-http", false, "Permit plain http endpoints")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: collate map [options]

Fetch the routing script, parse it, and dump the server map: base path,
default server index, and explicit bucket assignments as contiguous runs.
Map values are 0-based; image subdomains add one.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{
		RoutingURL: *routingURL,
		AllowHTTP:  *allowHTTP,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return ExitConfigError
	}
	if cfg.RoutingURL == "" {
		fmt.Fprintln(os.Stderr, "Error: routing_url is required")
		return ExitConfigError
	}

	logger, err := buildLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return ExitGeneralError
	}
	defer logger.Sync()

	resolver := shardmap.NewResolver(shardmap.Options{
		URL:     cfg.RoutingURL,
		Fetcher: relay.NewClient(relayOptions(cfg)),
		Logger:  logger,
	})
	m, err := resolver.Resolve(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving routing map: %v\n", err)
		return ExitRoutingError
	}

	fmt.Printf("base path:      %s\n", m.BasePath)
	fmt.Printf("default server: %d\n", m.Default)
	fmt.Printf("buckets:        %d assigned\n", len(m.Buckets))
	for _, run := range bucketRuns(m.Buckets) {
		if run.lo == run.hi {
			fmt.Printf("  %d -> %d\n", run.lo, run.server)
		} else {
			fmt.Printf("  %d-%d -> %d\n", run.lo, run.hi, run.server)
		}
	}
	return ExitSuccess
}

type bucketRun struct {
	lo, hi, server int
}

// bucketRuns compresses the bucket table into contiguous runs sharing a
// server, keeping a 4096-entry map readable.
func bucketRuns(buckets map[int]int) []bucketRun {
	keys := make([]int, 0, len(buckets))
	for b := range buckets {
		keys = append(keys, b)
	}
	sort.Ints(keys)

	var runs []bucketRun
	for _, b := range keys {
		v := buckets[b]
		if n := len(runs); n > 0 && runs[n-1].hi == b-1 && runs[n-1].server == v {
			runs[n-1].hi = b
			continue
		}
		runs = append(runs, bucketRun{lo: b, hi: b, server: v})
	}
	return runs
}
