package main

import (
	"fmt"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/ligustah/collate/internal/config"
	"github.com/ligustah/collate/internal/relay"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitConfigError  = 3
	ExitRoutingError = 4
	ExitStorageError = 5
	ExitExportError  = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "export":
		return runExport(cmdArgs)
	case "resolve":
		return runResolve(cmdArgs)
	case "map":
		return runMap(cmdArgs)
	case "formats":
		return runFormats(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: collate <command> [options]

Commands:
  export    Export a gallery to object storage (zip archive or files)
  resolve   Print resolved candidate URLs for every image of a gallery
  map       Fetch the routing script and dump the parsed server map
  formats   Print the output format table with probe results

Run 'collate <command> -h' for command-specific help.`)
}

// buildLogger constructs the CLI logger. Verbose switches the level to
// debug.
func buildLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// loadConfig builds the effective configuration: defaults, then the
// optional config file, then COLLATE_ environment variables, then flag
// overrides.
func loadConfig(path string, overrides config.Config) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg.Merge(overrides), nil
}

// relayOptions derives the upstream client options from the
// configuration. The allow-list admits the metadata and routing hosts
// exactly and any subdomain of the image host.
func relayOptions(cfg config.Config) relay.Options {
	opts := relay.DefaultOptions()
	opts.RetryAttempts = cfg.Retry.Attempts
	opts.RetryBackoff = cfg.Retry.Backoff
	opts.RetryMaxBackoff = cfg.Retry.MaxBackoff
	opts.MaxBodySize = cfg.MaxFetchSize
	opts.AllowHTTP = cfg.AllowHTTP

	if cfg.ImageHost != "" {
		opts.AllowedHosts = append(opts.AllowedHosts, "."+cfg.ImageHost)
	}
	for _, raw := range []string{cfg.MetadataURL, cfg.RoutingURL} {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			opts.AllowedHosts = append(opts.AllowedHosts, u.Hostname())
		}
	}
	return opts
}
