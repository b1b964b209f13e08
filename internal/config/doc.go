// Package config defines configuration structures for the collate CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (COLLATE_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    MetadataURL  string
//	    RoutingURL   string
//	    ImageHost    string
//	    Bucket       string
//	    Format       string
//	    Packaging    string
//	    Split        bool
//	    Combine      bool
//	    Workers      int
//	    MaxFetchSize int64
//	    AllowHTTP    bool
//	    Retry        RetryConfig
//	}
//
//	type RetryConfig struct {
//	    Attempts   int
//	    Backoff    time.Duration
//	    MaxBackoff time.Duration
//	}
package config
