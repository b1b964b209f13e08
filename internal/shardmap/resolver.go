package shardmap

import (
	"context"
	"fmt"
	"sync"

	"github.com/ligustah/collate/internal/relay"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves the routing script text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*relay.Result, error)
}

var _ Fetcher = (*relay.Client)(nil)

// Options configures a Resolver.
type Options struct {
	// URL is the routing script endpoint.
	URL string

	// Fetcher performs the script fetch.
	Fetcher Fetcher

	// Logger for resolution events.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

// Resolver fetches and caches the routing map. The cached map lives for
// the process lifetime; a failed resolution leaves the cache empty so the
// next caller retries. Concurrent first resolutions collapse into a
// single fetch.
type Resolver struct {
	opts  Options
	group singleflight.Group

	mu     sync.Mutex
	cached *Map
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{opts: opts}
}

// Resolve returns the routing map, fetching and parsing it on first use.
func (r *Resolver) Resolve(ctx context.Context) (*Map, error) {
	r.mu.Lock()
	if m := r.cached; m != nil {
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	v, err, shared := r.group.Do("map", func() (interface{}, error) {
		// A concurrent caller may have populated the cache while this
		// call waited on the group.
		r.mu.Lock()
		if m := r.cached; m != nil {
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()

		res, err := r.opts.Fetcher.Fetch(ctx, r.opts.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch routing script: %w", err)
		}

		m, err := Parse(string(res.Body))
		if err != nil {
			return nil, err
		}

		r.opts.Logger.Debug("routing map resolved",
			zap.Int("buckets", len(m.Buckets)),
			zap.Int("default", m.Default),
			zap.String("base_path", m.BasePath),
		)

		r.mu.Lock()
		r.cached = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.opts.Logger.Debug("routing map fetch shared")
	}
	return v.(*Map), nil
}

// Reset clears the cached map, forcing the next Resolve to fetch again.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}
