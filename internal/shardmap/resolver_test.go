package shardmap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ligustah/collate/internal/relay"
)

type stubFetcher struct {
	calls atomic.Int32
	delay time.Duration
	body  string
	err   error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*relay.Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &relay.Result{Body: []byte(f.body), ContentType: "text/javascript"}, nil
}

func TestResolveCaches(t *testing.T) {
	fetcher := &stubFetcher{body: sampleScript}
	r := NewResolver(Options{URL: "https://meta.test/routing.js", Fetcher: fetcher})

	ctx := context.Background()
	first, err := r.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	second, err := r.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if first != second {
		t.Error("expected cached map to be reused")
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestResolveFailureLeavesNoCache(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("boom")}
	r := NewResolver(Options{URL: "https://meta.test/routing.js", Fetcher: fetcher})

	ctx := context.Background()
	if _, err := r.Resolve(ctx); err == nil {
		t.Fatal("expected fetch error")
	}

	// Next caller retries rather than observing a poisoned cache.
	fetcher.err = nil
	fetcher.body = sampleScript
	m, err := r.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve after failure: %v", err)
	}
	if m.BasePath != "1719832261" {
		t.Errorf("BasePath = %q, want 1719832261", m.BasePath)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestResolveParseFailure(t *testing.T) {
	fetcher := &stubFetcher{body: "case 1: o = 5;"}
	r := NewResolver(Options{URL: "https://meta.test/routing.js", Fetcher: fetcher})

	_, err := r.Resolve(context.Background())
	if !errors.Is(err, ErrNoBasePath) {
		t.Errorf("expected ErrNoBasePath, got %v", err)
	}
}

func TestResolveCollapsesConcurrentCallers(t *testing.T) {
	fetcher := &stubFetcher{body: sampleScript, delay: 50 * time.Millisecond}
	r := NewResolver(Options{URL: "https://meta.test/routing.js", Fetcher: fetcher})

	const callers = 10
	maps := make([]*Map, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			maps[i], errs[i] = r.Resolve(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if maps[i] != maps[0] {
			t.Errorf("caller %d got a different map instance", i)
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected concurrent callers to share 1 fetch, got %d", got)
	}
}

func TestReset(t *testing.T) {
	fetcher := &stubFetcher{body: sampleScript}
	r := NewResolver(Options{URL: "https://meta.test/routing.js", Fetcher: fetcher})

	ctx := context.Background()
	if _, err := r.Resolve(ctx); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	r.Reset()

	if _, err := r.Resolve(ctx); err != nil {
		t.Fatalf("Resolve after reset: %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected refetch after reset, got %d fetches", got)
	}
}
