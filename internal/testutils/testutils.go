//go:build integration

// Package testutils provides shared test infrastructure for integration
// tests: an httptest stand-in for the metadata, routing, and image hosts,
// and a Minio container for destination buckets.
package testutils

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"

	"github.com/ligustah/collate/internal/relay"
)

// GalleryFixture serves a routing script, gallery metadata documents, and
// image objects from a single httptest server.
type GalleryFixture struct {
	Server *httptest.Server

	mu        sync.Mutex
	script    string
	galleries map[string][]byte // id -> metadata JSON
	objects   map[string][]byte // URL path -> bytes
	types     map[string]string // URL path -> content type
}

// NewGalleryFixture starts an empty fixture server. It is torn down with
// the test.
func NewGalleryFixture(t *testing.T) *GalleryFixture {
	t.Helper()

	f := &GalleryFixture{
		galleries: make(map[string][]byte),
		objects:   make(map[string][]byte),
		types:     make(map[string]string),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *GalleryFixture) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/routing.js" {
		w.Header().Set("Content-Type", "text/javascript")
		w.Write([]byte(f.script))
		return
	}

	for id, doc := range f.galleries {
		if r.URL.Path == "/galleries/"+id+".json" {
			w.Header().Set("Content-Type", "application/json")
			w.Write(doc)
			return
		}
	}

	if data, ok := f.objects[r.URL.Path]; ok {
		if ct := f.types[r.URL.Path]; ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Write(data)
		return
	}
	http.NotFound(w, r)
}

// SetScript installs the routing script body served at /routing.js.
func (f *GalleryFixture) SetScript(script string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = script
}

// AddGallery installs a metadata document for a gallery id.
func (f *GalleryFixture) AddGallery(id string, doc []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.galleries[id] = doc
}

// AddObject installs an image object at a URL path, e.g.
// "/2024010100/802/abc123.png".
func (f *GalleryFixture) AddObject(path, contentType string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = data
	f.types[path] = contentType
}

// PNG returns an encoded w by h png.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode fixture png: %v", err)
	}
	return buf.Bytes()
}

// RewritingFetcher redirects every fetch to the fixture server, keeping
// the URL path. Resolved image URLs name per-format subdomains of the
// real image host; rewriting lets them land on the fixture instead.
type RewritingFetcher struct {
	Base   string // fixture server URL
	Client *relay.Client
}

// Fetch implements the upstream fetcher contract.
func (f *RewritingFetcher) Fetch(ctx context.Context, rawURL string) (*relay.Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	return f.Client.Fetch(ctx, f.Base+u.Path)
}

// MinioEnv contains connection information for a Minio test environment.
type MinioEnv struct {
	Container testcontainers.Container
	BucketURL string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Close terminates the Minio container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// OpenBucket opens a gocloud bucket connection to the Minio environment.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts a Minio container with a pre-created bucket.
// Returns a MinioEnv with connection information.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	const (
		accessKey = "minioadmin"
		secretKey = "minioadmin"
	)

	// Create a network for minio and mc to communicate
	networkName := fmt.Sprintf("minio-test-net-%d", time.Now().UnixNano())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name: networkName,
		},
	})
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { network.Remove(ctx) })

	// Start minio container
	minioReq := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Networks:     []string{networkName},
		NetworkAliases: map[string][]string{
			networkName: {"minio"},
		},
		Env: map[string]string{
			"MINIO_ROOT_USER":     accessKey,
			"MINIO_ROOT_PASSWORD": secretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: minioReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	// Create bucket using mc container
	createBucketWithMC(t, ctx, networkName, accessKey, secretKey, bucketName)

	host, err := minioContainer.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}

	port, err := minioContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	endpoint := fmt.Sprintf("%s:%s", host, port.Port())

	// Build gocloud S3 URL with query parameters for minio
	bucketURL := fmt.Sprintf("s3://%s?endpoint=http://%s&use_path_style=true&disable_https=true&region=us-east-1",
		bucketName,
		endpoint,
	)

	// Set AWS credentials via environment variables (gocloud reads these)
	t.Setenv("AWS_ACCESS_KEY_ID", accessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", secretKey)

	return &MinioEnv{
		Container: minioContainer,
		BucketURL: bucketURL,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// createBucketWithMC creates a bucket using a separate minio/mc container.
func createBucketWithMC(t *testing.T, ctx context.Context, networkName, accessKey, secretKey, bucketName string) {
	t.Helper()

	// mc container runs, creates the bucket, then exits
	mcReq := testcontainers.ContainerRequest{
		Image:      "minio/mc:latest",
		Networks:   []string{networkName},
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd: []string{
			fmt.Sprintf(
				"/usr/bin/mc config host add myminio http://minio:9000 %s %s && "+
					"/usr/bin/mc mb myminio/%s && "+
					"/usr/bin/mc policy set download myminio/%s; "+
					"exit 0",
				accessKey, secretKey, bucketName, bucketName,
			),
		},
		WaitingFor: wait.ForExit(),
	}

	mcContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: mcReq,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mc container: %v", err)
	}
	defer mcContainer.Terminate(ctx)
}
