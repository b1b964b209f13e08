package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Format != "png" {
		t.Errorf("expected default format png, got %s", cfg.Format)
	}
	if cfg.Packaging != "zip" {
		t.Errorf("expected default packaging zip, got %s", cfg.Packaging)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Workers)
	}
	if cfg.MaxFetchSize != 64*1024*1024 {
		t.Errorf("expected default max fetch size 64MB, got %d", cfg.MaxFetchSize)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("expected default retry attempts 3, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("expected default retry backoff 500ms, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 10*time.Second {
		t.Errorf("expected default retry max backoff 10s, got %v", cfg.Retry.MaxBackoff)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
metadata_url: https://meta.gallery.test
routing_url: https://meta.gallery.test/routing.js
image_host: img.gallery.test
bucket: mem://
format: webp
packaging: files
combine: true
workers: 8
max_fetch_size: 128MB
progress: true
retry:
  attempts: 10
  backoff: 2s
  max_backoff: 60s
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.MetadataURL != "https://meta.gallery.test" {
		t.Errorf("expected metadata URL, got %s", cfg.MetadataURL)
	}
	if cfg.RoutingURL != "https://meta.gallery.test/routing.js" {
		t.Errorf("expected routing URL, got %s", cfg.RoutingURL)
	}
	if cfg.ImageHost != "img.gallery.test" {
		t.Errorf("expected image host, got %s", cfg.ImageHost)
	}
	if cfg.Format != "webp" {
		t.Errorf("expected format webp, got %s", cfg.Format)
	}
	if cfg.Packaging != "files" {
		t.Errorf("expected packaging files, got %s", cfg.Packaging)
	}
	if !cfg.Combine {
		t.Error("expected combine true")
	}
	if cfg.Split {
		t.Error("expected split false")
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Workers)
	}
	if cfg.MaxFetchSize != 128*1024*1024 {
		t.Errorf("expected max fetch size 128MB, got %d", cfg.MaxFetchSize)
	}
	if !cfg.Progress {
		t.Error("expected progress true")
	}
	if cfg.Retry.Attempts != 10 {
		t.Errorf("expected retry attempts 10, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 60*time.Second {
		t.Errorf("expected retry max backoff 60s, got %v", cfg.Retry.MaxBackoff)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COLLATE_METADATA_URL", "https://meta.env.test")
	t.Setenv("COLLATE_IMAGE_HOST", "img.env.test")
	t.Setenv("COLLATE_FORMAT", "jpeg")
	t.Setenv("COLLATE_WORKERS", "16")
	t.Setenv("COLLATE_MAX_FETCH_SIZE", "1GB")
	t.Setenv("COLLATE_SPLIT", "1")
	t.Setenv("COLLATE_ALLOW_HTTP", "true")
	t.Setenv("COLLATE_RETRY_ATTEMPTS", "5")
	t.Setenv("COLLATE_RETRY_BACKOFF", "250ms")
	t.Setenv("COLLATE_RETRY_MAX_BACKOFF", "5s")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.MetadataURL != "https://meta.env.test" {
		t.Errorf("expected metadata URL from env, got %s", cfg.MetadataURL)
	}
	if cfg.ImageHost != "img.env.test" {
		t.Errorf("expected image host from env, got %s", cfg.ImageHost)
	}
	if cfg.Format != "jpeg" {
		t.Errorf("expected format jpeg, got %s", cfg.Format)
	}
	if cfg.Workers != 16 {
		t.Errorf("expected workers 16, got %d", cfg.Workers)
	}
	if cfg.MaxFetchSize != 1024*1024*1024 {
		t.Errorf("expected max fetch size 1GB, got %d", cfg.MaxFetchSize)
	}
	if !cfg.Split {
		t.Error("expected split true")
	}
	if !cfg.AllowHTTP {
		t.Error("expected allow_http true")
	}
	if cfg.Retry.Attempts != 5 {
		t.Errorf("expected retry attempts 5, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 250*time.Millisecond {
		t.Errorf("expected retry backoff 250ms, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 5*time.Second {
		t.Errorf("expected retry max backoff 5s, got %v", cfg.Retry.MaxBackoff)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		MetadataURL:  "https://meta.gallery.test",
		RoutingURL:   "https://meta.gallery.test/routing.js",
		ImageHost:    "img.gallery.test",
		Bucket:       "file:///tmp/out",
		Format:       "png",
		Packaging:    "zip",
		Workers:      4,
		MaxFetchSize: 64 * 1024 * 1024,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing metadata URL", mutate: func(c *Config) { c.MetadataURL = "" }, wantErr: true},
		{name: "missing routing URL", mutate: func(c *Config) { c.RoutingURL = "" }, wantErr: true},
		{name: "missing image host", mutate: func(c *Config) { c.ImageHost = "" }, wantErr: true},
		{name: "missing bucket", mutate: func(c *Config) { c.Bucket = "" }, wantErr: true},
		{name: "bad packaging", mutate: func(c *Config) { c.Packaging = "tar" }, wantErr: true},
		{name: "invalid workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "invalid fetch size", mutate: func(c *Config) { c.MaxFetchSize = -1 }, wantErr: true},
		{name: "unknown format allowed", mutate: func(c *Config) { c.Format = "avif" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.MetadataURL = "https://meta.gallery.test"
	base.RoutingURL = "https://meta.gallery.test/routing.js"
	base.ImageHost = "img.gallery.test"
	base.Bucket = "mem://"

	override := Config{
		Format:  "jpeg",
		Workers: 2,
		Combine: true,
	}

	merged := base.Merge(override)

	if merged.MetadataURL != "https://meta.gallery.test" {
		t.Errorf("expected metadata URL preserved, got %s", merged.MetadataURL)
	}
	if merged.Bucket != "mem://" {
		t.Errorf("expected bucket preserved, got %s", merged.Bucket)
	}
	if merged.Packaging != "zip" {
		t.Errorf("expected packaging preserved, got %s", merged.Packaging)
	}
	if merged.MaxFetchSize != 64*1024*1024 {
		t.Errorf("expected max fetch size preserved, got %d", merged.MaxFetchSize)
	}

	if merged.Format != "jpeg" {
		t.Errorf("expected format overridden to jpeg, got %s", merged.Format)
	}
	if merged.Workers != 2 {
		t.Errorf("expected workers overridden to 2, got %d", merged.Workers)
	}
	if !merged.Combine {
		t.Error("expected combine overridden to true")
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
