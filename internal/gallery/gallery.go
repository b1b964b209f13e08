package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ligustah/collate/internal/relay"
	"go.uber.org/zap"
)

// Common errors.
var (
	ErrNotFound = errors.New("gallery: not found")
)

// Image describes one image of a gallery as published by the metadata
// source. Immutable; declared dimensions may be zero when the source does
// not know them.
type Image struct {
	Hash    string `json:"hash"`
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	HasWebP Flag   `json:"webp"`
	HasAVIF Flag   `json:"avif"`
}

// Ext returns the lowercased extension of the original filename, without
// the dot. Empty when the name has none.
func (img Image) Ext() string {
	i := strings.LastIndexByte(img.Name, '.')
	if i < 0 || i == len(img.Name)-1 {
		return ""
	}
	return strings.ToLower(img.Name[i+1:])
}

// Flag is a boolean that also unmarshals from the 0/1 integers some
// metadata sources emit.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("1")):
		*f = true
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("0")), bytes.Equal(data, []byte("null")):
		*f = false
	default:
		return fmt.Errorf("gallery: invalid flag value %q", data)
	}
	return nil
}

// Gallery is the ordered image list for one gallery id.
type Gallery struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Files []Image `json:"files"`
}

// Label returns a filesystem-safe name for the gallery, used as the stem
// of output names.
func (g *Gallery) Label() string {
	title := strings.TrimSpace(g.Title)
	if title == "" {
		return "gallery-" + g.ID
	}

	var sb strings.Builder
	lastDash := true
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	label := strings.Trim(sb.String(), "-")
	if label == "" {
		return "gallery-" + g.ID
	}
	if len(label) > 64 {
		label = strings.Trim(label[:64], "-")
	}
	return label
}

// Fetcher retrieves metadata documents.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*relay.Result, error)
}

var _ Fetcher = (*relay.Client)(nil)

// Options configures a Client.
type Options struct {
	// BaseURL is the metadata endpoint, without trailing slash.
	BaseURL string

	// Fetcher performs metadata fetches.
	Fetcher Fetcher

	// Logger for metadata events.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

// Client fetches gallery metadata.
type Client struct {
	opts Options
}

// NewClient creates a metadata client.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	return &Client{opts: opts}
}

// Gallery fetches and decodes the descriptor list for id.
func (c *Client) Gallery(ctx context.Context, id string) (*Gallery, error) {
	url := fmt.Sprintf("%s/galleries/%s.json", c.opts.BaseURL, id)

	res, err := c.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, relay.ErrNotFound) {
			return nil, fmt.Errorf("%w: gallery %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("fetch gallery %s: %w", id, err)
	}

	var g Gallery
	if err := json.Unmarshal(res.Body, &g); err != nil {
		return nil, fmt.Errorf("decode gallery %s: %w", id, err)
	}
	if g.ID == "" {
		g.ID = id
	}

	c.opts.Logger.Debug("gallery metadata fetched",
		zap.String("id", g.ID),
		zap.Int("images", len(g.Files)),
	)

	return &g, nil
}
