package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"gocloud.dev/blob"
)

// Packaging selects how outputs reach the destination.
type Packaging string

const (
	// PackageZip buffers every output and writes one archive at the end.
	PackageZip Packaging = "zip"

	// PackageFiles writes each output immediately, followed by a
	// manifest describing the set.
	PackageFiles Packaging = "files"
)

// Output is one named payload bound for the destination. Its lifetime
// ends at the packager.
type Output struct {
	Name string
	MIME string
	Data []byte
}

// Manifest describes a completed files-mode export.
type Manifest struct {
	Session     string       `json:"session"`
	Gallery     string       `json:"gallery"`
	Label       string       `json:"label"`
	Format      string       `json:"format,omitempty"`
	Outputs     []OutputInfo `json:"outputs"`
	CompletedAt time.Time    `json:"completed_at"`
}

// OutputInfo describes a single written output in the manifest.
type OutputInfo struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// PackagerOptions configures a Packager.
type PackagerOptions struct {
	// Bucket is the destination. Required.
	Bucket *blob.Bucket

	// Mode selects zip or files packaging.
	Mode Packaging

	// Label is the gallery label: the archive stem in zip mode, the key
	// prefix in files mode.
	Label string

	// Session, Gallery and Format are recorded in the files-mode
	// manifest.
	Session string
	Gallery string
	Format  string

	// Logger for write events.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// Sink receives OutputWritten events. Optional.
	Sink ProgressSink
}

// Packager collects outputs for one export session. Add may be called
// from multiple goroutines; Close must be called once, after all adds.
type Packager struct {
	opts PackagerOptions

	mu       sync.Mutex
	buffered []Output     // zip mode
	written  []OutputInfo // files mode
}

// NewPackager creates a Packager.
func NewPackager(opts PackagerOptions) *Packager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Packager{opts: opts}
}

// Add accepts one output. In files mode it is written to the bucket
// immediately under "{label}/{name}"; in zip mode it is buffered until
// Close.
func (p *Packager) Add(ctx context.Context, out Output) error {
	if p.opts.Mode != PackageFiles {
		p.mu.Lock()
		p.buffered = append(p.buffered, out)
		p.mu.Unlock()
		return nil
	}

	key := p.opts.Label + "/" + out.Name
	if err := p.opts.Bucket.WriteAll(ctx, key, out.Data, &blob.WriterOptions{
		ContentType: out.MIME,
	}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	sum := sha256.Sum256(out.Data)
	p.mu.Lock()
	p.written = append(p.written, OutputInfo{
		Name:        out.Name,
		Size:        int64(len(out.Data)),
		Checksum:    hex.EncodeToString(sum[:]),
		ContentType: out.MIME,
	})
	p.mu.Unlock()

	p.opts.Logger.Debug("output written",
		zap.String("key", key),
		zap.Int("size", len(out.Data)),
	)
	if p.opts.Sink != nil {
		p.opts.Sink.OutputWritten(int64(len(out.Data)))
	}
	return nil
}

// Count returns the number of outputs accepted so far.
func (p *Packager) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.Mode == PackageFiles {
		return len(p.written)
	}
	return len(p.buffered)
}

// Close finalizes the session: in zip mode it writes the archive, in
// files mode the manifest. Closing an empty packager writes nothing.
func (p *Packager) Close(ctx context.Context) error {
	if p.opts.Mode == PackageFiles {
		return p.writeManifest(ctx)
	}
	return p.writeArchive(ctx)
}

// writeArchive emits the buffered outputs as one zip. Entries are stored
// rather than deflated (rasters are already compressed) and sorted by
// name so archives are deterministic.
func (p *Packager) writeArchive(ctx context.Context) error {
	p.mu.Lock()
	outputs := p.buffered
	p.buffered = nil
	p.mu.Unlock()

	if len(outputs) == 0 {
		return nil
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Name < outputs[j].Name })

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, out := range outputs {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   out.Name,
			Method: zip.Store,
		})
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", out.Name, err)
		}
		if _, err := w.Write(out.Data); err != nil {
			return fmt.Errorf("archive entry %s: %w", out.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	key := p.opts.Label + ".zip"
	if err := p.opts.Bucket.WriteAll(ctx, key, buf.Bytes(), &blob.WriterOptions{
		ContentType: "application/zip",
	}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	p.opts.Logger.Debug("archive written",
		zap.String("key", key),
		zap.Int("entries", len(outputs)),
		zap.Int("size", buf.Len()),
	)
	if p.opts.Sink != nil {
		p.opts.Sink.OutputWritten(int64(buf.Len()))
	}
	return nil
}

// writeManifest records the written outputs, last, so a complete
// manifest implies a complete export.
func (p *Packager) writeManifest(ctx context.Context) error {
	p.mu.Lock()
	infos := make([]OutputInfo, len(p.written))
	copy(infos, p.written)
	p.mu.Unlock()

	if len(infos) == 0 {
		return nil
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	m := Manifest{
		Session:     p.opts.Session,
		Gallery:     p.opts.Gallery,
		Label:       p.opts.Label,
		Format:      p.opts.Format,
		Outputs:     infos,
		CompletedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	key := p.opts.Label + "/manifest.json"
	if err := p.opts.Bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: "application/json",
	}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// pageName returns the output stem for the 1-based page index,
// zero-padded to the digit count of total so lexical and numeric order
// agree.
func pageName(index, total int) string {
	width := len(strconv.Itoa(total))
	return fmt.Sprintf("page-%0*d", width, index)
}

// combinedName names one composite chunk. A single chunk keeps the plain
// combined name.
func combinedName(label, ext string, index, total int) string {
	if total <= 1 {
		return fmt.Sprintf("%s-combined.%s", label, ext)
	}
	return fmt.Sprintf("%s-combined-part-%d.%s", label, index+1, ext)
}
