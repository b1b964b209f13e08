package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalImages is the number of images in the export.
	TotalImages int

	// Workers is the number of parallel workers.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Label is the gallery label being exported (for display).
	Label string
}

// Reporter outputs human-readable progress information. Total byte volume
// is unknown up front, so percentages and ETA derive from image counts.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	fetchedBytes   atomic.Int64
	writtenBytes   atomic.Int64
	completed      atomic.Int32
	failed         atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	fmt.Fprintf(r.opts.Output, "[collate] Exporting: %s\n", r.opts.Label)
	fmt.Fprintf(r.opts.Output, "[collate] Images: %d | Workers: %d\n",
		r.opts.TotalImages,
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the progress reporter.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
}

// ImageStarted marks an image as in progress.
func (r *Reporter) ImageStarted() {
	r.inProgress.Add(1)
}

// ImageCompleted marks an image as completed, recording its fetched size.
func (r *Reporter) ImageCompleted(size int64) {
	r.fetchedBytes.Add(size)
	r.completed.Add(1)
	r.inProgress.Add(-1)
}

// ImageFailed marks an image as failed.
func (r *Reporter) ImageFailed() {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// OutputWritten records bytes written to the destination.
func (r *Reporter) OutputWritten(size int64) {
	r.writtenBytes.Add(size)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	fetched := r.fetchedBytes.Load()
	completed := int(r.completed.Load())
	failed := int(r.failed.Load())
	inProgress := int(r.inProgress.Load())

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	bytesThisPeriod := fetched - r.lastBytes
	speed := float64(bytesThisPeriod) / elapsed

	r.lastUpdate = now
	r.lastBytes = fetched

	done := completed + failed
	var percent float64
	var eta string
	if r.opts.TotalImages > 0 {
		percent = float64(done) / float64(r.opts.TotalImages) * 100
		perImage := now.Sub(r.startTime).Seconds() / float64(max(done, 1))
		remaining := float64(r.opts.TotalImages - done)
		if done > 0 {
			eta = formatDuration(time.Duration(remaining * perImage * float64(time.Second)))
		} else {
			eta = "calculating..."
		}
	}

	pending := r.opts.TotalImages - done - inProgress
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "\r[collate] Progress: %.1f%% | Fetched: %s | Speed: %s/s | ETA: %s    ",
		percent,
		formatBytes(fetched),
		formatBytes(int64(speed)),
		eta,
	)
	fmt.Fprintf(r.opts.Output, "\n[collate] Images: %d done | %d failed | %d in-progress | %d pending    \033[A",
		completed,
		failed,
		inProgress,
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	fetched := r.fetchedBytes.Load()
	written := r.writtenBytes.Load()
	completed := int(r.completed.Load())
	failed := int(r.failed.Load())
	duration := time.Since(r.startTime)
	avgSpeed := float64(fetched) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[collate] Images: %d done | %d failed | Fetched: %s | Written: %s    \n",
		completed,
		failed,
		formatBytes(fetched),
		formatBytes(written),
	)
	fmt.Fprintf(r.opts.Output, "[collate] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// ParseBytes parses a human-readable byte string (e.g., "256MB").
func ParseBytes(s string) (int64, error) {
	var multiplier int64 = 1
	s = trimSuffix(s, " ")

	switch {
	case hasSuffix(s, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case hasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	var value float64
	_, err := fmt.Sscanf(s, "%f", &value)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * float64(multiplier)), nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func trimSuffix(s, suffix string) string {
	for hasSuffix(s, suffix) {
		s = s[:len(s)-len(suffix)]
	}
	return s
}
