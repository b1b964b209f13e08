package progress

import (
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{256 * 1024 * 1024, "256.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1024 * 1024 * 1024 * 1024, "1.00 TB"},
	}

	for _, tt := range tests {
		result := FormatBytes(tt.input)
		if result != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KB", 1024},
		{"1.5KB", 1536},
		{"256MB", 256 * 1024 * 1024},
		{"1GB", 1024 * 1024 * 1024},
		{"1TB", 1024 * 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		result, err := ParseBytes(tt.input)
		if err != nil {
			t.Errorf("ParseBytes(%q): %v", tt.input, err)
			continue
		}
		if result != tt.expected {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytesInvalid(t *testing.T) {
	_, err := ParseBytes("invalid")
	if err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestReporterImageTracking(t *testing.T) {
	reporter := NewReporter(Options{
		TotalImages:    4,
		Workers:        2,
		UpdateInterval: 100 * time.Millisecond,
	})

	// Track without starting the display loop
	reporter.ImageStarted()
	if reporter.inProgress.Load() != 1 {
		t.Errorf("expected 1 in-progress, got %d", reporter.inProgress.Load())
	}

	reporter.ImageCompleted(256)
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after complete, got %d", reporter.inProgress.Load())
	}
	if reporter.completed.Load() != 1 {
		t.Errorf("expected 1 completed, got %d", reporter.completed.Load())
	}
	if reporter.fetchedBytes.Load() != 256 {
		t.Errorf("expected 256 bytes, got %d", reporter.fetchedBytes.Load())
	}

	reporter.ImageStarted()
	reporter.ImageFailed()
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after fail, got %d", reporter.inProgress.Load())
	}
	if reporter.failed.Load() != 1 {
		t.Errorf("expected 1 failed, got %d", reporter.failed.Load())
	}

	reporter.OutputWritten(1024)
	if reporter.writtenBytes.Load() != 1024 {
		t.Errorf("expected 1024 written bytes, got %d", reporter.writtenBytes.Load())
	}
}

func TestReporterStartStop(t *testing.T) {
	reporter := NewReporter(Options{
		TotalImages:    4,
		Workers:        2,
		UpdateInterval: 10 * time.Millisecond,
		Label:          "gallery-42",
	})

	reporter.Start()

	reporter.ImageStarted()
	reporter.ImageCompleted(256 * 1024)

	reporter.ImageStarted()
	reporter.ImageCompleted(256 * 1024)

	time.Sleep(50 * time.Millisecond) // Let updates run

	reporter.Stop()

	if reporter.completed.Load() != 2 {
		t.Errorf("expected 2 completed images, got %d", reporter.completed.Load())
	}
	if reporter.fetchedBytes.Load() != 512*1024 {
		t.Errorf("expected 512KB fetched, got %d", reporter.fetchedBytes.Load())
	}
}
