package progress

import (
	"bytes"
	"strings"
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
		{"64KB", 64 * 1024},
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

func TestReporterChunkTracking(t *testing.T) {
	reporter := NewReporter(Options{
		TotalSize:      1024,
		TotalChunks:    4,
		UpdateInterval: 100 * time.Millisecond,
	})

	reporter.ChunkStarted()
	if reporter.inProgress.Load() != 1 {
		t.Errorf("expected 1 in-progress, got %d", reporter.inProgress.Load())
	}

	reporter.ChunkCompleted(256)
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after complete, got %d", reporter.inProgress.Load())
	}
	if reporter.completedChunks.Load() != 1 {
		t.Errorf("expected 1 completed, got %d", reporter.completedChunks.Load())
	}
	if reporter.completedBytes.Load() != 256 {
		t.Errorf("expected 256 bytes, got %d", reporter.completedBytes.Load())
	}

	reporter.ChunkStarted()
	reporter.ChunkFailed()
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after fail, got %d", reporter.inProgress.Load())
	}
}

func TestReporterStartStop(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewReporter(Options{
		TotalSize:      1024 * 1024,
		TotalChunks:    16,
		UpdateInterval: 10 * time.Millisecond,
		SourceURL:      "https://example.com/compressed.tracemonkey-pldi-09.pdf",
		Output:         &buf,
	})

	reporter.Start()

	reporter.ChunkStarted()
	reporter.ChunkCompleted(64 * 1024)
	reporter.ChunkStarted()
	reporter.ChunkCompleted(64 * 1024)

	time.Sleep(50 * time.Millisecond)

	reporter.Stop()
	reporter.Stop() // idempotent

	if reporter.completedChunks.Load() != 2 {
		t.Errorf("expected 2 completed chunks, got %d", reporter.completedChunks.Load())
	}
	if reporter.completedBytes.Load() != 128*1024 {
		t.Errorf("expected 128KB completed, got %d", reporter.completedBytes.Load())
	}
	if !strings.Contains(buf.String(), "compressed.tracemonkey-pldi-09.pdf") {
		t.Error("expected header line to name the source URL")
	}
}
