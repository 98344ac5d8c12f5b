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
	// TotalSize is the expected document size in bytes. Use -1 when
	// the server did not report a length.
	TotalSize int64

	// TotalChunks is the total number of range chunks, or 0 for a
	// whole-document fetch.
	TotalChunks int

	// Output is where to write progress lines.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to redraw the progress line.
	// Default: 500ms
	UpdateInterval time.Duration

	// SourceURL is the document URL (for display).
	SourceURL string
}

// Reporter prints a single updating line of fetch progress.
type Reporter struct {
	opts Options

	completedBytes  atomic.Int64
	completedChunks atomic.Int32
	inProgress      atomic.Int32

	mu        sync.Mutex
	startTime time.Time
	lastTime  time.Time
	lastBytes int64
	stopCh    chan struct{}
	stopped   bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start begins printing progress until Stop is called.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	r.lastTime = r.startTime

	fmt.Fprintf(r.opts.Output, "[pdffetch] fetching %s\n", r.opts.SourceURL)

	go r.loop()
}

// Stop prints the final summary and stops the reporter. Safe to call
// more than once.
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

// ChunkStarted marks a chunk as in flight.
func (r *Reporter) ChunkStarted() {
	r.inProgress.Add(1)
}

// ChunkCompleted records size bytes fetched for a finished chunk.
func (r *Reporter) ChunkCompleted(size int64) {
	r.completedBytes.Add(size)
	r.completedChunks.Add(1)
	r.inProgress.Add(-1)
}

// ChunkFailed removes a failed chunk from the in-flight count.
func (r *Reporter) ChunkFailed() {
	r.inProgress.Add(-1)
}

func (r *Reporter) loop() {
	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printSummary()
			return
		case <-ticker.C:
			r.printLine()
		}
	}
}

func (r *Reporter) printLine() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	completed := r.completedBytes.Load()

	elapsed := now.Sub(r.lastTime).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed
	r.lastTime = now
	r.lastBytes = completed

	if r.opts.TotalSize > 0 {
		percent := float64(completed) / float64(r.opts.TotalSize) * 100
		fmt.Fprintf(r.opts.Output, "\r[pdffetch] %5.1f%%  %s / %s  %s/s  chunks %d/%d    ",
			percent,
			FormatBytes(completed),
			FormatBytes(r.opts.TotalSize),
			FormatBytes(int64(speed)),
			r.completedChunks.Load(),
			r.opts.TotalChunks,
		)
		return
	}

	// length unknown
	fmt.Fprintf(r.opts.Output, "\r[pdffetch] %s  %s/s    ",
		FormatBytes(completed),
		FormatBytes(int64(speed)),
	)
}

func (r *Reporter) printSummary() {
	completed := r.completedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[pdffetch] done: %s in %s (%s/s)    \n",
		FormatBytes(completed),
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
		tb = gb * 1024
	)

	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm %ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// ParseBytes parses a human-readable byte string such as "64KB" or
// "1.5MB".
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
	if _, err := fmt.Sscanf(s, "%f", &value); err != nil {
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
