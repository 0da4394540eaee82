package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// TotalFiles is the number of files in the pass.
	TotalFiles int

	// TotalBytes is the sum of known file sizes in the pass.
	TotalBytes int64

	// Workers is the number of parallel workers.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Label names the pass (for display).
	Label string
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	completedBytes atomic.Int64
	succeeded      atomic.Int32
	skipped        atomic.Int32
	failed         atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
	stopped        bool
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
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	fmt.Fprintf(r.opts.Output, "[drivefetch] %s: %d files | %s | Workers: %d\n",
		r.opts.Label,
		r.opts.TotalFiles,
		FormatBytes(r.opts.TotalBytes),
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the reporter and waits for the final status line.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// FileStarted marks a file as in progress.
func (r *Reporter) FileStarted() {
	r.inProgress.Add(1)
}

// FileCompleted marks a file as written.
func (r *Reporter) FileCompleted(size int64) {
	r.completedBytes.Add(size)
	r.succeeded.Add(1)
	r.inProgress.Add(-1)
}

// FileSkipped records a file that was never fetched.
func (r *Reporter) FileSkipped() {
	r.skipped.Add(1)
}

// FileFailed marks a file as failed (removes from in-progress).
func (r *Reporter) FileFailed() {
	r.failed.Add(1)
	r.inProgress.Add(-1)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

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

func (r *Reporter) finished() int {
	return int(r.succeeded.Load() + r.skipped.Load() + r.failed.Load())
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	completed := r.completedBytes.Load()

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = completed

	finished := r.finished()
	var percent float64
	if r.opts.TotalFiles > 0 {
		percent = float64(finished) / float64(r.opts.TotalFiles) * 100
	}

	pending := r.opts.TotalFiles - finished - int(r.inProgress.Load())
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "\r[drivefetch] Progress: %.1f%% | %s | Speed: %s/s | %d ok | %d skipped | %d failed | %d pending    ",
		percent,
		FormatBytes(completed),
		FormatBytes(int64(speed)),
		r.succeeded.Load(),
		r.skipped.Load(),
		r.failed.Load(),
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := r.completedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "\r[drivefetch] %s complete: %d ok | %d skipped | %d failed | %s    \n",
		r.opts.Label,
		r.succeeded.Load(),
		r.skipped.Load(),
		r.failed.Load(),
		FormatBytes(completed),
	)
	fmt.Fprintf(r.opts.Output, "[drivefetch] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
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

// FormatBytes formats bytes as a human-readable IEC string. Negative values
// are unknown sizes and format as "?".
func FormatBytes(b int64) string {
	if b < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(b))
}
