package downloader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ethangolledge/doc-query/internal/inventory"
	"github.com/ethangolledge/doc-query/internal/progress"
	"github.com/ethangolledge/doc-query/internal/remote"
	"github.com/ethangolledge/doc-query/internal/storage"
)

// Status is the result class of one download attempt.
type Status int

const (
	StatusSucceeded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of one download attempt.
type Outcome struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Bytes     int64  `json:"bytes"`
}

// Succeeded reports whether the file was written.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// IsNative reports whether mimeType is a provider-native document that has no
// downloadable binary content.
func IsNative(mimeType string) bool {
	return strings.Contains(mimeType, "google-apps")
}

// Options configures the downloader.
type Options struct {
	// Workers is the number of parallel download workers.
	// Default: 10
	Workers int

	// Delay is the pause after every attempt, including skips.
	// Default: 100ms. Negative disables the pause.
	Delay time.Duration

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	// Logger receives one line per outcome.
	// Default: no-op
	Logger *zap.Logger
}

// Downloader fetches file records from a remote.Opener into a storage.Sink.
type Downloader struct {
	opener remote.Opener
	sink   storage.Sink
	opts   Options
	log    *zap.Logger
}

// New creates a Downloader.
func New(opener remote.Opener, sink storage.Sink, opts Options) *Downloader {
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.Delay == 0 {
		opts.Delay = 100 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Downloader{opener: opener, sink: sink, opts: opts, log: log}
}

// DownloadOne fetches rec into <type dir>/<name>. On success rec.LocalPath is
// set.
func (d *Downloader) DownloadOne(ctx context.Context, rec *inventory.FileRecord) Outcome {
	out := d.fetch(ctx, rec)
	d.pause(ctx)

	fields := []zap.Field{
		zap.String("id", out.ID),
		zap.String("name", out.Name),
		zap.String("mime_type", out.MimeType),
	}
	switch out.Status {
	case StatusSucceeded:
		d.log.Info("downloaded", append(fields, zap.String("path", out.LocalPath), zap.Int64("bytes", out.Bytes))...)
	case StatusSkipped:
		d.log.Info("skipped", append(fields, zap.String("reason", out.Reason))...)
	default:
		d.log.Warn("download failed", append(fields, zap.String("reason", out.Reason))...)
	}
	return out
}

func (d *Downloader) fetch(ctx context.Context, rec *inventory.FileRecord) Outcome {
	out := Outcome{ID: rec.ID, Name: rec.Name, MimeType: rec.MimeType}

	if IsNative(rec.MimeType) {
		out.Status = StatusSkipped
		out.Reason = "native document type has no binary content"
		if d.opts.Progress != nil {
			d.opts.Progress.FileSkipped()
		}
		return out
	}

	if d.opts.Progress != nil {
		d.opts.Progress.FileStarted()
	}

	n, location, err := d.copy(ctx, rec)
	if err != nil {
		out.Status = StatusFailed
		out.Reason = err.Error()
		if d.opts.Progress != nil {
			d.opts.Progress.FileFailed()
		}
		return out
	}

	rec.LocalPath = location
	out.Status = StatusSucceeded
	out.LocalPath = location
	out.Bytes = n
	if d.opts.Progress != nil {
		d.opts.Progress.FileCompleted(n)
	}
	return out
}

// copy streams one file into the sink. The object is aborted on any error.
func (d *Downloader) copy(ctx context.Context, rec *inventory.FileRecord) (int64, string, error) {
	body, err := d.opener.Open(ctx, rec.ID)
	if err != nil {
		return 0, "", fmt.Errorf("open %s: %w", rec.ID, err)
	}
	defer body.Close()

	obj, err := d.sink.Create(ctx, storage.TypeDir(rec.MimeType), storage.SafeName(rec.Name))
	if err != nil {
		return 0, "", err
	}

	n, err := io.Copy(obj, body)
	if err != nil {
		obj.Abort()
		return n, "", fmt.Errorf("copy %s: %w", rec.ID, err)
	}
	if err := obj.Commit(); err != nil {
		return n, "", err
	}
	return n, obj.Location(), nil
}

func (d *Downloader) pause(ctx context.Context) {
	if d.opts.Delay <= 0 {
		return
	}
	timer := time.NewTimer(d.opts.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// DownloadMany runs DownloadOne over recs on the worker pool and returns
// every outcome in completion order. One record's failure never stops the
// others.
func (d *Downloader) DownloadMany(ctx context.Context, recs []*inventory.FileRecord) []Outcome {
	if len(recs) == 0 {
		return nil
	}

	workers := min(d.opts.Workers, len(recs))

	jobs := make(chan *inventory.FileRecord, workers)
	results := make(chan Outcome, len(recs))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				results <- d.DownloadOne(ctx, rec)
			}
		}()
	}

	// Feed jobs to workers. Cancelled records still run so each one gets
	// an outcome; they fail fast on the dead context.
	go func() {
		defer close(jobs)
		for _, rec := range recs {
			jobs <- rec
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, len(recs))
	for out := range results {
		outcomes = append(outcomes, out)
	}
	return outcomes
}
