package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethangolledge/doc-query/internal/inventory"
	"github.com/ethangolledge/doc-query/internal/remote"
	"github.com/ethangolledge/doc-query/internal/storage"
	"github.com/ethangolledge/doc-query/internal/testutils"
)

func newSink(t *testing.T) *storage.Dir {
	t.Helper()
	sink, err := storage.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return sink
}

func record(id, name, mimeType string) *inventory.FileRecord {
	return &inventory.FileRecord{ID: id, Name: name, MimeType: mimeType}
}

func TestDownloadOne(t *testing.T) {
	tree := testutils.NewTree("root").File("a", "notes.txt", "text/plain", "root", []byte("hello"))
	sink := newSink(t)
	d := New(tree, sink, Options{Delay: -1})

	rec := record("a", "notes.txt", "text/plain")
	out := d.DownloadOne(context.Background(), rec)

	if !out.Succeeded() {
		t.Fatalf("expected success, got %s: %s", out.Status, out.Reason)
	}
	want := filepath.Join(sink.Root(), "text_plain", "notes.txt")
	if out.LocalPath != want {
		t.Errorf("LocalPath = %q, want %q", out.LocalPath, want)
	}
	if rec.LocalPath != want {
		t.Errorf("record LocalPath = %q, want %q", rec.LocalPath, want)
	}
	if out.Bytes != 5 {
		t.Errorf("Bytes = %d, want 5", out.Bytes)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}
}

func TestDownloadOneSkipsNativeDocuments(t *testing.T) {
	tree := testutils.NewTree("root").File("doc", "Doc", "application/vnd.google-apps.document", "root", nil)
	d := New(tree, newSink(t), Options{Delay: -1})

	rec := record("doc", "Doc", "application/vnd.google-apps.document")
	out := d.DownloadOne(context.Background(), rec)

	if out.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", out.Status)
	}
	if out.Succeeded() {
		t.Error("skipped outcome must not report success")
	}
	if tree.OpenCalls("doc") != 0 {
		t.Errorf("expected no remote call, got %d", tree.OpenCalls("doc"))
	}
	if rec.LocalPath != "" {
		t.Errorf("LocalPath should stay empty, got %q", rec.LocalPath)
	}
}

func TestDownloadOneFailureKeepsDetail(t *testing.T) {
	tree := testutils.NewTree("root").
		File("a", "a.txt", "text/plain", "root", []byte("x")).
		FailOpen("a", errors.New("quota exceeded"))
	sink := newSink(t)
	d := New(tree, sink, Options{Delay: -1})

	rec := record("a", "a.txt", "text/plain")
	out := d.DownloadOne(context.Background(), rec)

	if out.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
	if !strings.Contains(out.Reason, "quota exceeded") {
		t.Errorf("reason %q should carry the error detail", out.Reason)
	}
	if rec.LocalPath != "" {
		t.Errorf("LocalPath should stay empty, got %q", rec.LocalPath)
	}
}

type brokenOpener struct{}

type brokenBody struct{ sent bool }

func (b *brokenBody) Read(p []byte) (int, error) {
	if b.sent {
		return 0, errors.New("connection reset")
	}
	b.sent = true
	return copy(p, "partial"), nil
}

func (b *brokenBody) Close() error { return nil }

func (brokenOpener) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return &brokenBody{}, nil
}

func TestDownloadOneAbortsPartialFile(t *testing.T) {
	sink := newSink(t)
	d := New(brokenOpener{}, sink, Options{Delay: -1})

	out := d.DownloadOne(context.Background(), record("a", "a.txt", "text/plain"))

	if out.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", out.Status)
	}
	if !strings.Contains(out.Reason, "connection reset") {
		t.Errorf("unexpected reason %q", out.Reason)
	}

	entries, err := os.ReadDir(filepath.Join(sink.Root(), "text_plain"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files left behind, found %d", len(entries))
	}
}

func TestDownloadOneSanitizesName(t *testing.T) {
	tree := testutils.NewTree("root").File("a", "q1/q2 report.csv", "text/csv", "root", []byte("1,2"))
	sink := newSink(t)
	d := New(tree, sink, Options{Delay: -1})

	out := d.DownloadOne(context.Background(), record("a", "q1/q2 report.csv", "text/csv"))
	if !out.Succeeded() {
		t.Fatalf("expected success, got %s", out.Reason)
	}
	if want := filepath.Join(sink.Root(), "text_csv", "q1_q2 report.csv"); out.LocalPath != want {
		t.Errorf("LocalPath = %q, want %q", out.LocalPath, want)
	}
}

func TestDownloadOneDelay(t *testing.T) {
	tree := testutils.NewTree("root")
	d := New(tree, newSink(t), Options{Delay: 30 * time.Millisecond})

	start := time.Now()
	d.DownloadOne(context.Background(), record("doc", "Doc", "application/vnd.google-apps.spreadsheet"))

	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected delay after a skip, took %v", elapsed)
	}
}

func TestDownloadMany(t *testing.T) {
	tree := testutils.NewTree("root")
	var recs []*inventory.FileRecord
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("f%02d", i)
		tree.File(id, id+".txt", "text/plain", "root", []byte(id))
		recs = append(recs, record(id, id+".txt", "text/plain"))
	}
	sink := newSink(t)
	d := New(tree, sink, Options{Workers: 4, Delay: -1})

	outcomes := d.DownloadMany(context.Background(), recs)

	if len(outcomes) != len(recs) {
		t.Fatalf("expected %d outcomes, got %d", len(recs), len(outcomes))
	}
	seen := make(map[string]bool)
	for _, out := range outcomes {
		if seen[out.ID] {
			t.Errorf("duplicate outcome for %s", out.ID)
		}
		seen[out.ID] = true
		if !out.Succeeded() {
			t.Errorf("%s: %s", out.ID, out.Reason)
			continue
		}
		data, err := os.ReadFile(out.LocalPath)
		if err != nil {
			t.Errorf("read %s: %v", out.LocalPath, err)
			continue
		}
		if string(data) != out.ID {
			t.Errorf("%s: content = %q", out.ID, data)
		}
	}
}

// countingOpener records the peak number of concurrent Open calls.
type countingOpener struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
}

func (o *countingOpener) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)

	o.mu.Lock()
	if n > o.peak.Load() {
		o.peak.Store(n)
	}
	o.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	return io.NopCloser(strings.NewReader(fileID)), nil
}

func TestDownloadManyBoundsConcurrency(t *testing.T) {
	opener := &countingOpener{}
	var recs []*inventory.FileRecord
	for i := 0; i < 30; i++ {
		recs = append(recs, record(fmt.Sprintf("f%d", i), fmt.Sprintf("f%d.txt", i), "text/plain"))
	}
	d := New(opener, newSink(t), Options{Workers: 3, Delay: -1})

	outcomes := d.DownloadMany(context.Background(), recs)

	if len(outcomes) != 30 {
		t.Fatalf("expected 30 outcomes, got %d", len(outcomes))
	}
	if peak := opener.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency %d exceeds worker count 3", peak)
	}
}

func TestDownloadManyFailureDoesNotAbort(t *testing.T) {
	tree := testutils.NewTree("root")
	var recs []*inventory.FileRecord
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("f%d", i)
		tree.File(id, id+".txt", "text/plain", "root", []byte(id))
		recs = append(recs, record(id, id+".txt", "text/plain"))
	}
	tree.FailOpen("f2", errors.New("boom"))
	d := New(tree, newSink(t), Options{Workers: 2, Delay: -1})

	outcomes := d.DownloadMany(context.Background(), recs)

	var ok, failed int
	for _, out := range outcomes {
		switch out.Status {
		case StatusSucceeded:
			ok++
		case StatusFailed:
			failed++
			if out.ID != "f2" {
				t.Errorf("unexpected failure for %s", out.ID)
			}
		}
	}
	if ok != 4 || failed != 1 {
		t.Errorf("expected 4 ok / 1 failed, got %d / %d", ok, failed)
	}
}

func TestDownloadManyCancelled(t *testing.T) {
	tree := testutils.NewTree("root").
		File("a", "a.txt", "text/plain", "root", []byte("a")).
		File("b", "b.txt", "text/plain", "root", []byte("b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(tree, newSink(t), Options{Workers: 2})
	outcomes := d.DownloadMany(ctx, []*inventory.FileRecord{
		record("a", "a.txt", "text/plain"),
		record("b", "b.txt", "text/plain"),
	})

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, out := range outcomes {
		if out.Status != StatusFailed {
			t.Errorf("%s: expected failed, got %s", out.ID, out.Status)
		}
		if !strings.Contains(out.Reason, context.Canceled.Error()) {
			t.Errorf("%s: reason %q should mention cancellation", out.ID, out.Reason)
		}
	}
}

func TestDownloadManyEmpty(t *testing.T) {
	d := New(testutils.NewTree("root"), newSink(t), Options{})
	if outcomes := d.DownloadMany(context.Background(), nil); len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestIsNative(t *testing.T) {
	tests := []struct {
		mimeType string
		expected bool
	}{
		{"application/vnd.google-apps.document", true},
		{"application/vnd.google-apps.spreadsheet", true},
		{remote.FolderMimeType, true},
		{"text/plain", false},
		{"application/pdf", false},
	}
	for _, tt := range tests {
		if got := IsNative(tt.mimeType); got != tt.expected {
			t.Errorf("IsNative(%q) = %v, want %v", tt.mimeType, got, tt.expected)
		}
	}
}

func TestStatusString(t *testing.T) {
	for status, want := range map[Status]string{
		StatusSucceeded: "succeeded",
		StatusSkipped:   "skipped",
		StatusFailed:    "failed",
		Status(9):       "Status(9)",
	} {
		if got := status.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
