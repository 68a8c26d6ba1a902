package input

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/audiorelay/streamcore/internal/streamcore"
)

// recordingDelegate captures every InputStreamDelegate callback so tests
// can assert on call order and payload without a real pipeline.
type recordingDelegate struct {
	mu          sync.Mutex
	bytes       []byte
	ended       bool
	errs        []error
	contentType string
	ready       bool
	meta        []map[string]string
}

func (d *recordingDelegate) OnReadyToRead() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = true
}

func (d *recordingDelegate) OnBytesAvailable(buf []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bytes = append(d.bytes, buf...)
}

func (d *recordingDelegate) OnEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ended = true
}

func (d *recordingDelegate) OnError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func (d *recordingDelegate) OnContentType(contentType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contentType = contentType
}

func (d *recordingDelegate) OnMetaData(meta map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta = append(d.meta, meta)
}

func (d *recordingDelegate) OnMetaDataSize(bytes uint64) {}

func (d *recordingDelegate) snapshot() (data []byte, ended bool, errCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.bytes...), d.ended, len(d.errs)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

func TestFileInputStreamReadsWholeFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.bin")
	want := make([]byte, 200_000)
	for i := range want {
		want[i] = byte(i)
	}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	delegate := &recordingDelegate{}
	f := NewFileInputStream(path, delegate)
	if err := f.Open(context.Background(), nil); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer f.Close()

	waitFor(t, 2*time.Second, func() bool {
		_, ended, _ := delegate.snapshot()
		return ended
	})

	got, _, errCount := delegate.snapshot()
	if errCount != 0 {
		t.Fatalf("expected no errors, got %d", errCount)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte mismatch at %d: want %d got %d", i, want[i], got[i])
		}
	}
}

func TestFileInputStreamHonorsStartPosition(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.bin")
	content := []byte("0123456789abcdef")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	delegate := &recordingDelegate{}
	f := NewFileInputStream(path, delegate)
	pos := &streamcore.StreamPosition{Start: 10}
	if err := f.Open(context.Background(), pos); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer f.Close()

	waitFor(t, 2*time.Second, func() bool {
		_, ended, _ := delegate.snapshot()
		return ended
	})

	got, _, _ := delegate.snapshot()
	if string(got) != "abcdef" {
		t.Fatalf("expected tail bytes from offset 10, got %q", got)
	}
}

func TestFileInputStreamScheduledFalseBlocksDelivery(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.bin")
	if err := os.WriteFile(path, []byte("abcdefgh"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	delegate := &recordingDelegate{}
	f := NewFileInputStream(path, delegate)
	f.SetScheduled(false)
	if err := f.Open(context.Background(), nil); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer f.Close()

	time.Sleep(100 * time.Millisecond)
	got, ended, _ := delegate.snapshot()
	if len(got) != 0 || ended {
		t.Fatalf("expected no delivery while unscheduled, got %d bytes ended=%v", len(got), ended)
	}

	f.SetScheduled(true)
	waitFor(t, 2*time.Second, func() bool {
		_, ended, _ := delegate.snapshot()
		return ended
	})
}

func TestFileInputStreamMissingFileReturnsError(t *testing.T) {
	t.Parallel()
	delegate := &recordingDelegate{}
	f := NewFileInputStream("/nonexistent/path/audio.mp3", delegate)
	if err := f.Open(context.Background(), nil); err == nil {
		t.Fatal("expected an error opening a missing file")
	}
}
