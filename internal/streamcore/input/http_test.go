package input

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/audiorelay/streamcore/internal/streamcore"
)

func defaultHttpConfig() HttpConfig {
	return HttpConfig{
		UserAgent:          "streamcore-test/1.0",
		DefaultContentType: "audio/mpeg",
		Timeout:            5 * time.Second,
	}
}

func TestHttpInputStreamDeliversBytesAndContentType(t *testing.T) {
	t.Parallel()
	body := make([]byte, 32*1024)
	for i := range body {
		body[i] = byte(i)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	delegate := &recordingDelegate{}
	client := NewResty(5 * time.Second)
	h := NewHttpInputStream(client, server.URL, defaultHttpConfig(), delegate)

	if err := h.Open(context.Background(), nil); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer h.Close()

	waitFor(t, 3*time.Second, func() bool {
		_, ended, _ := delegate.snapshot()
		return ended
	})

	got, _, errCount := delegate.snapshot()
	if errCount != 0 {
		t.Fatalf("expected no errors, got %d", errCount)
	}
	if len(got) != len(body) {
		t.Fatalf("expected %d bytes, got %d", len(body), len(got))
	}
	if h.ContentType() != "audio/mpeg" {
		t.Fatalf("expected content type audio/mpeg, got %q", h.ContentType())
	}
	if h.ContentLength() != uint64(len(body)) {
		t.Fatalf("expected content length %d, got %d", len(body), h.ContentLength())
	}
}

func TestHttpInputStreamDemultiplexesIcyMetadata(t *testing.T) {
	t.Parallel()
	audioChunk := make([]byte, 64)
	for i := range audioChunk {
		audioChunk[i] = 0xAB
	}
	metaText := "StreamTitle='Test Artist - Test Song';"
	metaFrame := buildIcyMetaFrame(metaText)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Icy-Metaint", fmt.Sprintf("%d", len(audioChunk)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(audioChunk)
		_, _ = w.Write(metaFrame)
		_, _ = w.Write(audioChunk)
	}))
	defer server.Close()

	delegate := &recordingDelegate{}
	client := NewResty(5 * time.Second)
	h := NewHttpInputStream(client, server.URL, defaultHttpConfig(), delegate)

	if err := h.Open(context.Background(), nil); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer h.Close()

	waitFor(t, 3*time.Second, func() bool {
		_, ended, _ := delegate.snapshot()
		return ended
	})

	got, _, _ := delegate.snapshot()
	if len(got) != len(audioChunk)*2 {
		t.Fatalf("expected pure audio bytes with metadata stripped, got %d bytes", len(got))
	}

	delegate.mu.Lock()
	metaCount := len(delegate.meta)
	var title string
	if metaCount > 0 {
		title = delegate.meta[0]["StreamTitle"]
	}
	delegate.mu.Unlock()

	if metaCount == 0 {
		t.Fatal("expected at least one metadata callback")
	}
	if title != "Test Artist - Test Song" {
		t.Fatalf("expected parsed StreamTitle, got %q", title)
	}
}

func TestHttpInputStreamStrictContentTypeRejectsNonAudio(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	delegate := &recordingDelegate{}
	cfg := defaultHttpConfig()
	cfg.StrictContentTypeChecking = true
	client := NewResty(5 * time.Second)
	h := NewHttpInputStream(client, server.URL, cfg, delegate)

	if err := h.Open(context.Background(), nil); err == nil {
		t.Fatal("expected strict content-type checking to reject text/html")
	}
}

func TestHttpInputStreamSendsRangeHeaderForNonZeroStart(t *testing.T) {
	t.Parallel()
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	delegate := &recordingDelegate{}
	client := NewResty(5 * time.Second)
	h := NewHttpInputStream(client, server.URL, defaultHttpConfig(), delegate)

	pos := &streamcore.StreamPosition{Start: 1024}
	if err := h.Open(context.Background(), pos); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer h.Close()

	waitFor(t, 3*time.Second, func() bool {
		_, ended, _ := delegate.snapshot()
		return ended
	})

	if gotRange != "bytes=1024-" {
		t.Fatalf("expected Range header bytes=1024-, got %q", gotRange)
	}
}

func TestHttpInputStreamScheduledFalseBlocksDelivery(t *testing.T) {
	t.Parallel()
	body := []byte("abcdefgh")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	delegate := &recordingDelegate{}
	client := NewResty(5 * time.Second)
	h := NewHttpInputStream(client, server.URL, defaultHttpConfig(), delegate)
	h.SetScheduled(false)

	if err := h.Open(context.Background(), nil); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer h.Close()

	time.Sleep(100 * time.Millisecond)
	got, ended, _ := delegate.snapshot()
	if len(got) != 0 || ended {
		t.Fatalf("expected no delivery while unscheduled, got %d bytes ended=%v", len(got), ended)
	}

	h.SetScheduled(true)
	waitFor(t, 3*time.Second, func() bool {
		_, ended, _ := delegate.snapshot()
		return ended
	})
}

// buildIcyMetaFrame encodes text as an ICY inline-metadata frame: a single
// length byte (text length / 16, rounded up) followed by the text padded
// with NUL bytes to a multiple of 16.
func buildIcyMetaFrame(text string) []byte {
	padded := text
	for len(padded)%16 != 0 {
		padded += "\x00"
	}
	frame := make([]byte, 0, len(padded)+1)
	frame = append(frame, byte(len(padded)/16))
	frame = append(frame, []byte(padded)...)
	return frame
}
