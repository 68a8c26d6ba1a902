// Package input holds the concrete InputStream variants: Http (with its
// internal ICY demultiplexing), File, a Caching overlay, and the
// supplemental Ftp/Sftp variants for retrieving streams over those
// transports.
package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// schedulePollInterval bounds how quickly a paused FileInputStream
// notices SetScheduled(true) again; short enough not to add noticeable
// resume latency, long enough not to spin the CPU while paused.
const schedulePollInterval = 20 * time.Millisecond

const fileReadChunk = 64 * 1024

// FileInputStream reads a local resource from the start, or from a
// requested StreamPosition's Start offset, to the end of the file, with
// no metadata sidechannel. StreamPosition.End is not applied.
type FileInputStream struct {
	path     string
	delegate streamcore.InputStreamDelegate

	mu        sync.Mutex
	file      *os.File
	length    uint64
	pos       streamcore.StreamPosition
	scheduled atomic.Bool

	readerDone chan struct{}
}

// NewFileInputStream builds a File input for the given local path.
func NewFileInputStream(path string, delegate streamcore.InputStreamDelegate) *FileInputStream {
	f := &FileInputStream{path: path, delegate: delegate}
	f.scheduled.Store(true)
	return f
}

func (f *FileInputStream) Open(ctx context.Context, pos *streamcore.StreamPosition) error {
	file, err := os.Open(filepath.Clean(f.path))
	if err != nil {
		return streamerrors.New(fmt.Errorf("open %s: %w", f.path, err)).
			Component("input").
			Category(streamerrors.CategoryIO).
			Build()
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return streamerrors.New(fmt.Errorf("stat %s: %w", f.path, err)).
			Component("input").
			Category(streamerrors.CategoryIO).
			Build()
	}

	f.mu.Lock()
	f.file = file
	f.length = uint64(info.Size())
	if pos != nil {
		f.pos = *pos
		if pos.Start > 0 {
			if _, err := file.Seek(int64(pos.Start), io.SeekStart); err != nil {
				f.mu.Unlock()
				return streamerrors.New(fmt.Errorf("seek %s: %w", f.path, err)).
					Component("input").
					Category(streamerrors.CategoryIO).
					Build()
			}
		}
	}
	f.mu.Unlock()

	f.readerDone = make(chan struct{})
	go f.readLoop(ctx)

	if f.delegate != nil {
		f.delegate.OnReadyToRead()
	}
	return nil
}

func (f *FileInputStream) readLoop(ctx context.Context) {
	defer close(f.readerDone)
	buf := make([]byte, fileReadChunk)

	for {
		if !f.scheduled.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(schedulePollInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		f.mu.Lock()
		file := f.file
		f.mu.Unlock()
		if file == nil {
			return
		}

		n, err := file.Read(buf)
		if n > 0 && f.delegate != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			f.delegate.OnBytesAvailable(chunk)
		}
		if err == io.EOF {
			if f.delegate != nil {
				f.delegate.OnEnd()
			}
			return
		}
		if err != nil {
			if f.delegate != nil {
				f.delegate.OnError(streamerrors.FileError(err, f.path, int64(f.length)))
			}
			return
		}
	}
}

func (f *FileInputStream) Close() error {
	f.mu.Lock()
	file := f.file
	f.file = nil
	f.mu.Unlock()
	if file != nil {
		return file.Close()
	}
	return nil
}

func (f *FileInputStream) SetScheduled(scheduled bool) { f.scheduled.Store(scheduled) }
func (f *FileInputStream) ContentType() string         { return "" }
func (f *FileInputStream) ContentLength() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}
func (f *FileInputStream) Position() streamcore.StreamPosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}
