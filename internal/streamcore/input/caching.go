package input

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/disk"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/logging"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// CachingConfig is the subset of conf.Config the caching overlay needs.
type CachingConfig struct {
	Directory         string
	MaxDiskCacheBytes int64
	MinFreeDiskBytes  int64
}

// cacheIndex is a process-wide in-memory record of completed cache
// entries (hash -> completion time), backed by patrickmn/go-cache. Open
// does not consult it: a hit or miss is decided by checking the entry's
// completion marker on disk.
var (
	cacheIndexOnce sync.Once
	cacheIndex     *cache.Cache
)

func getCacheIndex() *cache.Cache {
	cacheIndexOnce.Do(func() {
		cacheIndex = cache.New(cache.NoExpiration, 10*time.Minute)
	})
	return cacheIndex
}

// CachingInputStream composes a primary Http input with a local disk
// cache keyed by a hash of the URL string. A cache hit
// serves bytes from disk directly; a miss streams through the primary
// input while writing to the cache file in parallel, marking it complete
// only once the primary input reaches End.
type CachingInputStream struct {
	primary  *HttpInputStream
	cfg      CachingConfig
	url      string
	delegate streamcore.InputStreamDelegate

	mu           sync.Mutex
	cacheFile    *os.File
	cachedLength uint64
	servingHit   atomic.Bool
}

// NewCachingInputStream wraps an HttpInputStream with a disk cache.
func NewCachingInputStream(primary *HttpInputStream, url string, cfg CachingConfig, delegate streamcore.InputStreamDelegate) *CachingInputStream {
	return &CachingInputStream{primary: primary, url: url, cfg: cfg, delegate: delegate}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func cachePaths(dir, key string) (dataPath, markerPath string) {
	return filepath.Join(dir, key+".cache"), filepath.Join(dir, key+".complete")
}

func (c *CachingInputStream) Open(ctx context.Context, pos *streamcore.StreamPosition) error {
	if err := os.MkdirAll(c.cfg.Directory, 0o755); err != nil {
		return streamerrors.New(fmt.Errorf("create cache directory: %w", err)).
			Component("input").
			Category(streamerrors.CategoryIO).
			Build()
	}

	key := cacheKey(c.url)
	dataPath, markerPath := cachePaths(c.cfg.Directory, key)

	if _, err := os.Stat(markerPath); err == nil {
		return c.serveFromCache(dataPath)
	}

	if err := c.enforceDiskBudget(); err != nil {
		if log := logging.ForService("input"); log != nil {
			log.Warn("cache disk budget check failed, proceeding uncached", "error", err)
		}
		return c.primary.Open(ctx, pos)
	}

	file, err := os.Create(dataPath) //nolint:gosec // path is derived from a content hash, not user input
	if err != nil {
		return streamerrors.New(fmt.Errorf("create cache file: %w", err)).
			Component("input").
			Category(streamerrors.CategoryIO).
			Build()
	}
	c.mu.Lock()
	c.cacheFile = file
	c.mu.Unlock()

	tee := &cacheWritingDelegate{inner: c.delegate, file: file, onEnd: func() {
		_ = os.WriteFile(markerPath, nil, 0o644) //nolint:gosec,errcheck
		getCacheIndex().Set(key, time.Now(), cache.DefaultExpiration)
	}}
	c.primary.delegate = tee

	return c.primary.Open(ctx, pos)
}

// serveFromCache streams a completed cache entry from disk without
// touching the network.
func (c *CachingInputStream) serveFromCache(dataPath string) error {
	c.servingHit.Store(true)

	file, err := os.Open(filepath.Clean(dataPath))
	if err != nil {
		return streamerrors.New(fmt.Errorf("open cache entry: %w", err)).
			Component("input").
			Category(streamerrors.CategoryIO).
			Build()
	}
	if info, err := file.Stat(); err == nil {
		c.mu.Lock()
		c.cachedLength = uint64(info.Size())
		c.mu.Unlock()
	}
	if c.delegate != nil {
		c.delegate.OnContentType("")
		c.delegate.OnReadyToRead()
	}

	go func() {
		defer file.Close()
		buf := make([]byte, fileReadChunk)
		for {
			n, err := file.Read(buf)
			if n > 0 && c.delegate != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				c.delegate.OnBytesAvailable(chunk)
			}
			if err == io.EOF {
				if c.delegate != nil {
					c.delegate.OnEnd()
				}
				return
			}
			if err != nil {
				if c.delegate != nil {
					c.delegate.OnError(err)
				}
				return
			}
		}
	}()

	return nil
}

// enforceDiskBudget evicts the oldest cache entries until the directory
// is under MaxDiskCacheBytes, and refuses to proceed at all if free disk
// space is below MinFreeDiskBytes.
func (c *CachingInputStream) enforceDiskBudget() error {
	usage, err := disk.Usage(c.cfg.Directory)
	if err == nil && c.cfg.MinFreeDiskBytes > 0 && usage.Free < uint64(c.cfg.MinFreeDiskBytes) {
		return streamerrors.New(fmt.Errorf("free disk space %d below floor %d", usage.Free, c.cfg.MinFreeDiskBytes)).
			Component("input").
			Category(streamerrors.CategoryResource).
			Build()
	}

	entries, err := os.ReadDir(c.cfg.Directory)
	if err != nil {
		return nil
	}
	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []fileInfo
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		files = append(files, fileInfo{path: filepath.Join(c.cfg.Directory, e.Name()), size: info.Size(), modTime: info.ModTime()})
	}

	if total <= c.cfg.MaxDiskCacheBytes {
		return nil
	}

	// oldest-first eviction
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if files[j].modTime.Before(files[i].modTime) {
				files[i], files[j] = files[j], files[i]
			}
		}
	}
	for _, f := range files {
		if total <= c.cfg.MaxDiskCacheBytes {
			break
		}
		if err := os.Remove(f.path); err == nil {
			total -= f.size
		}
	}
	return nil
}

func (c *CachingInputStream) Close() error {
	c.mu.Lock()
	file := c.cacheFile
	c.cacheFile = nil
	c.mu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	if !c.servingHit.Load() {
		return c.primary.Close()
	}
	return nil
}

func (c *CachingInputStream) SetScheduled(scheduled bool) {
	if !c.servingHit.Load() {
		c.primary.SetScheduled(scheduled)
	}
}

func (c *CachingInputStream) ContentType() string {
	if c.servingHit.Load() {
		return ""
	}
	return c.primary.ContentType()
}

func (c *CachingInputStream) ContentLength() uint64 {
	if c.servingHit.Load() {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.cachedLength
	}
	return c.primary.ContentLength()
}

func (c *CachingInputStream) Position() streamcore.StreamPosition {
	if c.servingHit.Load() {
		return streamcore.StreamPosition{}
	}
	return c.primary.Position()
}

// cacheWritingDelegate tees OnBytesAvailable into the cache file while
// forwarding every event unchanged to the real pipeline delegate.
type cacheWritingDelegate struct {
	inner streamcore.InputStreamDelegate
	file  *os.File
	onEnd func()
}

func (d *cacheWritingDelegate) OnReadyToRead() { d.inner.OnReadyToRead() }

func (d *cacheWritingDelegate) OnBytesAvailable(buf []byte) {
	if d.file != nil {
		_, _ = d.file.Write(buf)
	}
	d.inner.OnBytesAvailable(buf)
}

func (d *cacheWritingDelegate) OnEnd() {
	if d.onEnd != nil {
		d.onEnd()
	}
	d.inner.OnEnd()
}

func (d *cacheWritingDelegate) OnError(err error) {
	// An in-flight cache write is never marked complete on error, so the
	// next attempt re-downloads.
	d.inner.OnError(err)
}

func (d *cacheWritingDelegate) OnContentType(contentType string)  { d.inner.OnContentType(contentType) }
func (d *cacheWritingDelegate) OnMetaData(meta map[string]string) { d.inner.OnMetaData(meta) }
func (d *cacheWritingDelegate) OnMetaDataSize(bytes uint64)       { d.inner.OnMetaDataSize(bytes) }
