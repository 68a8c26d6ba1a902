// Package cachestore remembers the last played-back byte offset for each
// stream URL, so a reopened session can resume near where it left off
// instead of always restarting from zero. It is purely in-memory (backed
// by patrickmn/go-cache) and process-lifetime only; persisting positions
// across a restart is left to a future on-disk store if one is needed.
package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// Position is the remembered playback state for one URL.
type Position struct {
	ByteOffset uint64
	UpdatedAt  time.Time
}

// Store maps a URL to its last-known Position. Safe for concurrent use;
// go-cache does its own internal locking.
type Store struct {
	entries *cache.Cache
}

// defaultTTL discards a remembered position after a day of inactivity so
// the store doesn't grow unbounded across a long-running process serving
// many distinct URLs.
const defaultTTL = 24 * time.Hour

// New builds an empty store.
func New() *Store {
	return &Store{entries: cache.New(defaultTTL, defaultTTL/2)}
}

func keyFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

// Remember records offset as the latest playback position for url.
func (s *Store) Remember(url string, offset uint64) {
	s.entries.Set(keyFor(url), Position{ByteOffset: offset, UpdatedAt: time.Now()}, cache.DefaultExpiration)
}

// Lookup returns the last remembered position for url, if any.
func (s *Store) Lookup(url string) (Position, bool) {
	v, ok := s.entries.Get(keyFor(url))
	if !ok {
		return Position{}, false
	}
	return v.(Position), true
}

// Forget drops any remembered position for url, e.g. once a stream
// finishes PlaybackCompleted rather than being paused mid-way.
func (s *Store) Forget(url string) {
	s.entries.Delete(keyFor(url))
}

// Len reports how many URLs currently have a remembered position.
func (s *Store) Len() int {
	return s.entries.ItemCount()
}
