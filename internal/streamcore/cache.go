package streamcore

import (
	"sync"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
)

// cacheNode is one link in the cache's FIFO; processed tracks whether
// next_for_converter has already handed this packet to the converter.
type cacheNode struct {
	packet    Packet
	processed bool
	next      *cacheNode
}

// PacketCache is the FIFO of parsed source packets: a head/tail linked
// list plus a play cursor, bounded by a byte
// budget that drives input back-pressure.
type PacketCache struct {
	mu sync.Mutex

	head       *cacheNode
	tail       *cacheNode
	playCursor *cacheNode

	cachedBytes int64
	maxBytes    int64
	nextID      uint64
	continuous  bool
	input       InputStream
}

// NewPacketCache builds an empty cache bounded by maxBytes. input's
// SetScheduled is toggled as the cap is crossed in either direction;
// continuous controls how aggressively evict_processed_up_to_play_cursor
// frees packets.
func NewPacketCache(maxBytes int64, continuous bool, input InputStream) *PacketCache {
	return &PacketCache{
		maxBytes:   maxBytes,
		continuous: continuous,
		input:      input,
	}
}

// Append assigns an identifier, links the packet at the tail, and runs
// back-pressure/eviction bookkeeping.
func (c *PacketCache) Append(desc PacketDesc, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := &cacheNode{packet: Packet{Identifier: c.nextID, Desc: desc, Data: data}}
	c.nextID++

	if c.tail == nil {
		c.head = node
		c.tail = node
		c.playCursor = node
	} else {
		c.tail.next = node
		c.tail = node
		if c.playCursor == nil {
			c.playCursor = node
		}
	}
	c.cachedBytes += int64(desc.ByteSize)

	if c.cachedBytes >= c.maxBytes {
		if c.input != nil {
			c.input.SetScheduled(false)
		}
		c.evictLocked()
	}
}

// NextForConverter returns the packet at play_cursor, advances the
// cursor, and marks the consumed packet processed (not yet freed).
func (c *PacketCache) NextForConverter() *Packet {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playCursor == nil {
		return nil
	}
	node := c.playCursor
	node.processed = true
	c.playCursor = node.next
	p := node.packet
	return &p
}

// EvictProcessedUpToPlayCursor frees packets from head forward that are
// processed and strictly older than play_cursor. For
// non-continuous streams only packets beyond the current cap headroom are
// freed, so an in-cache seek can still find them; continuous streams are
// freed eagerly since there is nothing to seek back to.
func (c *PacketCache) EvictProcessedUpToPlayCursor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
}

func (c *PacketCache) evictLocked() {
	for c.head != nil && c.head != c.playCursor && c.head.processed {
		if !c.continuous && c.cachedBytes < c.maxBytes {
			break
		}
		freed := c.head
		c.cachedBytes -= int64(freed.packet.Desc.ByteSize)
		c.head = freed.next
		if c.head == nil {
			c.tail = nil
		}
	}
	if c.cachedBytes < c.maxBytes && c.input != nil {
		c.input.SetScheduled(true)
	}
}

// FindByIdentifier performs the linear scan needed for
// in-cache seeks.
func (c *PacketCache) FindByIdentifier(id uint64) *Packet {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := c.head; n != nil; n = n.next {
		if n.packet.Identifier == id {
			p := n.packet
			return &p
		}
	}
	return nil
}

// SeekToIdentifier moves play_cursor to the node with the given
// identifier without a network round-trip, for the in-cache seek fast
// path. Returns false if the identifier isn't cached.
func (c *PacketCache) SeekToIdentifier(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := c.head; n != nil; n = n.next {
		if n.packet.Identifier == id {
			c.playCursor = n
			return true
		}
	}
	return false
}

// CachedBytes returns the current live-packet byte total.
func (c *PacketCache) CachedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cachedBytes
}

// PacketsFromPlayCursor counts packets from play_cursor to tail,
// inclusive, used by the converter-pump's decode_queue_size guard.
func (c *PacketCache) PacketsFromPlayCursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for node := c.playCursor; node != nil; node = node.next {
		n++
	}
	return n
}

// SetContinuous updates the eviction-aggressiveness policy once the
// input's content length becomes known (it is unknown at cache
// construction time, before the first response headers arrive).
func (c *PacketCache) SetContinuous(continuous bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.continuous = continuous
}

// Reset clears the cache, e.g. on re-open without preserving the cache
// (packet identifiers are not stable across a re-open).
func (c *PacketCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head, c.tail, c.playCursor = nil, nil, nil
	c.cachedBytes = 0
	c.nextID = 0
}

// checkInvariants is used only by tests (see cache_test.go) to validate
// the property that cached_bytes equals the sum of live packet sizes.
func (c *PacketCache) checkInvariants() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sum int64
	var lastID uint64
	first := true
	for n := c.head; n != nil; n = n.next {
		sum += int64(n.packet.Desc.ByteSize)
		if !first && n.packet.Identifier <= lastID {
			return streamerrors.New(streamerrors.NewStd("packet identifiers not strictly increasing")).
				Component("packetcache").
				Category(streamerrors.CategoryState).
				Build()
		}
		lastID = n.packet.Identifier
		first = false
	}
	if sum != c.cachedBytes {
		return streamerrors.New(streamerrors.NewStd("cached_bytes mismatch")).
			Component("packetcache").
			Category(streamerrors.CategoryState).
			Build()
	}
	if c.head != nil && c.playCursor == nil {
		return streamerrors.New(streamerrors.NewStd("head set without play_cursor")).
			Component("packetcache").
			Category(streamerrors.CategoryState).
			Build()
	}
	return nil
}
