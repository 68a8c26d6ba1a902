package streamcore

import (
	"fmt"
	"sync"

	"github.com/smallnest/ringbuffer"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
)

// OutputRing is the fixed-size ring of equal-sized PCM buffers handed to
// the OutputSink. Each slot's byte storage is a smallnest/ringbuffer
// instance reset between uses; an in_use bitmap and a fill_index track
// which slots hold undelivered audio.
type OutputRing struct {
	mu sync.Mutex

	buffers      []*ringbuffer.RingBuffer
	descs        [][]PacketDesc
	inUse        []bool
	fillIndex    int
	bytesFilled  int
	packetsFilled int

	bufSize        int
	maxPacketDescs int
	buffersUsed    int
	overflowing    bool // set when enqueueLocked finds the next fill slot still in use

	sink     OutputSink
	delegate OutputSinkDelegate

	onOverflow        func()
	onUnderflowClear  func()
	onAllBuffersEmpty func()
	pendingPackets    func() bool // true if the pipeline still holds un-converted packets
}

// NewOutputRing allocates n buffers of bufSize bytes each, with room for
// at most maxPacketDescs descriptors per buffer before a forced enqueue.
func NewOutputRing(n, bufSize, maxPacketDescs int, sink OutputSink) *OutputRing {
	r := &OutputRing{
		buffers:        make([]*ringbuffer.RingBuffer, n),
		descs:          make([][]PacketDesc, n),
		inUse:          make([]bool, n),
		bufSize:        bufSize,
		maxPacketDescs: maxPacketDescs,
		sink:           sink,
	}
	for i := range r.buffers {
		r.buffers[i] = ringbuffer.New(bufSize)
	}
	return r
}

// SetCallbacks wires the pipeline's back-pressure reactions: onOverflow
// fires when enqueue targets an in-use buffer (stop feeding the
// converter); onUnderflowClear fires once that overflow condition
// actually clears (a buffer frees up and the fill slot is usable again);
// onAllBuffersEmpty fires when buffers_used reaches zero and
// pendingPackets reports nothing left to convert (the bounce detector's
// trigger). pendingPackets may be nil, in which case the cache side of
// the check is treated as always-empty.
func (r *OutputRing) SetCallbacks(onOverflow, onUnderflowClear, onAllBuffersEmpty func(), pendingPackets func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOverflow = onOverflow
	r.onUnderflowClear = onUnderflowClear
	r.onAllBuffersEmpty = onAllBuffersEmpty
	r.pendingPackets = pendingPackets
}

// WritePacket copies data into the fill buffer, forcing an enqueue first
// if it would overflow the buffer or the packet-desc limit.
func (r *OutputRing) WritePacket(desc PacketDesc, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bytesFilled+len(data) > r.bufSize || r.packetsFilled == r.maxPacketDescs {
		if err := r.enqueueLocked(); err != nil {
			return err
		}
	}

	buf := r.buffers[r.fillIndex]
	if _, err := buf.Write(data); err != nil {
		return streamerrors.New(fmt.Errorf("write packet into ring buffer %d: %w", r.fillIndex, err)).
			Component("outputring").
			Category(streamerrors.CategoryResource).
			Build()
	}
	desc.StartOffset = uint32(r.bytesFilled)
	r.descs[r.fillIndex] = append(r.descs[r.fillIndex], desc)
	r.bytesFilled += len(data)
	r.packetsFilled++
	return nil
}

// Enqueue forces the current fill buffer to the sink even if not full.
func (r *OutputRing) Enqueue() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enqueueLocked()
}

func (r *OutputRing) enqueueLocked() error {
	if r.bytesFilled == 0 && r.packetsFilled == 0 {
		return nil
	}

	index := r.fillIndex
	buf := r.buffers[index]
	data := make([]byte, buf.Length())
	if _, err := buf.Read(data); err != nil {
		return streamerrors.New(fmt.Errorf("read fill buffer %d: %w", index, err)).
			Component("outputring").
			Category(streamerrors.CategoryResource).
			Build()
	}

	if r.sink != nil {
		if err := r.sink.Enqueue(index, data); err != nil {
			return streamerrors.New(fmt.Errorf("sink enqueue buffer %d: %w", index, err)).
				Component("outputring").
				Category(streamerrors.CategoryOutputSink).
				Build()
		}
	}

	r.inUse[index] = true
	r.buffersUsed++
	r.fillIndex = (r.fillIndex + 1) % len(r.buffers)
	r.bytesFilled = 0
	r.packetsFilled = 0
	r.descs[index] = nil

	if r.inUse[r.fillIndex] {
		r.overflowing = true
		if r.onOverflow != nil {
			r.onOverflow()
		}
	}
	return nil
}

// OnBufferDone is the sink's buffer-finished callback. It fires
// onAllBuffersEmpty only when both the ring and the pipeline's packet
// cache are drained, and onUnderflowClear only on the transition out of
// a genuine prior overflow (not on every non-empty buffer-done).
func (r *OutputRing) OnBufferDone(index int) {
	r.mu.Lock()
	r.inUse[index] = false
	r.buffersUsed--
	cachePending := r.pendingPackets != nil && r.pendingPackets()
	empty := r.buffersUsed == 0 && !cachePending
	clearedOverflow := r.overflowing && !r.inUse[r.fillIndex]
	if clearedOverflow {
		r.overflowing = false
	}
	r.mu.Unlock()

	if empty && r.onAllBuffersEmpty != nil {
		r.onAllBuffersEmpty()
	} else if clearedOverflow && r.onUnderflowClear != nil {
		r.onUnderflowClear()
	}
}

// BuffersUsed returns popcount(in_use): the number of slots currently
// holding undelivered PCM.
func (r *OutputRing) BuffersUsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.popcountLocked()
}

func (r *OutputRing) popcountLocked() int {
	n := 0
	for _, used := range r.inUse {
		if used {
			n++
		}
	}
	return n
}

// SetDelegate wires the pipeline as the sink's running-state observer.
func (r *OutputRing) SetDelegate(delegate OutputSinkDelegate) {
	r.mu.Lock()
	r.delegate = delegate
	r.mu.Unlock()
	if r.sink != nil {
		r.sink.SetDelegate(r)
	}
}

// OnRunningStateChanged forwards the sink's running-state transitions to
// whatever delegate was set via SetDelegate, fulfilling OutputSinkDelegate
// so OutputRing itself can sit between a raw OutputSink and the pipeline.
func (r *OutputRing) OnRunningStateChanged(running bool) {
	r.mu.Lock()
	delegate := r.delegate
	r.mu.Unlock()
	if delegate != nil {
		delegate.OnRunningStateChanged(running)
	}
}

// Start/Pause/Stop delegate to the sink and forward resulting running-
// state transitions to the pipeline via OutputSinkDelegate.
func (r *OutputRing) Start() error {
	if r.sink == nil {
		return nil
	}
	return r.sink.Start()
}

func (r *OutputRing) Pause() error {
	if r.sink == nil {
		return nil
	}
	return r.sink.Pause()
}

func (r *OutputRing) Stop(immediate bool) error {
	if r.sink == nil {
		return nil
	}
	return r.sink.Stop(immediate)
}

// Close releases the sink and all ring buffers.
func (r *OutputRing) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buffers {
		b.Reset()
	}
	if r.sink != nil {
		return r.sink.Close()
	}
	return nil
}
