// Package sink provides the concrete OutputSink implementations selected
// by conf.Config.OutputBackend: a primary malgo-based device and an
// alternate PortAudio device.
package sink

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

type queuedBuffer struct {
	index  int
	data   []byte
	offset int
}

// MalgoSink drives a host playback device via gen2brain/malgo (miniaudio
// bindings). OutputRing enqueues fixed-size PCM buffers by index; the
// device's Data callback drains them in order and reports completion back
// through OutputSinkDelegate so the ring can recycle that slot.
type MalgoSink struct {
	deviceName string

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	delegate streamcore.OutputSinkDelegate
	queue    *list.List
	running  atomic.Bool
	format   streamcore.DestFormat
}

// NewMalgoSink builds a sink for the default playback device. deviceName
// is advisory only; malgo.DefaultDeviceConfig always targets the system
// default output.
func NewMalgoSink(deviceName string) *MalgoSink {
	return &MalgoSink{deviceName: deviceName, queue: list.New()}
}

func (s *MalgoSink) SetDelegate(delegate streamcore.OutputSinkDelegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = delegate
}

func (s *MalgoSink) Configure(format streamcore.DestFormat, bufferCount int, bufferSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}
	s.ctx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = format.SampleRate
	deviceConfig.PeriodSizeInFrames = uint32(bufferSize / format.BytesPerFrame())

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		s.ctx = nil
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}
	s.device = device
	return nil
}

// onData is invoked on malgo's audio thread; it must never block. It
// drains queued buffers in FIFO order, padding with silence once the
// queue runs dry so the device never underrun-glitches audibly.
func (s *MalgoSink) onData(output, _ []byte, frameCount uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for written < len(output) {
		front := s.queue.Front()
		if front == nil {
			break
		}
		buf := front.Value.(*queuedBuffer)
		n := copy(output[written:], buf.data[buf.offset:])
		written += n
		buf.offset += n
		if buf.offset >= len(buf.data) {
			s.queue.Remove(front)
			delegate := s.delegate
			index := buf.index
			go func() {
				if delegate != nil {
					delegate.OnBufferDone(index)
				}
			}()
		}
	}
	if written < len(output) {
		for i := written; i < len(output); i++ {
			output[i] = 0
		}
	}
}

func (s *MalgoSink) Enqueue(index int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.queue.PushBack(&queuedBuffer{index: index, data: cp})
	return nil
}

func (s *MalgoSink) Start() error {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()
	if device == nil {
		return streamerrors.New(nil).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Context("error", "start called before Configure").
			Build()
	}
	if err := device.Start(); err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}
	wasRunning := s.running.Swap(true)
	if !wasRunning {
		s.notifyRunningStateChanged(true)
	}
	return nil
}

func (s *MalgoSink) Pause() error {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()
	if device == nil {
		return nil
	}
	if err := device.Stop(); err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}
	if s.running.Swap(false) {
		s.notifyRunningStateChanged(false)
	}
	return nil
}

func (s *MalgoSink) Stop(immediate bool) error {
	s.mu.Lock()
	if immediate {
		s.queue.Init()
	}
	device := s.device
	s.mu.Unlock()
	if device == nil {
		return nil
	}
	if err := device.Stop(); err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}
	if s.running.Swap(false) {
		s.notifyRunningStateChanged(false)
	}
	return nil
}

func (s *MalgoSink) Close() error {
	s.mu.Lock()
	device := s.device
	ctx := s.ctx
	s.device = nil
	s.ctx = nil
	s.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if ctx != nil {
		return ctx.Uninit()
	}
	return nil
}

func (s *MalgoSink) notifyRunningStateChanged(running bool) {
	s.mu.Lock()
	delegate := s.delegate
	s.mu.Unlock()
	if delegate != nil {
		delegate.OnRunningStateChanged(running)
	}
}
