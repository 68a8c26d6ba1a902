package sink

import (
	"container/list"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// emptyQueuePollInterval bounds how quickly playLoop notices a freshly
// enqueued buffer after the queue ran dry, without busy-spinning.
const emptyQueuePollInterval = 5 * time.Millisecond

// PortAudioSink is the alternate OutputSink backend (conf.Config.OutputBackend
// == "portaudio"), used on platforms where malgo's backend selection picks
// a device PortAudio handles more reliably. It runs a blocking-write
// playback loop on its own goroutine rather than PortAudio's callback mode,
// since the pull comes from OutputRing's queue rather than the device.
type PortAudioSink struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	delegate streamcore.OutputSinkDelegate
	queue    *list.List
	format   streamcore.DestFormat
	frameBuf []int16

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPortAudioSink builds an idle sink; Configure opens the device.
func NewPortAudioSink() *PortAudioSink {
	return &PortAudioSink{queue: list.New()}
}

func (s *PortAudioSink) SetDelegate(delegate streamcore.OutputSinkDelegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = delegate
}

func (s *PortAudioSink) Configure(format streamcore.DestFormat, bufferCount int, bufferSize int) error {
	if err := portaudio.Initialize(); err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}

	framesPerBuffer := bufferSize / format.BytesPerFrame()
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}

	s.mu.Lock()
	s.format = format
	s.frameBuf = make([]int16, framesPerBuffer*int(format.Channels))
	s.mu.Unlock()

	stream, err := portaudio.OpenDefaultStream(0, int(format.Channels), float64(format.SampleRate), framesPerBuffer, s.frameBuf)
	if err != nil {
		_ = portaudio.Terminate()
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	return nil
}

func (s *PortAudioSink) Enqueue(index int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.queue.PushBack(&queuedBuffer{index: index, data: cp})
	return nil
}

func (s *PortAudioSink) Start() error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return streamerrors.New(nil).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Context("error", "start called before Configure").
			Build()
	}
	if err := stream.Start(); err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}

	if !s.running.Swap(true) {
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.playLoop(s.stopCh, s.doneCh)
		s.notifyRunningStateChanged(true)
	}
	return nil
}

// playLoop pulls queued byte buffers, converts them to the fixed int16
// frame buffer PortAudio expects, and blocks in stream.Write() until the
// device consumes each period.
func (s *PortAudioSink) playLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		s.mu.Lock()
		front := s.queue.Front()
		stream := s.stream
		s.mu.Unlock()
		if front == nil || stream == nil {
			select {
			case <-stop:
				return
			case <-time.After(emptyQueuePollInterval):
			}
			continue
		}
		buf := front.Value.(*queuedBuffer)

		frameBytes := len(s.frameBuf) * 2
		for i := range s.frameBuf {
			off := buf.offset + i*2
			if off+1 < len(buf.data) {
				s.frameBuf[i] = int16(binary.LittleEndian.Uint16(buf.data[off : off+2]))
			} else {
				s.frameBuf[i] = 0
			}
		}
		if err := stream.Write(); err != nil {
			continue
		}

		buf.offset += frameBytes
		if buf.offset >= len(buf.data) {
			s.mu.Lock()
			s.queue.Remove(front)
			delegate := s.delegate
			index := buf.index
			s.mu.Unlock()
			if delegate != nil {
				delegate.OnBufferDone(index)
			}
		}
	}
}

func (s *PortAudioSink) Pause() error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}
	s.stopPlayLoop()
	return nil
}

func (s *PortAudioSink) Stop(immediate bool) error {
	s.mu.Lock()
	if immediate {
		s.queue.Init()
	}
	stream := s.stream
	s.mu.Unlock()
	s.stopPlayLoop()
	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return streamerrors.New(err).
			Component("sink").
			Category(streamerrors.CategoryOutputSink).
			Build()
	}
	return nil
}

func (s *PortAudioSink) stopPlayLoop() {
	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()
	if s.running.Swap(false) {
		if stopCh != nil {
			close(stopCh)
		}
		s.notifyRunningStateChanged(false)
	}
}

func (s *PortAudioSink) Close() error {
	s.stopPlayLoop()
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
	return portaudio.Terminate()
}

func (s *PortAudioSink) notifyRunningStateChanged(running bool) {
	s.mu.Lock()
	delegate := s.delegate
	s.mu.Unlock()
	if delegate != nil {
		delegate.OnRunningStateChanged(running)
	}
}
