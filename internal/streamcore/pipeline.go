package streamcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/audiorelay/streamcore/internal/conf"
	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/logging"
)

// InputFactory builds a fresh InputStream for a URL, selecting the Http,
// File, or Caching(Http) variant by scheme and configuration when a URL
// is set. ParserFactory/ConverterFactory are resolved once the
// content-type or a sniffed header tells the pipeline which container/
// codec pair to use.
type InputFactory func(url string) (InputStream, error)
type ParserFactory func(contentType string) (Parser, error)
type ConverterFactory func(source SourceFormat, dest DestFormat) (Converter, error)
type SinkFactory func(cfg *conf.Config) (OutputSink, error)

// AudioPipeline is the orchestrator: it owns the state machine, watchdog
// timers, bounce detector, and wires every other component together.
// There is no single event loop or command channel; state is guarded by
// mu, a plain sync.Mutex taken for the duration of each field access.
// The one path that matters beyond field access is pumpConverter, which
// drives the stateful Converter/OutputRing pair and is reachable from at
// least three independent goroutines (an input's readLoop, a sink's
// buffer-done callback, and the queue-drain watchdog ticker); pumpMu
// serializes those calls so only one goroutine is ever inside a
// converter/ring step at a time.
type AudioPipeline struct {
	cfg      *conf.Config
	delegate Delegate

	inputFactory     InputFactory
	parserFactory    ParserFactory
	converterFactory ConverterFactory
	sinkFactory      SinkFactory

	mu    sync.Mutex
	state State
	url   string

	// pumpMu serializes pumpConverter across the goroutines that can call
	// it concurrently; see the AudioPipeline doc comment.
	pumpMu sync.Mutex

	input     InputStream
	id3Parser *Id3Parser
	parser    Parser
	cache     *PacketCache
	converter Converter
	ring      *OutputRing
	sink      OutputSink

	sourceFormat        SourceFormat
	formatKnown         bool
	converterExhausted  bool
	discontinuity       bool

	stats SessionStats

	initialBufferingCompleted bool
	ignoreDecodeQueueSize     bool
	preloading                bool
	queueCanAccept            bool

	bounceCount        int
	firstBufferingTime time.Time

	w1Timer *time.Timer
	w2Timer *time.Ticker
	w2Stop  chan struct{}

	cancel context.CancelFunc

	clock func() time.Time // overridable in tests; defaults to time.Now
}

// New builds an AudioPipeline bound to cfg and delegate. Components are
// not created until Open.
func New(cfg *conf.Config, delegate Delegate, inputFactory InputFactory, parserFactory ParserFactory, converterFactory ConverterFactory, sinkFactory SinkFactory) *AudioPipeline {
	return &AudioPipeline{
		cfg:              cfg,
		delegate:         delegate,
		inputFactory:     inputFactory,
		parserFactory:    parserFactory,
		converterFactory: converterFactory,
		sinkFactory:      sinkFactory,
		state:            StateStopped,
		queueCanAccept:   true,
		clock:            time.Now,
	}
}

// SetURL selects the input variant for the next Open call.
func (p *AudioPipeline) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// State returns the current pipeline state.
func (p *AudioPipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Open initializes the input stream at the given position (nil means
// "from the start") and transitions to Buffering on success.
func (p *AudioPipeline) Open(ctx context.Context, pos *StreamPosition) error {
	p.mu.Lock()
	if p.state == StateFailed {
		p.mu.Unlock()
		return streamerrors.New(fmt.Errorf("pipeline: open while failed")).
			Component("pipeline").Category(streamerrors.CategoryState).Build()
	}
	url := p.url
	p.mu.Unlock()

	input, err := p.inputFactory(url)
	if err != nil {
		p.failLocked(ErrorOpen, err)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.input = input
	p.cache = NewPacketCache(p.cfg.MaxPrebufferedBytes, true, input)
	p.cancel = cancel
	p.mu.Unlock()

	if err := input.Open(runCtx, pos); err != nil {
		cancel()
		p.failLocked(ErrorOpen, err)
		return err
	}

	p.setState(StateBuffering)
	p.armStartupWatchdog()
	return nil
}

// Close tears down the pipeline. closeParser additionally discards the
// parser (otherwise kept alive across a seek-triggered reopen).
func (p *AudioPipeline) Close(closeParser bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelTimersLocked()
	if p.cancel != nil {
		p.cancel()
	}
	if p.input != nil {
		_ = p.input.Close()
		p.input = nil
	}
	if closeParser {
		p.parser = nil
		p.formatKnown = false
	}
	p.converter = nil
	if p.ring != nil {
		_ = p.ring.Close()
		p.ring = nil
	}
	if p.cache != nil {
		p.cache.Reset()
	}

	if p.state != StateFailed && p.state != StateSeeking {
		p.state = StateStopped
		p.notifyState(StateStopped)
	}
	return nil
}

// Pause delegates to the output ring without touching the input's
// scheduled flag.
func (p *AudioPipeline) Pause() error {
	p.mu.Lock()
	ring := p.ring
	wasPlaying := p.state == StatePlaying
	p.mu.Unlock()

	if ring == nil {
		return nil
	}
	if wasPlaying {
		if err := ring.Pause(); err != nil {
			return err
		}
		p.setState(StatePaused)
		return nil
	}
	if err := ring.Start(); err != nil {
		return err
	}
	p.setState(StatePlaying)
	return nil
}

// SeekToOffset implements the in-cache-fast-path/reopen seek
// algorithm. offset is a fraction in [0,1]; only valid when Playing on a
// non-continuous stream.
func (p *AudioPipeline) SeekToOffset(ctx context.Context, offset float32) error {
	p.mu.Lock()
	if p.state == StateSeeking {
		p.mu.Unlock()
		return nil // no-op: a seek is already in flight
	}
	if p.state != StatePlaying || p.stats.IsContinuous() {
		p.mu.Unlock()
		return streamerrors.New(fmt.Errorf("pipeline: seek invalid in state %s or on a continuous stream", p.state)).
			Component("pipeline").Category(streamerrors.CategoryState).Build()
	}
	if p.ring != nil {
		_ = p.ring.Close()
		p.ring = nil
	}
	p.state = StateSeeking
	p.stats.SeekOffset = offset
	parser := p.parser
	cache := p.cache
	seekCacheEnabled := p.cfg.SeekingFromCacheEnabled
	url := p.url
	p.mu.Unlock()

	p.notifyState(StateSeeking)

	duration := p.Duration()
	packetDuration := 0.0
	if p.sourceFormat.SampleRate > 0 && p.sourceFormat.FramesPerPacket > 0 {
		packetDuration = float64(p.sourceFormat.FramesPerPacket) / float64(p.sourceFormat.SampleRate)
	}
	if packetDuration == 0 || duration == 0 {
		return streamerrors.New(fmt.Errorf("pipeline: seek unsupported, unknown duration")).
			Component("pipeline").Category(streamerrors.CategoryState).Build()
	}
	packetNumber := uint64(float64(duration) * float64(offset) / packetDuration)

	byteOffset, err := parser.SeekToPacket(packetNumber)
	if err != nil {
		p.failLocked(ErrorParse, err)
		return err
	}

	if seekCacheEnabled {
		if ok := cache.SeekToIdentifier(packetNumber); ok {
			p.setState(StatePlaying)
			return nil
		}
	}

	if p.input != nil {
		_ = p.input.Close()
	}
	newInput, err := p.inputFactory(url)
	if err != nil {
		p.failLocked(ErrorOpen, err)
		return err
	}
	p.mu.Lock()
	p.input = newInput
	p.discontinuity = true
	p.mu.Unlock()
	parser.SetDiscontinuous(true)

	pos := &StreamPosition{Start: byteOffset, End: p.stats.ContentLength}
	if err := newInput.Open(ctx, pos); err != nil {
		p.failLocked(ErrorNetwork, err)
		return err
	}
	p.setState(StateBuffering)
	return nil
}

// StartCachedPlayback clears the preloading flag so the converter may
// begin running against an already-populated cache.
func (p *AudioPipeline) StartCachedPlayback() {
	p.mu.Lock()
	p.preloading = false
	p.mu.Unlock()
}

// Duration computes the stream duration in seconds: from the audio packet
// count, frames per packet and sample rate when those are known, otherwise
// from the audio byte length and bit rate, returning 0 when neither can
// be determined.
func (p *AudioPipeline) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stats.AudioDataPacketCount > 0 && p.sourceFormat.FramesPerPacket > 0 && p.sourceFormat.SampleRate > 0 {
		return float64(p.stats.AudioDataPacketCount*uint64(p.sourceFormat.FramesPerPacket)) / float64(p.sourceFormat.SampleRate)
	}
	audioLen := p.stats.AudioDataByteCount
	if audioLen == 0 && p.stats.ContentLength > p.stats.MetadataSizeBytes {
		audioLen = p.stats.ContentLength - p.stats.MetadataSizeBytes
	}
	if p.stats.BitRate == 0 || audioLen == 0 {
		return 0
	}
	return float64(audioLen) / (float64(p.stats.BitRate) * 0.125)
}

// ---- InputStreamDelegate ----

// OnReadyToRead fires once the input has response headers available;
// this is the first point content_length can be trusted, so the cache's
// continuous/non-continuous eviction policy is finalized here.
func (p *AudioPipeline) OnReadyToRead() {
	p.mu.Lock()
	input := p.input
	cache := p.cache
	p.mu.Unlock()
	if input == nil || cache == nil {
		return
	}
	contentLength := input.ContentLength()
	p.mu.Lock()
	p.stats.ContentLength = contentLength
	p.mu.Unlock()
	cache.SetContinuous(contentLength == 0)
}

// OnBytesAvailable receives already-demultiplexed audio bytes: the Http
// InputStream variant owns its own internal IcyDemux and only ever hands
// the pipeline pure
// audio bytes here, forwarding ICY metadata separately via OnMetaData.
func (p *AudioPipeline) OnBytesAvailable(buf []byte) {
	p.mu.Lock()
	p.stats.BytesReceived += uint64(len(buf))
	received := p.stats.BytesReceived
	parser := p.parser
	id3 := p.id3Parser
	p.mu.Unlock()

	if p.delegate != nil {
		p.delegate.OnReceivedSize(received)
	}

	p.feedParser(parser, id3, buf)
}

func (p *AudioPipeline) feedParser(parser Parser, id3 *Id3Parser, data []byte) {
	if parser == nil {
		return
	}
	if id3 != nil {
		tagSize, _, done := id3.Feed(data)
		if !done {
			return
		}
		p.mu.Lock()
		p.stats.MetadataSizeBytes = uint64(tagSize)
		p.id3Parser = nil
		p.mu.Unlock()
		if tagSize > 0 {
			data = data[min(tagSize, len(data)):]
		}
	}
	if err := parser.Feed(data); err != nil {
		p.onParseError(err)
	}
	p.pumpConverter()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (p *AudioPipeline) OnEnd() {
	p.mu.Lock()
	contentLength := p.stats.ContentLength
	p.mu.Unlock()

	if contentLength == 0 {
		p.failLocked(ErrorNetwork, fmt.Errorf("stream ended with unknown content length"))
		return
	}
	p.setState(StateEndOfFile)
	p.armQueueDrainWatchdog()
}

func (p *AudioPipeline) OnError(err error) {
	p.failLocked(ErrorNetwork, err)
}

func (p *AudioPipeline) OnContentType(contentType string) {
	if p.cfg.StrictContentTypeChecking && !isAudioOrVideoContentType(contentType) {
		p.failLocked(ErrorOpen, fmt.Errorf("rejected content-type %q under strict checking", contentType))
		return
	}
	if p.parser != nil {
		return
	}
	ct := contentType
	if ct == "" {
		ct = p.cfg.DefaultContentType
	}
	parser, err := p.parserFactory(ct)
	if err != nil {
		p.failLocked(ErrorUnsupportedFormat, err)
		return
	}
	parser.SetDelegate(p)
	p.mu.Lock()
	p.parser = parser
	p.id3Parser = NewId3Parser()
	p.mu.Unlock()
}

func isAudioOrVideoContentType(ct string) bool {
	return len(ct) >= 6 && (ct[:6] == "audio/" || ct[:6] == "video/")
}

func (p *AudioPipeline) OnMetaData(meta map[string]string) {
	if p.delegate != nil {
		p.delegate.OnMetaDataAvailable(meta)
	}
}

func (p *AudioPipeline) OnMetaDataSize(bytes uint64) {
	p.mu.Lock()
	p.stats.MetadataSizeBytes = bytes
	p.mu.Unlock()
}

// ---- ParserDelegate ----

func (p *AudioPipeline) OnDataOffset(offset uint64) {}

func (p *AudioPipeline) OnAudioDataByteCount(count uint64) {
	p.mu.Lock()
	p.stats.AudioDataByteCount = count
	p.mu.Unlock()
}

func (p *AudioPipeline) OnAudioDataPacketCount(count uint64) {
	p.mu.Lock()
	p.stats.AudioDataPacketCount = count
	p.mu.Unlock()
}

func (p *AudioPipeline) OnBitRate(bitRate uint32) {
	p.mu.Lock()
	p.stats.BitRate = bitRate
	p.mu.Unlock()
	if p.delegate != nil {
		p.delegate.OnBitRateAvailable()
	}
}

func (p *AudioPipeline) OnReadyToProducePackets(format SourceFormat) {
	p.mu.Lock()
	p.sourceFormat = format
	p.formatKnown = true
	cfg := p.cfg
	p.mu.Unlock()

	dest := DestFormat{SampleRate: uint32(cfg.OutputSampleRate), Channels: uint16(cfg.OutputChannels)}
	converter, err := p.converterFactory(format, dest)
	if err != nil {
		p.failLocked(ErrorUnsupportedFormat, err)
		return
	}

	sink, err := p.sinkFactory(cfg)
	if err != nil {
		p.failLocked(ErrorOpen, err)
		return
	}
	if err := sink.Configure(dest, cfg.BufferCount, cfg.BufferSize); err != nil {
		p.failLocked(ErrorOpen, err)
		return
	}
	ring := NewOutputRing(cfg.BufferCount, cfg.BufferSize, cfg.MaxPacketDescs, sink)
	ring.SetDelegate(p)
	ring.SetCallbacks(p.onRingOverflow, p.onRingUnderflowCleared, p.onAllBuffersEmpty, p.hasPendingPackets)

	p.mu.Lock()
	p.converter = converter
	p.sink = sink
	p.ring = ring
	p.mu.Unlock()
}

func (p *AudioPipeline) OnPacket(desc PacketDesc, payload []byte) {
	p.mu.Lock()
	cache := p.cache
	p.mu.Unlock()
	if cache == nil {
		return
	}
	cache.Append(desc, payload)
	p.checkInitialBuffering()
}

func (p *AudioPipeline) onParseError(err error) {
	p.failLocked(ErrorParse, err)
}

func (p *AudioPipeline) OnParseError(err error) { p.onParseError(err) }

func (p *AudioPipeline) checkInitialBuffering() {
	p.mu.Lock()
	if p.initialBufferingCompleted {
		p.mu.Unlock()
		return
	}
	threshold := p.cfg.RequiredInitialPrebufferedBytesNonContinuous
	if p.stats.IsContinuous() {
		threshold = p.cfg.RequiredInitialPrebufferedBytesContinuous
	}
	cached := p.cache.CachedBytes()
	complete := cached >= threshold

	if !complete && !p.stats.IsContinuous() && p.stats.ContentLength > 0 {
		remaining := float64(p.stats.ContentLength) * (1 - float64(p.stats.SeekOffset))
		if float64(p.stats.BytesReceived) >= 0.9*remaining {
			complete = true
			p.ignoreDecodeQueueSize = true
		}
	}
	if complete {
		p.initialBufferingCompleted = true
	}
	wasBuffering := p.state == StateBuffering
	p.mu.Unlock()

	if complete && wasBuffering && !p.preloading {
		p.setState(StatePlaying)
		p.cancelStartupWatchdog()
	}
}

// pumpConverter drains the packet cache through the converter, writing
// decoded PCM into the output ring. Callers reach this from several
// goroutines at once (see the AudioPipeline doc comment); pumpMu makes
// the whole operation mutually exclusive so the stateful converter and
// ring are never touched by two goroutines at the same time.
func (p *AudioPipeline) pumpConverter() {
	p.pumpMu.Lock()
	defer p.pumpMu.Unlock()

	p.mu.Lock()
	state := p.state
	ready := p.queueCanAccept && p.initialBufferingCompleted &&
		(p.cache != nil && (p.cache.PacketsFromPlayCursor() > p.cfg.DecodeQueueSize || p.ignoreDecodeQueueSize)) &&
		state != StatePaused && state != StateSeeking
	converter := p.converter
	cache := p.cache
	ring := p.ring
	exhausted := p.converterExhausted
	p.mu.Unlock()

	if !ready || converter == nil || ring == nil {
		return
	}

	if exhausted {
		if err := p.rebuildConverter(); err != nil {
			return
		}
		p.mu.Lock()
		converter = p.converter
		p.mu.Unlock()
	}

	out := make([]byte, p.cfg.BufferSize)
	n, consumed, err := converter.Convert(out, func() (*Packet, error) {
		return cache.NextForConverter(), nil
	})
	if err != nil {
		p.failLocked(ErrorParse, err)
		return
	}
	if consumed == 0 {
		p.mu.Lock()
		p.converterExhausted = true
		p.mu.Unlock()
		return
	}

	desc := PacketDesc{ByteSize: uint32(n)}
	if err := ring.WritePacket(desc, out[:n]); err != nil {
		p.failLocked(ErrorOpen, err)
		return
	}
	if p.delegate != nil {
		p.delegate.OnSamplesAvailable(out[:n], desc)
	}
	cache.EvictProcessedUpToPlayCursor()
}

func (p *AudioPipeline) rebuildConverter() error {
	p.mu.Lock()
	format := p.sourceFormat
	cfg := p.cfg
	p.mu.Unlock()

	dest := DestFormat{SampleRate: uint32(cfg.OutputSampleRate), Channels: uint16(cfg.OutputChannels)}
	converter, err := p.converterFactory(format, dest)
	if err != nil {
		p.failLocked(ErrorUnsupportedFormat, err)
		return err
	}
	p.mu.Lock()
	p.converter = converter
	p.converterExhausted = false
	p.mu.Unlock()
	return nil
}

// ---- OutputSinkDelegate / OutputRing callbacks ----

func (p *AudioPipeline) OnBufferDone(index int) {
	if p.ring != nil {
		p.ring.OnBufferDone(index)
	}
	p.pumpConverter()
}

func (p *AudioPipeline) OnRunningStateChanged(running bool) {
	if running {
		p.setState(StatePlaying)
	}
}

func (p *AudioPipeline) onRingOverflow() {
	p.mu.Lock()
	p.queueCanAccept = false
	p.mu.Unlock()
}

func (p *AudioPipeline) onRingUnderflowCleared() {
	p.mu.Lock()
	p.queueCanAccept = true
	p.mu.Unlock()
	p.pumpConverter()
}

// hasPendingPackets reports whether the packet cache still holds
// un-converted packets; OutputRing uses this alongside its own
// buffers-used count so AllBuffersEmpty fires only when both are empty.
func (p *AudioPipeline) hasPendingPackets() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache != nil && p.cache.PacketsFromPlayCursor() > 0
}

func (p *AudioPipeline) onAllBuffersEmpty() {
	p.mu.Lock()
	inputRunning := p.input != nil
	p.mu.Unlock()
	if p.delegate != nil {
		p.delegate.OnBufferEmpty()
	}
	if !inputRunning {
		return
	}

	p.setState(StateBuffering)
	p.armStartupWatchdog()

	p.mu.Lock()
	now := p.nowHook()
	if p.firstBufferingTime.IsZero() {
		p.firstBufferingTime = now
		p.bounceCount = 1
	} else if now.Sub(p.firstBufferingTime) >= p.cfg.BounceInterval {
		p.firstBufferingTime = time.Time{}
		p.bounceCount = 0
	} else {
		p.bounceCount++
	}
	bounced := p.bounceCount >= p.cfg.MaxBounceCount
	p.stats.BounceCount = p.bounceCount
	p.mu.Unlock()

	if bounced {
		p.failLocked(ErrorBouncing, fmt.Errorf("bounce threshold reached: %d bounces", p.bounceCount))
	}
}

// nowHook returns p.clock(), overridable in tests to make the
// bounce-detector's interval math deterministic.
func (p *AudioPipeline) nowHook() time.Time { return p.clock() }

// ---- watchdogs ----

func (p *AudioPipeline) armStartupWatchdog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w1Timer != nil {
		p.w1Timer.Stop()
	}
	period := p.cfg.StartupWatchdogPeriod
	p.w1Timer = time.AfterFunc(period, func() {
		if p.State() != StatePlaying {
			p.failLocked(ErrorOpen, fmt.Errorf("startup watchdog: did not reach Playing within %s", period))
		}
	})
}

func (p *AudioPipeline) cancelStartupWatchdog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w1Timer != nil {
		p.w1Timer.Stop()
		p.w1Timer = nil
	}
}

func (p *AudioPipeline) armQueueDrainWatchdog() {
	p.mu.Lock()
	if p.w2Timer != nil {
		p.mu.Unlock()
		return
	}
	p.w2Timer = time.NewTicker(p.cfg.QueueDrainInterval)
	p.w2Stop = make(chan struct{})
	ticker := p.w2Timer
	stop := p.w2Stop
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.pumpConverter()
				p.mu.Lock()
				drained := p.cache == nil || (p.cache.PacketsFromPlayCursor() == 0 && p.converterExhausted)
				p.mu.Unlock()
				if drained {
					p.setState(StatePlaybackCompleted)
					_ = p.Close(true)
					return
				}
			}
		}
	}()
}

func (p *AudioPipeline) cancelTimersLocked() {
	if p.w1Timer != nil {
		p.w1Timer.Stop()
		p.w1Timer = nil
	}
	if p.w2Timer != nil {
		p.w2Timer.Stop()
		p.w2Timer = nil
	}
	if p.w2Stop != nil {
		close(p.w2Stop)
		p.w2Stop = nil
	}
}

// ---- state management ----

func (p *AudioPipeline) setState(s State) {
	p.mu.Lock()
	if p.state == s {
		p.mu.Unlock()
		return // idempotent self-transitions are suppressed
	}
	p.state = s
	p.mu.Unlock()
	if p.delegate != nil {
		p.delegate.OnStateChanged(s)
	}
}

func (p *AudioPipeline) notifyState(s State) {
	if p.delegate != nil {
		p.delegate.OnStateChanged(s)
	}
}

// failLocked transitions to Failed, stops the sink immediately, and
// reports the error to the delegate, always in that order:
// state_changed(Failed) before the error callback.
func (p *AudioPipeline) failLocked(kind ErrorKind, err error) {
	p.mu.Lock()
	alreadyFailed := p.state == StateFailed
	p.state = StateFailed
	ring := p.ring
	p.mu.Unlock()

	if alreadyFailed {
		return
	}

	if ring != nil {
		_ = ring.Stop(true)
	}
	if p.delegate != nil {
		p.delegate.OnStateChanged(StateFailed)
		p.delegate.OnError(kind, err.Error())
	}
	wrapped := streamerrors.New(err).
		Component("pipeline").
		Category(categoryForErrorKind(kind)).
		Build()
	if log := logging.ForService("pipeline"); log != nil {
		log.Error("pipeline failed", "kind", kind.String(), "error", wrapped)
	}
}

func categoryForErrorKind(kind ErrorKind) streamerrors.ErrorCategory {
	switch kind {
	case ErrorOpen:
		return streamerrors.CategoryNetwork
	case ErrorParse:
		return streamerrors.CategoryParse
	case ErrorNetwork:
		return streamerrors.CategoryNetwork
	case ErrorUnsupportedFormat:
		return streamerrors.CategoryUnsupportedFormat
	case ErrorBouncing:
		return streamerrors.CategoryBounce
	default:
		return streamerrors.CategoryGeneric
	}
}
