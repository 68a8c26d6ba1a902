package streamcore

import "context"

// InputStreamDelegate receives lifecycle events from an InputStream. The
// pipeline implements this and subscribes for the lifetime of the stream.
// Calls arrive on the goroutine that calls Open or on the input's own
// read goroutine; they are not marshaled onto a single event loop, and
// the pipeline guards its state with its own mutexes.
type InputStreamDelegate interface {
	OnReadyToRead()
	OnBytesAvailable(buf []byte)
	OnEnd()
	OnError(err error)
	OnContentType(contentType string)
	OnMetaData(meta map[string]string)
	OnMetaDataSize(bytes uint64)
}

// InputStream is the byte-producing source feeding a Parser. Variants:
// Http, File, Caching(Http), and the supplemental Ftp/Sftp.
type InputStream interface {
	Open(ctx context.Context, pos *StreamPosition) error
	Close() error
	SetScheduled(scheduled bool)
	ContentType() string
	ContentLength() uint64
	Position() StreamPosition
}

// ParserDelegate receives events from a Parser as it discovers format
// information and packets.
type ParserDelegate interface {
	OnDataOffset(offset uint64)
	OnAudioDataByteCount(count uint64)
	OnAudioDataPacketCount(count uint64)
	OnBitRate(bitRate uint32)
	OnReadyToProducePackets(format SourceFormat)
	OnPacket(desc PacketDesc, payload []byte)
	OnParseError(err error)
}

// Parser is the container/codec front-end: fed with raw
// audio bytes, it emits format and packet events through its delegate.
type Parser interface {
	SetDelegate(delegate ParserDelegate)
	Feed(data []byte) error
	// SeekToPacket returns the byte offset at which packetNumber begins,
	// counted from the start of the stream (the data offset included);
	// the pipeline reopens the input at that offset.
	SeekToPacket(packetNumber uint64) (byteOffset uint64, err error)
	// SetDiscontinuous marks that the next Feed call follows a
	// seek-driven reopen and packet numbering should resync.
	SetDiscontinuous(discontinuous bool)
}

// PacketProvider is the pull-model callback a Converter uses to fetch the
// next source packet. A nil packet with a nil error means "exhausted".
type PacketProvider func() (*Packet, error)

// Converter pulls source packets and writes PCM into a caller-owned
// buffer. It is single-use: once exhausted, the pipeline
// must build a fresh Converter from the stored SourceFormat/DestFormat.
type Converter interface {
	// Convert fills out with PCM data, calling provide one or more times
	// until out is full or provide signals exhaustion. It returns the
	// number of bytes written and the number of source packets consumed
	// (zero packets consumed means "exhausted").
	Convert(out []byte, provide PacketProvider) (bytesWritten int, packetsConsumed int, err error)
}

// OutputSinkDelegate receives buffer-finished and running-state events
// from an OutputSink, on whichever goroutine the sink reports from; they
// are not marshaled onto a single event loop.
type OutputSinkDelegate interface {
	OnBufferDone(index int)
	OnRunningStateChanged(running bool)
}

// OutputSink accepts PCM buffers and drives a host audio device. It is
// host-owned; the pipeline never constructs one directly except through
// conf.Config.OutputBackend's factory.
type OutputSink interface {
	SetDelegate(delegate OutputSinkDelegate)
	Configure(format DestFormat, bufferCount int, bufferSize int) error
	Enqueue(index int, data []byte) error
	Start() error
	Pause() error
	Stop(immediate bool) error
	Close() error
}

// Delegate is the host-observed surface of an AudioPipeline.
type Delegate interface {
	OnStateChanged(state State)
	OnError(kind ErrorKind, description string)
	OnMetaDataAvailable(meta map[string]string)
	OnSamplesAvailable(pcm []byte, desc PacketDesc)
	OnBitRateAvailable()
	OnReceivedSize(bytes uint64)
	OnBufferEmpty()
}
