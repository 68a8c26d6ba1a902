package container

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// wavPacketFrames is the number of PCM frames grouped into one emitted
// packet; WAV has no native packetization so the parser imposes a fixed
// chunk size, matching FramesPerPacket in the reported SourceFormat.
const wavPacketFrames = 4096

// WavParser decodes a WAV/RIFF header via go-audio/wav and then emits the
// remaining PCM data as fixed-size packets. Unlike Mp3Parser, format
// discovery requires the whole RIFF/fmt chunk to be buffered up front.
type WavParser struct {
	delegate    streamcore.ParserDelegate
	buf         bytes.Buffer
	formatKnown bool
	format      streamcore.SourceFormat
	bytesPerFrame int
	dataOffset  uint64
	byteCount   uint64
	packetCount uint64
	discontinuous bool
}

// NewWavParser builds an empty WAV parser.
func NewWavParser() *WavParser {
	return &WavParser{}
}

func (p *WavParser) SetDelegate(delegate streamcore.ParserDelegate) { p.delegate = delegate }

func (p *WavParser) SetDiscontinuous(discontinuous bool) { p.discontinuous = discontinuous }

// Feed writes data into the chunking buffer and emits fixed-size PCM
// packets. A pending discontinuity drops whatever partial chunk was
// buffered before a post-seek reopen: WAV has no resync ability, so any
// stale bytes left over from before the seek would otherwise
// permanently misalign every packet boundary that follows.
func (p *WavParser) Feed(data []byte) error {
	if p.discontinuous {
		p.buf.Reset()
		p.discontinuous = false
	}
	p.buf.Write(data)

	if !p.formatKnown {
		if err := p.tryParseHeader(); err != nil {
			return err
		}
		if !p.formatKnown {
			return nil // still waiting on more header bytes
		}
	}

	chunkBytes := wavPacketFrames * p.bytesPerFrame
	for p.buf.Len() >= chunkBytes {
		payload := make([]byte, chunkBytes)
		if _, err := p.buf.Read(payload); err != nil {
			return streamerrors.New(fmt.Errorf("wav: read PCM chunk: %w", err)).
				Component("container").
				Category(streamerrors.CategoryParse).
				Build()
		}
		desc := streamcore.PacketDesc{ByteSize: uint32(chunkBytes), VariableFrames: wavPacketFrames}
		p.byteCount += uint64(chunkBytes)
		p.packetCount++
		if p.delegate != nil {
			p.delegate.OnPacket(desc, payload)
			p.delegate.OnAudioDataByteCount(p.byteCount)
			p.delegate.OnAudioDataPacketCount(p.packetCount)
		}
	}
	return nil
}

func (p *WavParser) tryParseHeader() error {
	raw := p.buf.Bytes()
	if len(raw) < 44 {
		return nil // RIFF header + fmt chunk is at least 44 bytes
	}

	decoder := wav.NewDecoder(bytes.NewReader(raw))
	if !decoder.IsValidFile() {
		return streamerrors.New(fmt.Errorf("wav: not a valid RIFF/WAVE file")).
			Component("container").
			Category(streamerrors.CategoryUnsupportedFormat).
			Build()
	}
	decoder.ReadInfo()
	if decoder.SampleRate == 0 {
		return nil // header not fully parsed yet
	}

	p.format = streamcore.SourceFormat{
		CodecID:          "pcm",
		SampleRate:       decoder.SampleRate,
		FramesPerPacket:  wavPacketFrames,
		ChannelsPerFrame: uint16(decoder.NumChans),
		BytesPerPacket:   uint32(wavPacketFrames) * uint32(decoder.NumChans) * uint32(decoder.BitDepth/8),
	}
	p.bytesPerFrame = int(decoder.NumChans) * int(decoder.BitDepth/8)
	if p.bytesPerFrame == 0 {
		return streamerrors.New(fmt.Errorf("wav: zero-width frame (channels=%d bitdepth=%d)", decoder.NumChans, decoder.BitDepth)).
			Component("container").
			Category(streamerrors.CategoryUnsupportedFormat).
			Build()
	}

	// Discard everything up to and including the fmt/data headers; what
	// remains in p.buf is raw PCM sample data.
	dataOffset := decoder.PCMChunk.Offset
	p.dataOffset = uint64(dataOffset)
	discard := make([]byte, dataOffset)
	p.buf.Read(discard) //nolint:errcheck // bounded by the length check above

	p.formatKnown = true
	if p.delegate != nil {
		p.delegate.OnDataOffset(p.dataOffset)
		p.delegate.OnReadyToProducePackets(p.format)
	}
	return nil
}

// SeekToPacket returns the byte offset of the given packet number,
// counted from the start of the stream (data_offset included); WAV
// packets are fixed-size so this is exact.
func (p *WavParser) SeekToPacket(packetNumber uint64) (uint64, error) {
	if !p.formatKnown {
		return 0, streamerrors.New(fmt.Errorf("wav: seek requested before format known")).
			Component("container").
			Category(streamerrors.CategoryState).
			Build()
	}
	return p.dataOffset + packetNumber*uint64(wavPacketFrames*p.bytesPerFrame), nil
}

// WavConverter passes PCM straight through: WAV source packets are
// already linear PCM, so no decode step is needed, only the
// pull-to-push adaptation Convert's signature requires. Channel/rate
// mismatches between source and destination format are not resampled;
// callers should configure DestFormat to match the source when using
// this converter.
type WavConverter struct{}

// NewWavConverter builds a pass-through converter.
func NewWavConverter() *WavConverter { return &WavConverter{} }

func (c *WavConverter) Convert(out []byte, provide streamcore.PacketProvider) (int, int, error) {
	written := 0
	consumed := 0
	for written < len(out) {
		pkt, err := provide()
		if err != nil {
			return written, consumed, streamerrors.New(fmt.Errorf("wav convert: %w", err)).
				Component("converter").
				Category(streamerrors.CategoryParse).
				Build()
		}
		if pkt == nil {
			break
		}
		n := copy(out[written:], pkt.Data)
		written += n
		consumed++
		if n < len(pkt.Data) {
			break // out is full; remaining bytes of this packet are dropped this pass
		}
	}
	return written, consumed, nil
}
