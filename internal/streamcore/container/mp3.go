// Package container holds the concrete Parser/Converter implementations
// for the container formats the pipeline understands: MPEG audio frames
// (container/codec combined, per MP3's design) and WAV/PCM.
package container

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

var mp3BitrateTable = [2][3][16]int{
	{ // MPEG1
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	},
	{ // MPEG2/2.5
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
}

var mp3SampleRateTable = [2][3]int{
	{44100, 48000, 32000}, // MPEG1
	{22050, 24000, 16000}, // MPEG2
}

// Mp3Parser scans for MPEG audio frame headers and emits one packet per
// frame. It accumulates bytes across Feed calls until a
// full frame is available.
type Mp3Parser struct {
	delegate      streamcore.ParserDelegate
	buf           []byte
	dataOffset    uint64
	byteCount     uint64
	packetCount   uint64
	formatKnown   bool
	format        streamcore.SourceFormat
	discontinuous bool

	bitrateSamples []int
}

// NewMp3Parser builds an empty MP3 frame parser.
func NewMp3Parser() *Mp3Parser {
	return &Mp3Parser{}
}

func (p *Mp3Parser) SetDelegate(delegate streamcore.ParserDelegate) { p.delegate = delegate }

func (p *Mp3Parser) SetDiscontinuous(discontinuous bool) { p.discontinuous = discontinuous }

// Feed appends data and extracts as many complete frames as are
// available, emitting a Packet event per frame through the delegate. A
// pending discontinuity (set via SetDiscontinuous before a post-seek
// reopen) drops any bytes buffered from before the seek first, so the
// frame scanner never stitches stale pre-seek bytes to the new stream.
func (p *Mp3Parser) Feed(data []byte) error {
	if p.discontinuous {
		p.buf = nil
		p.discontinuous = false
	}
	p.buf = append(p.buf, data...)

	for {
		skip, frameLen, hdr, ok := findMp3Frame(p.buf)
		if !ok {
			break
		}
		if skip > 0 {
			p.buf = p.buf[skip:]
		}
		if !p.formatKnown {
			p.format = streamcore.SourceFormat{
				CodecID:          "mp3",
				SampleRate:       uint32(hdr.sampleRate),
				FramesPerPacket:  1152,
				ChannelsPerFrame: uint16(hdr.channels),
			}
			p.formatKnown = true
			p.dataOffset = p.byteCount
			if p.delegate != nil {
				p.delegate.OnDataOffset(p.dataOffset)
				p.delegate.OnReadyToProducePackets(p.format)
			}
		}

		payload := make([]byte, frameLen)
		copy(payload, p.buf[:frameLen])
		p.buf = p.buf[frameLen:]

		desc := streamcore.PacketDesc{ByteSize: uint32(frameLen)}
		p.byteCount += uint64(frameLen)
		p.packetCount++

		if p.delegate != nil {
			p.delegate.OnPacket(desc, payload)
			p.delegate.OnAudioDataByteCount(p.byteCount)
			p.delegate.OnAudioDataPacketCount(p.packetCount)
		}

		p.recordBitrate(hdr, frameLen)
	}
	return nil
}

// recordBitrate reports a rolling-average bitrate over the first 50
// packets when the format itself never carries an explicit bitrate field.
func (p *Mp3Parser) recordBitrate(hdr mp3FrameHeader, frameLen int) {
	if len(p.bitrateSamples) >= 50 || p.delegate == nil {
		return
	}
	durationSec := float64(1152) / float64(hdr.sampleRate)
	bitrate := int(float64(8*frameLen) / durationSec)
	p.bitrateSamples = append(p.bitrateSamples, bitrate)

	if len(p.bitrateSamples) == 50 {
		sum := 0
		for _, b := range p.bitrateSamples {
			sum += b
		}
		p.delegate.OnBitRate(uint32(sum / len(p.bitrateSamples)))
	}
}

// SeekToPacket estimates the offset, since MP3 has no seek table: it
// returns data_offset plus packetNumber times the average frame size seen
// so far, so the result is approximate.
func (p *Mp3Parser) SeekToPacket(packetNumber uint64) (uint64, error) {
	if !p.formatKnown {
		return 0, streamerrors.New(fmt.Errorf("mp3: seek requested before format known")).
			Component("container").
			Category(streamerrors.CategoryState).
			Build()
	}
	avgFrameBytes := uint64(p.byteCount)
	if p.packetCount > 0 {
		avgFrameBytes /= p.packetCount
	}
	return p.dataOffset + packetNumber*avgFrameBytes, nil
}

type mp3FrameHeader struct {
	sampleRate int
	channels   int
}

// findMp3Frame scans buf for a valid MPEG audio frame sync word. skip is
// the number of leading garbage bytes before the sync word (0 if the
// frame starts immediately); frameLen is the frame's total length
// including its header. ok is false if no complete frame is available
// yet in buf, in which case the caller should wait for more data.
func findMp3Frame(buf []byte) (skip, frameLen int, hdr mp3FrameHeader, ok bool) {
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] != 0xFF || buf[i+1]&0xE0 != 0xE0 {
			continue
		}
		versionBits := (buf[i+1] >> 3) & 0x03
		layerBits := (buf[i+1] >> 1) & 0x03
		bitrateIdx := (buf[i+2] >> 4) & 0x0F
		sampleIdx := (buf[i+2] >> 2) & 0x03
		padding := (buf[i+2] >> 1) & 0x01
		channelMode := (buf[i+3] >> 6) & 0x03

		if layerBits != 0x01 || bitrateIdx == 0x0F || sampleIdx == 0x03 {
			continue // Layer III only, reserved values rejected
		}

		mpeg2 := versionBits != 0x03
		rateGroup := 0
		if mpeg2 {
			rateGroup = 1
		}
		sampleRate := mp3SampleRateTable[rateGroup][sampleIdx]
		bitrate := mp3BitrateTable[rateGroup][2][bitrateIdx] // layer III row
		if sampleRate == 0 || bitrate == 0 {
			continue
		}

		samplesPerFrame := 1152
		if mpeg2 {
			samplesPerFrame = 576
		}
		length := (samplesPerFrame/8)*bitrate*1000/sampleRate + int(padding)

		if i+length > len(buf) {
			return 0, 0, mp3FrameHeader{}, false // wait for the rest of this frame
		}

		channels := 2
		if channelMode == 0x03 {
			channels = 1
		}
		return i, length, mp3FrameHeader{sampleRate: sampleRate, channels: channels}, true
	}
	return 0, 0, mp3FrameHeader{}, false
}

// Mp3Converter decodes MP3 packets pulled from a PacketProvider into PCM,
// via hajimehoshi/go-mp3. It is single-use: once the
// provider reports exhaustion, Convert returns zero packets consumed and
// the pipeline must build a fresh Mp3Converter.
type Mp3Converter struct {
	decoder  *gomp3.Decoder
	provider streamcore.PacketProvider
	reader   *packetStreamReader
}

// NewMp3Converter builds a converter ready to decode once a
// PacketProvider is supplied to Convert.
func NewMp3Converter() *Mp3Converter {
	return &Mp3Converter{}
}

func (c *Mp3Converter) Convert(out []byte, provide streamcore.PacketProvider) (int, int, error) {
	if c.decoder == nil {
		c.reader = &packetStreamReader{provide: provide}
		decoder, err := gomp3.NewDecoder(c.reader)
		if err != nil {
			return 0, 0, streamerrors.New(fmt.Errorf("mp3 decoder init: %w", err)).
				Component("converter").
				Category(streamerrors.CategoryUnsupportedFormat).
				Build()
		}
		c.decoder = decoder
	} else {
		c.reader.provide = provide
	}

	n, err := io.ReadFull(c.decoder, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return n, c.reader.packetsConsumed, streamerrors.New(fmt.Errorf("mp3 decode: %w", err)).
			Component("converter").
			Category(streamerrors.CategoryParse).
			Build()
	}

	consumed := c.reader.packetsConsumed
	c.reader.packetsConsumed = 0
	return n, consumed, nil
}

// packetStreamReader adapts the pull-model PacketProvider into an
// io.Reader go-mp3's Decoder can consume.
type packetStreamReader struct {
	provide         streamcore.PacketProvider
	current         []byte
	packetsConsumed int
}

func (r *packetStreamReader) Read(p []byte) (int, error) {
	if len(r.current) == 0 {
		pkt, err := r.provide()
		if err != nil {
			return 0, err
		}
		if pkt == nil {
			return 0, io.EOF
		}
		r.current = pkt.Data
		r.packetsConsumed++
	}
	n := copy(p, r.current)
	r.current = r.current[n:]
	return n, nil
}
