package streamcore

import (
	"bytes"
	"fmt"
)

type id3State int

const (
	id3Initial id3State = iota
	id3ParsingFrames
	id3Done
	id3Rejected
)

// Id3Parser sniffs the leading bytes of an audio payload for an ID3v2.3
// header. It is fed incrementally and reports its result through Feed's
// return values regardless of how many Feed calls it took to accumulate
// enough bytes.
type Id3Parser struct {
	state state3Buf
}

// state3Buf holds the accumulation buffer and parse state; kept as a
// distinct type so Id3Parser itself stays a thin wrapper.
type state3Buf struct {
	buf       bytes.Buffer
	state     id3State
	tagSize   int // total bytes occupied by the tag, header included
	title     string
	performer string
}

// NewId3Parser builds an empty parser ready to receive the first bytes of
// the audio payload.
func NewId3Parser() *Id3Parser {
	return &Id3Parser{}
}

// Feed accumulates data and attempts to parse once ≥10 bytes are
// available. Returns (tagSize, streamTitle, done). done is true once the
// parser has either fully parsed a tag or rejected the input as having no
// ID3 header; once done, further Feed calls are no-ops.
func (p *Id3Parser) Feed(data []byte) (tagSize int, streamTitle string, done bool) {
	if p.state.state == id3Done || p.state.state == id3Rejected {
		return p.state.tagSize, p.streamTitle(), true
	}

	p.state.buf.Write(data)
	buf := p.state.buf.Bytes()

	if p.state.state == id3Initial {
		if len(buf) < 10 {
			return 0, "", false
		}
		if !bytes.HasPrefix(buf, []byte("ID3")) || buf[3] != 3 {
			p.state.state = id3Rejected
			return 0, "", true
		}
		p.state.state = id3ParsingFrames
	}

	flags := buf[5]
	hasExtendedHeader := flags&0x40 != 0
	hasFooter := flags&0x10 != 0

	size := synchsafe(buf[6], buf[7], buf[8], buf[9]) + 10
	if hasFooter {
		size += 10
	}
	p.state.tagSize = size

	if len(buf) < size {
		return 0, "", false
	}

	offset := 10
	if hasExtendedHeader {
		if len(buf) < offset+4 {
			return 0, "", false
		}
		extSize := synchsafe(buf[offset], buf[offset+1], buf[offset+2], buf[offset+3])
		offset += extSize
	}

	p.parseFrames(buf, offset, size)
	p.state.state = id3Done
	return p.state.tagSize, p.streamTitle(), true
}

func (p *Id3Parser) parseFrames(buf []byte, offset, tagEnd int) {
	for offset+10 <= tagEnd {
		name := string(buf[offset : offset+4])
		if name == "\x00\x00\x00\x00" {
			break
		}
		frameSize := synchsafe(buf[offset+4], buf[offset+5], buf[offset+6], buf[offset+7])
		offset += 10 // name(4) + size(4) + flags(2)

		if offset+frameSize > len(buf) || frameSize < 1 {
			break
		}
		content := buf[offset : offset+frameSize]
		offset += frameSize

		switch name {
		case "TIT2":
			p.state.title = decodeID3Text(content)
		case "TPE1":
			p.state.performer = decodeID3Text(content)
		}
	}
}

func (p *Id3Parser) streamTitle() string {
	if p.state.performer != "" && p.state.title != "" {
		return fmt.Sprintf("%s - %s", p.state.performer, p.state.title)
	}
	return ""
}

// synchsafe decodes a 4-byte big-endian synchsafe integer (7 significant
// bits per byte), used for both the tag size and frame sizes.
func synchsafe(b0, b1, b2, b3 byte) int {
	return int(b0)<<21 | int(b1)<<14 | int(b2)<<7 | int(b3)
}

// decodeID3Text decodes an ID3v2.3 text frame's content given its leading
// encoding byte (0=Latin1, 1=UTF16-with-BOM, 2=UTF16BE, 3=UTF8).
func decodeID3Text(content []byte) string {
	if len(content) < 1 {
		return ""
	}
	encoding := content[0]
	body := content[1:]
	body = bytes.TrimRight(body, "\x00")

	switch encoding {
	case 0, 3:
		return string(body)
	case 1:
		return decodeUTF16(body, true)
	case 2:
		return decodeUTF16(body, false)
	default:
		return string(body)
	}
}

func decodeUTF16(body []byte, hasBOM bool) string {
	bigEndian := true
	if hasBOM && len(body) >= 2 {
		if body[0] == 0xFF && body[1] == 0xFE {
			bigEndian = false
			body = body[2:]
		} else if body[0] == 0xFE && body[1] == 0xFF {
			bigEndian = true
			body = body[2:]
		}
	}

	if len(body)%2 != 0 {
		body = body[:len(body)-1]
	}

	runes := make([]uint16, 0, len(body)/2)
	for i := 0; i+1 < len(body); i += 2 {
		if bigEndian {
			runes = append(runes, uint16(body[i])<<8|uint16(body[i+1]))
		} else {
			runes = append(runes, uint16(body[i+1])<<8|uint16(body[i]))
		}
	}

	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(runes) {
			lo := runes[i+1]
			if lo >= 0xDC00 && lo <= 0xDFFF {
				combined := (rune(r-0xD800) << 10) | rune(lo-0xDC00)
				out = append(out, combined+0x10000)
				i++
				continue
			}
		}
		out = append(out, rune(r))
	}
	return string(out)
}
