package streamcore

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

type icyDemuxState int

const (
	icyReadingHeaders icyDemuxState = iota
	icyReadingAudio
	icyReadingMetaSizeByte
	icyReadingMetaBytes
)

// IcyDemux splits an ICY/Shoutcast byte stream into audio bytes and
// periodic inline metadata frames. It wraps an Http
// InputStream once the server has signaled icy-metaint; audio bytes are
// forwarded to onAudio and metadata maps to onMetaData.
type IcyDemux struct {
	state              icyDemuxState
	metaInt            int
	audioSinceLastMeta int
	metaRemaining      int
	metaBuf            bytes.Buffer

	onAudio    func(data []byte)
	onMetaData func(meta map[string]string)
}

// NewIcyDemux builds a demultiplexer for the given icy-metaint value.
func NewIcyDemux(metaInt int, onAudio func([]byte), onMetaData func(map[string]string)) *IcyDemux {
	return &IcyDemux{
		state:      icyReadingAudio,
		metaInt:    metaInt,
		onAudio:    onAudio,
		onMetaData: onMetaData,
	}
}

// Feed processes a chunk of raw bytes received from the underlying Http
// input, dispatching audio and metadata callbacks as the state machine
// advances. It never blocks and consumes the whole chunk before returning.
func (d *IcyDemux) Feed(data []byte) {
	audioRun := make([]byte, 0, len(data))
	flushAudio := func() {
		if len(audioRun) > 0 && d.onAudio != nil {
			d.onAudio(audioRun)
		}
		audioRun = audioRun[:0]
	}

	for _, b := range data {
		switch d.state {
		case icyReadingAudio:
			audioRun = append(audioRun, b)
			d.audioSinceLastMeta++
			if d.audioSinceLastMeta == d.metaInt {
				flushAudio()
				d.state = icyReadingMetaSizeByte
				d.audioSinceLastMeta = 0
			}

		case icyReadingMetaSizeByte:
			d.metaRemaining = int(b) * 16
			d.metaBuf.Reset()
			if d.metaRemaining == 0 {
				d.state = icyReadingAudio
			} else {
				d.state = icyReadingMetaBytes
			}

		case icyReadingMetaBytes:
			d.metaBuf.WriteByte(b)
			d.metaRemaining--
			if d.metaRemaining == 0 {
				meta := parseIcyMetadata(d.metaBuf.Bytes())
				if len(meta) > 0 && d.onMetaData != nil {
					d.onMetaData(meta)
				}
				d.state = icyReadingAudio
			}

		case icyReadingHeaders:
			// Headers are consumed by the Http InputStream before Feed is
			// ever called; this state exists only to document the full
			// state machine.
			d.state = icyReadingAudio
		}
	}
	flushAudio()
}

// parseIcyMetadata decodes a `key='value';` token stream, trying UTF-8
// first, then Latin-1, then ASCII.
func parseIcyMetadata(raw []byte) map[string]string {
	text := decodeIcyText(raw)
	result := make(map[string]string)

	for _, token := range splitIcyTokens(text) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		eq := strings.IndexByte(token, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(token[:eq])
		val := strings.TrimSpace(token[eq+1:])
		val = strings.Trim(val, "'")
		if key != "" {
			result[key] = val
		}
	}
	return result
}

// splitIcyTokens splits on ';' but respects that values are single-quoted
// and may themselves be empty; trailing empty segments are dropped.
func splitIcyTokens(text string) []string {
	parts := strings.Split(text, "';")
	tokens := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += "'"
		}
		tokens = append(tokens, p)
	}
	return tokens
}

func decodeIcyText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return string(decoded)
	}
	// ASCII fallback: strip anything outside the printable range.
	clean := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b >= 0x20 && b < 0x7f {
			clean = append(clean, b)
		}
	}
	return string(clean)
}

// ParseMetaInt extracts an icy-metaint header value, if present. Shared
// by the Http InputStream (deciding whether to wrap the response in an
// IcyDemux) and this package's own tests.
func ParseMetaInt(headerValue string) (int, bool) {
	if headerValue == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(headerValue))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
