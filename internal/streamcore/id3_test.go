package streamcore

import (
	"bytes"
	"testing"
)

func synchsafeBytes(n int) []byte {
	return []byte{
		byte((n >> 21) & 0x7F),
		byte((n >> 14) & 0x7F),
		byte((n >> 7) & 0x7F),
		byte(n & 0x7F),
	}
}

func buildID3Frame(name string, content []byte) []byte {
	var b bytes.Buffer
	b.WriteString(name)
	b.Write(synchsafeBytes(len(content)))
	b.WriteByte(0) // flags byte 1
	b.WriteByte(0) // flags byte 2
	b.Write(content)
	return b.Bytes()
}

func buildID3v23Tag(frames ...[]byte) []byte {
	var body bytes.Buffer
	for _, f := range frames {
		body.Write(f)
	}

	var tag bytes.Buffer
	tag.WriteString("ID3")
	tag.WriteByte(3) // major version
	tag.WriteByte(0) // revision
	tag.WriteByte(0) // flags: no unsynchronisation, no extended header, no footer
	tag.Write(synchsafeBytes(body.Len()))
	tag.Write(body.Bytes())
	return tag.Bytes()
}

func TestId3ParserExtractsTitleAndPerformer(t *testing.T) {
	t.Parallel()

	title := buildID3Frame("TIT2", append([]byte{0}, []byte("Song Name")...))
	performer := buildID3Frame("TPE1", append([]byte{0}, []byte("The Artist")...))
	tag := buildID3v23Tag(title, performer)

	p := NewId3Parser()
	tagSize, streamTitle, done := p.Feed(tag)

	if !done {
		t.Fatal("expected parser to be done after a complete tag")
	}
	if tagSize != len(tag) {
		t.Fatalf("expected tag_size %d, got %d", len(tag), tagSize)
	}
	if streamTitle != "The Artist - Song Name" {
		t.Fatalf("unexpected StreamTitle: %q", streamTitle)
	}
}

func TestId3ParserRejectsNonID3Prefix(t *testing.T) {
	t.Parallel()

	p := NewId3Parser()
	tagSize, streamTitle, done := p.Feed(bytes.Repeat([]byte{0xFF}, 20))

	if !done {
		t.Fatal("expected parser to be done (rejected) for non-ID3 data")
	}
	if tagSize != 0 || streamTitle != "" {
		t.Fatalf("expected no tag size or title for rejected input, got %d %q", tagSize, streamTitle)
	}
}

func TestId3ParserRejectsWrongMajorVersion(t *testing.T) {
	t.Parallel()

	var tag bytes.Buffer
	tag.WriteString("ID3")
	tag.WriteByte(4) // v2.4, unsupported per spec scope
	tag.WriteByte(0)
	tag.WriteByte(0)
	tag.Write(synchsafeBytes(0))

	p := NewId3Parser()
	_, _, done := p.Feed(tag.Bytes())
	if !done {
		t.Fatal("expected parser to reject a non-v2.3 tag immediately")
	}
}

func TestId3ParserNeedsAtLeastTenBytes(t *testing.T) {
	t.Parallel()

	p := NewId3Parser()
	_, _, done := p.Feed([]byte("ID3"))
	if done {
		t.Fatal("expected parser to wait for more bytes before deciding")
	}
}

func TestId3ParserExtendedHeaderWithNoFramesEmitsNoMetadata(t *testing.T) {
	t.Parallel()

	// Extended header whose size consumes the entire declared tag body,
	// leaving zero bytes for frames (a boundary case worth covering explicitly).
	extHeaderSize := 6
	var tag bytes.Buffer
	tag.WriteString("ID3")
	tag.WriteByte(3)
	tag.WriteByte(0)
	tag.WriteByte(0x40) // extended header flag
	tag.Write(synchsafeBytes(extHeaderSize))
	tag.Write(synchsafeBytes(extHeaderSize))
	tag.Write(bytes.Repeat([]byte{0}, extHeaderSize-4))

	p := NewId3Parser()
	tagSize, streamTitle, done := p.Feed(tag.Bytes())

	if !done {
		t.Fatal("expected parser to finish once the declared tag size is buffered")
	}
	if streamTitle != "" {
		t.Fatalf("expected no StreamTitle when no frames are present, got %q", streamTitle)
	}
	if tagSize != 10+extHeaderSize {
		t.Fatalf("expected tag_size %d, got %d", 10+extHeaderSize, tagSize)
	}
}

func TestId3ParserFeedAcrossMultipleCalls(t *testing.T) {
	t.Parallel()

	title := buildID3Frame("TIT2", append([]byte{0}, []byte("X")...))
	tag := buildID3v23Tag(title)

	p := NewId3Parser()
	var done bool
	for i := 0; i < len(tag); i += 3 {
		end := i + 3
		if end > len(tag) {
			end = len(tag)
		}
		_, _, done = p.Feed(tag[i:end])
		if done {
			break
		}
	}
	if !done {
		t.Fatal("expected parser to eventually complete across chunked feeds")
	}
}

func TestDecodeUTF16WithBOM(t *testing.T) {
	t.Parallel()

	// "Hi" in UTF-16LE with a BOM.
	content := []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00}
	got := decodeUTF16(content, true)
	if got != "Hi" {
		t.Fatalf("expected \"Hi\", got %q", got)
	}
}
