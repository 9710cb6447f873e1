package smf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// encodeVarLen encodes v as a MIDI variable-length quantity.
func encodeVarLen(v uint32) []byte {
	out := []byte{byte(v & 0x7F)}
	for v >>= 7; v > 0; v >>= 7 {
		out = append([]byte{byte(v&0x7F) | 0x80}, out...)
	}
	return out
}

// trackBuilder assembles the raw event stream of one MTrk chunk.
type trackBuilder struct {
	buf []byte
}

func newTrack() *trackBuilder {
	return &trackBuilder{}
}

// event appends a delta time followed by raw message bytes (which may rely on
// running status).
func (b *trackBuilder) event(delta uint32, msg ...byte) *trackBuilder {
	b.buf = append(b.buf, encodeVarLen(delta)...)
	b.buf = append(b.buf, msg...)
	return b
}

func (b *trackBuilder) tempo(delta uint32, microsPerQuarter uint32) *trackBuilder {
	return b.event(delta, 0xFF, 0x51, 0x03,
		byte(microsPerQuarter>>16), byte(microsPerQuarter>>8), byte(microsPerQuarter))
}

func (b *trackBuilder) noteOn(delta uint32, ch, key, vel byte) *trackBuilder {
	return b.event(delta, 0x90|ch, key, vel)
}

func (b *trackBuilder) name(delta uint32, text []byte) *trackBuilder {
	msg := append([]byte{0xFF, 0x03}, encodeVarLen(uint32(len(text)))...)
	return b.event(delta, append(msg, text...)...)
}

func (b *trackBuilder) end(delta uint32) *trackBuilder {
	return b.event(delta, 0xFF, 0x2F, 0x00)
}

func (b *trackBuilder) bytes() []byte {
	return b.buf
}

// chunk frames a payload with a 4-byte magic and big-endian length.
func chunk(magic string, payload []byte) []byte {
	var out bytes.Buffer
	out.WriteString(magic)
	binary.Write(&out, binary.BigEndian, uint32(len(payload)))
	out.Write(payload)
	return out.Bytes()
}

func headerChunk(format, tracks, ppqn uint16) []byte {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body[0:], format)
	binary.BigEndian.PutUint16(body[2:], tracks)
	binary.BigEndian.PutUint16(body[4:], ppqn)
	return chunk("MThd", body)
}

// buildSMF builds a complete file whose header declares len(tracks) tracks.
func buildSMF(format, ppqn uint16, tracks ...[]byte) []byte {
	out := headerChunk(format, uint16(len(tracks)), ppqn)
	for _, tr := range tracks {
		out = append(out, chunk("MTrk", tr)...)
	}
	return out
}

// writeTempFile writes data to a file in a per-test directory.
func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

// mustParse parses data with a fresh Parser and fails the test on error.
func mustParse(t *testing.T, data []byte, opts ...Option) *Parser {
	t.Helper()
	p := NewParser(opts...)
	if err := p.Parse(bytes.NewReader(data)); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return p
}
