package smf

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	headerMagic  = "MThd"
	trackMagic   = "MTrk"
	headerLength = 6
)

// Header is the content of the MThd chunk.
type Header struct {
	Format uint16
	Tracks uint16
	PPQN   uint16 // Ticks per quarter note
}

// readChunkPrefix reads the 4-byte magic and the big-endian u32 length that
// start every chunk.
func readChunkPrefix(r io.Reader) (string, uint32, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", 0, err
	}
	return string(buf[:4]), binary.BigEndian.Uint32(buf[4:]), nil
}

// readHeader reads the MThd chunk. The chunk must come first and must be
// exactly 6 bytes long.
func readHeader(r io.Reader) (Header, error) {
	magic, length, err := readChunkPrefix(r)
	if err != nil {
		return Header{}, newIOError("failed to read header chunk", err)
	}
	if magic != headerMagic {
		return Header{}, newFormatError(fmt.Sprintf("invalid header chunk %q, expected %q", magic, headerMagic))
	}
	if length != headerLength {
		return Header{}, newFormatError(fmt.Sprintf("unexpected %s chunk length: %d", headerMagic, length))
	}

	var body [headerLength]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return Header{}, newIOError("failed to read header chunk body", err)
	}

	h := Header{
		Format: binary.BigEndian.Uint16(body[0:2]),
		Tracks: binary.BigEndian.Uint16(body[2:4]),
		PPQN:   binary.BigEndian.Uint16(body[4:6]),
	}
	// Every tick duration is divided by the division field.
	if h.PPQN == 0 {
		return Header{}, newFormatError("time division is zero")
	}
	return h, nil
}

// readTracks reads exactly count MTrk chunks following the header and returns
// their payloads in file order. Chunk order is positional: anything other than
// MTrk where a track is expected is a format error.
func readTracks(r io.Reader, count uint16) ([][]byte, error) {
	tracks := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		magic, length, err := readChunkPrefix(r)
		if err != nil {
			return nil, newTrackIOError(i, "failed to read track chunk", err)
		}
		if magic != trackMagic {
			return nil, newTrackFormatError(i, fmt.Sprintf("expected %q chunk, found %q", trackMagic, magic))
		}

		// The declared length is untrusted; grow the buffer as bytes arrive
		// rather than allocating it up front.
		data, err := io.ReadAll(io.LimitReader(r, int64(length)))
		if err != nil {
			return nil, newTrackIOError(i, "failed to read track data", err)
		}
		if uint32(len(data)) != length {
			return nil, newTrackIOError(i,
				fmt.Sprintf("track chunk truncated: got %d of %d bytes", len(data), length),
				io.ErrUnexpectedEOF)
		}
		tracks = append(tracks, data)
	}
	return tracks, nil
}
