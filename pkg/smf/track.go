package smf

import "bytes"

const (
	statusMeta  = 0xFF
	statusSysEx = 0xF0
	sysExEnd    = 0xF7

	metaTrackName  = 0x03
	metaTempo      = 0x51
	metaEndOfTrack = 0x2F
)

// eventKind tags the variants of rawEvent.
type eventKind uint8

const (
	kindMIDI eventKind = iota
	kindTempo
	kindSysEx
)

// rawEvent is a decoded track event still stamped in ticks.
// Only the fields belonging to its kind are meaningful.
type rawEvent struct {
	tick  uint64
	track uint16
	kind  eventKind

	status byte
	data1  byte
	data2  byte

	tempo uint32 // kindTempo: microseconds per quarter note
	sysex []byte // kindSysEx: payload including the trailing 0xF7
}

// trackDecoder walks the event stream of one MTrk chunk.
type trackDecoder struct {
	data  []byte
	pos   int
	track uint16
	tick  uint64

	lastStatus    byte
	hasLastStatus bool

	events []rawEvent
	name   []byte // payload of the first track name meta event
}

// decodeTrack turns the raw bytes of one track chunk into tick-stamped events.
// It returns the events and the tick at which decoding stopped, which is either
// the end of the buffer or an end-of-track meta event.
//
// Running out of bytes in the middle of a delta time, a meta event or a channel
// message ends the track without error. The only content error is running
// status appearing before any explicit status byte.
func decodeTrack(data []byte, track uint16) ([]rawEvent, uint64, error) {
	d := newTrackDecoder(data, track)
	if err := d.run(); err != nil {
		return nil, 0, err
	}
	return d.events, d.tick, nil
}

func newTrackDecoder(data []byte, track uint16) *trackDecoder {
	return &trackDecoder{
		data:   data,
		track:  track,
		events: make([]rawEvent, 0, len(data)/3),
	}
}

func (d *trackDecoder) remaining() int {
	return len(d.data) - d.pos
}

// readVarLen reads a variable-length quantity, stopping quietly at the end of
// the buffer.
func (d *trackDecoder) readVarLen() uint32 {
	var value uint32
	for d.pos < len(d.data) {
		b := d.data[d.pos]
		d.pos++
		value = value<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	return value
}

func (d *trackDecoder) emit(e rawEvent) {
	e.tick = d.tick
	e.track = d.track
	d.events = append(d.events, e)
}

func (d *trackDecoder) run() error {
	for d.pos < len(d.data) {
		d.tick += uint64(d.readVarLen())
		if d.pos >= len(d.data) {
			return nil
		}

		status := d.data[d.pos]
		if status&0x80 != 0 {
			d.pos++
			d.lastStatus = status
			d.hasLastStatus = true
		} else if d.hasLastStatus {
			status = d.lastStatus
		} else {
			return newTrackFormatError(int(d.track), "running status used before any explicit status")
		}

		switch {
		case status == statusMeta:
			if !d.meta() {
				return nil
			}
		case status == statusSysEx:
			d.sysEx()
		case status&0xF0 != 0xF0:
			if !d.channel(status) {
				return nil
			}
		default:
			// System common / real-time byte. Its true length is not known
			// here, so skip a single byte and carry on.
			if d.pos < len(d.data) {
				d.pos++
			}
		}
	}
	return nil
}

// meta consumes a meta event. It returns false when decoding of the track
// should stop, either at end-of-track or on a truncated payload.
func (d *trackDecoder) meta() bool {
	if d.pos >= len(d.data) {
		return false
	}
	metaType := d.data[d.pos]
	d.pos++

	length := uint64(d.readVarLen())
	if length > uint64(d.remaining()) {
		return false
	}
	n := int(length)

	switch {
	case metaType == metaTempo && n == 3:
		p := d.data[d.pos:]
		d.emit(rawEvent{
			kind:  kindTempo,
			tempo: uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2]),
		})
	case metaType == metaEndOfTrack && n == 0:
		return false
	case metaType == metaTrackName && d.name == nil:
		d.name = bytes.Clone(d.data[d.pos : d.pos+n])
	}
	d.pos += n
	return true
}

// sysEx consumes bytes up to and including the first 0xF7, or to the end of
// the buffer when the terminator is missing.
func (d *trackDecoder) sysEx() {
	start := d.pos
	for d.pos < len(d.data) {
		b := d.data[d.pos]
		d.pos++
		if b == sysExEnd {
			break
		}
	}
	payload := make([]byte, d.pos-start)
	copy(payload, d.data[start:d.pos])
	d.emit(rawEvent{kind: kindSysEx, sysex: payload})
}

// channel consumes the data bytes of a channel message. Program change (0xC_)
// and channel pressure (0xD_) carry one data byte, everything else two.
func (d *trackDecoder) channel(status byte) bool {
	if d.pos >= len(d.data) {
		return false
	}
	data1 := d.data[d.pos]
	d.pos++

	var data2 byte
	if hi := status & 0xF0; hi != 0xC0 && hi != 0xD0 {
		if d.pos >= len(d.data) {
			return false
		}
		data2 = d.data[d.pos]
		d.pos++
	}

	d.emit(rawEvent{kind: kindMIDI, status: status, data1: data1, data2: data2})
	return true
}
