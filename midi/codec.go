package midi

import "errors"

// MIDI status nibbles (high nibble of byte 0).
const (
	statusNoteOff       = 0x8
	statusNoteOn        = 0x9
	statusControlChange = 0xB
	statusProgramChange = 0xC
	statusPitchBend     = 0xE
)

// Bank select controller numbers.
const (
	CCBankMSB uint8 = 0x00
	CCBankLSB uint8 = 0x20
)

var (
	// ErrTruncated is returned for messages shorter than the minimum
	// length for their status byte. Callers drop these silently.
	ErrTruncated = errors.New("midi: truncated message")

	// ErrUnknownStatus is returned for status nibbles this router does
	// not handle (sysex, aftertouch, realtime).
	ErrUnknownStatus = errors.New("midi: unrecognised status byte")
)

// Decode parses a 2-3 byte channel voice message into an Event.
//
// A Note On with velocity 0 is normalised to a Note Off before the event is
// returned, so downstream code never sees the running-status convention.
func Decode(raw []byte) (Event, error) {
	if len(raw) < 2 {
		return Event{}, ErrTruncated
	}

	status := raw[0] >> 4
	ev := Event{Channel: raw[0] & 0x0F}

	switch status {
	case statusNoteOff:
		if len(raw) < 3 {
			return Event{}, ErrTruncated
		}
		ev.Kind = KindNoteOff
		ev.Note = raw[1] & 0x7F
		ev.Velocity = raw[2] & 0x7F

	case statusNoteOn:
		if len(raw) < 3 {
			return Event{}, ErrTruncated
		}
		ev.Note = raw[1] & 0x7F
		ev.Velocity = raw[2] & 0x7F
		if ev.Velocity == 0 {
			ev.Kind = KindNoteOff
		} else {
			ev.Kind = KindNoteOn
		}

	case statusControlChange:
		if len(raw) < 3 {
			return Event{}, ErrTruncated
		}
		ev.Kind = KindControlChange
		ev.Controller = raw[1] & 0x7F
		ev.Value = raw[2] & 0x7F

	case statusProgramChange:
		ev.Kind = KindProgramChange
		ev.Program = int(raw[1] & 0x7F)

	case statusPitchBend:
		if len(raw) < 3 {
			return Event{}, ErrTruncated
		}
		ev.Kind = KindPitchBend
		ev.Bend = int(raw[2]&0x7F)<<7 | int(raw[1]&0x7F)

	default:
		return Event{}, ErrUnknownStatus
	}

	return ev, nil
}

// NoteOn builds the wire form of a Note On message.
func NoteOn(channel, note, velocity uint8) []byte {
	return []byte{statusNoteOn<<4 | channel&0x0F, note & 0x7F, velocity & 0x7F}
}

// NoteOff builds the wire form of a Note Off message.
func NoteOff(channel, note uint8) []byte {
	return []byte{statusNoteOff<<4 | channel&0x0F, note & 0x7F, 0}
}

// ControlChange builds the wire form of a Control Change message.
func ControlChange(channel, controller, value uint8) []byte {
	return []byte{statusControlChange<<4 | channel&0x0F, controller & 0x7F, value & 0x7F}
}

// ProgramChange builds the wire form of a Program Change message.
func ProgramChange(channel, program uint8) []byte {
	return []byte{statusProgramChange<<4 | channel&0x0F, program & 0x7F}
}

// PitchBend builds the wire form of a Pitch Bend message from a 14-bit value.
func PitchBend(channel uint8, value int) []byte {
	if value < 0 {
		value = 0
	}
	if value > 0x3FFF {
		value = 0x3FFF
	}
	return []byte{statusPitchBend<<4 | channel&0x0F, uint8(value & 0x7F), uint8(value >> 7)}
}
