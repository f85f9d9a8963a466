package midi

import "fmt"

// Kind identifies the semantic meaning of a decoded transport message.
type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindControlChange
	KindProgramChange
	KindPitchBend
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	case KindControlChange:
		return "control-change"
	case KindProgramChange:
		return "program-change"
	case KindPitchBend:
		return "pitch-bend"
	}
	return "unknown"
}

// Event is a decoded MIDI transport message. Which fields are meaningful
// depends on Kind: Note/Velocity for note events, Controller/Value for
// control changes, Program for program changes and Bend for pitch bends.
//
// Channel is the raw transport channel from the status byte. Zone is filled
// in by the controller adapter (0 for single-channel devices) and never
// comes from the wire directly.
type Event struct {
	Kind       Kind
	Channel    uint8 // raw transport channel 0-15
	Zone       int
	Note       uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
	Program    int // requested preset id after adapter mapping
	Bend       int // 14-bit value 0-16383
}

func (e Event) String() string {
	switch e.Kind {
	case KindNoteOn, KindNoteOff:
		return fmt.Sprintf("%s ch=%d note=%d vel=%d", e.Kind, e.Channel, e.Note, e.Velocity)
	case KindControlChange:
		return fmt.Sprintf("%s ch=%d cc=%d val=%d", e.Kind, e.Channel, e.Controller, e.Value)
	case KindProgramChange:
		return fmt.Sprintf("%s ch=%d program=%d", e.Kind, e.Channel, e.Program)
	case KindPitchBend:
		return fmt.Sprintf("%s ch=%d bend=%d", e.Kind, e.Channel, e.Bend)
	}
	return fmt.Sprintf("event kind=%d", int(e.Kind))
}
