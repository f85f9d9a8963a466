package engine

import (
	"log/slog"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

// Keyboard front-panel layout: eight knobs on CC 1-8, eight percussion pads
// on notes 36-43. Each pad doubles as a preset selector for the slot at its
// index.
const (
	knobFirstCC uint8 = 1
	knobLastCC  uint8 = 8
	padFirst    uint8 = 36
	padLast     uint8 = 43
)

var knobNames = map[uint8]string{
	1: "modulation",
	2: "breath",
	3: "timbre",
	4: "foot",
	5: "portamento",
	6: "data",
	7: "volume",
	8: "balance",
}

// KnobName returns the control name for a keyboard knob CC, or "" for CCs
// outside the knob block.
func KnobName(cc uint8) string {
	return knobNames[cc]
}

// keyboardAdapter handles a single-channel MIDI keyboard with knobs and
// pads. Zone is always 0.
type keyboardAdapter struct {
	baseAdapter
}

func newKeyboardAdapter(d *Device, r *Router, log *slog.Logger) Adapter {
	return &keyboardAdapter{baseAdapter{device: d, router: r, log: log}}
}

func (a *keyboardAdapter) Decode(raw []byte) (midi.Event, error) {
	ev, err := midi.Decode(raw)
	if err != nil {
		return midi.Event{}, err
	}
	ev.Zone = 0

	switch ev.Kind {
	case midi.KindNoteOn:
		if ev.Note >= padFirst && ev.Note <= padLast {
			// Pad press selects the preset at pad index.
			as := a.device.Assignment()
			return midi.Event{
				Kind:    midi.KindProgramChange,
				Channel: ev.Channel,
				Program: as.RangeStart + int(ev.Note-padFirst),
			}, nil
		}
	case midi.KindNoteOff:
		if ev.Note >= padFirst && ev.Note <= padLast {
			return midi.Event{}, errIgnored
		}
	case midi.KindProgramChange:
		ev.Program = a.mapProgram(ev.Program)
	}
	return ev, nil
}
