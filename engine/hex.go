package engine

import (
	"log/slog"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

// hexAdapter handles a hexaphonic guitar pickup transmitting in MIDI Guitar
// mode: one transport channel per string, channels 0-5 low E to high E.
// Notes, control changes and pitch bends are all zone-scoped, so each string
// bends and sounds independently at the backend.
type hexAdapter struct {
	baseAdapter
}

func newHexAdapter(d *Device, r *Router, log *slog.Logger) Adapter {
	return &hexAdapter{baseAdapter{device: d, router: r, log: log}}
}

func (a *hexAdapter) Decode(raw []byte) (midi.Event, error) {
	ev, err := midi.Decode(raw)
	if err != nil {
		return midi.Event{}, err
	}

	// The transport channel selects the zone. Pickups occasionally emit
	// global messages on a channel above the string block; those fold to
	// the first zone.
	if ch := int(ev.Channel); ch < HexZones {
		ev.Zone = ch
	} else {
		ev.Zone = 0
	}

	if ev.Kind == midi.KindProgramChange {
		ev.Program = a.mapProgram(ev.Program)
	}
	return ev, nil
}
