package engine

import (
	"log/slog"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

// footAdapter handles program-change-only pedalboards. Notes and control
// changes from these units are switch chatter and are ignored entirely; a
// program change selects the preset at the pedal's number.
type footAdapter struct {
	baseAdapter
}

func newFootAdapter(d *Device, r *Router, log *slog.Logger) Adapter {
	return &footAdapter{baseAdapter{device: d, router: r, log: log}}
}

func (a *footAdapter) Decode(raw []byte) (midi.Event, error) {
	ev, err := midi.Decode(raw)
	if err != nil {
		return midi.Event{}, err
	}
	if ev.Kind != midi.KindProgramChange {
		return midi.Event{}, errIgnored
	}
	ev.Zone = 0
	ev.Program = a.mapProgram(ev.Program)
	return ev, nil
}
