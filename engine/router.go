package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

// Router is the single path between decoded controller events and the sound
// backend. It owns the per-channel "last selected instrument" cache and is
// the only component allowed to mutate a device's active preset.
//
// Locking: each call locks only the device it operates on, so note traffic
// on different devices never contends. The instrument cache has its own
// mutex, held just long enough to check/issue one select.
type Router struct {
	backend  SoundBackend
	store    Store
	notifier Notifier
	log      *slog.Logger

	selMu   sync.Mutex
	lastSel [numChannels]instrumentSel
}

type instrumentSel struct {
	bank    int
	program uint8
	valid   bool
}

// NewRouter wires the router to its collaborators. notifier and store may
// not be nil; use NopNotifier / NopStore.
func NewRouter(backend SoundBackend, store Store, notifier Notifier, log *slog.Logger) *Router {
	return &Router{
		backend:  backend,
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// Route dispatches one decoded event for a device. Events arriving for a
// disconnected device (a message racing its own teardown) are a no-op.
func (r *Router) Route(d *Device, ev midi.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateConnected {
		return nil
	}

	// Always the device's assigned channel, never the raw transport
	// channel: two controllers that both transmit on channel 0 must not
	// collide at the backend.
	ch := d.assignment.ZoneChannel(ev.Zone)

	switch ev.Kind {
	case midi.KindNoteOn:
		if p := d.presets[d.activePreset]; p != nil {
			if err := r.ensureInstrument(ch, p.Bank, p.zoneProgram(ev.Zone)); err != nil {
				// Note still plays, on whatever program the channel had.
				r.log.Warn("instrument select failed, note keeps previous program",
					"device", d.Name, "channel", ch, "err", err)
			}
		}
		r.backend.NoteOn(ch, ev.Note, ev.Velocity)
		r.setZone(d, ev.Zone, zoneState{Sounding: true, LastNote: ev.Note, LastVel: ev.Velocity})

	case midi.KindNoteOff:
		r.backend.NoteOff(ch, ev.Note)
		r.setZone(d, ev.Zone, zoneState{LastNote: ev.Note})

	case midi.KindControlChange:
		d.controls[ev.Controller] = ev.Value
		r.backend.ControlChange(ch, ev.Controller, ev.Value)

	case midi.KindPitchBend:
		r.backend.PitchBend(ch, ev.Bend)

	case midi.KindProgramChange:
		if !d.assignment.Contains(ev.Program) {
			return fmt.Errorf("preset %d outside range [%d,%d] of %s: %w",
				ev.Program, d.assignment.RangeStart, d.assignment.RangeEnd, d.Name, ErrUnknownPreset)
		}
		return r.changePresetLocked(d, ev.Program)
	}
	return nil
}

// ChangePreset validates and applies a preset, updating the device's active
// preset id only after every zone's instrument select succeeded. On failure
// the zones already selected keep the new sound while the rest keep the old
// one; that window is reported to the caller, never hidden or rolled back.
func (r *Router) ChangePreset(d *Device, presetID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return r.changePresetLocked(d, presetID)
}

func (r *Router) changePresetLocked(d *Device, presetID int) error {
	p := d.presets[presetID]
	if p == nil || !d.assignment.Contains(presetID) {
		return fmt.Errorf("preset %d on %s: %w", presetID, d.Name, ErrUnknownPreset)
	}

	for zone := 0; zone < d.Type.Zones(); zone++ {
		ch := d.assignment.ZoneChannel(zone)
		if err := r.ensureInstrument(ch, p.Bank, p.zoneProgram(zone)); err != nil {
			return fmt.Errorf("preset %d zone %d on %s: %w", presetID, zone, d.Name, err)
		}
	}

	d.activePreset = presetID
	r.notifier.PresetChanged(d.Name, presetID)
	r.rebroadcast(d, p)
	return nil
}

// UpdatePreset live-edits one preset of a device: the table entry is
// replaced, persisted, and, when the edited preset is the active one,
// re-applied immediately so the next note reflects the change.
func (r *Router) UpdatePreset(d *Device, p Preset) error {
	if p.Program > 127 || p.Bank < 0 {
		return fmt.Errorf("program %d bank %d: %w", p.Program, p.Bank, ErrInvalidPreset)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.assignment.Contains(p.ID) {
		return fmt.Errorf("preset %d outside range [%d,%d] of %s: %w",
			p.ID, d.assignment.RangeStart, d.assignment.RangeEnd, d.Name, ErrUnknownPreset)
	}

	stored := p.clone()
	d.presets[p.ID] = &stored
	if err := r.store.SavePreset(d.Name, stored); err != nil {
		r.log.Warn("preset not persisted", "device", d.Name, "preset", p.ID, "err", err)
	}

	if p.ID == d.activePreset {
		return r.changePresetLocked(d, p.ID)
	}
	return nil
}

// ensureInstrument issues a select only when the channel is not already on
// the wanted bank/program. The cache is updated on success only, so a
// failed select retries on the next note.
func (r *Router) ensureInstrument(channel uint8, bank int, program uint8) error {
	r.selMu.Lock()
	defer r.selMu.Unlock()

	cur := r.lastSel[channel]
	if cur.valid && cur.bank == bank && cur.program == program {
		return nil
	}
	if err := r.backend.SelectInstrument(channel, bank, program); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	r.lastSel[channel] = instrumentSel{bank: bank, program: program, valid: true}
	return nil
}

// invalidateChannels forgets the cached selection for a device's channels,
// forcing re-selection on the next note. The registry calls this when a
// device reappears, since the backend may have been restarted meanwhile.
func (r *Router) invalidateChannels(a Assignment) {
	r.selMu.Lock()
	defer r.selMu.Unlock()
	for _, ch := range a.Channels {
		if int(ch) < numChannels {
			r.lastSel[ch] = instrumentSel{}
		}
	}
}

// rebroadcast mirrors a preset activation back to the device's own output
// (LED ring, program display). Best-effort: a failure never touches the
// audio path.
func (r *Router) rebroadcast(d *Device, p *Preset) {
	if d.indicator == nil {
		return
	}
	rel := p.ID - d.assignment.RangeStart
	if err := d.indicator.Send(midi.ProgramChange(0, uint8(rel&0x7F))); err != nil {
		r.log.Debug("indicator rebroadcast failed", "device", d.Name, "err", err)
	}
}

func (r *Router) setZone(d *Device, zone int, s zoneState) {
	if zone >= 0 && zone < len(d.zones) {
		d.zones[zone] = s
	}
}
