package engine

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

// errIgnored marks a well-formed message the adapter deliberately drops
// (pad releases, notes on a foot controller). Distinct from malformed input
// so the receive path can stay quiet about it.
var errIgnored = errors.New("engine: event ignored by adapter")

// Adapter is the per-device-type decode layer between the raw transport and
// the router. Decode turns wire bytes into a semantic event with the zone
// resolved; OnEvent hands the event to the router.
//
// Adding a controller type means one new Adapter implementation and one
// constructor entry in adapterCtors; the router never changes.
type Adapter interface {
	Device() *Device
	Decode(raw []byte) (midi.Event, error)
	OnEvent(ev midi.Event)

	// Suspend stops event forwarding without touching device state; the
	// presence monitor calls it on disconnect. Resume undoes it.
	Suspend()
	Resume()
	Suspended() bool
}

type adapterCtor func(d *Device, r *Router, log *slog.Logger) Adapter

var adapterCtors = map[DeviceType]adapterCtor{
	TypeKeyboard:       newKeyboardAdapter,
	TypeHexaphonic:     newHexAdapter,
	TypeFootController: newFootAdapter,
	TypePercussionPad:  newBasicAdapter,
	TypeGeneric:        newBasicAdapter,
	TypeUnknown:        newBasicAdapter,
}

// NewAdapter builds the adapter matching the device's type.
func NewAdapter(d *Device, r *Router, log *slog.Logger) Adapter {
	ctor, ok := adapterCtors[d.Type]
	if !ok {
		ctor = newBasicAdapter
	}
	return ctor(d, r, log)
}

type baseAdapter struct {
	device    *Device
	router    *Router
	log       *slog.Logger
	suspended atomic.Bool
}

func (a *baseAdapter) Device() *Device { return a.device }
func (a *baseAdapter) Suspend()        { a.suspended.Store(true) }
func (a *baseAdapter) Resume()         { a.suspended.Store(false) }
func (a *baseAdapter) Suspended() bool { return a.suspended.Load() }

func (a *baseAdapter) OnEvent(ev midi.Event) {
	if err := a.router.Route(a.device, ev); err != nil {
		a.log.Warn("event rejected", "device", a.device.Name, "event", ev.String(), "err", err)
	}
}

// mapProgram turns a raw wire program number into a requested preset id.
// Values below the device's block size address the range relatively (pedal 3
// on a device with range [8,15] requests preset 11); larger values are taken
// as global ids and left for validation to judge.
func (a *baseAdapter) mapProgram(raw int) int {
	as := a.device.Assignment()
	if size := as.RangeEnd - as.RangeStart + 1; raw < size {
		return as.RangeStart + raw
	}
	return raw
}

// basicAdapter serves percussion pads, generic and unknown devices: a
// single zone, everything forwarded as-is.
type basicAdapter struct {
	baseAdapter
}

func newBasicAdapter(d *Device, r *Router, log *slog.Logger) Adapter {
	return &basicAdapter{baseAdapter{device: d, router: r, log: log}}
}

func (a *basicAdapter) Decode(raw []byte) (midi.Event, error) {
	ev, err := midi.Decode(raw)
	if err != nil {
		return midi.Event{}, err
	}
	ev.Zone = 0
	if ev.Kind == midi.KindProgramChange {
		ev.Program = a.mapProgram(ev.Program)
	}
	return ev, nil
}
