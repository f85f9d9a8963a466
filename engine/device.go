package engine

import (
	"sync"
	"time"
)

// DeviceType classifies a physical controller by what its messages mean.
type DeviceType int

const (
	TypeUnknown DeviceType = iota
	TypeKeyboard
	TypeHexaphonic
	TypeFootController
	TypePercussionPad
	TypeGeneric
)

func (t DeviceType) String() string {
	switch t {
	case TypeKeyboard:
		return "keyboard"
	case TypeHexaphonic:
		return "hexaphonic-pickup"
	case TypeFootController:
		return "foot-controller"
	case TypePercussionPad:
		return "percussion-pad"
	case TypeGeneric:
		return "generic"
	}
	return "unknown"
}

// Zones returns how many logical sub-channels the type exposes. A hexaphonic
// pickup carries one zone per string; everything else is single-zone.
func (t DeviceType) Zones() int {
	if t == TypeHexaphonic {
		return HexZones
	}
	return 1
}

// HexZones is the zone count of a hexaphonic pickup (one per guitar string).
const HexZones = 6

// PercussionChannel is reserved for percussion-type devices only.
const PercussionChannel uint8 = 9

// ConnState is a device's connectivity state. There is no externally
// visible intermediate state between the two.
type ConnState int

const (
	StateConnected ConnState = iota
	StateDisconnected
)

func (s ConnState) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Assignment is the output resource block handed to a device by the
// allocator: one channel per zone plus a contiguous preset id range.
type Assignment struct {
	Channels   []uint8 // one per zone; Channels[0] is the base channel
	RangeStart int
	RangeEnd   int // inclusive
}

// Channel returns the device's base output channel.
func (a Assignment) Channel() uint8 {
	if len(a.Channels) == 0 {
		return 0
	}
	return a.Channels[0]
}

// ZoneChannel resolves a zone to its output channel.
func (a Assignment) ZoneChannel(zone int) uint8 {
	if zone >= 0 && zone < len(a.Channels) {
		return a.Channels[zone]
	}
	return a.Channel()
}

// Contains reports whether a preset id lies inside the assigned range.
func (a Assignment) Contains(presetID int) bool {
	return presetID >= a.RangeStart && presetID <= a.RangeEnd
}

// Preset is one named instrument configuration owned by a device. Ids are
// unique per device, not globally. A unified preset applies Program to every
// zone; a per-zone preset looks zones up in ZonePrograms first.
type Preset struct {
	ID           int
	Name         string
	Program      uint8 // 0-127
	Bank         int
	PerZone      bool
	ZonePrograms map[int]uint8
	Icon         string
	Category     string
}

// clone returns a copy that shares no state with the original, so handed-out
// presets cannot edit the live table behind the router's back.
func (p *Preset) clone() Preset {
	out := *p
	if p.ZonePrograms != nil {
		out.ZonePrograms = make(map[int]uint8, len(p.ZonePrograms))
		for zone, prog := range p.ZonePrograms {
			out.ZonePrograms[zone] = prog
		}
	}
	return out
}

// zoneProgram resolves the program for one zone.
func (p *Preset) zoneProgram(zone int) uint8 {
	if p.PerZone {
		if prog, ok := p.ZonePrograms[zone]; ok {
			return prog
		}
	}
	return p.Program
}

// zoneState tracks what one zone is currently doing, for display and for
// note bookkeeping across preset changes.
type zoneState struct {
	Sounding bool
	LastNote uint8
	LastVel  uint8
}

// Device is one physical controller known to the registry. All mutable
// fields are guarded by mu; the registry's coarse lock only covers
// membership and allocation, never per-device state, so note traffic on
// different devices never contends.
type Device struct {
	Name string
	Type DeviceType

	mu           sync.Mutex
	assignment   Assignment
	state        ConnState
	lastSeen     time.Time
	presets      map[int]*Preset
	activePreset int
	zones        []zoneState
	controls     map[uint8]uint8 // last-known CC values

	// indicator is the device's own physical output (LED ring, display),
	// used for best-effort program-change re-broadcast. May be nil.
	indicator interface{ Send([]byte) error }
}

func newDevice(name string, typ DeviceType, a Assignment) *Device {
	return &Device{
		Name:         name,
		Type:         typ,
		assignment:   a,
		state:        StateConnected,
		lastSeen:     time.Now(),
		presets:      make(map[int]*Preset),
		activePreset: a.RangeStart,
		zones:        make([]zoneState, typ.Zones()),
		controls:     make(map[uint8]uint8),
	}
}

// Assignment returns the device's channel/range block.
func (d *Device) Assignment() Assignment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assignment
}

// State returns the connectivity state.
func (d *Device) State() ConnState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// LastSeen returns the time of the last scan that observed the device.
func (d *Device) LastSeen() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeen
}

// ActivePreset returns the id of the currently applied preset.
func (d *Device) ActivePreset() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activePreset
}

// Preset returns a copy of the preset with the given id.
func (d *Device) Preset(id int) (Preset, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.presets[id]
	if !ok {
		return Preset{}, false
	}
	return p.clone(), true
}

// Presets returns copies of all presets in id order.
func (d *Device) Presets() []Preset {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Preset, 0, len(d.presets))
	for id := d.assignment.RangeStart; id <= d.assignment.RangeEnd; id++ {
		if p, ok := d.presets[id]; ok {
			out = append(out, p.clone())
		}
	}
	return out
}

// Control returns the last-known value of a continuous controller.
func (d *Device) Control(cc uint8) (uint8, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.controls[cc]
	return v, ok
}

func (d *Device) markSeen(t time.Time) {
	d.mu.Lock()
	d.lastSeen = t
	d.mu.Unlock()
}

func (d *Device) setState(s ConnState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}
