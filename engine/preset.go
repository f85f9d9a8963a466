package engine

// Store is the persistence collaborator. Absence of stored state is never an
// error: LoadPresets returns an empty slice and LoadAssignment reports
// found=false, and the caller falls back to type-specific defaults.
type Store interface {
	LoadAssignment(device string) (Assignment, bool, error)
	SaveAssignment(device string, a Assignment) error
	LoadPresets(device string) ([]Preset, error)
	SavePreset(device string, p Preset) error
	RemoveDevice(device string) error
}

// NopStore is the Store used when persistence is disabled. Every device
// starts from defaults on each run.
type NopStore struct{}

func (NopStore) LoadAssignment(string) (Assignment, bool, error) { return Assignment{}, false, nil }
func (NopStore) SaveAssignment(string, Assignment) error         { return nil }
func (NopStore) LoadPresets(string) ([]Preset, error)            { return nil, nil }
func (NopStore) SavePreset(string, Preset) error                 { return nil }
func (NopStore) RemoveDevice(string) error                       { return nil }

// General MIDI programs used by the default preset tables.
const (
	gmPiano       uint8 = 0
	gmEPiano      uint8 = 4
	gmOrgan       uint8 = 16
	gmNylonGuitar uint8 = 24
	gmSteelGuitar uint8 = 25
	gmJazzGuitar  uint8 = 26
	gmCleanGuitar uint8 = 27
	gmOverdrive   uint8 = 29
	gmDistortion  uint8 = 30
	gmBass        uint8 = 33
	gmStrings     uint8 = 48
	gmTrumpet     uint8 = 56
	gmSquareLead  uint8 = 80
)

// percussionBank is where GM sound fonts keep drum kits.
const percussionBank = 128

// DefaultPresets builds the type-specific preset table for a fresh device,
// with ids starting at the device's range start. The table never exceeds
// the assigned range.
func DefaultPresets(typ DeviceType, a Assignment) []Preset {
	base := a.RangeStart
	var out []Preset

	add := func(name string, program uint8, category string) {
		id := base + len(out)
		if id > a.RangeEnd {
			return
		}
		out = append(out, Preset{
			ID:       id,
			Name:     name,
			Program:  program,
			Category: category,
		})
	}

	switch typ {
	case TypeKeyboard:
		// One preset per pad (notes 36-43).
		add("Grand Piano", gmPiano, "keys")
		add("Electric Piano", gmEPiano, "keys")
		add("Drawbar Organ", gmOrgan, "keys")
		add("Strings", gmStrings, "ensemble")
		add("Square Lead", gmSquareLead, "synth")
		add("Trumpet", gmTrumpet, "brass")
		add("Fingered Bass", gmBass, "bass")
		add("Clean Guitar", gmCleanGuitar, "guitar")

	case TypeHexaphonic:
		add("Nylon Guitar", gmNylonGuitar, "guitar")
		if base+1 <= a.RangeEnd {
			// Split preset: the two bass strings drive a bass program,
			// the trebles stay on guitar.
			out = append(out, Preset{
				ID:      base + 1,
				Name:    "Bass + Steel Split",
				Program: gmSteelGuitar,
				PerZone: true,
				ZonePrograms: map[int]uint8{
					0: gmBass,
					1: gmBass,
				},
				Category: "split",
			})
		}
		add("Steel Guitar", gmSteelGuitar, "guitar")
		add("Jazz Guitar", gmJazzGuitar, "guitar")
		add("Clean Electric", gmCleanGuitar, "guitar")
		add("Overdrive", gmOverdrive, "guitar")
		add("Distortion", gmDistortion, "guitar")
		add("Strings", gmStrings, "ensemble")

	case TypeFootController:
		add("Nylon Guitar", gmNylonGuitar, "guitar")
		add("Clean Electric", gmCleanGuitar, "guitar")
		add("Overdrive", gmOverdrive, "guitar")
		add("Distortion", gmDistortion, "guitar")

	case TypePercussionPad:
		out = append(out, Preset{
			ID:       base,
			Name:     "Standard Kit",
			Program:  0,
			Bank:     percussionBank,
			Category: "drums",
		})

	default:
		add("Grand Piano", gmPiano, "keys")
	}

	return out
}
