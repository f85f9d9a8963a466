package engine

import "errors"

// Domain errors for the routing core. Use errors.Is() to check for these in
// calling code; wrapped variants carry device/zone context.
var (
	// ErrUnknownPreset is returned when a requested preset id is outside
	// the device's range or has no entry in its preset table.
	ErrUnknownPreset = errors.New("engine: unknown preset")

	// ErrChannelSpaceExhausted is returned at allocation time when no
	// output channels remain for the device type.
	ErrChannelSpaceExhausted = errors.New("engine: channel space exhausted")

	// ErrBackendUnavailable wraps a failed instrument-select call. Preset
	// state is left unchanged when this is returned.
	ErrBackendUnavailable = errors.New("engine: sound backend unavailable")

	// ErrUnknownDevice is returned for operations naming a device the
	// registry has never seen.
	ErrUnknownDevice = errors.New("engine: unknown device")

	// ErrInvalidPreset is returned when a preset edit carries an id or
	// bank outside the valid space.
	ErrInvalidPreset = errors.New("engine: invalid preset")
)
