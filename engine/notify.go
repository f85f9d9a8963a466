package engine

// Notifier receives lifecycle events for a UI layer or other observers.
// Delivery is best-effort everywhere: implementations must not block the
// audio path, and a failing sink is never an error for the caller.
type Notifier interface {
	DeviceConnected(device string, typ DeviceType)
	DeviceDisconnected(device string)
	PresetChanged(device string, presetID int)
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) DeviceConnected(string, DeviceType) {}
func (NopNotifier) DeviceDisconnected(string)          {}
func (NopNotifier) PresetChanged(string, int)          {}

// MultiNotifier fans events out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) DeviceConnected(device string, typ DeviceType) {
	for _, n := range m {
		n.DeviceConnected(device, typ)
	}
}

func (m MultiNotifier) DeviceDisconnected(device string) {
	for _, n := range m {
		n.DeviceDisconnected(device)
	}
}

func (m MultiNotifier) PresetChanged(device string, presetID int) {
	for _, n := range m {
		n.PresetChanged(device, presetID)
	}
}
