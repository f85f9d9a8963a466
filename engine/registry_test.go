package engine

import (
	"testing"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

func newTestRegistry(transport midi.Transport, backend SoundBackend, store Store) (*Registry, *recNotifier) {
	n := &recNotifier{}
	router := NewRouter(backend, store, n, testLogger())
	reg := NewRegistry(RegistryConfig{
		Transport:  transport,
		Classifier: NewClassifier(nil, nil),
		Allocator:  NewAllocator(DefaultBlockSize),
		Router:     router,
		Store:      store,
		Notifier:   n,
		Log:        testLogger(),
	})
	return reg, n
}

func in(id string) midi.EndpointDescriptor {
	return midi.EndpointDescriptor{ID: id, Input: true}
}

func inout(id string) midi.EndpointDescriptor {
	return midi.EndpointDescriptor{ID: id, Input: true, Output: true}
}

// burstTransport delivers a message the instant an input opens, like a
// controller already mid-performance when it is plugged in.
type burstTransport struct {
	*fakeTransport
	burst map[string][]byte
}

func (t *burstTransport) OpenInput(id string, recv func([]byte)) (func(), error) {
	stop, err := t.fakeTransport.OpenInput(id, recv)
	if err != nil {
		return nil, err
	}
	if raw, ok := t.burst[id]; ok {
		recv(raw)
	}
	return stop, nil
}

func TestScan_RegistersAndClassifies(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	reg, n := newTestRegistry(transport, backend, newFakeStore())

	transport.setEndpoints(
		in("Fishman TriplePlay MIDI 1"),
		in("Midi Through Port-0"),
		in("Launchkey Mini MK3 MIDI"),
	)
	reg.Scan()

	devices := reg.Devices()
	if len(devices) != 2 {
		t.Fatalf("registered %d devices, want 2 (through port excluded)", len(devices))
	}

	hex, ok := reg.Device("Fishman TriplePlay MIDI 1")
	if !ok || hex.Type != TypeHexaphonic {
		t.Fatalf("hexaphonic device = %+v (ok=%v)", hex, ok)
	}
	if len(hex.Assignment().Channels) != HexZones {
		t.Errorf("hexaphonic channels = %d, want %d", len(hex.Assignment().Channels), HexZones)
	}

	kb, ok := reg.Device("Launchkey Mini MK3 MIDI")
	if !ok || kb.Type != TypeKeyboard {
		t.Fatalf("keyboard device = %+v (ok=%v)", kb, ok)
	}

	// Disjoint resources across the two.
	for _, ch := range hex.Assignment().Channels {
		if ch == kb.Assignment().Channel() {
			t.Errorf("channel %d assigned to both devices", ch)
		}
	}
	if hex.Assignment().RangeEnd >= kb.Assignment().RangeStart && kb.Assignment().RangeEnd >= hex.Assignment().RangeStart {
		t.Error("preset ranges overlap")
	}

	n.mu.Lock()
	connected := len(n.connected)
	n.mu.Unlock()
	if connected != 2 {
		t.Errorf("DeviceConnected notifications = %d, want 2", connected)
	}

	// Registration applied each device's initial preset.
	if len(backend.ops("select")) == 0 {
		t.Error("no instrument selects issued at registration")
	}
}

func TestScan_EndToEndNoteFlow(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	reg, _ := newTestRegistry(transport, backend, newFakeStore())

	transport.setEndpoints(in("Fishman TriplePlay MIDI 1"))
	reg.Scan()
	backend.reset()

	d, _ := reg.Device("Fishman TriplePlay MIDI 1")
	zoneCh := d.Assignment().ZoneChannel(3)

	// String 4 (transport channel 3), note 60, velocity 100.
	transport.inject("Fishman TriplePlay MIDI 1", []byte{0x93, 60, 100})

	// The active preset was applied at registration, so the cache
	// suppresses any further select.
	if n := backend.selectsOn(zoneCh); n > 1 {
		t.Errorf("selects on channel %d = %d, want at most 1", zoneCh, n)
	}
	notes := backend.ops("noteOn")
	if len(notes) != 1 || notes[0].channel != zoneCh || notes[0].a != 60 || notes[0].b != 100 {
		t.Fatalf("noteOn = %+v, want channel %d note 60 vel 100", notes, zoneCh)
	}
}

func TestScan_DisconnectIsDebounced(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	reg, n := newTestRegistry(transport, backend, newFakeStore())

	transport.setEndpoints(in("Launchkey Mini MK3 MIDI"))
	reg.Scan()
	d, _ := reg.Device("Launchkey Mini MK3 MIDI")

	// One scan with the endpoint missing: still connected.
	transport.setEndpoints()
	reg.Scan()
	if got := d.State(); got != StateConnected {
		t.Fatalf("state after one missed scan = %s, want connected", got)
	}

	// Second consecutive miss tears it down.
	reg.Scan()
	if got := d.State(); got != StateDisconnected {
		t.Fatalf("state after two missed scans = %s, want disconnected", got)
	}
	n.mu.Lock()
	disconnected := len(n.disconnected)
	n.mu.Unlock()
	if disconnected != 1 {
		t.Errorf("DeviceDisconnected notifications = %d, want 1", disconnected)
	}

	// A message racing the teardown is a no-op.
	backend.reset()
	transport.inject("Launchkey Mini MK3 MIDI", []byte{0x90, 60, 100})
	if len(backend.ops("noteOn")) != 0 {
		t.Error("backend received a note from a torn-down device")
	}
}

func TestScan_ReconnectRestoresEverything(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	reg, _ := newTestRegistry(transport, backend, newFakeStore())

	transport.setEndpoints(in("Launchkey Mini MK3 MIDI"))
	reg.Scan()
	d, _ := reg.Device("Launchkey Mini MK3 MIDI")
	before := d.Assignment()

	if err := reg.ChangePreset("Launchkey Mini MK3 MIDI", before.RangeStart+4); err != nil {
		t.Fatalf("ChangePreset error = %v", err)
	}

	transport.setEndpoints()
	reg.Scan()
	reg.Scan()
	if d.State() != StateDisconnected {
		t.Fatal("device did not disconnect")
	}

	backend.reset()
	transport.setEndpoints(in("Launchkey Mini MK3 MIDI"))
	reg.Scan()

	if d.State() != StateConnected {
		t.Fatal("device did not reconnect")
	}
	after := d.Assignment()
	if after.Channel() != before.Channel() || after.RangeStart != before.RangeStart || after.RangeEnd != before.RangeEnd {
		t.Errorf("assignment changed across reconnect: %+v -> %+v", before, after)
	}
	if got := d.ActivePreset(); got != before.RangeStart+4 {
		t.Errorf("ActivePreset() = %d after reconnect, want %d", got, before.RangeStart+4)
	}

	// The instrument select was re-issued so the backend channel state
	// matches before any note arrives.
	if n := backend.selectsOn(after.Channel()); n != 1 {
		t.Errorf("selects on reconnect = %d, want 1", n)
	}

	// Same registry entry, not a second device.
	if got := len(reg.Devices()); got != 1 {
		t.Errorf("device count after reconnect = %d, want 1", got)
	}
}

func TestScan_RestoresPersistedAssignment(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	store := newFakeStore()
	stored := Assignment{Channels: []uint8{12}, RangeStart: 40, RangeEnd: 47}
	store.assignments["Launchkey Mini MK3 MIDI"] = stored

	reg, _ := newTestRegistry(transport, backend, store)
	transport.setEndpoints(in("Launchkey Mini MK3 MIDI"), in("Akai MPK Mini"))
	reg.Scan()

	d, ok := reg.Device("Launchkey Mini MK3 MIDI")
	if !ok {
		t.Fatal("device not registered")
	}
	if got := d.Assignment(); got.Channel() != 12 || got.RangeStart != 40 {
		t.Errorf("assignment = %+v, want restored channel 12 range [40,47]", got)
	}

	// The other device must not collide with the restored block.
	other, _ := reg.Device("Akai MPK Mini")
	if other.Assignment().Channel() == 12 {
		t.Error("fresh device reused the restored channel")
	}
	if other.Assignment().RangeStart <= 47 && other.Assignment().RangeEnd >= 40 {
		t.Errorf("fresh range %+v overlaps restored [40,47]", other.Assignment())
	}
}

func TestScan_IndicatorReadyBeforeInputDelivers(t *testing.T) {
	inner := newFakeTransport()
	transport := &burstTransport{
		fakeTransport: inner,
		// A program change is already in flight when the listener opens;
		// it must hit a fully wired device, indicator included.
		burst: map[string][]byte{"Launchkey Mini MK3 MIDI": {0xC0, 3}},
	}
	backend := newFakeBackend()
	reg, _ := newTestRegistry(transport, backend, newFakeStore())

	transport.setEndpoints(inout("Launchkey Mini MK3 MIDI"))
	reg.Scan()

	d, ok := reg.Device("Launchkey Mini MK3 MIDI")
	if !ok {
		t.Fatal("device not registered")
	}
	want := d.Assignment().RangeStart + 3
	if got := d.ActivePreset(); got != want {
		t.Errorf("ActivePreset() = %d, want %d from the in-flight program change", got, want)
	}

	inner.mu.Lock()
	sent := inner.sent["Launchkey Mini MK3 MIDI"]
	inner.mu.Unlock()
	if len(sent) == 0 {
		t.Fatal("no rebroadcast reached the device's own output")
	}
	last := sent[len(sent)-1]
	if len(last) != 2 || last[0] != 0xC0 || last[1] != 3 {
		t.Errorf("rebroadcast = % X, want C0 03", last)
	}
}

func TestScan_CorruptStoredAssignmentReplaced(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	store := newFakeStore()
	// A channel past 15 would index outside the per-channel program cache.
	store.assignments["Launchkey Mini MK3 MIDI"] = Assignment{
		Channels: []uint8{99}, RangeStart: 40, RangeEnd: 47,
	}

	reg, _ := newTestRegistry(transport, backend, store)
	transport.setEndpoints(in("Launchkey Mini MK3 MIDI"))
	reg.Scan()

	d, ok := reg.Device("Launchkey Mini MK3 MIDI")
	if !ok {
		t.Fatal("device not registered")
	}
	as := d.Assignment()
	if len(as.Channels) != 1 || as.Channels[0] >= 16 {
		t.Fatalf("assignment = %+v, want a fresh in-range channel", as)
	}

	// The replacement is persisted over the corrupt record.
	saved, found, _ := store.LoadAssignment("Launchkey Mini MK3 MIDI")
	if !found || saved.Channel() >= 16 {
		t.Errorf("stored assignment = %+v (found=%v), want the fresh one", saved, found)
	}

	// First note must route, not panic.
	transport.inject("Launchkey Mini MK3 MIDI", []byte{0x90, 60, 100})
	if n := len(backend.ops("noteOn")); n != 1 {
		t.Errorf("noteOn calls = %d, want 1", n)
	}
}

func TestRemove_IsTheOnlyDestructivePath(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	store := newFakeStore()
	reg, _ := newTestRegistry(transport, backend, store)

	transport.setEndpoints(in("Launchkey Mini MK3 MIDI"))
	reg.Scan()

	if err := reg.Remove("Launchkey Mini MK3 MIDI"); err != nil {
		t.Fatalf("Remove error = %v", err)
	}
	if _, ok := reg.Device("Launchkey Mini MK3 MIDI"); ok {
		t.Error("device still present after Remove")
	}
	store.mu.Lock()
	removed := len(store.removed)
	store.mu.Unlock()
	if removed != 1 {
		t.Errorf("store removals = %d, want 1", removed)
	}

	if err := reg.Remove("never seen"); err == nil {
		t.Error("Remove of unknown device returned nil")
	}
}

func TestScan_MalformedMessagesDropped(t *testing.T) {
	transport := newFakeTransport()
	backend := newFakeBackend()
	reg, _ := newTestRegistry(transport, backend, newFakeStore())

	transport.setEndpoints(in("Launchkey Mini MK3 MIDI"))
	reg.Scan()
	backend.reset()

	transport.inject("Launchkey Mini MK3 MIDI", []byte{0x90})       // truncated
	transport.inject("Launchkey Mini MK3 MIDI", []byte{0xF8})       // realtime
	transport.inject("Launchkey Mini MK3 MIDI", []byte{0xA0, 1, 2}) // aftertouch

	if got := len(backend.ops("noteOn")) + len(backend.ops("cc")); got != 0 {
		t.Errorf("backend calls from malformed input = %d, want 0", got)
	}
}
