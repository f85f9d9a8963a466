package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend records every command and can fail instrument selects on
// chosen channels.
type backendCall struct {
	op      string // "select", "noteOn", "noteOff", "cc", "bend"
	channel uint8
	a, b    int
}

type fakeBackend struct {
	mu         sync.Mutex
	calls      []backendCall
	failSelect map[uint8]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failSelect: make(map[uint8]bool)}
}

func (f *fakeBackend) record(c backendCall) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeBackend) SelectInstrument(channel uint8, bank int, program uint8) error {
	f.mu.Lock()
	fail := f.failSelect[channel]
	f.mu.Unlock()
	if fail {
		return errors.New("synth not responding")
	}
	f.record(backendCall{op: "select", channel: channel, a: bank, b: int(program)})
	return nil
}

func (f *fakeBackend) NoteOn(channel, note, velocity uint8) {
	f.record(backendCall{op: "noteOn", channel: channel, a: int(note), b: int(velocity)})
}

func (f *fakeBackend) NoteOff(channel, note uint8) {
	f.record(backendCall{op: "noteOff", channel: channel, a: int(note)})
}

func (f *fakeBackend) ControlChange(channel, controller, value uint8) {
	f.record(backendCall{op: "cc", channel: channel, a: int(controller), b: int(value)})
}

func (f *fakeBackend) PitchBend(channel uint8, value int) {
	f.record(backendCall{op: "bend", channel: channel, a: value})
}

func (f *fakeBackend) ops(op string) []backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backendCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) selectsOn(channel uint8) int {
	n := 0
	for _, c := range f.ops("select") {
		if c.channel == channel {
			n++
		}
	}
	return n
}

func (f *fakeBackend) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu          sync.Mutex
	assignments map[string]Assignment
	presets     map[string]map[int]Preset
	removed     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assignments: make(map[string]Assignment),
		presets:     make(map[string]map[int]Preset),
	}
}

func (s *fakeStore) LoadAssignment(device string) (Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[device]
	return a, ok, nil
}

func (s *fakeStore) SaveAssignment(device string, a Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[device] = a
	return nil
}

func (s *fakeStore) LoadPresets(device string) ([]Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Preset
	for _, p := range s.presets[device] {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) SavePreset(device string, p Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presets[device] == nil {
		s.presets[device] = make(map[int]Preset)
	}
	s.presets[device][p.ID] = p
	return nil
}

func (s *fakeStore) RemoveDevice(device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, device)
	delete(s.presets, device)
	s.removed = append(s.removed, device)
	return nil
}

// recNotifier records events.
type presetEvent struct {
	device string
	preset int
}

type recNotifier struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
	presets      []presetEvent
}

func (n *recNotifier) DeviceConnected(device string, _ DeviceType) {
	n.mu.Lock()
	n.connected = append(n.connected, device)
	n.mu.Unlock()
}

func (n *recNotifier) DeviceDisconnected(device string) {
	n.mu.Lock()
	n.disconnected = append(n.disconnected, device)
	n.mu.Unlock()
}

func (n *recNotifier) PresetChanged(device string, presetID int) {
	n.mu.Lock()
	n.presets = append(n.presets, presetEvent{device: device, preset: presetID})
	n.mu.Unlock()
}

func (n *recNotifier) lastPreset() (presetEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.presets) == 0 {
		return presetEvent{}, false
	}
	return n.presets[len(n.presets)-1], true
}

// fakeTransport simulates endpoint hot-plug and raw message injection.
type fakeTransport struct {
	mu        sync.Mutex
	eps       []midi.EndpointDescriptor
	receivers map[string]func([]byte)
	sent      map[string][][]byte
	inputErr  map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		receivers: make(map[string]func([]byte)),
		sent:      make(map[string][][]byte),
		inputErr:  make(map[string]error),
	}
}

func (t *fakeTransport) setEndpoints(eps ...midi.EndpointDescriptor) {
	t.mu.Lock()
	t.eps = eps
	t.mu.Unlock()
}

func (t *fakeTransport) inject(id string, raw []byte) {
	t.mu.Lock()
	recv := t.receivers[id]
	t.mu.Unlock()
	if recv != nil {
		recv(raw)
	}
}

func (t *fakeTransport) Endpoints() ([]midi.EndpointDescriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]midi.EndpointDescriptor{}, t.eps...), nil
}

func (t *fakeTransport) OpenInput(id string, recv func([]byte)) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.inputErr[id]; err != nil {
		return nil, err
	}
	t.receivers[id] = recv
	return func() {
		t.mu.Lock()
		delete(t.receivers, id)
		t.mu.Unlock()
	}, nil
}

func (t *fakeTransport) OpenOutput(id string) (midi.Output, error) {
	return &fakeOutput{transport: t, id: id}, nil
}

func (t *fakeTransport) Close() error { return nil }

type fakeOutput struct {
	transport *fakeTransport
	id        string
}

func (o *fakeOutput) Send(raw []byte) error {
	o.transport.mu.Lock()
	o.transport.sent[o.id] = append(o.transport.sent[o.id], raw)
	o.transport.mu.Unlock()
	return nil
}

func (o *fakeOutput) Close() error { return nil }

// testDevice builds a device with default presets installed, outside the
// registry, for router and adapter tests.
func testDevice(typ DeviceType, as Assignment) *Device {
	d := newDevice(fmt.Sprintf("test %s", typ), typ, as)
	for _, p := range DefaultPresets(typ, as) {
		pp := p
		d.presets[p.ID] = &pp
	}
	for id := as.RangeStart; id <= as.RangeEnd; id++ {
		if _, ok := d.presets[id]; ok {
			d.activePreset = id
			break
		}
	}
	return d
}

func singleChannel(ch uint8, start, end int) Assignment {
	return Assignment{Channels: []uint8{ch}, RangeStart: start, RangeEnd: end}
}

func hexChannels(start, end int) Assignment {
	return Assignment{Channels: []uint8{0, 1, 2, 3, 4, 5}, RangeStart: start, RangeEnd: end}
}
