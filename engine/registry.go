package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

// DefaultScanInterval is how often the presence monitor re-enumerates
// endpoints.
const DefaultScanInterval = 4 * time.Second

// missedScansBeforeDrop debounces reconnection storms: a device must be
// absent for this many consecutive scans before it is torn down, so one
// flaky enumeration after a hub power-cycle never thrashes adapters.
const missedScansBeforeDrop = 2

// Registry owns the device table and runs the presence scan loop. It is the
// only component that creates, suspends or removes devices; per-event state
// lives behind each device's own lock and flows through the router.
type Registry struct {
	transport    midi.Transport
	classifier   *Classifier
	alloc        *Allocator
	router       *Router
	store        Store
	notifier     Notifier
	log          *slog.Logger
	scanInterval time.Duration

	mu       sync.Mutex
	devices  map[string]*Device
	adapters map[string]Adapter
	stops    map[string]func()
	outputs  map[string]midi.Output
	missed   map[string]int
}

// RegistryConfig bundles the registry's collaborators.
type RegistryConfig struct {
	Transport    midi.Transport
	Classifier   *Classifier
	Allocator    *Allocator
	Router       *Router
	Store        Store
	Notifier     Notifier
	Log          *slog.Logger
	ScanInterval time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Store == nil {
		cfg.Store = NopStore{}
	}
	return &Registry{
		transport:    cfg.Transport,
		classifier:   cfg.Classifier,
		alloc:        cfg.Allocator,
		router:       cfg.Router,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		log:          cfg.Log,
		scanInterval: cfg.ScanInterval,
		devices:      make(map[string]*Device),
		adapters:     make(map[string]Adapter),
		stops:        make(map[string]func()),
		outputs:      make(map[string]midi.Output),
		missed:       make(map[string]int),
	}
}

// Run executes the scan loop until the context is cancelled (blocking - run
// in a goroutine). On return all input listeners are stopped.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.scanInterval)
	defer ticker.Stop()

	r.Scan()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case <-ticker.C:
			r.Scan()
		}
	}
}

// Scan diffs the current endpoint set against the known device table,
// registering newcomers, reconnecting returners and debouncing
// disappearances. Safe to call directly; the loop in Run does exactly this.
func (r *Registry) Scan() {
	eps, err := r.transport.Endpoints()
	if err != nil {
		r.log.Error("endpoint enumeration failed", "err", err)
		return
	}

	now := time.Now()
	seen := make(map[string]midi.EndpointDescriptor)
	for _, ep := range eps {
		if !ep.Input || r.classifier.Excluded(ep.ID) {
			continue
		}
		seen[ep.ID] = ep
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ep := range seen {
		d, known := r.devices[id]
		if !known {
			r.registerLocked(id, ep, now)
			continue
		}
		r.missed[id] = 0
		d.markSeen(now)
		if d.State() == StateDisconnected {
			r.reconnectLocked(d, ep)
		}
	}

	for id, d := range r.devices {
		if _, present := seen[id]; present || d.State() != StateConnected {
			continue
		}
		r.missed[id]++
		if r.missed[id] >= missedScansBeforeDrop {
			r.disconnectLocked(d)
		}
	}
}

// Devices returns a snapshot of all known devices, connected or not, in
// name order.
func (r *Registry) Devices() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Device looks a device up by identifier.
func (r *Registry) Device(name string) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[name]
	return d, ok
}

// ChangePreset switches a device's active preset by name.
func (r *Registry) ChangePreset(device string, presetID int) error {
	d, ok := r.Device(device)
	if !ok {
		return fmt.Errorf("%q: %w", device, ErrUnknownDevice)
	}
	return r.router.ChangePreset(d, presetID)
}

// UpdatePreset live-edits one preset of a named device.
func (r *Registry) UpdatePreset(device string, p Preset) error {
	d, ok := r.Device(device)
	if !ok {
		return fmt.Errorf("%q: %w", device, ErrUnknownDevice)
	}
	return r.router.UpdatePreset(d, p)
}

// Remove destroys a device record. This is the only path that frees a
// device's channel/range block; disconnection alone keeps everything so
// presets survive a reconnect.
func (r *Registry) Remove(device string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[device]
	if !ok {
		return fmt.Errorf("%q: %w", device, ErrUnknownDevice)
	}
	if d.State() == StateConnected {
		r.teardownLocked(device)
		d.setState(StateDisconnected)
	}
	r.alloc.Release(d.Assignment())
	if err := r.store.RemoveDevice(device); err != nil {
		r.log.Warn("stored state not removed", "device", device, "err", err)
	}
	delete(r.devices, device)
	delete(r.adapters, device)
	delete(r.missed, device)
	r.notifier.DeviceDisconnected(device)
	return nil
}

func (r *Registry) registerLocked(id string, ep midi.EndpointDescriptor, now time.Time) {
	typ := r.classifier.Classify(id)

	as, restored, err := r.lookupAssignment(id, typ)
	if err != nil {
		// Reported, not retried: the device stays unserved until the
		// operator frees a channel.
		r.log.Error("device left unserved", "device", id, "type", typ.String(), "err", err)
		return
	}

	d := newDevice(id, typ, as)
	d.lastSeen = now
	r.installPresets(d)

	// The indicator is attached before the input listener starts: once
	// OpenInput returns, messages may already be flowing through the
	// router, which reads d.indicator under d.mu on every preset change.
	var indicator midi.Output
	if ep.Output {
		if out, err := r.transport.OpenOutput(id); err == nil {
			indicator = out
			d.mu.Lock()
			d.indicator = out
			d.mu.Unlock()
		} else {
			r.log.Debug("indicator output unavailable", "device", id, "err", err)
		}
	}

	adapter := NewAdapter(d, r.router, r.log)
	stop, err := r.transport.OpenInput(id, r.receiver(adapter))
	if err != nil {
		r.log.Error("input open failed", "device", id, "err", err)
		if indicator != nil {
			_ = indicator.Close()
		}
		if !restored {
			r.alloc.Release(as)
		}
		return
	}

	if indicator != nil {
		r.outputs[id] = indicator
	}
	r.devices[id] = d
	r.adapters[id] = adapter
	r.stops[id] = stop
	r.missed[id] = 0

	if !restored {
		if err := r.store.SaveAssignment(id, as); err != nil {
			r.log.Warn("assignment not persisted", "device", id, "err", err)
		}
	}

	r.log.Info("device connected",
		"device", id,
		"type", typ.String(),
		"channel", as.Channel(),
		"presets", fmt.Sprintf("[%d,%d]", as.RangeStart, as.RangeEnd),
	)
	r.notifier.DeviceConnected(id, typ)

	if err := r.router.ChangePreset(d, d.ActivePreset()); err != nil {
		r.log.Warn("initial preset not applied", "device", id, "err", err)
	}
}

func (r *Registry) reconnectLocked(d *Device, ep midi.EndpointDescriptor) {
	id := d.Name

	adapter := NewAdapter(d, r.router, r.log)
	stop, err := r.transport.OpenInput(id, r.receiver(adapter))
	if err != nil {
		r.log.Error("reconnect failed", "device", id, "err", err)
		return
	}

	if ep.Output {
		if out, err := r.transport.OpenOutput(id); err == nil {
			r.outputs[id] = out
			d.mu.Lock()
			d.indicator = out
			d.mu.Unlock()
		}
	}

	r.adapters[id] = adapter
	r.stops[id] = stop
	r.missed[id] = 0
	d.setState(StateConnected)

	// The backend's channel state is stale after an absence; force the
	// active preset's instrument selects through before any note arrives.
	r.router.invalidateChannels(d.Assignment())
	if err := r.router.ChangePreset(d, d.ActivePreset()); err != nil {
		r.log.Warn("preset not restored on reconnect", "device", id, "err", err)
	}

	r.log.Info("device reconnected", "device", id, "channel", d.Assignment().Channel())
	r.notifier.DeviceConnected(id, d.Type)
}

func (r *Registry) disconnectLocked(d *Device) {
	id := d.Name
	r.teardownLocked(id)
	d.setState(StateDisconnected)
	r.log.Warn("device disappeared", "device", id)
	r.notifier.DeviceDisconnected(id)
}

// teardownLocked stops the input listener and closes the indicator output.
// The device record, its assignment and its preset table stay untouched.
func (r *Registry) teardownLocked(id string) {
	if ad, ok := r.adapters[id]; ok {
		ad.Suspend()
	}
	if stop, ok := r.stops[id]; ok {
		stop()
		delete(r.stops, id)
	}
	if out, ok := r.outputs[id]; ok {
		_ = out.Close()
		delete(r.outputs, id)
		if d, ok := r.devices[id]; ok {
			d.mu.Lock()
			d.indicator = nil
			d.mu.Unlock()
		}
	}
}

func (r *Registry) lookupAssignment(id string, typ DeviceType) (Assignment, bool, error) {
	stored, found, err := r.store.LoadAssignment(id)
	if err != nil {
		r.log.Warn("assignment lookup failed, allocating fresh", "device", id, "err", err)
	} else if found {
		if validAssignment(stored) {
			r.alloc.Reserve(stored)
			return stored, true, nil
		}
		r.log.Warn("stored assignment invalid, allocating fresh",
			"device", id, "channels", fmt.Sprintf("%v", stored.Channels))
	}
	as, err := r.alloc.Allocate(typ)
	return as, false, err
}

// validAssignment rejects persisted blocks a corrupted store could hand
// back: channels outside 0-15 would index past the router's selection cache.
func validAssignment(a Assignment) bool {
	if len(a.Channels) == 0 || a.RangeStart < 0 || a.RangeEnd < a.RangeStart {
		return false
	}
	for _, ch := range a.Channels {
		if int(ch) >= numChannels {
			return false
		}
	}
	return true
}

func (r *Registry) installPresets(d *Device) {
	stored, err := r.store.LoadPresets(d.Name)
	if err != nil {
		r.log.Warn("preset load failed, using defaults", "device", d.Name, "err", err)
		stored = nil
	}
	if len(stored) == 0 {
		stored = DefaultPresets(d.Type, d.assignment)
	}
	for i := range stored {
		p := stored[i]
		if d.assignment.Contains(p.ID) {
			d.presets[p.ID] = &p
		}
	}
	// Active preset starts at the first populated slot.
	for id := d.assignment.RangeStart; id <= d.assignment.RangeEnd; id++ {
		if _, ok := d.presets[id]; ok {
			d.activePreset = id
			break
		}
	}
}

// receiver is the transport callback for one adapter: decode, filter,
// route. Malformed messages are dropped and logged, never raised; a message
// racing its device's teardown is a no-op.
func (r *Registry) receiver(ad Adapter) func([]byte) {
	return func(raw []byte) {
		if ad.Suspended() {
			return
		}
		ev, err := ad.Decode(raw)
		if err != nil {
			if !errors.Is(err, errIgnored) {
				r.log.Debug("malformed message dropped",
					"device", ad.Device().Name, "bytes", len(raw), "err", err)
			}
			return
		}
		ad.OnEvent(ev)
	}
}

func (r *Registry) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.devices {
		r.teardownLocked(id)
	}
	r.log.Info("registry stopped")
}
