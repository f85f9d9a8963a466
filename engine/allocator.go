package engine

import (
	"fmt"
	"sync"
)

// DefaultBlockSize is how many preset slots each device receives.
const DefaultBlockSize = 8

const numChannels = 16

// Allocator hands out disjoint channel and preset-range blocks. Channels
// round-robin across 0-15 in registration order, skipping the percussion
// channel unless the device type is percussion, in which case it is forced.
// Preset ranges come from a monotonically increasing cursor.
//
// The allocator never re-issues a block on its own: reconnecting devices
// keep their original assignment (the registry reserves restored blocks via
// Reserve before minting new ones).
type Allocator struct {
	mu         sync.Mutex
	blockSize  int
	nextPreset int
	cursor     uint8
	used       [numChannels]bool
}

// NewAllocator creates an allocator with the given preset block size.
// Sizes below 1 fall back to DefaultBlockSize.
func NewAllocator(blockSize int) *Allocator {
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}
	return &Allocator{blockSize: blockSize}
}

// Allocate assigns a fresh channel block and preset range for a device of
// the given type. Multi-zone types receive one channel per zone. Returns
// ErrChannelSpaceExhausted, with no state mutated, when not enough free
// channels remain.
func (a *Allocator) Allocate(typ DeviceType) (Assignment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	zones := typ.Zones()
	channels := make([]uint8, 0, zones)

	if typ == TypePercussionPad {
		if a.used[PercussionChannel] {
			return Assignment{}, fmt.Errorf("percussion channel already bound: %w", ErrChannelSpaceExhausted)
		}
		channels = append(channels, PercussionChannel)
	} else {
		cursor := a.cursor
		for probed := 0; probed < numChannels && len(channels) < zones; probed++ {
			ch := (cursor + uint8(probed)) % numChannels
			if ch == PercussionChannel || a.used[ch] {
				continue
			}
			channels = append(channels, ch)
		}
		if len(channels) < zones {
			return Assignment{}, fmt.Errorf("%d channel(s) needed, type %s: %w",
				zones, typ, ErrChannelSpaceExhausted)
		}
	}

	// Commit only once the full block is known.
	for _, ch := range channels {
		a.used[ch] = true
	}
	if typ != TypePercussionPad {
		a.cursor = (channels[len(channels)-1] + 1) % numChannels
	}

	as := Assignment{
		Channels:   channels,
		RangeStart: a.nextPreset,
		RangeEnd:   a.nextPreset + a.blockSize - 1,
	}
	a.nextPreset += a.blockSize
	return as, nil
}

// Reserve re-claims a previously persisted assignment so future Allocate
// calls cannot overlap it. Used when restoring devices from the store.
func (a *Allocator) Reserve(as Assignment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range as.Channels {
		if int(ch) < numChannels {
			a.used[ch] = true
		}
	}
	if as.RangeEnd >= a.nextPreset {
		a.nextPreset = as.RangeEnd + 1
	}
}

// Release returns an assignment's channels to the pool. Only the explicit
// operator remove path calls this; disconnects keep their block.
func (a *Allocator) Release(as Assignment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range as.Channels {
		if int(ch) < numChannels {
			a.used[ch] = false
		}
	}
}

// BlockSize returns the preset block size.
func (a *Allocator) BlockSize() int {
	return a.blockSize
}
