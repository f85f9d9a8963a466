package engine

import (
	"fmt"
	"log/slog"

	"github.com/jorgetrad99/guitar-midi-sub000/midi"
)

// SoundBackend is the narrow command surface of the external synthesis
// service. A failed SelectInstrument is the only backend error the routing
// core branches on; note and controller traffic is fire-and-forget.
type SoundBackend interface {
	SelectInstrument(channel uint8, bank int, program uint8) error
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note uint8)
	ControlChange(channel, controller, value uint8)
	PitchBend(channel uint8, value int)
}

// PortBackend drives a synthesizer reachable as a MIDI output endpoint
// (FluidSynth's virtual port, a hardware sound module, an IAC bus).
// Instrument selection is bank MSB/LSB followed by a program change.
type PortBackend struct {
	out midi.Output
	log *slog.Logger
}

// NewPortBackend wraps an open output endpoint.
func NewPortBackend(out midi.Output, log *slog.Logger) *PortBackend {
	return &PortBackend{out: out, log: log}
}

func (b *PortBackend) SelectInstrument(channel uint8, bank int, program uint8) error {
	msgs := [][]byte{
		midi.ControlChange(channel, midi.CCBankMSB, uint8(bank>>7)&0x7F),
		midi.ControlChange(channel, midi.CCBankLSB, uint8(bank)&0x7F),
		midi.ProgramChange(channel, program),
	}
	for _, m := range msgs {
		if err := b.out.Send(m); err != nil {
			return fmt.Errorf("select instrument ch=%d bank=%d program=%d: %w", channel, bank, program, err)
		}
	}
	return nil
}

func (b *PortBackend) NoteOn(channel, note, velocity uint8) {
	if err := b.out.Send(midi.NoteOn(channel, note, velocity)); err != nil {
		b.log.Warn("backend: note on dropped", "channel", channel, "note", note, "err", err)
	}
}

func (b *PortBackend) NoteOff(channel, note uint8) {
	if err := b.out.Send(midi.NoteOff(channel, note)); err != nil {
		b.log.Warn("backend: note off dropped", "channel", channel, "note", note, "err", err)
	}
}

func (b *PortBackend) ControlChange(channel, controller, value uint8) {
	if err := b.out.Send(midi.ControlChange(channel, controller, value)); err != nil {
		b.log.Warn("backend: control change dropped", "channel", channel, "cc", controller, "err", err)
	}
}

func (b *PortBackend) PitchBend(channel uint8, value int) {
	if err := b.out.Send(midi.PitchBend(channel, value)); err != nil {
		b.log.Warn("backend: pitch bend dropped", "channel", channel, "err", err)
	}
}

// LogBackend renders commands to the log instead of a synth. Used when no
// backend port matches the configured name, so the router stays exercisable
// without audio hardware.
type LogBackend struct {
	log *slog.Logger
}

// NewLogBackend creates a log-only backend.
func NewLogBackend(log *slog.Logger) *LogBackend {
	return &LogBackend{log: log}
}

func (b *LogBackend) SelectInstrument(channel uint8, bank int, program uint8) error {
	b.log.Info("SELECT", "channel", channel, "bank", bank, "program", program)
	return nil
}

func (b *LogBackend) NoteOn(channel, note, velocity uint8) {
	b.log.Info("NOTE ON", "channel", channel, "note", note, "velocity", velocity)
}

func (b *LogBackend) NoteOff(channel, note uint8) {
	b.log.Info("NOTE OFF", "channel", channel, "note", note)
}

func (b *LogBackend) ControlChange(channel, controller, value uint8) {
	b.log.Info("CC", "channel", channel, "cc", controller, "value", value)
}

func (b *LogBackend) PitchBend(channel uint8, value int) {
	b.log.Info("BEND", "channel", channel, "value", value)
}
