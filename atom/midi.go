package atom

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/shaban/synthpod/registry"
)

// MIDIEvent is a frame-stamped raw MIDI message carried inside an atom
// sequence (spec §6, grounded on original_source's
// synthpod_private.h's regs->port.midi carrying raw MIDI bytes as
// atom:Sequence events). The core never decodes the payload — merging
// only looks at Frames — but diagnostics want the decoded message.
type MIDIEvent struct {
	Frames uint32
	Raw    []byte
}

// String renders the event using gomidi/midi's own message formatting
// (the same library shaban-macaudio links against for its MIDI input
// channel), used by the demo CLI's atom-sequence dump.
func (e MIDIEvent) String() string {
	return midi.Message(e.Raw).String()
}

// NoteOn reports the event's note-on fields, if it is one.
func (e MIDIEvent) NoteOn() (channel, key, velocity uint8, ok bool) {
	return midi.Message(e.Raw).GetNoteOn()
}

// NoteOff reports the event's note-off fields, if it is one.
func (e MIDIEvent) NoteOff() (channel, key, velocity uint8, ok bool) {
	return midi.Message(e.Raw).GetNoteOff()
}

// ControlChange reports the event's CC fields, if it is one.
func (e MIDIEvent) ControlChange() (channel, controller, value uint8, ok bool) {
	return midi.Message(e.Raw).GetControlChange()
}

// DecodeMIDIEvents extracts every midi:MidiEvent entry from a decoded
// atom-sequence buffer, dropping any event of another atom type (a
// sequence port may interleave MIDI with other atom-typed events).
func DecodeMIDIEvents(buf []byte, reg *registry.Registry) ([]MIDIEvent, error) {
	evs, err := Events(buf)
	if err != nil {
		return nil, err
	}
	midiType := reg.Map(registry.URIMidiEvent)
	var out []MIDIEvent
	for _, e := range evs {
		if e.Type != midiType {
			continue
		}
		out = append(out, MIDIEvent{Frames: e.Frames, Raw: e.Body})
	}
	return out, nil
}

// PutMIDIEvent appends a raw MIDI message to a sequence buffer as a
// midi:MidiEvent (the write-side counterpart to DecodeMIDIEvents, used
// by the demo CLI to inject synthetic note events).
func PutMIDIEvent(buf []byte, reg *registry.Registry, frames uint32, raw []byte) (int, error) {
	return PutEvent(buf, frames, reg.Map(registry.URIMidiEvent), raw)
}
