// Package midi turns messages from a pad controller into sequencer calls.
package midi

import (
	"gitlab.com/gomidi/midi/v2"

	"sequins/internal/log"
)

// Message is a raw MIDI message.
type Message = midi.Message

// Handler receives the pad events a Router extracts from the MIDI stream.
type Handler interface {
	PadOn(pad int, velocity uint8) error
	PadOff(pad int) error
	Reset() error
	PassThrough(msg midi.Message) error
}

// Router maps pad notes to pad numbers. Notes[i] is the note sent by pad i.
type Router struct {
	Notes []uint8
	// ResetOnProgramChange makes a program change reset the pattern, in
	// addition to being passed through.
	ResetOnProgramChange bool
	Handler              Handler
}

func (r *Router) pad(key uint8) (int, bool) {
	for i, n := range r.Notes {
		if n == key {
			return i, true
		}
	}
	return 0, false
}

// Handle dispatches one message. Note-on with velocity 0 counts as
// note-off. Everything that is not a pad note is passed through.
func (r *Router) Handle(msg midi.Message) {
	var ch, key, vel, program uint8

	var err error
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if pad, ok := r.pad(key); ok {
			err = r.Handler.PadOn(pad, vel)
		} else {
			err = r.Handler.PassThrough(msg)
		}
	case msg.GetNoteEnd(&ch, &key):
		if pad, ok := r.pad(key); ok {
			err = r.Handler.PadOff(pad)
		} else {
			err = r.Handler.PassThrough(msg)
		}
	default:
		err = r.Handler.PassThrough(msg)
	}
	if err != nil {
		log.Error("midi message handling failed", err, "msg", msg.String())
	}

	if r.ResetOnProgramChange && msg.GetProgramChange(&ch, &program) {
		log.Info("program change, resetting pattern", "channel", ch, "program", program)
		if err := r.Handler.Reset(); err != nil {
			log.Error("pattern reset failed", err)
		}
	}
}
