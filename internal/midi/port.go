package midi

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"sequins/internal/log"
)

// matchPort picks the port called want, or failing that the first one whose
// name starts with want. Virtual port drivers tend to append an index to
// the name ("loopMIDI Port 1").
func matchPort(names []string, want string) (int, bool) {
	if want == "" {
		return 0, false
	}
	for i, n := range names {
		if n == want {
			return i, true
		}
	}
	for i, n := range names {
		if strings.HasPrefix(n, want) {
			return i, true
		}
	}
	return 0, false
}

// InPorts returns the names of the available input ports.
func InPorts() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// OutPorts returns the names of the available output ports.
func OutPorts() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// FindIn resolves an input port by exact name or prefix.
func FindIn(name string) (drivers.In, error) {
	ins := midi.GetInPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	i, ok := matchPort(names, name)
	if !ok {
		return nil, fmt.Errorf("midi: input port %q not found", name)
	}
	return ins[i], nil
}

// FindOut resolves an output port by exact name or prefix.
func FindOut(name string) (drivers.Out, error) {
	outs := midi.GetOutPorts()
	names := make([]string, len(outs))
	for i, out := range outs {
		names[i] = out.String()
	}
	i, ok := matchPort(names, name)
	if !ok {
		return nil, fmt.Errorf("midi: output port %q not found", name)
	}
	return outs[i], nil
}

// Listen opens the named input port and feeds every message to r until
// stop is called.
func Listen(name string, r *Router) (stop func(), err error) {
	in, err := FindIn(name)
	if err != nil {
		return nil, err
	}
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("midi: failed to open %q: %w", in.String(), err)
	}

	port := in.String()
	stop, err = midi.ListenTo(in, func(msg midi.Message, _ int32) {
		r.Handle(msg)
	}, midi.HandleError(func(err error) {
		log.Warn("midi listener error", "port", port, "err", err.Error())
	}))
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("midi: failed to listen on %q: %w", port, err)
	}

	log.Info("midi input connected", "port", port)
	return stop, nil
}

// OpenOutput returns a sender for the named output port.
func OpenOutput(name string) (func(midi.Message) error, error) {
	out, err := FindOut(name)
	if err != nil {
		return nil, err
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("midi: failed to open %q: %w", out.String(), err)
	}
	log.Info("midi output connected", "port", out.String())
	return send, nil
}

// Close shuts the registered MIDI driver down.
func Close() {
	midi.CloseDriver()
}
