// Package sequencer records pad strikes into a pattern and shows each step
// on the LED matrix as it is played.
package sequencer

import (
	"sort"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"sequins/internal/log"
	"sequins/internal/matrix"
	"sequins/internal/model"
)

// Display is the part of the matrix driver the presenter uses.
type Display interface {
	DisplayFrame(index int, frame model.Frame) error
	CommitPrevious() error
	Clear() error
	Stats() matrix.Stats
	Geometry() *matrix.Geometry
}

// Status is a snapshot of the sequencer.
type Status struct {
	// ActiveStep is the slot the next strike lands in.
	ActiveStep int `json:"active_step"`
	// Slots is the number of steps the display can show.
	Slots int `json:"slots"`
	// Steps is the number of steps recorded so far, including the open one.
	Steps   int          `json:"steps"`
	Held    []int        `json:"held"`
	Current model.Frame  `json:"current"`
	Driver  matrix.Stats `json:"driver"`
}

// Presenter owns the pattern and serializes every call into the display.
// A step is open while at least one pad is held; releasing the last pad
// commits its brightness and moves on to the next step.
type Presenter struct {
	mu      sync.Mutex
	display Display
	send    func(midi.Message) error
	pattern *model.Pattern
	held    map[int]bool
	active  int

	subMu   sync.Mutex
	subs    map[int]func(Status)
	nextSub int
}

// New returns a presenter drawing on d. send, when non-nil, receives the
// messages passed through.
func New(d Display, send func(midi.Message) error) *Presenter {
	return &Presenter{
		display: d,
		send:    send,
		pattern: model.NewPattern(),
		held:    make(map[int]bool),
		subs:    make(map[int]func(Status)),
	}
}

// PadOn records a strike in the open step and shows it.
func (p *Presenter) PadOn(pad int, velocity uint8) error {
	if pad < 0 || pad >= model.PadCount {
		return nil
	}

	p.mu.Lock()
	p.pattern.SetVelocity(pad, velocity)
	p.held[pad] = true
	err := p.display.DisplayFrame(p.active, p.pattern.Current())
	st := p.statusLocked()
	p.mu.Unlock()

	if err != nil {
		return err
	}
	p.notify(st)
	return nil
}

// PadOff releases a pad. Releasing the last held pad finalizes the step:
// its brightness is committed and the next step opens. The step advances
// even when the commit fails, so that playing can go on.
func (p *Presenter) PadOff(pad int) error {
	p.mu.Lock()
	if !p.held[pad] {
		// Release of a strike from before the last reset.
		p.mu.Unlock()
		return nil
	}
	delete(p.held, pad)

	var err error
	advanced := len(p.held) == 0
	if advanced {
		err = p.display.CommitPrevious()
		p.pattern.NextFrame()
		p.active++
	}
	st := p.statusLocked()
	p.mu.Unlock()

	if advanced {
		log.Debug("step finalized", "step", st.ActiveStep-1)
		p.notify(st)
	}
	return err
}

// Reset empties the pattern and clears the display.
func (p *Presenter) Reset() error {
	p.mu.Lock()
	p.pattern.Clear()
	p.held = make(map[int]bool)
	p.active = 0
	err := p.display.Clear()
	st := p.statusLocked()
	p.mu.Unlock()

	p.notify(st)
	return err
}

// PassThrough forwards msg to the output port, if there is one.
func (p *Presenter) PassThrough(msg midi.Message) error {
	if p.send == nil {
		return nil
	}
	return p.send(msg)
}

// Status returns the current snapshot.
func (p *Presenter) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

// Pattern returns a copy of every recorded step.
func (p *Presenter) Pattern() []model.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pattern.Frames()
}

func (p *Presenter) statusLocked() Status {
	held := make([]int, 0, len(p.held))
	for pad := range p.held {
		held = append(held, pad)
	}
	sort.Ints(held)
	return Status{
		ActiveStep: p.active,
		Slots:      p.display.Geometry().TotalFrames(),
		Steps:      p.pattern.Len(),
		Held:       held,
		Current:    p.pattern.Current(),
		Driver:     p.display.Stats(),
	}
}

// Subscribe registers fn to be called with the new status after every
// change. Calls happen outside the presenter lock, on the goroutine that
// made the change.
func (p *Presenter) Subscribe(fn func(Status)) (cancel func()) {
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

func (p *Presenter) notify(st Status) {
	p.subMu.Lock()
	fns := make([]func(Status), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
