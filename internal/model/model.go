package model

// PadCount is the number of pads in one step: a 4x4 block.
const PadCount = 16

// MaxVelocity is the largest MIDI velocity a pad can carry.
const MaxVelocity = 127

// Frame is a snapshot of pad velocities for one musical step.
//
// Pads are indexed row-major within the 4x4 block, so pad p sits at row
// p/4, column p%4. A velocity of 0 means the pad was not struck. Frame is
// an array, so passing it by value hands over an independent copy.
type Frame [PadCount]uint8

// Lit reports whether the pad was struck.
func (f Frame) Lit(pad int) bool {
	return pad >= 0 && pad < PadCount && f[pad] > 0
}

// Empty reports whether no pad in the frame was struck.
func (f Frame) Empty() bool {
	for _, v := range f {
		if v > 0 {
			return false
		}
	}
	return true
}

// Pattern is the ordered list of steps recorded since the last reset. The
// last frame is the one currently being played into.
type Pattern struct {
	frames []Frame
}

// NewPattern returns a pattern holding a single empty step.
func NewPattern() *Pattern {
	p := &Pattern{}
	p.Clear()
	return p
}

// Clear drops every recorded step and starts a fresh one.
func (p *Pattern) Clear() {
	p.frames = p.frames[:0]
	p.NextFrame()
}

// NextFrame finalizes the current step and starts an empty one.
func (p *Pattern) NextFrame() {
	p.frames = append(p.frames, Frame{})
}

// SetVelocity records a pad hit in the current step. Out-of-range pads are
// ignored and velocities above MaxVelocity are clamped.
func (p *Pattern) SetVelocity(pad int, velocity uint8) {
	if pad < 0 || pad >= PadCount {
		return
	}
	if velocity > MaxVelocity {
		velocity = MaxVelocity
	}
	p.frames[len(p.frames)-1][pad] = velocity
}

// Current returns a copy of the step being recorded.
func (p *Pattern) Current() Frame {
	return p.frames[len(p.frames)-1]
}

// Len returns the number of steps, including the current one.
func (p *Pattern) Len() int {
	return len(p.frames)
}

// Frames returns a copy of all recorded steps.
func (p *Pattern) Frames() []Frame {
	out := make([]Frame, len(p.frames))
	copy(out, p.frames)
	return out
}
