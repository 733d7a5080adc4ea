package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameLit(t *testing.T) {
	f := Frame{0: 100, 15: 1}
	assert.True(t, f.Lit(0))
	assert.True(t, f.Lit(15))
	assert.False(t, f.Lit(1))
	assert.False(t, f.Lit(-1))
	assert.False(t, f.Lit(16))
	assert.False(t, f.Empty())
	assert.True(t, Frame{}.Empty())
}

func TestPatternRecordsSteps(t *testing.T) {
	p := NewPattern()
	assert.Equal(t, 1, p.Len())

	p.SetVelocity(3, 90)
	p.SetVelocity(5, 200)
	p.SetVelocity(16, 50)
	p.SetVelocity(-1, 50)

	cur := p.Current()
	assert.EqualValues(t, 90, cur[3])
	assert.EqualValues(t, MaxVelocity, cur[5])

	p.NextFrame()
	assert.Equal(t, 2, p.Len())
	assert.True(t, p.Current().Empty())

	frames := p.Frames()
	assert.EqualValues(t, 90, frames[0][3])
}

func TestPatternCopiesAreIndependent(t *testing.T) {
	p := NewPattern()
	p.SetVelocity(0, 10)

	held := p.Current()
	p.SetVelocity(0, 20)
	assert.EqualValues(t, 10, held[0])

	frames := p.Frames()
	frames[0][0] = 99
	assert.EqualValues(t, 20, p.Current()[0])
}

func TestPatternClear(t *testing.T) {
	p := NewPattern()
	p.SetVelocity(1, 10)
	p.NextFrame()
	p.NextFrame()

	p.Clear()
	assert.Equal(t, 1, p.Len())
	assert.True(t, p.Current().Empty())
}
