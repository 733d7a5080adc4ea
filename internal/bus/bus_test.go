package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"sequins/internal/matrix"
	"sequins/internal/model"
)

func TestI2CWriteRegister(t *testing.T) {
	rec := &i2ctest.Record{}
	p := NewI2CPort(rec)

	require.NoError(t, p.WriteRegister(0x74, 0xFD, 0x00, false))
	require.NoError(t, p.WriteRegister(0x75, 0x24, 0xBF, true))

	require.Len(t, rec.Ops, 2)
	assert.EqualValues(t, 0x74, rec.Ops[0].Addr)
	assert.Equal(t, []byte{0xFD, 0x00}, rec.Ops[0].W)
	assert.EqualValues(t, 0x75, rec.Ops[1].Addr)
	assert.Equal(t, []byte{0x24, 0xBF}, rec.Ops[1].W)
	assert.Empty(t, rec.Ops[1].R)
}

func TestI2CProbeAndScan(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x74, R: []byte{0x00}},
			{Addr: 0x75, R: []byte{0x00}},
		},
		DontPanic: true,
	}
	p := NewI2CPort(pb)

	assert.Equal(t, []uint16{0x74, 0x75}, p.Scan([]uint16{0x74, 0x75, 0x76}))
	assert.NoError(t, pb.Close())
}

func TestI2CCloseLeavesBorrowedBusOpen(t *testing.T) {
	rec := &i2ctest.Record{}
	p := NewI2CPort(rec)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.WriteRegister(0x74, 0x00, 0x00, false), ErrClosed)
	assert.False(t, p.Probe(0x74))
	assert.Empty(t, rec.Ops)
}

func TestSimPages(t *testing.T) {
	s := NewSim(16, 0x74)

	require.NoError(t, s.WriteRegister(0x74, 0xFD, 0x0B, false))
	require.NoError(t, s.WriteRegister(0x74, 0x0A, 0x01, false))
	require.NoError(t, s.WriteRegister(0x74, 0xFD, 0x00, true))
	require.NoError(t, s.WriteRegister(0x74, 0x0A, 0xFF, true))

	assert.EqualValues(t, 0x01, s.Register(0x74, 0x0B, 0x0A))
	assert.EqualValues(t, 0xFF, s.Register(0x74, 0x00, 0x0A))
	assert.Len(t, s.Writes(), 4)

	s.ResetWrites()
	assert.Empty(t, s.Writes())
	assert.EqualValues(t, 0xFF, s.Register(0x74, 0x00, 0x0A))
}

func TestSimMissingDeviceAndFailures(t *testing.T) {
	s := NewSim(16, SimAddrs(0x74, 2)...)
	assert.True(t, s.Probe(0x75))
	assert.False(t, s.Probe(0x76))
	assert.Error(t, s.WriteRegister(0x76, 0x00, 0x01, false))

	boom := errors.New("boom")
	s.FailWith(func(w Write) error {
		if w.Reg == 0x03 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, s.WriteRegister(0x74, 0x03, 0x01, false), boom)
	assert.NoError(t, s.WriteRegister(0x74, 0x04, 0x01, false))
	s.FailWith(nil)
	assert.NoError(t, s.WriteRegister(0x74, 0x03, 0x01, false))
	assert.Len(t, s.Writes(), 2)
}

func TestDriverOverSim(t *testing.T) {
	layout := matrix.DefaultLayout
	port, err := OpenPort(KindSim, "", DefaultSpeed, layout)
	require.NoError(t, err)
	sim := port.(*Sim)

	geo, err := matrix.NewGeometry(layout)
	require.NoError(t, err)
	d := matrix.New(port, geo, nil)
	require.NoError(t, d.Initialize())

	// Slot 17 is on device 0, pixel origin (4, 5).
	require.NoError(t, d.DisplayFrame(17, model.Frame{0: 127, 15: 8}))

	on, duty := sim.Pixel(0x74, 4, 5)
	assert.True(t, on)
	assert.EqualValues(t, matrix.Baseline, duty, "lit at baseline before commit")

	require.NoError(t, d.CommitPrevious())
	_, duty = sim.Pixel(0x74, 4, 5)
	assert.Equal(t, matrix.DefaultGamma.Duty(127), duty)
	on, duty = sim.Pixel(0x74, 7, 8)
	assert.True(t, on)
	assert.Equal(t, matrix.DefaultGamma.Duty(8), duty)

	on, _ = sim.Pixel(0x74, 5, 5)
	assert.False(t, on)

	require.NoError(t, d.Clear())
	on, duty = sim.Pixel(0x74, 4, 5)
	assert.False(t, on)
	assert.EqualValues(t, matrix.Baseline, duty)
}

func TestOpenPortUnknownKind(t *testing.T) {
	_, err := OpenPort("spi", "", DefaultSpeed, matrix.DefaultLayout)
	assert.Error(t, err)
}
