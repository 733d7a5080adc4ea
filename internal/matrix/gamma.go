package matrix

import "math"

const (
	// MaxDuty is the brightest duty value the gamma table produces.
	MaxDuty = 191

	gammaExponent = 1.7
	gammaBuckets  = 32
	maxVelocity   = 127
)

// GammaTable maps pad velocities (0..127) to PWM duty values (0..MaxDuty)
// along a perceptual curve. The zero value is not usable; build one with
// NewGammaTable or use DefaultGamma.
type GammaTable struct {
	duty [maxVelocity + 1]uint8
}

// DefaultGamma is built once at startup and shared read-only.
var DefaultGamma = NewGammaTable()

// NewGammaTable computes the table. Velocities are bucketed into 32 steps
// (v/4 + 1), normalized, raised to 1.7 and scaled to MaxDuty. Velocity 0
// means "not struck" and maps to 0.
func NewGammaTable() *GammaTable {
	g := &GammaTable{}
	for v := 1; v <= maxVelocity; v++ {
		bucket := float64(v/4 + 1)
		g.duty[v] = uint8(math.Round(math.Pow(bucket/gammaBuckets, gammaExponent) * MaxDuty))
	}
	return g
}

// Duty returns the PWM duty for a velocity. Velocities above 127 are
// treated as 127.
func (g *GammaTable) Duty(velocity uint8) uint8 {
	if velocity > maxVelocity {
		velocity = maxVelocity
	}
	return g.duty[velocity]
}
