// Package convert renders recorded steps into an image of the LED grid, the
// way the matrix driver lays them out on the chips.
package convert

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"sequins/internal/matrix"
	"sequins/internal/model"
)

// DefaultScale is the edge length in image pixels of one LED.
const DefaultScale = 12

var (
	// Unlit pads show a faint glow, lit ones are tinted red by brightness.
	colorOff  = color.NRGBA{R: 32, G: 16, B: 16, A: 0xFF}
	colorLit  = color.NRGBA{R: 0xFF, G: 64, B: 64, A: 0xFF}
	colorBack = color.NRGBA{A: 0xFF}
)

// Render draws the grid with frames[i] shown in slot i. Frames past the
// last slot are dropped. Each LED becomes a scale x scale square with a one
// pixel gap.
func Render(geo *matrix.Geometry, gamma *matrix.GammaTable, frames []model.Frame, scale int) *image.NRGBA {
	if scale < 2 {
		scale = DefaultScale
	}
	if gamma == nil {
		gamma = matrix.DefaultGamma
	}
	l := geo.Layout()
	w := l.ColsPerDevice * l.DeviceCount * scale
	h := l.RowsPerDevice * scale
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), colorBack)

	for i := 0; i < geo.TotalFrames(); i++ {
		var f model.Frame
		if i < len(frames) {
			f = frames[i]
		}
		dev, x0, y0, _ := geo.Origin(i)
		for pad := 0; pad < model.PadCount; pad++ {
			x := dev*l.ColsPerDevice + x0 + pad%l.FrameWidth
			y := y0 + pad/l.FrameWidth
			c := colorOff
			if f.Lit(pad) {
				c = shade(gamma.Duty(f[pad]))
			}
			r := image.Rect(x*scale, y*scale, (x+1)*scale-1, (y+1)*scale-1)
			fill(img, r, c)
		}
	}
	return img
}

// shade scales the lit color by duty, keeping the dimmest pad visible
// against an unlit one.
func shade(duty uint8) color.NRGBA {
	k := 0.25 + 0.75*float64(duty)/matrix.MaxDuty
	return color.NRGBA{
		R: uint8(float64(colorLit.R) * k),
		G: uint8(float64(colorLit.G) * k),
		B: uint8(float64(colorLit.B) * k),
		A: 0xFF,
	}
}

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Pix[off+0] = c.R
			img.Pix[off+1] = c.G
			img.Pix[off+2] = c.B
			img.Pix[off+3] = c.A
			off += 4
		}
	}
}

// PNG renders the grid and encodes it.
func PNG(geo *matrix.Geometry, frames []model.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Render(geo, nil, frames, DefaultScale)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
