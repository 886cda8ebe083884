// services/hal/strip_displayer.go
package hal

import (
	"image/color"

	"ledcontrol-go/errcode"
	"ledcontrol-go/x/mathx"

	"tinygo.org/x/drivers"
)

// DisplayerStrip drives any TinyGo display driver as a strip. Pixel i maps to
// (i%w, i/w) where w is the displayer width, so a 1-pixel-high displayer is a
// plain strip. Brightness is applied in software on Show.
type DisplayerStrip struct {
	d          drivers.Displayer
	w          int
	buf        []color.RGBA
	brightness float64
}

func NewDisplayerStrip(d drivers.Displayer, pixels int) (*DisplayerStrip, error) {
	w, h := d.Size()
	if w <= 0 || h <= 0 || int(w)*int(h) < pixels {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hal.displayer", Msg: "display smaller than strip"}
	}
	return &DisplayerStrip{d: d, w: int(w), buf: make([]color.RGBA, pixels), brightness: 1}, nil
}

func (s *DisplayerStrip) Len() int { return len(s.buf) }

func (s *DisplayerStrip) SetPixel(i int, r, g, b uint8) {
	if i < 0 || i >= len(s.buf) {
		return
	}
	s.buf[i] = color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func (s *DisplayerStrip) Clear() {
	for i := range s.buf {
		s.buf[i] = color.RGBA{A: 0xff}
	}
}

func (s *DisplayerStrip) SetBrightness(f float64) { s.brightness = mathx.Clamp(f, 0, 1) }

func (s *DisplayerStrip) Show() error {
	for i, c := range s.buf {
		c.R = mathx.ScaleU8(c.R, s.brightness)
		c.G = mathx.ScaleU8(c.G, s.brightness)
		c.B = mathx.ScaleU8(c.B, s.brightness)
		s.d.SetPixel(int16(i%s.w), int16(i/s.w), c)
	}
	if err := s.d.Display(); err != nil {
		return errcode.Wrap(errcode.DeviceFault, "hal.display", err)
	}
	return nil
}
