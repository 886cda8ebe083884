package hal

import (
	"errors"
	"image/color"
	"testing"

	"ledcontrol-go/errcode"

	"github.com/stretchr/testify/require"
)

// fakeDisplay records what a DisplayerStrip writes.
type fakeDisplay struct {
	w, h     int16
	px       map[[2]int16]color.RGBA
	displays int
	err      error
}

func newFakeDisplay(w, h int16) *fakeDisplay {
	return &fakeDisplay{w: w, h: h, px: map[[2]int16]color.RGBA{}}
}

func (d *fakeDisplay) Size() (int16, int16)                { return d.w, d.h }
func (d *fakeDisplay) SetPixel(x, y int16, c color.RGBA) { d.px[[2]int16{x, y}] = c }
func (d *fakeDisplay) Display() error {
	d.displays++
	return d.err
}

func TestOpenStrip_Sim(t *testing.T) {
	s, err := OpenStrip(StripConfig{Driver: DriverSim, Pixels: 4})
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())
	_, ok := s.(*MemStrip)
	require.True(t, ok)
}

func TestOpenStrip_Errors(t *testing.T) {
	_, err := OpenStrip(StripConfig{Driver: DriverSim})
	require.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = OpenStrip(StripConfig{Driver: "neopixel-x", Pixels: 1})
	require.Equal(t, errcode.Unsupported, errcode.Of(err))
}

func TestStripDriverAvailable(t *testing.T) {
	require.True(t, StripDriverAvailable(DriverSim))
	require.True(t, StripDriverAvailable(""))
	require.Equal(t, ws2812Available, StripDriverAvailable(DriverWS2812))
	require.False(t, StripDriverAvailable("neopixel-x"))
	require.False(t, StripDriverAvailable(DriverNone))
}

func TestOpenLine_None(t *testing.T) {
	l, err := OpenLine(LineConfig{Driver: DriverNone})
	require.NoError(t, err)
	v, err := l.Get()
	require.NoError(t, err)
	require.False(t, v)
	require.NoError(t, l.Close())

	_, err = OpenLine(LineConfig{Driver: "spi"})
	require.Equal(t, errcode.Unsupported, errcode.Of(err))
}

func TestMemStrip_ShowAppliesBrightness(t *testing.T) {
	m := NewMemStrip(2)
	m.SetPixel(0, 200, 100, 0)
	m.SetPixel(1, 255, 255, 255)
	m.SetPixel(5, 1, 1, 1) // out of range is ignored
	m.SetBrightness(0.5)
	require.NoError(t, m.Show())

	shown := m.Shown()
	require.Len(t, shown, 1)
	require.Equal(t, []byte{100, 50, 0, 128, 128, 128}, shown[0])

	m.Clear()
	require.NoError(t, m.Show())
	require.Equal(t, make([]byte, 6), m.Shown()[1])
	require.Equal(t, 2, m.ShowCount())
}

func TestMemStrip_FailNextShow(t *testing.T) {
	m := NewMemStrip(1)
	boom := errors.New("boom")
	m.FailNextShow(boom)
	require.ErrorIs(t, m.Show(), boom)
	require.NoError(t, m.Show())
	require.Equal(t, 1, m.ShowCount())
}

func TestDisplayerStrip_RowMajor(t *testing.T) {
	d := newFakeDisplay(2, 2)
	s, err := NewDisplayerStrip(d, 3)
	require.NoError(t, err)

	s.SetPixel(2, 10, 20, 30)
	require.NoError(t, s.Show())
	require.Equal(t, 1, d.displays)
	require.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 0xff}, d.px[[2]int16{0, 1}])

	s.SetBrightness(0)
	require.NoError(t, s.Show())
	require.Equal(t, color.RGBA{A: 0xff}, d.px[[2]int16{0, 1}])
}

func TestDisplayerStrip_TooSmall(t *testing.T) {
	_, err := NewDisplayerStrip(newFakeDisplay(4, 1), 5)
	require.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestDisplayerStrip_DisplayError(t *testing.T) {
	d := newFakeDisplay(1, 1)
	d.err = errors.New("bus stalled")
	s, err := NewDisplayerStrip(d, 1)
	require.NoError(t, err)
	err = s.Show()
	require.Equal(t, errcode.DeviceFault, errcode.Of(err))
	require.ErrorIs(t, err, d.err)
}

func TestFakeLine(t *testing.T) {
	l := &FakeLine{}
	l.Set(true)
	v, err := l.Get()
	require.NoError(t, err)
	require.True(t, v)

	l.SetErr(errcode.DeviceFault)
	_, err = l.Get()
	require.Equal(t, errcode.DeviceFault, errcode.Of(err))

	require.NoError(t, l.Close())
	require.True(t, l.Closed())
}
