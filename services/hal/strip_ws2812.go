// services/hal/strip_ws2812.go
//go:build tinygo

package hal

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ws2812"
)

const ws2812Available = true

// ws2812Display presents a WS2812 chain as a Width x 1 displayer.
type ws2812Display struct {
	dev ws2812.Device
	buf []color.RGBA
}

func (d *ws2812Display) Size() (x, y int16)                 { return int16(len(d.buf)), 1 }
func (d *ws2812Display) SetPixel(x, y int16, c color.RGBA) { d.buf[x] = c }
func (d *ws2812Display) Display() error                    { return d.dev.WriteColors(d.buf) }

func openWS2812(cfg StripConfig) (drivers.Displayer, error) {
	pin := machine.Pin(cfg.Pin)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &ws2812Display{dev: ws2812.New(pin), buf: make([]color.RGBA, cfg.Pixels)}, nil
}
