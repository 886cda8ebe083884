// services/hal/line_gpiocdev.go
//go:build linux && !tinygo

package hal

import (
	"ledcontrol-go/errcode"
	"ledcontrol-go/x/strx"

	"github.com/warthog618/go-gpiocdev"
)

// cdevLine reads a button through the Linux GPIO character device.
// Active-low inversion is done by the kernel.
type cdevLine struct {
	l *gpiocdev.Line
}

func openGPIOCDev(cfg LineConfig) (InputLine, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(strx.Coalesce(cfg.Consumer, "ledcontrol")),
	}
	switch cfg.Bias {
	case "up":
		opts = append(opts, gpiocdev.WithPullUp)
	case "down":
		opts = append(opts, gpiocdev.WithPullDown)
	case "", "none":
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hal.gpiocdev", Msg: "bias " + cfg.Bias}
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	l, err := gpiocdev.RequestLine(strx.Coalesce(cfg.Chip, "gpiochip0"), cfg.Line, opts...)
	if err != nil {
		return nil, errcode.Wrap(errcode.Unavailable, "hal.gpiocdev", err)
	}
	return &cdevLine{l: l}, nil
}

func (c *cdevLine) Get() (bool, error) {
	v, err := c.l.Value()
	if err != nil {
		return false, errcode.Wrap(errcode.DeviceFault, "hal.gpiocdev.read", err)
	}
	return v == 1, nil
}

func (c *cdevLine) Close() error { return c.l.Close() }
