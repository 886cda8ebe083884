// services/hal/hal.go

// Package hal abstracts the two pieces of hardware the daemon touches: an
// addressable LED strip and a digital input line for the push-button.
// Backends are selected by driver name; a backend not compiled into the
// current build reports errcode.Unsupported.
package hal

import (
	"ledcontrol-go/errcode"
)

// Strip is an addressable RGB LED strip. Pixels are staged with SetPixel and
// latched by Show. Implementations are driven from a single goroutine.
type Strip interface {
	Len() int
	SetPixel(i int, r, g, b uint8)
	Show() error
	Clear()
	SetBrightness(f float64) // [0,1], applied on the next Show
}

// InputLine is a digital input. Get reports the logical level: true means
// active (pressed), after any active-low inversion done by the backend.
type InputLine interface {
	Get() (bool, error)
	Close() error
}

// Driver names
const (
	DriverSim      = "sim"
	DriverWS2812   = "ws2812"
	DriverNone     = "none"
	DriverGPIOCDev = "gpiocdev"
)

// StripDriverAvailable reports whether the named strip backend is compiled
// into this build. ws2812 needs TinyGo; standard Go builds only have sim.
func StripDriverAvailable(driver string) bool {
	switch driver {
	case DriverSim, "":
		return true
	case DriverWS2812:
		return ws2812Available
	default:
		return false
	}
}

// OpenStrip builds the strip backend named by cfg.Driver.
func OpenStrip(cfg StripConfig) (Strip, error) {
	if cfg.Pixels <= 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "hal.open_strip", Msg: "pixels must be > 0"}
	}
	switch cfg.Driver {
	case DriverSim, "":
		return NewMemStrip(cfg.Pixels), nil
	case DriverWS2812:
		d, err := openWS2812(cfg)
		if err != nil {
			return nil, errcode.Wrap(errcode.Of(err), "hal.open_strip", err)
		}
		s, err := NewDisplayerStrip(d, cfg.Pixels)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: "hal.open_strip", Msg: "driver " + cfg.Driver}
	}
}

// OpenLine builds the input backend named by cfg.Driver. The "none" driver
// returns a FakeLine that stays released.
func OpenLine(cfg LineConfig) (InputLine, error) {
	switch cfg.Driver {
	case DriverNone, "":
		return &FakeLine{}, nil
	case DriverGPIOCDev:
		l, err := openGPIOCDev(cfg)
		if err != nil {
			return nil, errcode.Wrap(errcode.Of(err), "hal.open_line", err)
		}
		return l, nil
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: "hal.open_line", Msg: "driver " + cfg.Driver}
	}
}
