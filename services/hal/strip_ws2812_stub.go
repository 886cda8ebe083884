// services/hal/strip_ws2812_stub.go
//go:build !tinygo

package hal

import (
	"ledcontrol-go/errcode"

	"tinygo.org/x/drivers"
)

const ws2812Available = false

// WS2812 timing needs a TinyGo machine pin; standard Go builds use "sim".
func openWS2812(StripConfig) (drivers.Displayer, error) { return nil, errcode.Unsupported }
