// services/hal/line_gpiocdev_stub.go
//go:build !linux || tinygo

package hal

import "ledcontrol-go/errcode"

func openGPIOCDev(LineConfig) (InputLine, error) { return nil, errcode.Unsupported }
