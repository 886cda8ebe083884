// services/hal/types.go
package hal

// StripConfig selects and sizes the LED strip backend.
type StripConfig struct {
	Driver     string  `yaml:"driver" json:"driver"` // "sim", "ws2812"
	Pixels     int     `yaml:"pixels" json:"pixels"`
	Pin        int     `yaml:"pin" json:"pin"` // data pin for ws2812 (TinyGo builds)
	Brightness float64 `yaml:"brightness" json:"brightness"`
}

// LineConfig selects the button input backend.
type LineConfig struct {
	Driver    string `yaml:"driver" json:"driver"` // "none", "gpiocdev"
	Chip      string `yaml:"chip" json:"chip"`
	Line      int    `yaml:"line" json:"line"`
	Bias      string `yaml:"bias" json:"bias"` // "none", "up", "down"
	ActiveLow bool   `yaml:"active_low" json:"active_low"`
	Consumer  string `yaml:"consumer" json:"consumer"`
}
