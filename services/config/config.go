// Package config loads the daemon's YAML configuration and publishes each
// section as a retained config/<section> message on the bus.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/errcode"
	"ledcontrol-go/services/consts"
	"ledcontrol-go/services/hal"
	"ledcontrol-go/services/notify"
	"ledcontrol-go/types"

	"gopkg.in/yaml.v3"
)

type Config struct {
	InstanceID string                `yaml:"instance_id"`
	Server     ServerConfig          `yaml:"server"`
	Strip      hal.StripConfig       `yaml:"strip"`
	Display    DisplayConfig         `yaml:"display"`
	Button     ButtonConfig          `yaml:"button"`
	Webhook    WebhookConfig         `yaml:"webhook"`
	MQTT       MQTTConfig            `yaml:"mqtt"`
	Heartbeat  types.HeartbeatConfig `yaml:"heartbeat"`
	Log        LogConfig             `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type DisplayConfig struct {
	FPS         int           `yaml:"fps" json:"fps"`
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

type ButtonConfig struct {
	hal.LineConfig `yaml:",inline"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	HoldThreshold  time.Duration `yaml:"hold_threshold" json:"hold_threshold"`
	ClickTimeout   time.Duration `yaml:"click_timeout" json:"click_timeout"`
	Debounce       time.Duration `yaml:"debounce" json:"debounce"`
}

type WebhookConfig struct {
	URL         string        `yaml:"url" json:"url"` // registered at startup; /button_callback replaces it
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxInFlight int           `yaml:"max_in_flight" json:"max_in_flight"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" json:"broker"` // empty disables MQTT
	ClientID string `yaml:"client_id" json:"client_id"`
	Topic    string `yaml:"topic" json:"topic"`
	QoS      byte   `yaml:"qos" json:"qos"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		InstanceID: "ledcontrol",
		Server: ServerConfig{
			Addr:            ":4792",
			MaxBodyBytes:    16 << 20,
			ShutdownTimeout: 5 * time.Second,
		},
		Strip: hal.StripConfig{
			Driver:     hal.DriverSim,
			Pixels:     256,
			Brightness: 0.1,
		},
		Display: DisplayConfig{
			FPS:         30,
			IdleTimeout: time.Second,
		},
		Button: ButtonConfig{
			LineConfig: hal.LineConfig{
				Driver: hal.DriverNone,
				Chip:   "gpiochip0",
				Line:   23,
				Bias:   "up",
			},
			PollInterval:  50 * time.Millisecond,
			HoldThreshold: 500 * time.Millisecond,
			ClickTimeout:  300 * time.Millisecond,
		},
		Webhook:   WebhookConfig{Timeout: 2 * time.Second, MaxInFlight: 8},
		MQTT:      MQTTConfig{QoS: 1},
		Heartbeat: types.HeartbeatConfig{Interval: 30 * time.Second},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, Validate(cfg)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML onto cfg and validates it.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Validate rejects unusable values and fills the ones that have an obvious
// default. Out-of-range fps and brightness are left to the runtime clamp.
func Validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":4792"
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 16 << 20
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}

	if cfg.Strip.Pixels <= 0 {
		return invalid("strip.pixels must be > 0")
	}
	switch cfg.Strip.Driver {
	case "":
		cfg.Strip.Driver = hal.DriverSim
	case hal.DriverSim, hal.DriverWS2812:
		if !hal.StripDriverAvailable(cfg.Strip.Driver) {
			return invalid("strip.driver %q is not compiled into this build", cfg.Strip.Driver)
		}
	default:
		return invalid("strip.driver %q is not one of sim, ws2812", cfg.Strip.Driver)
	}

	if cfg.Display.IdleTimeout <= 0 {
		return invalid("display.idle_timeout must be > 0")
	}

	switch cfg.Button.Driver {
	case "":
		cfg.Button.Driver = hal.DriverNone
	case hal.DriverNone, hal.DriverGPIOCDev:
	default:
		return invalid("button.driver %q is not one of none, gpiocdev", cfg.Button.Driver)
	}
	switch cfg.Button.Bias {
	case "", "none", "up", "down":
	default:
		return invalid("button.bias %q is not one of none, up, down", cfg.Button.Bias)
	}
	if cfg.Button.PollInterval <= 0 {
		return invalid("button.poll_interval must be > 0")
	}
	if cfg.Button.HoldThreshold <= 0 || cfg.Button.ClickTimeout <= 0 {
		return invalid("button.hold_threshold and button.click_timeout must be > 0")
	}
	if cfg.Button.Debounce < 0 {
		return invalid("button.debounce must be >= 0")
	}

	u, err := notify.Target(cfg.Webhook.URL)
	if err != nil {
		return invalid("webhook.url %q: %v", cfg.Webhook.URL, err)
	}
	cfg.Webhook.URL = u
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = 2 * time.Second
	}
	if cfg.MQTT.QoS > 2 {
		return invalid("mqtt.qos must be 0, 1 or 2")
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = fmt.Sprintf("ledcontrol/%s/button", cfg.InstanceID)
	}
	if cfg.Heartbeat.Interval <= 0 {
		cfg.Heartbeat.Interval = 30 * time.Second
	}

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return invalid("%v", err)
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return invalid("log.format %q is not one of text, json", cfg.Log.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return &errcode.E{C: errcode.InvalidConfig, Op: "config.validate", Msg: fmt.Sprintf(format, args...)}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger builds the process logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// -----------------------------------------------------------------------------
// Config service
// -----------------------------------------------------------------------------

type Service struct {
	cfg *Config
}

func NewService(cfg *Config) *Service { return &Service{cfg: cfg} }

// Sections returns the payload published for each config/<section> topic.
func (s *Service) Sections() map[string]any {
	c := s.cfg
	return map[string]any{
		consts.SecServer:    c.Server,
		consts.SecStrip:     c.Strip,
		consts.SecDisplay:   c.Display,
		consts.SecButton:    c.Button,
		consts.SecWebhook:   c.Webhook,
		consts.SecMQTT:      c.MQTT,
		consts.SecHeartbeat: c.Heartbeat,
		consts.SecLog:       c.Log,
	}
}

// Start publishes every section as a retained message. Subscribers that
// arrive later receive them from the bus.
func (s *Service) Start(_ context.Context, conn *bus.Connection) error {
	for k, v := range s.Sections() {
		conn.Publish(conn.NewMessage(bus.T(consts.TokConfig, k), v, true))
	}
	return nil
}
