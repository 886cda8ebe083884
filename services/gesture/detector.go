// services/gesture/detector.go

// Package gesture turns a polled button level into click/hold gestures.
package gesture

import (
	"time"

	"ledcontrol-go/types"
)

// Defaults
const (
	DefaultPollInterval  = 50 * time.Millisecond
	DefaultHoldThreshold = 500 * time.Millisecond
	DefaultClickTimeout  = 300 * time.Millisecond
)

type Config struct {
	PollInterval  time.Duration
	HoldThreshold time.Duration
	ClickTimeout  time.Duration
	Debounce      time.Duration // edges closer than this to the previous accepted edge are ignored
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HoldThreshold <= 0 {
		c.HoldThreshold = DefaultHoldThreshold
	}
	if c.ClickTimeout <= 0 {
		c.ClickTimeout = DefaultClickTimeout
	}
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	return c
}

// Phase is the detector's externally visible state.
type Phase int

const (
	Idle Phase = iota
	Pressed
	AwaitingMoreClicks
)

func (p Phase) String() string {
	switch p {
	case Pressed:
		return "pressed"
	case AwaitingMoreClicks:
		return "awaiting"
	default:
		return "idle"
	}
}

// Detector is the click/hold state machine. It is not safe for concurrent
// use; a single poll loop owns it.
type Detector struct {
	cfg Config

	level    bool      // last accepted level
	lastEdge time.Time // time of last accepted edge

	pressing     bool
	pressedSince time.Time

	pending     int
	lastClickAt time.Time
	lastHold    bool
	holdDone    bool // a long hold completed on this step and flushes immediately
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

func (d *Detector) Config() Config { return d.cfg }

func (d *Detector) Phase() Phase {
	switch {
	case d.pressing:
		return Pressed
	case d.pending > 0:
		return AwaitingMoreClicks
	default:
		return Idle
	}
}

// Step feeds one sample taken at now and returns a gesture when a burst
// completes. The returned Gesture has only Count and Hold set.
func (d *Detector) Step(now time.Time, pressed bool) (types.Gesture, bool) {
	if pressed != d.level && d.acceptEdge(now) {
		d.level = pressed
		d.lastEdge = now
		if pressed {
			d.pressing = true
			d.pressedSince = now
		} else if d.pressing {
			d.complete(now, now.Sub(d.pressedSince) > d.cfg.HoldThreshold)
		}
	}

	// Long hold completes the click without waiting for release. The release
	// that eventually follows finds pressing=false and is not counted.
	if d.pressing && now.Sub(d.pressedSince) > d.cfg.HoldThreshold {
		d.complete(now, true)
		d.holdDone = true
	}

	if d.pending == 0 || d.pressing {
		return types.Gesture{}, false
	}
	if !d.holdDone && now.Sub(d.lastClickAt) <= d.cfg.ClickTimeout {
		return types.Gesture{}, false
	}
	g := types.Gesture{Count: d.pending, Hold: d.lastHold}
	d.pending = 0
	d.holdDone = false
	return g, true
}

func (d *Detector) acceptEdge(now time.Time) bool {
	return d.cfg.Debounce == 0 || d.lastEdge.IsZero() || now.Sub(d.lastEdge) >= d.cfg.Debounce
}

func (d *Detector) complete(now time.Time, hold bool) {
	d.lastHold = hold
	d.pending++
	d.lastClickAt = now
	d.pressing = false
	d.pressedSince = time.Time{}
}
