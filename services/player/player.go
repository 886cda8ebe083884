// services/player/player.go

// Package player renders queued frames to the strip at a fixed rate and
// blanks the strip after an idle timeout.
package player

import (
	"context"
	"log/slog"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/services/consts"
	"ledcontrol-go/services/hal"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"
	"ledcontrol-go/x/timex"
)

const DefaultIdleTimeout = time.Second

var TopicDisplayState = bus.T(consts.TokDisplay, consts.TokState)

type Config struct {
	IdleTimeout time.Duration
}

// Player owns the strip. Tick and Run must be called from one goroutine.
type Player struct {
	st    *state.State
	strip hal.Strip
	conn  *bus.Connection
	log   *slog.Logger
	clock timex.Clock
	idle  time.Duration

	brightness float64 // last value applied to the strip, -1 before the first tick
	blank      bool
	published  bool // display/state has been published at least once

	idleArmed   bool
	idleSince   time.Time
	lastFrameAt time.Time

	rendered int
	faults   int
}

type Option func(*Player)

func WithClock(c timex.Clock) Option { return func(p *Player) { p.clock = c } }

// New builds a player. conn may be nil, in which case nothing is published.
func New(cfg Config, st *state.State, strip hal.Strip, conn *bus.Connection, log *slog.Logger, opts ...Option) *Player {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Player{
		st:         st,
		strip:      strip,
		conn:       conn,
		log:        log.With("service", "player"),
		clock:      timex.System,
		idle:       cfg.IdleTimeout,
		brightness: -1,
		blank:      true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Blank reports whether the strip is currently showing the idle blank frame.
func (p *Player) Blank() bool { return p.blank }

// Rendered is the number of frames shown, excluding blank frames.
func (p *Player) Rendered() int { return p.rendered }

// Tick runs one render step at now.
func (p *Player) Tick(now time.Time) {
	if b := p.st.Brightness(); b != p.brightness {
		p.strip.SetBrightness(b)
		p.brightness = b
	}

	// A push is activity even before it completes a frame.
	if p.st.TakePushed() {
		p.setBlank(false, now)
		p.idleArmed = false
	}

	if f, ok := p.st.PopFrameIfReady(); ok {
		n := min(f.Len(), p.strip.Len())
		for i := 0; i < n; i++ {
			r, g, b := f.Pixel(i)
			p.strip.SetPixel(i, r, g, b)
		}
		if err := p.strip.Show(); err != nil {
			p.fault("show frame", err)
			return
		}
		p.rendered++
		p.lastFrameAt = now
		p.idleArmed = false
		p.setBlank(false, now)
		return
	}

	if !p.idleArmed {
		p.idleArmed = true
		p.idleSince = now
	}
	if !p.blank && now.Sub(p.idleSince) >= p.idle {
		p.strip.Clear()
		if err := p.strip.Show(); err != nil {
			p.fault("idle clear", err)
			return
		}
		p.setBlank(true, now)
	}
}

func (p *Player) fault(what string, err error) {
	p.faults++
	p.log.Error("strip fault", "op", what, "err", err, "faults", p.faults)
}

func (p *Player) setBlank(blank bool, now time.Time) {
	if p.published && blank == p.blank {
		return
	}
	p.blank = blank
	p.published = true
	p.st.ReportRender(blank, p.lastFrameAt)
	if p.conn != nil {
		p.conn.Publish(p.conn.NewMessage(TopicDisplayState, types.BlankChange{Blank: blank, At: now}, true))
	}
	p.log.Debug("display", "blank", blank)
}

// blankStrip clears and shows the strip, used at start and on exit.
func (p *Player) blankStrip(now time.Time) {
	p.strip.Clear()
	if err := p.strip.Show(); err != nil {
		p.fault("blank", err)
	}
	p.setBlank(true, now)
}

// Run blanks the strip, then ticks every state.Period() until ctx is
// cancelled or shutdown is requested, and blanks the strip again on exit.
// The period is re-read on every tick.
func (p *Player) Run(ctx context.Context) {
	p.strip.SetBrightness(p.st.Brightness())
	p.brightness = p.st.Brightness()
	p.blankStrip(p.clock())
	p.log.Info("player running", "pixels", p.strip.Len(), "fps", p.st.FPS(), "idle_timeout", p.idle)

	timer := time.NewTimer(0)
	defer timer.Stop()
	timex.DrainTimer(timer)

	for {
		start := p.clock()
		p.Tick(start)

		timex.ResetTimer(timer, timex.Remaining(p.st.Period(), p.clock().Sub(start)))
		select {
		case <-ctx.Done():
			p.stop()
			return
		case <-p.st.Done():
			p.stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Player) stop() {
	p.blankStrip(p.clock())
	p.log.Info("player stopped", "rendered", p.rendered)
}

// Start runs the player in its own goroutine.
func (p *Player) Start(ctx context.Context) error {
	go p.Run(ctx)
	return nil
}
