// Package state holds the process-wide control state shared by the HTTP
// control surface, the gesture detector and the animation player.
//
// Every field is guarded by a single mutex. Bytes pushed by the control
// surface land in a FIFO queue; the player moves them into an accumulator
// and takes exactly one frame (pixels*3 bytes) at a time, so partial colour
// groups are never consumed.
package state

import (
	"sync"
	"time"

	"ledcontrol-go/types"
	"ledcontrol-go/x/mathx"
	"ledcontrol-go/x/timex"
)

const (
	MinFPS     = 1
	MaxFPS     = 100
	DefaultFPS = 30

	MaxLevel = 255 // brightness levels are 0..MaxLevel on the wire

	BytesPerPixel = 3
)

// Command is a one-shot instruction for the player.
type Command int

const (
	CmdNone Command = iota
	CmdClear
)

func (c Command) String() string {
	switch c {
	case CmdClear:
		return "clear"
	default:
		return "none"
	}
}

// Frame is one full set of R,G,B triples, in strip order.
type Frame []byte

// Len returns the number of pixels in the frame.
func (f Frame) Len() int { return len(f) / BytesPerPixel }

// Pixel returns the colour of pixel i.
func (f Frame) Pixel(i int) (r, g, b uint8) {
	o := i * BytesPerPixel
	return f[o], f[o+1], f[o+2]
}

type Config struct {
	Pixels     int
	FPS        int
	Brightness float64 // [0,1]
}

type State struct {
	mu sync.Mutex

	pixels int

	queue   []byte // pushed, not yet seen by the player
	acc     []byte // accumulator owned by PopFrameIfReady
	accHead int    // bytes of acc already consumed
	cmd     Command
	pushed  bool

	brightness float64
	fps        int
	webhook    string

	blank       bool
	lastFrameAt time.Time

	done     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) *State {
	fps := cfg.FPS
	if fps == 0 {
		fps = DefaultFPS
	}
	return &State{
		pixels:     mathx.Max(cfg.Pixels, 1),
		fps:        mathx.Clamp(fps, MinFPS, MaxFPS),
		brightness: mathx.Clamp(cfg.Brightness, 0, 1),
		blank:      true,
		done:       make(chan struct{}),
	}
}

// Pixels returns the strip length this state frames bytes for.
func (s *State) Pixels() int { return s.pixels }

// FrameBytes is the size of one frame in bytes.
func (s *State) FrameBytes() int { return s.pixels * BytesPerPixel }

// ---- frame queue ----

// PushBytes appends a burst to the queue and returns the number of whole
// frames buffered afterwards. A burst is appended atomically.
func (s *State) PushBytes(b []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(b) > 0 {
		s.queue = append(s.queue, b...)
		s.pushed = true
	}
	return s.bufferedLocked() / s.FrameBytes()
}

// TakePushed reports whether bytes were pushed since the previous call.
func (s *State) TakePushed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pushed
	s.pushed = false
	return p
}

// PopFrameIfReady consumes a pending command, drains the queue into the
// accumulator and returns one frame if enough bytes are buffered. All three
// steps happen under one lock, so a clear never eats bytes pushed after it.
func (s *State) PopFrameIfReady() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.takeCommandLocked()
	if len(s.queue) > 0 {
		s.acc = append(s.acc, s.queue...)
		s.queue = s.queue[:0]
	}

	n := s.FrameBytes()
	if len(s.acc)-s.accHead < n {
		return nil, false
	}
	f := make(Frame, n)
	copy(f, s.acc[s.accHead:s.accHead+n])
	s.accHead += n

	switch {
	case s.accHead == len(s.acc):
		s.acc = s.acc[:0]
		s.accHead = 0
	case s.accHead > cap(s.acc)/2:
		m := copy(s.acc, s.acc[s.accHead:])
		s.acc = s.acc[:m]
		s.accHead = 0
	}
	return f, true
}

// RequestClear drops everything queued so far and asks the player to
// discard its accumulator on the next tick.
func (s *State) RequestClear() {
	s.mu.Lock()
	s.queue = s.queue[:0]
	s.cmd = CmdClear
	s.mu.Unlock()
}

// TakeAndClearCommand consumes the pending command, applying its effect on
// the accumulator, and returns it.
func (s *State) TakeAndClearCommand() Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeCommandLocked()
}

func (s *State) takeCommandLocked() Command {
	c := s.cmd
	if c == CmdClear {
		s.acc = s.acc[:0]
		s.accHead = 0
	}
	s.cmd = CmdNone
	return c
}

// Buffered returns queued plus accumulated bytes that will still be rendered.
func (s *State) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferedLocked()
}

func (s *State) bufferedLocked() int {
	n := len(s.queue)
	if s.cmd != CmdClear {
		n += len(s.acc) - s.accHead
	}
	return n
}

// FrameCount returns the number of whole frames buffered.
func (s *State) FrameCount() int { return s.Buffered() / s.FrameBytes() }

// ---- parameters ----

// SetBrightness clamps level to 0..255 and stores it scaled to [0,1].
func (s *State) SetBrightness(level int) float64 {
	v := mathx.Unit(level, MaxLevel)
	s.mu.Lock()
	s.brightness = v
	s.mu.Unlock()
	return v
}

func (s *State) Brightness() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brightness
}

// SetFPS clamps fps to 1..100 and stores it. The player picks it up on its
// next tick.
func (s *State) SetFPS(fps int) int {
	v := mathx.Clamp(fps, MinFPS, MaxFPS)
	s.mu.Lock()
	s.fps = v
	s.mu.Unlock()
	return v
}

func (s *State) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// Period is the current render tick period.
func (s *State) Period() time.Duration { return timex.PeriodFromHz(s.FPS()) }

// ---- webhook ----

// SetWebhook registers the gesture callback URL; "" unregisters it.
func (s *State) SetWebhook(url string) {
	s.mu.Lock()
	s.webhook = url
	s.mu.Unlock()
}

func (s *State) Webhook() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webhook, s.webhook != ""
}

// ---- render reporting ----

// ReportRender records the player's view of the display.
func (s *State) ReportRender(blank bool, lastFrameAt time.Time) {
	s.mu.Lock()
	s.blank = blank
	s.lastFrameAt = lastFrameAt
	s.mu.Unlock()
}

// ---- lifecycle ----

// RequestShutdown closes the stop token. Safe to call more than once.
func (s *State) RequestShutdown() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Done is closed once shutdown has been requested.
func (s *State) Done() <-chan struct{} { return s.done }

func (s *State) IsRunning() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Snapshot returns a consistent view of the display state.
func (s *State) Snapshot() types.DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.bufferedLocked()
	return types.DisplayState{
		Pixels:         s.pixels,
		FPS:            s.fps,
		Brightness:     s.brightness,
		BufferedBytes:  buf,
		BufferedFrames: buf / s.FrameBytes(),
		Blank:          s.blank,
		LastFrameAt:    s.lastFrameAt,
		Webhook:        s.webhook != "",
		Running:        s.IsRunning(),
	}
}
