// services/gesture/service.go
package gesture

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

	"github.com/google/uuid"
)

var (
	TopicGesture = bus.T(consts.TokButton, consts.TokGesture)
	TopicInfo    = bus.T(consts.TokButton, consts.TokInfo)
)

// Service polls the button line and publishes gestures on the bus.
type Service struct {
	det   *Detector
	line  hal.InputLine
	st    *state.State
	info  types.ButtonInfo
	log   *slog.Logger
	clock timex.Clock

	readErrs int
}

type Option func(*Service)

// WithClock replaces the sampling clock (tests).
func WithClock(c timex.Clock) Option { return func(s *Service) { s.clock = c } }

// WithInfo sets the retained button/info payload.
func WithInfo(info types.ButtonInfo) Option { return func(s *Service) { s.info = info } }

func NewService(cfg Config, line hal.InputLine, st *state.State, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		det:   NewDetector(cfg),
		line:  line,
		st:    st,
		log:   log.With("service", "gesture"),
		clock: timex.System,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start runs the poll loop in its own goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.Run(ctx, conn)
	return nil
}

// Run polls until ctx is cancelled or shutdown is requested on the shared
// state. The poll interval is fixed for the life of the loop.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) {
	conn.Publish(conn.NewMessage(TopicInfo, s.info, true))
	s.log.Info("gesture detector running",
		"poll", s.det.cfg.PollInterval,
		"hold_threshold", s.det.cfg.HoldThreshold,
		"click_timeout", s.det.cfg.ClickTimeout)

	tick := time.NewTicker(s.det.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("gesture detector stopping")
			return
		case <-s.st.Done():
			s.log.Info("gesture detector stopping")
			return
		case <-tick.C:
			s.poll(conn)
		}
	}
}

func (s *Service) poll(conn *bus.Connection) {
	pressed, err := s.line.Get()
	if err != nil {
		// log the first failure of a run, then every 100th
		if s.readErrs%100 == 0 {
			s.log.Warn("button read failed", "err", err, "count", s.readErrs+1)
		}
		s.readErrs++
		pressed = false
	} else {
		s.readErrs = 0
	}

	now := s.clock()
	g, ok := s.det.Step(now, pressed)
	if !ok {
		return
	}
	g.ID = uuid.NewString()
	g.At = now
	s.log.Debug("gesture", "id", g.ID, "count", g.Count, "hold", g.Hold)
	conn.Publish(conn.NewMessage(TopicGesture, g, false))
}
