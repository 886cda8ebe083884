package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/services/consts"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"
	"ledcontrol-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T(consts.TokConfig, consts.SecHeartbeat)
	TopicState           = bus.T(consts.TokService, "heartbeat", consts.TokState)
)

const defaultInterval = 30 * time.Second

// Service logs a status line every interval. The interval follows the
// retained config/heartbeat message.
type Service struct {
	st       *state.State
	log      *slog.Logger
	done     chan struct{}
	observer chan<- types.DisplayState
}

type Option func(*Service)

// WithObserver sends each heartbeat snapshot to ch. A full channel skips the
// send; the log line is still written.
func WithObserver(ch chan<- types.DisplayState) Option {
	return func(s *Service) { s.observer = ch }
}

func New(st *state.State, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{st: st, log: log.With("service", "heartbeat"), done: make(chan struct{})}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) publishState(conn *bus.Connection, level, status string) {
	conn.Publish(conn.NewMessage(TopicState, types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}, true))
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, cfgSub *bus.Subscription) {
	defer close(s.done)
	defer conn.Unsubscribe(cfgSub)

	interval := defaultInterval
	tick := time.NewTicker(interval)
	defer tick.Stop()
	s.publishState(conn, consts.LevelRunning, "ok")

	// loop until stopped, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			s.publishState(conn, consts.LevelStopped, "ctx_done")
			s.log.Info("heartbeat service stopping")
			return
		case <-s.st.Done():
			s.publishState(conn, consts.LevelStopped, "shutdown")
			s.log.Info("heartbeat service stopping")
			return
		case <-tick.C:
			snap := s.st.Snapshot()
			s.log.Info("heartbeat",
				"fps", snap.FPS,
				"brightness", snap.Brightness,
				"buffered_frames", snap.BufferedFrames,
				"blank", snap.Blank,
				"webhook", snap.Webhook)
			if s.observer != nil {
				select {
				case s.observer <- snap:
				default:
				}
			}
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			hc, ok := msg.Payload.(types.HeartbeatConfig)
			if !ok || hc.Interval <= 0 || hc.Interval == interval {
				continue
			}
			interval = hc.Interval
			tick.Reset(interval)
			s.log.Info("heartbeat interval set", "interval", interval)
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.publishState(conn, consts.LevelStarting, "init")
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	go s.serviceLoop(ctx, conn, cfgSub)
	return nil
}

// Done is closed when the service loop has returned.
func (s *Service) Done() <-chan struct{} { return s.done }
