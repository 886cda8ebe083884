// services/notify/mqtt.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/errcode"
	"ledcontrol-go/services/gesture"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	quiesceMs      = 250
)

type MQTTConfig struct {
	Broker   string // host:port or a full URL such as tcp://host:1883
	ClientID string
	Topic    string
	QoS      byte
	Username string
	Password string
}

// publisher is the subset of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTT publishes gestures as JSON to a broker.
type MQTT struct {
	cfg    MQTTConfig
	st     *state.State
	log    *slog.Logger
	client publisher
	done   chan struct{}

	mu        sync.Mutex
	published uint64
	errors    uint64
}

func NewMQTT(cfg MQTTConfig, st *state.State, log *slog.Logger) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "ledcontrol-" + uuid.NewString()[:8]
	}
	if cfg.Topic == "" {
		cfg.Topic = "ledcontrol/" + cfg.ClientID + "/button"
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &MQTT{cfg: cfg, st: st, log: log.With("service", "mqtt"), done: make(chan struct{})}
}

func (m *MQTT) Topic() string { return m.cfg.Topic }

func brokerURL(b string) string {
	if strings.Contains(b, "://") {
		return b
	}
	return "tcp://" + b
}

// Connect dials the broker. Paho reconnects on its own after a drop.
func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		m.log.Info("mqtt connected", "broker", m.cfg.Broker, "client_id", m.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.log.Warn("mqtt connection lost, reconnecting", "broker", m.cfg.Broker, "err", err)
	}

	c := mqtt.NewClient(opts)
	tok := c.Connect()

	wait := connectTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
		wait = time.Until(dl)
	}
	if !tok.WaitTimeout(wait) {
		c.Disconnect(0)
		return &errcode.E{C: errcode.Timeout, Op: "notify.mqtt.connect", Msg: m.cfg.Broker}
	}
	if err := tok.Error(); err != nil {
		return errcode.Wrap(errcode.Unavailable, "notify.mqtt.connect", err)
	}
	m.client = c
	return nil
}

// Publish sends one gesture and waits a bounded time for the broker.
func (m *MQTT) Publish(g types.Gesture) error {
	if m.client == nil || !m.client.IsConnectionOpen() {
		m.countErr()
		return &errcode.E{C: errcode.Unavailable, Op: "notify.mqtt.publish", Msg: "not connected"}
	}
	payload, err := json.Marshal(g)
	if err != nil {
		m.countErr()
		return fmt.Errorf("marshal gesture: %w", err)
	}
	tok := m.client.Publish(m.cfg.Topic, m.cfg.QoS, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		m.countErr()
		return &errcode.E{C: errcode.Timeout, Op: "notify.mqtt.publish"}
	}
	if err := tok.Error(); err != nil {
		m.countErr()
		return errcode.Wrap(errcode.DeliveryFail, "notify.mqtt.publish", err)
	}
	m.mu.Lock()
	m.published++
	m.mu.Unlock()
	m.log.Debug("gesture published", "topic", m.cfg.Topic, "id", g.ID, "size", len(payload))
	return nil
}

func (m *MQTT) countErr() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

// Stats returns published and failed counts.
func (m *MQTT) Stats() (published, errors uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published, m.errors
}

// Start subscribes to gestures and publishes each one until ctx is
// cancelled or shutdown is requested, then disconnects.
func (m *MQTT) Start(ctx context.Context, conn *bus.Connection) error {
	if m.client == nil {
		return &errcode.E{C: errcode.Unavailable, Op: "notify.mqtt.start", Msg: "not connected"}
	}
	sub := conn.Subscribe(gesture.TopicGesture)
	go m.loop(ctx, conn, sub)
	return nil
}

func (m *MQTT) Done() <-chan struct{} { return m.done }

func (m *MQTT) loop(ctx context.Context, conn *bus.Connection, sub *bus.Subscription) {
	defer close(m.done)
	defer m.client.Disconnect(quiesceMs)
	defer conn.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.st.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			g, ok := msg.Payload.(types.Gesture)
			if !ok {
				continue
			}
			if err := m.Publish(g); err != nil {
				m.log.Debug("gesture not published", "id", g.ID, "err", err)
			}
		}
	}
}
