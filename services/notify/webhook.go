// services/notify/webhook.go

// Package notify delivers gestures to the outside world: an HTTP webhook
// registered through the control surface and, optionally, an MQTT broker.
package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/errcode"
	"ledcontrol-go/services/gesture"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"
	"ledcontrol-go/x/strx"
)

const (
	DefaultWebhookTimeout = 2 * time.Second
	DefaultMaxInFlight    = 8
)

type WebhookConfig struct {
	Timeout     time.Duration
	MaxInFlight int // deliveries beyond this are dropped
}

// Webhook calls the registered callback URL once per gesture. Delivery is
// best effort: failures are logged and dropped, never retried.
type Webhook struct {
	st     *state.State
	client *http.Client
	log    *slog.Logger
	slots  chan struct{}

	wg   sync.WaitGroup
	done chan struct{}

	mu        sync.Mutex
	delivered int
	failed    int
	dropped   int
}

func NewWebhook(cfg WebhookConfig, st *state.State, log *slog.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		st:     st,
		client: &http.Client{Timeout: cfg.Timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
		log:    log.With("service", "webhook"),
		slots:  make(chan struct{}, cfg.MaxInFlight),
		done:   make(chan struct{}),
	}
}

// Target normalises a callback URL as registered by a client. A URL given
// without a scheme is taken as http, the way curl reads it. The result must
// be an absolute http or https URL with a host; "" stays "".
func Target(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errcode.Wrap(errcode.InvalidParams, "notify.target", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &errcode.E{C: errcode.InvalidParams, Op: "notify.target", Msg: "scheme " + u.Scheme}
	}
	if u.Host == "" {
		return "", &errcode.E{C: errcode.InvalidParams, Op: "notify.target", Msg: "missing host"}
	}
	return u.String(), nil
}

// CallbackURL appends count and hold to base, keeping any existing query.
func CallbackURL(base string, g types.Gesture) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errcode.Wrap(errcode.InvalidParams, "notify.callback_url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &errcode.E{C: errcode.InvalidParams, Op: "notify.callback_url", Msg: "scheme " + strx.Coalesce(u.Scheme, "(none)")}
	}
	q := u.Query()
	q.Set("count", strconv.Itoa(g.Count))
	q.Set("hold", strx.BoolDigit(g.Hold))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start subscribes to gestures and dispatches them until ctx is cancelled
// or shutdown is requested.
func (w *Webhook) Start(ctx context.Context, conn *bus.Connection) error {
	sub := conn.Subscribe(gesture.TopicGesture)
	go w.loop(ctx, conn, sub)
	return nil
}

// Done is closed after the loop has exited and in-flight deliveries finished.
func (w *Webhook) Done() <-chan struct{} { return w.done }

func (w *Webhook) loop(ctx context.Context, conn *bus.Connection, sub *bus.Subscription) {
	defer close(w.done)
	defer w.client.CloseIdleConnections()
	defer w.wg.Wait()
	defer conn.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.st.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			if g, ok := m.Payload.(types.Gesture); ok {
				w.Dispatch(ctx, g)
			}
		}
	}
}

// Dispatch starts an asynchronous delivery of g to the registered URL, if
// any. It never blocks.
func (w *Webhook) Dispatch(ctx context.Context, g types.Gesture) {
	base, ok := w.st.Webhook()
	if !ok {
		return
	}
	target, err := CallbackURL(base, g)
	if err != nil {
		w.count(&w.failed)
		w.log.Debug("webhook url rejected", "url", base, "err", err)
		return
	}

	select {
	case w.slots <- struct{}{}:
	default:
		w.count(&w.dropped)
		w.log.Debug("webhook dropped, too many in flight", "gesture", g.ID)
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.slots }()
		w.deliver(ctx, target, g)
	}()
}

func (w *Webhook) deliver(ctx context.Context, target string, g types.Gesture) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		w.count(&w.failed)
		w.log.Debug("webhook request", "err", err)
		return
	}
	if g.ID != "" {
		req.Header.Set("X-Gesture-Id", g.ID)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.count(&w.failed)
		w.log.Debug("webhook delivery failed", "gesture", g.ID, "err", errcode.Wrap(errcode.DeliveryFail, "notify.webhook", err))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	w.count(&w.delivered)
	w.log.Debug("webhook delivered", "gesture", g.ID, "status", resp.StatusCode)
}

func (w *Webhook) count(c *int) {
	w.mu.Lock()
	*c++
	w.mu.Unlock()
}

// Stats returns delivered, failed and dropped counts.
func (w *Webhook) Stats() (delivered, failed, dropped int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delivered, w.failed, w.dropped
}
