// ledcontrold drives an addressable LED strip from HTTP animation pushes
// and reports push-button gestures to a webhook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/services/config"
	"ledcontrol-go/services/gesture"
	"ledcontrol-go/services/hal"
	"ledcontrol-go/services/heartbeat"
	"ledcontrol-go/services/httpapi"
	"ledcontrol-go/services/notify"
	"ledcontrol-go/services/player"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (defaults built in)")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	pixels := flag.Int("pixels", 0, "strip length, overrides strip.pixels")
	logLevel := flag.String("log-level", "", "overrides log.level")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledcontrold:", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *pixels > 0 {
		cfg.Strip.Pixels = *pixels
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
		if err := config.Validate(cfg); err != nil {
			fmt.Fprintln(os.Stderr, "ledcontrold:", err)
			os.Exit(2)
		}
	}

	log := cfg.Log.NewLogger(os.Stderr).With("instance", cfg.InstanceID)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := state.New(state.Config{
		Pixels:     cfg.Strip.Pixels,
		FPS:        cfg.Display.FPS,
		Brightness: cfg.Strip.Brightness,
	})
	if cfg.Webhook.URL != "" {
		st.SetWebhook(cfg.Webhook.URL)
	}
	// a signal and /shutdown share the same stop token
	go func() {
		select {
		case <-ctx.Done():
			log.Info("signal received, shutting down")
			st.RequestShutdown()
		case <-st.Done():
		}
	}()

	strip, err := hal.OpenStrip(cfg.Strip)
	if err != nil {
		return fmt.Errorf("open strip: %w", err)
	}
	line, err := hal.OpenLine(cfg.Button.LineConfig)
	if err != nil {
		return fmt.Errorf("open button line: %w", err)
	}
	defer line.Close()

	b := bus.NewBus(16)

	if err := config.NewService(cfg).Start(ctx, b.NewConnection("config")); err != nil {
		return fmt.Errorf("config service: %w", err)
	}
	hb := heartbeat.New(st, log)
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return fmt.Errorf("heartbeat service: %w", err)
	}

	wh := notify.NewWebhook(notify.WebhookConfig{
		Timeout:     cfg.Webhook.Timeout,
		MaxInFlight: cfg.Webhook.MaxInFlight,
	}, st, log)
	if err := wh.Start(ctx, b.NewConnection("webhook")); err != nil {
		return fmt.Errorf("webhook notifier: %w", err)
	}

	var mq *notify.MQTT
	if cfg.MQTT.Broker != "" {
		mq = notify.NewMQTT(notify.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, st, log)
		if err := mq.Connect(ctx); err != nil {
			// gestures still go to the webhook
			log.Warn("mqtt disabled", "broker", cfg.MQTT.Broker, "err", err)
			mq = nil
		} else if err := mq.Start(ctx, b.NewConnection("mqtt")); err != nil {
			return fmt.Errorf("mqtt notifier: %w", err)
		}
	}

	gs := gesture.NewService(gesture.Config{
		PollInterval:  cfg.Button.PollInterval,
		HoldThreshold: cfg.Button.HoldThreshold,
		ClickTimeout:  cfg.Button.ClickTimeout,
		Debounce:      cfg.Button.Debounce,
	}, line, st, log, gesture.WithInfo(types.ButtonInfo{
		Driver:    cfg.Button.Driver,
		Chip:      cfg.Button.Chip,
		Line:      cfg.Button.Line,
		ActiveLow: cfg.Button.ActiveLow,
	}))
	gestureDone := make(chan struct{})
	go func() {
		defer close(gestureDone)
		gs.Run(ctx, b.NewConnection("gesture"))
	}()

	pl := player.New(player.Config{IdleTimeout: cfg.Display.IdleTimeout}, st, strip, b.NewConnection("player"), log)
	playerDone := make(chan struct{})
	go func() {
		defer close(playerDone)
		pl.Run(ctx)
	}()

	api := httpapi.New(httpapi.Config{MaxBodyBytes: cfg.Server.MaxBodyBytes}, st, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-st.Done():
	case err := <-srvErr:
		if err != nil {
			st.RequestShutdown()
			<-playerDone
			<-gestureDone
			return fmt.Errorf("http server: %w", err)
		}
	}

	// loops blank the strip and return on their own
	<-playerDone
	<-gestureDone

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", "err", err)
	}

	<-wh.Done()
	<-hb.Done()
	if mq != nil {
		<-mq.Done()
	}
	log.Info("stopped")
	return nil
}
