// gesturetest polls a button line and prints every gesture it recognises.
// Bench tool for tuning hold and click timings against real hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/services/gesture"
	"ledcontrol-go/services/hal"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"
)

func main() {
	driver := flag.String("driver", hal.DriverGPIOCDev, "input driver: gpiocdev or none")
	chip := flag.String("chip", "gpiochip0", "gpio chip")
	line := flag.Int("line", 23, "gpio line offset")
	bias := flag.String("bias", "up", "bias: none, up, down")
	activeLow := flag.Bool("active-low", true, "line reads low when pressed")
	hold := flag.Duration("hold", gesture.DefaultHoldThreshold, "hold threshold")
	click := flag.Duration("click", gesture.DefaultClickTimeout, "click timeout")
	debounce := flag.Duration("debounce", 0, "debounce window")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	in, err := hal.OpenLine(hal.LineConfig{
		Driver:    *driver,
		Chip:      *chip,
		Line:      *line,
		Bias:      *bias,
		ActiveLow: *activeLow,
		Consumer:  "gesturetest",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "gesturetest:", err)
		os.Exit(1)
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(8)
	mon := b.NewConnection("monitor")
	sub := mon.Subscribe(gesture.TopicGesture)

	st := state.New(state.Config{Pixels: 1})
	svc := gesture.NewService(gesture.Config{
		HoldThreshold: *hold,
		ClickTimeout:  *click,
		Debounce:      *debounce,
	}, in, st, log)
	if err := svc.Start(ctx, b.NewConnection("gesture")); err != nil {
		fmt.Fprintln(os.Stderr, "gesturetest:", err)
		os.Exit(1)
	}

	fmt.Printf("polling %s line %d, ctrl-c to stop\n", *chip, *line)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			g := m.Payload.(types.Gesture)
			fmt.Printf("%s  count=%d hold=%v\n", g.At.Format(time.TimeOnly), g.Count, g.Hold)
		}
	}
}
