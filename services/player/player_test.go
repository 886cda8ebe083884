package player

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"ledcontrol-go/bus"
	"ledcontrol-go/services/hal"
	"ledcontrol-go/services/state"
	"ledcontrol-go/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time { return t0.Add(time.Duration(n) * time.Millisecond) }

func newRig(pixels int) (*state.State, *hal.MemStrip, *Player) {
	st := state.New(state.Config{Pixels: pixels, FPS: 30, Brightness: 1})
	strip := hal.NewMemStrip(pixels)
	return st, strip, New(Config{IdleTimeout: time.Second}, st, strip, nil, nil)
}

func TestTickRendersFramesInOrder(t *testing.T) {
	st, strip, p := newRig(2)
	st.PushBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13})

	p.Tick(ms(0))
	p.Tick(ms(33))
	p.Tick(ms(66))

	shown := strip.Shown()
	if len(shown) != 2 {
		t.Fatalf("shown %d frames, want 2", len(shown))
	}
	if !bytes.Equal(shown[0], []byte{1, 2, 3, 4, 5, 6}) || !bytes.Equal(shown[1], []byte{7, 8, 9, 10, 11, 12}) {
		t.Fatalf("frames = %v", shown)
	}
	if st.Buffered() != 1 {
		t.Fatalf("remainder = %d", st.Buffered())
	}
	if p.Blank() {
		t.Fatal("blank after rendering")
	}
}

func TestIdleClearExactlyOnce(t *testing.T) {
	st, strip, p := newRig(1)
	st.PushBytes([]byte{9, 9, 9})
	p.Tick(ms(0))

	for n := 33; n <= 3000; n += 33 {
		p.Tick(ms(n))
	}
	if got := strip.ShowCount(); got != 2 {
		t.Fatalf("Show called %d times, want frame + one clear", got)
	}
	if last := strip.Shown()[1]; !bytes.Equal(last, []byte{0, 0, 0}) {
		t.Fatalf("clear frame = %v", last)
	}
	if !p.Blank() || !st.Snapshot().Blank {
		t.Fatal("not blank after idle timeout")
	}
}

func TestIdleClearTiming(t *testing.T) {
	st, strip, p := newRig(1)
	st.PushBytes([]byte{1, 1, 1})
	p.Tick(ms(0))  // frame
	p.Tick(ms(10)) // first idle tick arms the timer
	p.Tick(ms(1009))
	if p.Blank() || strip.ShowCount() != 1 {
		t.Fatal("cleared before the idle timeout")
	}
	p.Tick(ms(1010))
	if !p.Blank() || strip.ShowCount() != 2 {
		t.Fatal("not cleared at the idle timeout")
	}
}

func TestPartialPushCountsAsActivity(t *testing.T) {
	st, strip, p := newRig(2)
	p.Tick(ms(0))
	if !p.Blank() {
		t.Fatal("not blank at start")
	}

	st.PushBytes([]byte{1, 2})
	p.Tick(ms(10))
	if p.Blank() {
		t.Fatal("partial push should leave blank state")
	}
	if strip.ShowCount() != 0 {
		t.Fatal("rendered a partial frame")
	}
	p.Tick(ms(1009))
	if p.Blank() {
		t.Fatal("blanked before idle timeout from the push")
	}
	p.Tick(ms(1010))
	if !p.Blank() {
		t.Fatal("not blank after idle timeout")
	}
}

func TestNewFrameRestartsIdle(t *testing.T) {
	st, strip, p := newRig(1)
	st.PushBytes([]byte{1, 1, 1})
	p.Tick(ms(0))
	p.Tick(ms(500))
	st.PushBytes([]byte{2, 2, 2})
	p.Tick(ms(900))
	p.Tick(ms(1000))
	p.Tick(ms(1600))
	if p.Blank() {
		t.Fatal("idle timer not restarted by the second frame")
	}
	p.Tick(ms(2000))
	if !p.Blank() {
		t.Fatal("not blank 1s after the last idle tick began")
	}
	if strip.ShowCount() != 3 {
		t.Fatalf("Show count = %d", strip.ShowCount())
	}
}

func TestRepeatedClearLeavesBlank(t *testing.T) {
	st, _, p := newRig(2)
	st.PushBytes([]byte{1, 2, 3, 4})
	p.Tick(ms(0))
	for i := 0; i < 3; i++ {
		st.RequestClear()
	}
	p.Tick(ms(33))
	if st.Buffered() != 0 {
		t.Fatalf("Buffered = %d", st.Buffered())
	}
	p.Tick(ms(1100))
	if !p.Blank() {
		t.Fatal("not blank after clear and idle timeout")
	}
}

func TestBrightnessAppliedOnChange(t *testing.T) {
	st, strip, p := newRig(1)
	p.Tick(ms(0))
	if strip.Brightness() != 1 {
		t.Fatalf("brightness = %v", strip.Brightness())
	}
	st.SetBrightness(51)
	p.Tick(ms(33))
	if strip.Brightness() != 0.2 {
		t.Fatalf("brightness = %v, want 0.2", strip.Brightness())
	}
}

func TestShowErrorAbortsTick(t *testing.T) {
	st, strip, p := newRig(1)
	strip.FailNextShow(errors.New("spi timeout"))
	st.PushBytes([]byte{5, 5, 5, 6, 6, 6})

	p.Tick(ms(0))
	if p.Rendered() != 0 {
		t.Fatal("failed show counted as rendered")
	}
	p.Tick(ms(33))
	if p.Rendered() != 1 || !bytes.Equal(strip.Shown()[0], []byte{6, 6, 6}) {
		t.Fatalf("next tick did not render the next frame: %v", strip.Shown())
	}
}

func TestPublishesBlankChanges(t *testing.T) {
	st := state.New(state.Config{Pixels: 1})
	b := bus.NewBus(8)
	conn := b.NewConnection("player-test")
	sub := conn.Subscribe(TopicDisplayState)
	p := New(Config{}, st, hal.NewMemStrip(1), conn, nil)

	st.PushBytes([]byte{1, 2, 3})
	p.Tick(ms(0))
	p.Tick(ms(100))
	p.Tick(ms(1100))

	var got []bool
	for len(got) < 2 {
		select {
		case m := <-sub.Channel():
			got = append(got, m.Payload.(types.BlankChange).Blank)
		case <-time.After(time.Second):
			t.Fatalf("missing display/state messages, got %v", got)
		}
	}
	if got[0] || !got[1] {
		t.Fatalf("blank transitions = %v, want [false true]", got)
	}
	m, ok := b.Retained(TopicDisplayState)
	if !ok || !m.Payload.(types.BlankChange).Blank {
		t.Fatal("display/state not retained")
	}
}

func TestRunBlanksOnStartAndExit(t *testing.T) {
	st := state.New(state.Config{Pixels: 1, FPS: 100, Brightness: 1})
	strip := hal.NewMemStrip(1)
	p := New(Config{}, st, strip, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()

	st.PushBytes([]byte{7, 7, 7})
	deadline := time.Now().Add(time.Second)
	for strip.ShowCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("frame never rendered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	st.RequestShutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("player did not stop")
	}

	shown := strip.Shown()
	if !bytes.Equal(shown[0], []byte{0, 0, 0}) {
		t.Fatalf("first frame %v, want blank", shown[0])
	}
	if !bytes.Equal(shown[1], []byte{7, 7, 7}) {
		t.Fatalf("second frame %v", shown[1])
	}
	if !bytes.Equal(shown[len(shown)-1], []byte{0, 0, 0}) {
		t.Fatalf("last frame %v, want blank", shown[len(shown)-1])
	}
}

func TestRunStopsOnContext(t *testing.T) {
	st := state.New(state.Config{Pixels: 1})
	p := New(Config{}, st, hal.NewMemStrip(1), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("player ignored context cancellation")
	}
}
