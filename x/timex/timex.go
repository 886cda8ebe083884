package timex

import "time"

// Clock returns the current time. Readings carry Go's monotonic component,
// so differences between two readings are immune to wall-clock steps.
type Clock func() time.Time

// System is the process clock.
var System Clock = time.Now

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz returns the tick period for a requested frequency.
// freqHz<=0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz int) time.Duration {
	if freqHz <= 0 {
		freqHz = 1
	}
	return time.Second / time.Duration(freqHz)
}

// Remaining returns how much of period is left after elapsed, never negative.
func Remaining(period, elapsed time.Duration) time.Duration {
	if d := period - elapsed; d > 0 {
		return d
	}
	return 0
}

// ResetTimer safely stops, drains, and resets a timer.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
