package types

import "time"

// ---- Service state (retained) ----

type ServiceState struct {
	Level  string `json:"level"`  // e.g. "starting", "running", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// ---- Button ----

// Gesture is a coalesced button outcome: the number of clicks in one burst
// and whether the last click of the burst was a hold.
type Gesture struct {
	ID    string    `json:"id"`
	Count int       `json:"count"`
	Hold  bool      `json:"hold"`
	At    time.Time `json:"at"`
}

// ButtonInfo describes the configured input line.
type ButtonInfo struct {
	Driver    string `json:"driver"`
	Chip      string `json:"chip,omitempty"`
	Line      int    `json:"line"`
	ActiveLow bool   `json:"active_low"`
}

// ---- Display ----

// DisplayState is a point-in-time view of the render pipeline.
type DisplayState struct {
	Pixels         int       `json:"pixels"`
	FPS            int       `json:"fps"`
	Brightness     float64   `json:"brightness"`
	BufferedBytes  int       `json:"buffered_bytes"`
	BufferedFrames int       `json:"buffered_frames"`
	Blank          bool      `json:"blank"`
	LastFrameAt    time.Time `json:"last_frame_at,omitzero"`
	Webhook        bool      `json:"webhook_registered"`
	Running        bool      `json:"running"`
}

// BlankChange is published when the display flips between showing frames and blank.
type BlankChange struct {
	Blank bool      `json:"blank"`
	At    time.Time `json:"at"`
}

// ---- Config payloads published on the bus ----

type HeartbeatConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
}
